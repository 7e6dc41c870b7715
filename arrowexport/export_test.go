package arrowexport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/hupe1980/synapgo"
	"github.com/hupe1980/synapgo/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func attrRow(peer uint32) []float32 {
	r := make([]float32, source.AttributeWidth)
	r[source.ColPeer] = float32(peer)
	r[source.ColDelay] = 1.5
	r[source.ColEfficacy] = 7
	return r
}

// newCircuit returns a circuit where ids 1..n each receive one synapse
// from id 100 and send none.
func newCircuit(t *testing.T, n uint32, positions bool) *synapgo.Circuit {
	t.Helper()
	summary := map[uint32][]source.SummaryEntry{}
	attrs := map[uint32]source.Matrix{}
	pos := map[uint32]source.Matrix{}
	for id := uint32(1); id <= n; id++ {
		summary[id] = []source.SummaryEntry{{Peer: 100, Afferent: 1}}
		m, err := source.NewMatrix(source.AttributeWidth, attrRow(100))
		require.NoError(t, err)
		attrs[id] = m
		p, err := source.NewMatrix(source.NarrowPositionWidth, []float32{100, 1, 2, 3, float32(id), 5, 6})
		require.NoError(t, err)
		pos[id] = p
	}

	src := synapgo.Sources{
		Summary:  source.NewMemorySummary(summary),
		Afferent: source.NewMemoryRows(source.AttributeWidth, attrs),
	}
	if positions {
		src.Positions = &source.MemoryPositions{
			Afferent: source.NewMemoryRows(source.NarrowPositionWidth, pos),
			Efferent: source.NewMemoryRows(source.NarrowPositionWidth, map[uint32]source.Matrix{}),
		}
	}
	c, err := synapgo.NewCircuit(src)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func fieldNames(s *arrow.Schema) []string {
	names := make([]string, 0, s.NumFields())
	for _, f := range s.Fields() {
		names = append(names, f.Name)
	}
	return names
}

func TestRecord(t *testing.T) {
	ctx := context.Background()
	c := newCircuit(t, 3, true)

	syns, err := c.AfferentSynapses(ctx, roaring.BitmapOf(1, 2, 3))
	require.NoError(t, err)
	defer syns.Close()

	alloc := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer alloc.AssertSize(t, 0)

	rec, err := Record(ctx, syns, WithAllocator(alloc))
	require.NoError(t, err)
	defer rec.Release()

	assert.Equal(t, int64(3), rec.NumRows())
	names := fieldNames(rec.Schema())
	assert.Contains(t, names, "index")
	assert.Contains(t, names, "pre_center_x")
	assert.NotContains(t, names, "pre_surface_x", "narrow positions have no surface")

	idx := rec.Schema().FieldIndices("post_gid")
	require.Len(t, idx, 1)
	assert.Equal(t, []uint32{1, 2, 3}, rec.Column(idx[0]).(*array.Uint32).Uint32Values())

	idx = rec.Schema().FieldIndices("post_center_x")
	require.Len(t, idx, 1)
	assert.Equal(t, []float32{1, 2, 3}, rec.Column(idx[0]).(*array.Float32).Float32Values())

	idx = rec.Schema().FieldIndices("efficacy")
	require.Len(t, idx, 1)
	assert.Equal(t, []int32{7, 7, 7}, rec.Column(idx[0]).(*array.Int32).Int32Values())
}

func TestRecord_WithoutPositions(t *testing.T) {
	ctx := context.Background()
	c := newCircuit(t, 2, false)

	syns, err := c.AfferentSynapses(ctx, roaring.BitmapOf(1, 2))
	require.NoError(t, err)
	defer syns.Close()

	_, err = Record(ctx, syns)
	assert.ErrorIs(t, err, synapgo.ErrSourceOpen)

	rec, err := Record(ctx, syns, WithPositions(false))
	require.NoError(t, err)
	defer rec.Release()
	assert.NotContains(t, fieldNames(rec.Schema()), "pre_center_x")
	assert.Equal(t, int64(2), rec.NumRows())
}

func TestWriteIPC(t *testing.T) {
	ctx := context.Background()
	c := newCircuit(t, 4, true)

	syns, err := c.AfferentSynapses(ctx, roaring.BitmapOf(1, 2, 3, 4))
	require.NoError(t, err)
	defer syns.Close()

	var buf bytes.Buffer
	require.NoError(t, WriteIPC(ctx, &buf, syns))

	r, err := ipc.NewFileReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, 1, r.NumRecords())
	rec, err := r.Record(0)
	require.NoError(t, err)
	assert.Equal(t, int64(4), rec.NumRows())
}

func TestWriteStream(t *testing.T) {
	ctx := context.Background()
	c := newCircuit(t, 5, true)

	st := c.StreamAfferent(roaring.BitmapOf(1, 2, 3, 4, 5), 2)
	defer st.Close()

	var buf bytes.Buffer
	n, err := WriteStream(ctx, &buf, st, WithPositions(false))
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	r, err := ipc.NewReader(&buf)
	require.NoError(t, err)
	defer r.Release()

	var rows int64
	batches := 0
	for r.Next() {
		rows += r.Record().NumRows()
		batches++
	}
	require.True(t, r.Err() == nil || errors.Is(r.Err(), io.EOF))
	assert.Equal(t, int64(5), rows)
	assert.Equal(t, 3, batches)
}

package dataset

import (
	"context"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/synapgo/blobstore"
	"github.com/hupe1980/synapgo/mapping"
	"github.com/hupe1980/synapgo/resource"
	"github.com/hupe1980/synapgo/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func attrRow(peer float32) []float32 {
	r := make([]float32, source.AttributeWidth)
	r[source.ColPeer] = peer
	for i := 1; i < len(r); i++ {
		r[i] = peer + float32(i)/100
	}
	return r
}

func matrix(t *testing.T, width int, rows ...[]float32) source.Matrix {
	t.Helper()
	m, err := source.NewMatrix(width, rows...)
	require.NoError(t, err)
	return m
}

func posRow(peer float32, wide bool) []float32 {
	width := source.NarrowPositionWidth
	if wide {
		width = source.WidePositionWidth
	}
	r := make([]float32, width)
	r[0] = peer
	for i := 1; i < width; i++ {
		r[i] = float32(i) * 1.5
	}
	return r
}

func writeFixture(t *testing.T, store blobstore.BlobStore, optFns ...Option) {
	t.Helper()
	ctx := context.Background()
	w := NewWriter(store, optFns...)

	require.NoError(t, w.WriteSummary(ctx, map[uint32][]source.SummaryEntry{
		1: {{Peer: 2, Efferent: 1, Afferent: 2}, {Peer: 3, Efferent: 0, Afferent: 1}},
		2: {{Peer: 1, Efferent: 2, Afferent: 1}},
	}))
	require.NoError(t, w.WriteAttributes(ctx, true, map[uint32]source.Matrix{
		1: matrix(t, source.AttributeWidth, attrRow(2), attrRow(2), attrRow(3)),
		2: matrix(t, source.AttributeWidth, attrRow(1)),
	}))
	require.NoError(t, w.WriteAttributes(ctx, false, map[uint32]source.Matrix{
		1: matrix(t, source.AttributeWidth, attrRow(2)),
		2: matrix(t, source.AttributeWidth, attrRow(1), attrRow(1)),
	}))
	require.NoError(t, w.WriteExtra(ctx, map[uint32]source.Matrix{
		1: matrix(t, source.ExtraWidth, []float32{7}, []float32{8}, []float32{9}),
	}))
	require.NoError(t, w.WritePositions(ctx, true, map[uint32]source.Matrix{
		1: matrix(t, source.WidePositionWidth, posRow(2, true), posRow(2, true), posRow(3, true)),
	}, true))
	require.NoError(t, w.WriteProjection(ctx, "thalamus", map[uint32]source.Matrix{
		1: matrix(t, source.AttributeWidth, attrRow(900), attrRow(901)),
		5: matrix(t, source.AttributeWidth, attrRow(902)),
	}))

	m, err := mapping.New(map[string][]uint64{"hippocampus": {1, 2, 3}})
	require.NoError(t, err)
	require.NoError(t, w.WriteMapping(ctx, m))
	require.NoError(t, w.Commit(ctx))
}

func openFixture(t *testing.T, optFns ...Option) (*Dataset, *blobstore.MemoryStore) {
	t.Helper()
	store := blobstore.NewMemoryStore()
	writeFixture(t, store, optFns...)

	d, err := Open(context.Background(), store, optFns...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d, store
}

func TestDataset_Summary(t *testing.T) {
	d, _ := openFixture(t)
	ctx := context.Background()

	entries, err := d.Summary().Read(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []source.SummaryEntry{
		{Peer: 2, Efferent: 1, Afferent: 2},
		{Peer: 3, Efferent: 0, Afferent: 1},
	}, entries)

	entries, err = d.Summary().Read(ctx, 42)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDataset_Attributes(t *testing.T) {
	d, _ := openFixture(t)
	ctx := context.Background()

	m, err := d.Afferent().Read(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, source.AttributeWidth, m.Width)
	require.Equal(t, 3, m.Rows())
	assert.Equal(t, attrRow(3), m.Row(2))

	m, err = d.Efferent().Read(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Rows())

	m, err = d.Afferent().Read(ctx, 99)
	require.NoError(t, err)
	assert.True(t, m.Empty())
	assert.Equal(t, source.AttributeWidth, m.Width)

	extra, err := d.Extra().Read(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []float32{7, 8, 9}, extra.Data)

	blocks, _ := d.Afferent().Reads()
	assert.Equal(t, int64(1), blocks, "absent ids are answered from the index")
}

func TestDataset_PositionsOpenLazily(t *testing.T) {
	d, store := openFixture(t)
	ctx := context.Background()
	opensBefore := store.Opens()

	p := d.Positions()
	require.NotNil(t, p)
	assert.True(t, p.SurfacePositions())
	assert.Equal(t, opensBefore, store.Opens())

	src, err := p.OpenPositions(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, opensBefore+1, store.Opens())

	m, err := src.Read(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, source.WidePositionWidth, m.Width)
	assert.Equal(t, 3, m.Rows())

	_, err = p.OpenPositions(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, opensBefore+1, store.Opens(), "opened once")

	_, err = p.OpenPositions(ctx, false)
	assert.ErrorIs(t, err, ErrNoTable)
}

func TestDataset_Projections(t *testing.T) {
	d, _ := openFixture(t)
	ctx := context.Background()

	projs := d.Projections()
	require.Contains(t, projs, "thalamus")

	n, err := projs["thalamus"].SizeForIDs(ctx, roaring.BitmapOf(1, 5, 6))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	m, err := projs["thalamus"].Read(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, float32(902), m.Row(0)[source.ColPeer])
}

func TestDataset_Mapping(t *testing.T) {
	d, _ := openFixture(t)

	m, err := d.Mapping(context.Background())
	require.NoError(t, err)
	p, err := m.Population("hippocampus")
	require.NoError(t, err)
	gid, err := p.GID(2)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), gid)
}

func TestDataset_Compression(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			d, _ := openFixture(t, WithCompression(c))
			assert.Equal(t, c.String(), d.Manifest().Compression)
			assert.Equal(t, c, d.Afferent().Compression())

			m, err := d.Afferent().Read(context.Background(), 1)
			require.NoError(t, err)
			assert.Equal(t, attrRow(2), m.Row(0))
		})
	}
}

func TestDataset_IOThrottle(t *testing.T) {
	rc := resource.NewController(resource.Config{IOLimitBytesPerSec: 1 << 30})
	d, _ := openFixture(t, WithResourceController(rc))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := d.Afferent().Read(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = d.Afferent().Read(context.Background(), 1)
	assert.NoError(t, err)
}

func TestDataset_Close(t *testing.T) {
	d, _ := openFixture(t)
	ctx := context.Background()

	_, err := d.OpenPositions(ctx, true)
	require.NoError(t, err)
	require.NoError(t, d.Close())
	require.NoError(t, d.Close())

	_, err = d.Afferent().Read(ctx, 1)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = d.OpenPositions(ctx, true)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestOpen_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, blobstore.NewMemoryStore())
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	store := blobstore.NewMemoryStore()
	require.NoError(t, store.Put(ctx, ManifestName, []byte(`{"version":1,"compression":"zstd"}`)))
	_, err = Open(ctx, store)
	assert.ErrorIs(t, err, ErrCorrupt)

	require.NoError(t, store.Put(ctx, ManifestName, []byte(`not json`)))
	_, err = Open(ctx, store)
	assert.ErrorIs(t, err, ErrCorrupt)

	// Manifest pointing at a table of the wrong width.
	store = blobstore.NewMemoryStore()
	writeFixture(t, store)
	m, err := ReadManifest(ctx, store)
	require.NoError(t, err)
	m.Afferent = m.Extra
	require.NoError(t, writeManifest(ctx, store, m))
	_, err = Open(ctx, store)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestWriter_Validation(t *testing.T) {
	ctx := context.Background()
	w := NewWriter(blobstore.NewMemoryStore())

	err := w.WriteAttributes(ctx, true, map[uint32]source.Matrix{
		1: matrix(t, source.ExtraWidth, []float32{1}),
	})
	assert.Error(t, err)

	require.NoError(t, w.WritePositions(ctx, true, map[uint32]source.Matrix{}, false))
	assert.Error(t, w.WritePositions(ctx, false, map[uint32]source.Matrix{}, true))

	assert.ErrorIs(t, w.Commit(ctx), ErrCorrupt, "summary and afferent are required")
}

package source

import (
	"context"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummaryEntry_Count(t *testing.T) {
	e := SummaryEntry{Peer: 5, Efferent: 1, Afferent: 2}
	assert.Equal(t, uint32(2), e.Count(true))
	assert.Equal(t, uint32(1), e.Count(false))
}

func TestMatrix(t *testing.T) {
	m, err := NewMatrix(3, []float32{1, 2, 3}, []float32{4, 5, 6})
	require.NoError(t, err)

	assert.Equal(t, 2, m.Rows())
	assert.Equal(t, []float32{4, 5, 6}, m.Row(1))
	assert.NoError(t, m.Validate())
	assert.False(t, m.Empty())

	_, err = NewMatrix(3, []float32{1, 2})
	assert.Error(t, err)

	assert.Error(t, Matrix{Data: []float32{1, 2}, Width: 3}.Validate())
	assert.Error(t, Matrix{Data: []float32{1}, Width: 0}.Validate())
	assert.Equal(t, 0, Matrix{}.Rows())
}

func TestMatrix_RowIsCapped(t *testing.T) {
	m, err := NewMatrix(2, []float32{1, 2}, []float32{3, 4})
	require.NoError(t, err)

	r := m.Row(0)
	r = append(r, 9)
	assert.Equal(t, []float32{3, 4}, m.Row(1))
	assert.Len(t, r, 3)
}

func TestMemorySummary(t *testing.T) {
	s := NewMemorySummary(map[uint32][]SummaryEntry{1: {{Peer: 5, Afferent: 2}}})

	got, err := s.Read(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = s.Read(context.Background(), 99)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, int64(2), s.Reads())

	require.NoError(t, s.Close())
	_, err = s.Read(context.Background(), 1)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMemoryRows_UnknownID(t *testing.T) {
	r := NewMemoryRows(AttributeWidth, nil)

	m, err := r.Read(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, m.Empty())
	assert.Equal(t, AttributeWidth, m.Width)
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	ids := roaring.BitmapOf(3, 1)
	keys := c.CreateKeys(ids, true)
	assert.Equal(t, []string{"1/a", "3/a"}, keys)

	narrow := Matrix{Data: make([]float32, NarrowPositionWidth), Width: NarrowPositionWidth}
	require.NoError(t, c.SavePositions(ctx, 1, keys[0], narrow))

	hits, err := c.LoadPositions(ctx, keys, false)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	hits, err = c.LoadPositions(ctx, keys, true)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestMemoryPositions(t *testing.T) {
	p := &MemoryPositions{Afferent: NewMemoryRows(NarrowPositionWidth, nil)}

	src, err := p.OpenPositions(context.Background(), true)
	require.NoError(t, err)
	assert.NotNil(t, src)

	_, err = p.OpenPositions(context.Background(), false)
	assert.Error(t, err)
	assert.Equal(t, int64(2), p.Opens())
}

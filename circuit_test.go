package synapgo

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/synapgo/mapping"
	"github.com/hupe1980/synapgo/resource"
	"github.com/hupe1980/synapgo/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCircuit_RequiresSources(t *testing.T) {
	_, err := NewCircuit(Sources{})
	assert.ErrorIs(t, err, ErrSourceOpen)
}

func TestCircuit_LongestHolderClosesSources(t *testing.T) {
	ts := newTestSources(t, exampleSummary(), false)
	c, err := NewCircuit(ts.sources())
	require.NoError(t, err)

	syns, err := c.AfferentSynapses(context.Background(), roaring.BitmapOf(1, 2))
	require.NoError(t, err)
	clone, err := syns.Clone()
	require.NoError(t, err)

	require.NoError(t, c.Close())
	assert.False(t, ts.summary.Closed())

	_, err = c.AfferentSynapses(context.Background(), roaring.BitmapOf(1))
	assert.ErrorIs(t, err, ErrClosed)

	// Stages still load through the open handles.
	_, err = clone.Delays()
	require.NoError(t, err)

	require.NoError(t, syns.Close())
	assert.False(t, ts.summary.Closed())
	require.NoError(t, clone.Close())
	assert.True(t, ts.summary.Closed())
	assert.True(t, ts.afferent.Closed())
	assert.True(t, ts.efferent.Closed())
}

func TestCircuit_CloseWithoutHandles(t *testing.T) {
	ts := newTestSources(t, exampleSummary(), false)
	c, err := NewCircuit(ts.sources())
	require.NoError(t, err)

	require.NoError(t, c.Close())
	assert.True(t, ts.summary.Closed())
	require.NoError(t, c.Close())
}

func TestCircuit_ExternalAfferentSynapses(t *testing.T) {
	ts := newTestSources(t, exampleSummary(), false)
	rows := map[uint32]source.Matrix{}
	for _, id := range []uint32{1, 2} {
		m, err := ts.afferent.Read(context.Background(), id)
		require.NoError(t, err)
		rows[id] = m
	}
	proj := source.NewMemoryProjection(3, rows)

	src := ts.sources()
	src.Projections = map[string]source.ProjectionSource{"thalamus": proj}
	c, err := NewCircuit(src)
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, []string{"thalamus"}, c.Projections())

	syns, err := c.ExternalAfferentSynapses(context.Background(), roaring.BitmapOf(1, 2), "thalamus")
	require.NoError(t, err)
	defer syns.Close()

	assert.True(t, syns.External())
	assert.Equal(t, 3, syns.Size())

	pre, err := syns.PreGIDs()
	require.NoError(t, err)
	assert.Equal(t, []uint32{5, 5, 5}, pre)

	_, err = syns.PreCenterXPositions()
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.Equal(t, int64(0), ts.positions.Opens())

	_, err = c.ExternalAfferentSynapses(context.Background(), roaring.BitmapOf(1), "cortex")
	assert.ErrorIs(t, err, ErrUnknownProjection)

	_, err = c.ExternalAfferentSynapses(context.Background(), roaring.BitmapOf(1), "thalamus", WithFilter(roaring.BitmapOf(5)))
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestCircuit_ExternalAfferentSynapses_PrefetchAll(t *testing.T) {
	ts := newTestSources(t, exampleSummary(), false)
	m, err := ts.afferent.Read(context.Background(), 1)
	require.NoError(t, err)

	src := ts.sources()
	src.Projections = map[string]source.ProjectionSource{
		"thalamus": source.NewMemoryProjection(3, map[uint32]source.Matrix{1: m}),
	}
	c, err := NewCircuit(src, WithDefaultPrefetch(PrefetchAll))
	require.NoError(t, err)
	defer c.Close()

	for _, optFns := range [][]RequestOption{nil, {WithPrefetch(PrefetchPositions)}} {
		syns, err := c.ExternalAfferentSynapses(context.Background(), roaring.BitmapOf(1), "thalamus", optFns...)
		require.NoError(t, err)
		assert.True(t, syns.Loaded(PrefetchAttributes) || optFns != nil)
		assert.False(t, syns.Loaded(PrefetchPositions))

		_, err = syns.PreCenterXPositions()
		assert.ErrorIs(t, err, ErrUnsupported)
		require.NoError(t, syns.Close())
	}
	assert.Equal(t, int64(0), ts.positions.Opens())
}

func TestCircuit_ProjectedSynapses(t *testing.T) {
	entries := map[uint32][]source.SummaryEntry{
		1: {{Peer: 5, Afferent: 2}, {Peer: 6, Afferent: 1}},
		2: {{Peer: 6, Afferent: 3}},
	}
	ts := newTestSources(t, entries, false)
	c := newTestCircuit(t, ts)
	ctx := context.Background()

	syns, err := c.ProjectedSynapses(ctx, roaring.BitmapOf(6), roaring.BitmapOf(1, 2))
	require.NoError(t, err)
	defer syns.Close()

	assert.Equal(t, 4, syns.Size())
	pre, err := syns.PreGIDs()
	require.NoError(t, err)
	assert.Equal(t, []uint32{6, 6, 6, 6}, pre)

	none, err := c.ProjectedSynapses(ctx, roaring.New(), roaring.BitmapOf(1, 2))
	require.NoError(t, err)
	defer none.Close()
	assert.True(t, none.Empty())
}

func TestCircuit_DefaultPrefetch(t *testing.T) {
	ts := newTestSources(t, exampleSummary(), false)
	c := newTestCircuit(t, ts, WithDefaultPrefetch(PrefetchAttributes))

	syns, err := c.AfferentSynapses(context.Background(), roaring.BitmapOf(1, 2))
	require.NoError(t, err)
	defer syns.Close()
	assert.True(t, syns.Loaded(PrefetchAttributes))
	assert.False(t, syns.Loaded(PrefetchPositions))

	lazy, err := c.AfferentSynapses(context.Background(), roaring.BitmapOf(1, 2), WithPrefetch(PrefetchNone))
	require.NoError(t, err)
	defer lazy.Close()
	assert.False(t, lazy.Loaded(PrefetchAttributes))
}

func TestCircuit_MetricsAndLogging(t *testing.T) {
	ts := newTestSources(t, exampleSummary(), false)
	metrics := &BasicMetricsCollector{}
	var logs bytes.Buffer
	logger := NewLogger(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	cache := source.NewMemoryCache()

	c := newTestCircuit(t, ts,
		WithMetricsCollector(metrics),
		WithLogger(logger),
		WithPositionCache(cache),
	)

	syns, err := c.AfferentSynapses(context.Background(), roaring.BitmapOf(1, 2), WithPrefetch(PrefetchAll))
	require.NoError(t, err)
	require.NoError(t, syns.Close())

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.ConnectivityCount)
	assert.Equal(t, int64(1), stats.AttributeCount)
	assert.Equal(t, int64(1), stats.PositionCount)
	assert.Equal(t, int64(0), stats.StageErrors)
	assert.Equal(t, int64(2), stats.CacheMisses)
	assert.Positive(t, stats.Allocations)
	assert.Contains(t, logs.String(), "load stage completed")
	assert.Contains(t, logs.String(), "direction=afferent")

	// Second request is served from the cache.
	syns, err = c.AfferentSynapses(context.Background(), roaring.BitmapOf(1, 2), WithPrefetch(PrefetchPositions))
	require.NoError(t, err)
	require.NoError(t, syns.Close())
	assert.Equal(t, int64(2), metrics.GetStats().CacheHits)
	assert.Equal(t, int64(1), ts.positions.Opens())
}

type stubMapping struct {
	m     *mapping.Mapping
	err   error
	loads int
}

func (s *stubMapping) Mapping(context.Context) (*mapping.Mapping, error) {
	s.loads++
	return s.m, s.err
}

func TestCircuit_Mapping(t *testing.T) {
	ctx := context.Background()
	ts := newTestSources(t, exampleSummary(), false)

	c := newTestCircuit(t, ts)
	_, err := c.Mapping(ctx)
	assert.ErrorIs(t, err, ErrNoMapping)

	m, err := mapping.New(map[string][]uint64{"ca1": {1, 2}})
	require.NoError(t, err)
	stub := &stubMapping{err: errors.New("unreadable")}
	src := ts.sources()
	src.Mapping = stub
	c, err = NewCircuit(src)
	require.NoError(t, err)

	_, err = c.Mapping(ctx)
	assert.ErrorIs(t, err, ErrSourceOpen)

	stub.m, stub.err = m, nil
	for range 2 {
		got, err := c.Mapping(ctx)
		require.NoError(t, err)
		assert.Same(t, m, got)
	}
	assert.Equal(t, 2, stub.loads, "loaded once after the failure")

	require.NoError(t, c.Close())
	_, err = c.Mapping(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCircuit_MemoryLimit(t *testing.T) {
	ts := newTestSources(t, exampleSummary(), false)
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 1})
	c := newTestCircuit(t, ts, WithResourceController(rc))

	_, err := c.AfferentSynapses(context.Background(), roaring.BitmapOf(1, 2))
	assert.ErrorIs(t, err, ErrOutOfMemory)
	assert.Same(t, rc, c.Resources())
}

func TestPrefetch(t *testing.T) {
	assert.Equal(t, Prefetch(1), PrefetchAttributes)
	assert.Equal(t, Prefetch(2), PrefetchPositions)
	assert.True(t, PrefetchAll.Has(PrefetchPositions))
	assert.False(t, PrefetchAttributes.Has(PrefetchPositions))
	assert.Equal(t, "all", PrefetchAll.String())
	assert.Equal(t, "positions", PrefetchPositions.String())

	p, ok := ParsePrefetch("Attributes")
	assert.True(t, ok)
	assert.Equal(t, PrefetchAttributes, p)
	_, ok = ParsePrefetch("everything")
	assert.False(t, ok)
}

package source

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"
)

// ErrClosed is returned by in-memory sources after Close.
var ErrClosed = errors.New("source closed")

// MemorySummary is an in-memory SummaryIndex.
type MemorySummary struct {
	entries map[uint32][]SummaryEntry
	reads   atomic.Int64
	closed  atomic.Bool
}

// NewMemorySummary creates a MemorySummary from entries keyed by entity id.
func NewMemorySummary(entries map[uint32][]SummaryEntry) *MemorySummary {
	if entries == nil {
		entries = make(map[uint32][]SummaryEntry)
	}
	return &MemorySummary{entries: entries}
}

// Read implements SummaryIndex.
func (s *MemorySummary) Read(_ context.Context, id uint32) ([]SummaryEntry, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	s.reads.Add(1)
	return s.entries[id], nil
}

// Reads returns the number of Read calls.
func (s *MemorySummary) Reads() int64 { return s.reads.Load() }

// Close marks the summary closed.
func (s *MemorySummary) Close() error {
	s.closed.Store(true)
	return nil
}

// Closed reports whether Close was called.
func (s *MemorySummary) Closed() bool { return s.closed.Load() }

// MemoryRows is an in-memory row group source. It satisfies
// AttributeSource, ExtraSource and PositionSource.
type MemoryRows struct {
	rows   map[uint32]Matrix
	width  int
	reads  atomic.Int64
	closed atomic.Bool

	// Err, when set, is returned by every Read.
	Err error
}

// NewMemoryRows creates a source returning rows[id], or an empty group of width for unknown ids.
func NewMemoryRows(width int, rows map[uint32]Matrix) *MemoryRows {
	if rows == nil {
		rows = make(map[uint32]Matrix)
	}
	return &MemoryRows{rows: rows, width: width}
}

// Read returns the row group of id.
func (r *MemoryRows) Read(_ context.Context, id uint32) (Matrix, error) {
	if r.closed.Load() {
		return Matrix{}, ErrClosed
	}
	r.reads.Add(1)
	if r.Err != nil {
		return Matrix{}, r.Err
	}
	if m, ok := r.rows[id]; ok {
		return m, nil
	}
	return Matrix{Width: r.width}, nil
}

// Reads returns the number of Read calls.
func (r *MemoryRows) Reads() int64 { return r.reads.Load() }

// Close marks the source closed.
func (r *MemoryRows) Close() error {
	r.closed.Store(true)
	return nil
}

// Closed reports whether Close was called.
func (r *MemoryRows) Closed() bool { return r.closed.Load() }

// MemoryPositions is an in-memory PositionOpener with separate afferent
// and efferent row groups.
type MemoryPositions struct {
	Afferent *MemoryRows
	Efferent *MemoryRows
	Surface  bool

	// OpenErr, when set, is returned by OpenPositions.
	OpenErr error

	opens atomic.Int64
}

// OpenPositions implements PositionOpener.
func (p *MemoryPositions) OpenPositions(_ context.Context, afferent bool) (PositionSource, error) {
	p.opens.Add(1)
	if p.OpenErr != nil {
		return nil, p.OpenErr
	}
	src := p.Efferent
	if afferent {
		src = p.Afferent
	}
	if src == nil {
		return nil, fmt.Errorf("no position rows for afferent=%t", afferent)
	}
	return src, nil
}

// SurfacePositions implements PositionOpener.
func (p *MemoryPositions) SurfacePositions() bool { return p.Surface }

// Opens returns the number of OpenPositions calls.
func (p *MemoryPositions) Opens() int64 { return p.opens.Load() }

// MemoryProjection is an in-memory ProjectionSource.
type MemoryProjection struct {
	*MemoryRows
	size      int
	sizeCalls atomic.Int64
}

// NewMemoryProjection creates a projection whose SizeForIDs always returns size.
func NewMemoryProjection(size int, rows map[uint32]Matrix) *MemoryProjection {
	return &MemoryProjection{MemoryRows: NewMemoryRows(AttributeWidth, rows), size: size}
}

// SizeForIDs implements ProjectionSource.
func (p *MemoryProjection) SizeForIDs(_ context.Context, _ *roaring.Bitmap) (int, error) {
	p.sizeCalls.Add(1)
	return p.size, nil
}

// SizeCalls returns the number of SizeForIDs calls.
func (p *MemoryProjection) SizeCalls() int64 { return p.sizeCalls.Load() }

// MemoryCache is an in-memory PositionCache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]Matrix
	loads   atomic.Int64
	saves   atomic.Int64

	// LoadErr and SaveErr, when set, are returned by the respective calls.
	LoadErr error
	SaveErr error
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]Matrix)}
}

// CreateKeys implements PositionCache.
func (c *MemoryCache) CreateKeys(ids *roaring.Bitmap, afferent bool) []string {
	dir := "e"
	if afferent {
		dir = "a"
	}
	keys := make([]string, 0, ids.GetCardinality())
	it := ids.Iterator()
	for it.HasNext() {
		keys = append(keys, fmt.Sprintf("%d/%s", it.Next(), dir))
	}
	return keys
}

// LoadPositions implements PositionCache. Entries whose width disagrees
// with wide are reported as misses.
func (c *MemoryCache) LoadPositions(_ context.Context, keys []string, wide bool) (map[string]Matrix, error) {
	c.loads.Add(1)
	if c.LoadErr != nil {
		return nil, c.LoadErr
	}
	want := NarrowPositionWidth
	if wide {
		want = WidePositionWidth
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]Matrix, len(keys))
	for _, k := range keys {
		if m, ok := c.entries[k]; ok && (m.Width == want || m.Empty()) {
			out[k] = m
		}
	}
	return out, nil
}

// SavePositions implements PositionCache.
func (c *MemoryCache) SavePositions(_ context.Context, _ uint32, key string, rows Matrix) error {
	c.saves.Add(1)
	if c.SaveErr != nil {
		return c.SaveErr
	}
	c.mu.Lock()
	c.entries[key] = rows
	c.mu.Unlock()
	return nil
}

// Put stores rows under key without counting a save.
func (c *MemoryCache) Put(key string, rows Matrix) {
	c.mu.Lock()
	c.entries[key] = rows
	c.mu.Unlock()
}

// Len returns the number of cached entries.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Loads returns the number of LoadPositions calls.
func (c *MemoryCache) Loads() int64 { return c.loads.Load() }

// Saves returns the number of SavePositions calls.
func (c *MemoryCache) Saves() int64 { return c.saves.Load() }

package poscache

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/synapgo/internal/codec"
	"github.com/hupe1980/synapgo/source"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds parallel backend calls of one LoadPositions.
const DefaultConcurrency = 16

type options struct {
	namespace   string
	compression codec.Compression
	concurrency int
	logger      *slog.Logger
}

// Option configures a Cache.
type Option func(*options)

// WithNamespace prefixes every key, so one backend can serve several
// datasets.
func WithNamespace(ns string) Option {
	return func(o *options) { o.namespace = ns }
}

// WithCompression sets the compression of stored row groups. Defaults to lz4.
func WithCompression(c codec.Compression) Option {
	return func(o *options) { o.compression = c }
}

// WithConcurrency bounds parallel backend calls.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithLogger sets the logger for undecodable entries.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Cache is a source.PositionCache over a Backend. It is safe for
// concurrent use.
type Cache struct {
	backend Backend
	opts    options

	hits    atomic.Int64
	misses  atomic.Int64
	corrupt atomic.Int64
}

var _ source.PositionCache = (*Cache)(nil)

// New returns a cache storing row groups in backend.
func New(backend Backend, optFns ...Option) *Cache {
	o := options{
		compression: codec.CompressionLZ4,
		concurrency: DefaultConcurrency,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, fn := range optFns {
		fn(&o)
	}
	return &Cache{backend: backend, opts: o}
}

// Key returns the key of the row group of id: "<namespace>/syn/<id>/<a|e>".
func (c *Cache) Key(id uint32, afferent bool) string {
	dir := "e"
	if afferent {
		dir = "a"
	}
	k := "syn/" + strconv.FormatUint(uint64(id), 10) + "/" + dir
	if c.opts.namespace != "" {
		k = c.opts.namespace + "/" + k
	}
	return k
}

// CreateKeys implements source.PositionCache.
func (c *Cache) CreateKeys(ids *roaring.Bitmap, afferent bool) []string {
	keys := make([]string, 0, ids.GetCardinality())
	it := ids.Iterator()
	for it.HasNext() {
		keys = append(keys, c.Key(it.Next(), afferent))
	}
	return keys
}

// LoadPositions implements source.PositionCache. Entries that cannot be
// decoded or whose width does not match wide are misses.
func (c *Cache) LoadPositions(ctx context.Context, keys []string, wide bool) (map[string]source.Matrix, error) {
	raw, err := c.fetch(ctx, keys)
	if err != nil {
		return nil, err
	}

	want := source.NarrowPositionWidth
	if wide {
		want = source.WidePositionWidth
	}

	out := make(map[string]source.Matrix, len(raw))
	for k, v := range raw {
		data, width, err := codec.DecodeRows(v)
		if err != nil {
			c.corrupt.Add(1)
			c.opts.logger.WarnContext(ctx, "undecodable position cache entry", "key", k, "error", err)
			continue
		}
		if len(data) == 0 {
			out[k] = source.Matrix{Width: want}
			continue
		}
		if width != want {
			continue
		}
		out[k] = source.Matrix{Data: data, Width: width}
	}

	c.hits.Add(int64(len(out)))
	c.misses.Add(int64(len(keys) - len(out)))
	return out, nil
}

func (c *Cache) fetch(ctx context.Context, keys []string) (map[string][]byte, error) {
	if bb, ok := c.backend.(BatchBackend); ok {
		return bb.GetMany(ctx, keys)
	}

	var (
		mu  sync.Mutex
		out = make(map[string][]byte, len(keys))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.concurrency)
	for _, k := range keys {
		g.Go(func() error {
			v, ok, err := c.backend.Get(gctx, k)
			if err != nil {
				return fmt.Errorf("get %s: %w", k, err)
			}
			if ok {
				mu.Lock()
				out[k] = v
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// SavePositions implements source.PositionCache.
func (c *Cache) SavePositions(ctx context.Context, _ uint32, key string, rows source.Matrix) error {
	v, err := codec.EncodeRows(rows.Data, rows.Width, c.opts.compression)
	if err != nil {
		return err
	}
	return c.backend.Put(ctx, key, v)
}

// Stats returns the number of hits and misses, and of entries dropped
// because they could not be decoded.
func (c *Cache) Stats() (hits, misses, corrupt int64) {
	return c.hits.Load(), c.misses.Load(), c.corrupt.Load()
}

package synapgo

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/synapgo/internal/mem"
	"github.com/hupe1980/synapgo/internal/synapses"
	"github.com/hupe1980/synapgo/mapping"
	"github.com/hupe1980/synapgo/resource"
	"github.com/hupe1980/synapgo/source"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/hupe1980/synapgo"

// Sources are the data services a Circuit loads synapses from.
type Sources struct {
	Summary   source.SummaryIndex
	Afferent  source.AttributeSource
	Efferent  source.AttributeSource
	Extra     source.ExtraSource
	Positions source.PositionOpener

	// Projections are external afferent sources by name.
	Projections map[string]source.ProjectionSource

	// Mapping, when set, resolves population node ids to GIDs.
	Mapping MappingSource

	// Closer, when set, is closed together with every source that
	// implements io.Closer once the circuit is released.
	Closer io.Closer
}

// MappingSource loads a population mapping.
type MappingSource interface {
	Mapping(ctx context.Context) (*mapping.Mapping, error)
}

// Circuit hands out synapse sets over shared sources.
//
// The sources stay open while the circuit or any Synapses obtained from it
// is open; whichever is closed last closes them.
type Circuit struct {
	src    Sources
	opts   options
	alloc  *mem.Allocator
	tracer trace.Tracer

	mappingMu sync.Mutex
	popMapping *mapping.Mapping

	refs      atomic.Int64
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewCircuit creates a Circuit.
func NewCircuit(src Sources, optFns ...Option) (*Circuit, error) {
	if src.Summary == nil || src.Afferent == nil {
		return nil, fmt.Errorf("%w: summary and afferent attribute sources are required", ErrSourceOpen)
	}

	opts := applyOptions(optFns)
	c := &Circuit{
		src:    src,
		opts:   opts,
		tracer: opts.tracerProvider.Tracer(tracerName),
	}
	c.alloc = mem.NewAllocator(
		mem.WithController(opts.rc),
		mem.WithLogger(opts.logger.Logger),
		mem.WithAllocFunc(opts.metricsCollector.RecordAllocation),
	)
	c.refs.Store(1)
	return c, nil
}

// Resources returns the resource controller charged by loaded columns.
func (c *Circuit) Resources() *resource.Controller {
	return c.opts.rc
}

// Projections returns the names of the external projections, sorted.
func (c *Circuit) Projections() []string {
	names := make([]string, 0, len(c.src.Projections))
	for name := range c.src.Projections {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Mapping returns the population mapping, loading it on first use.
func (c *Circuit) Mapping(ctx context.Context) (*mapping.Mapping, error) {
	if c.src.Mapping == nil {
		return nil, ErrNoMapping
	}
	if !c.acquire() {
		return nil, ErrClosed
	}
	defer c.release()

	c.mappingMu.Lock()
	defer c.mappingMu.Unlock()
	if c.popMapping == nil {
		m, err := c.src.Mapping.Mapping(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: mapping: %w", ErrSourceOpen, err)
		}
		c.popMapping = m
	}
	return c.popMapping, nil
}

// AfferentSynapses returns the incoming synapses of ids.
func (c *Circuit) AfferentSynapses(ctx context.Context, ids *roaring.Bitmap, optFns ...RequestOption) (*Synapses, error) {
	return c.newSynapses(ctx, ids, true, "", optFns)
}

// EfferentSynapses returns the outgoing synapses of ids.
func (c *Circuit) EfferentSynapses(ctx context.Context, ids *roaring.Bitmap, optFns ...RequestOption) (*Synapses, error) {
	if c.src.Efferent == nil {
		return nil, fmt.Errorf("%w: no efferent attribute source", ErrUnsupported)
	}
	return c.newSynapses(ctx, ids, false, "", optFns)
}

// ExternalAfferentSynapses returns the incoming synapses of ids from the
// named external projection. The result has no positions.
func (c *Circuit) ExternalAfferentSynapses(ctx context.Context, ids *roaring.Bitmap, projection string, optFns ...RequestOption) (*Synapses, error) {
	if _, ok := c.src.Projections[projection]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProjection, projection)
	}
	return c.newSynapses(ctx, ids, true, projection, optFns)
}

// ProjectedSynapses returns the synapses from preIDs onto postIDs.
func (c *Circuit) ProjectedSynapses(ctx context.Context, preIDs, postIDs *roaring.Bitmap, optFns ...RequestOption) (*Synapses, error) {
	if preIDs == nil || preIDs.IsEmpty() {
		return c.newSynapses(ctx, roaring.New(), true, "", optFns)
	}
	optFns = append(slices.Clone(optFns), WithFilter(preIDs))
	return c.newSynapses(ctx, postIDs, true, "", optFns)
}

func (c *Circuit) newSynapses(ctx context.Context, ids *roaring.Bitmap, afferent bool, projection string, optFns []RequestOption) (*Synapses, error) {
	if !c.acquire() {
		return nil, ErrClosed
	}

	req := applyRequestOptions(c.opts.prefetch, optFns)
	cfg := c.setConfig(ids, req.filter, afferent)
	if projection != "" {
		if req.filter != nil && !req.filter.IsEmpty() {
			c.release()
			return nil, fmt.Errorf("%w: filters on external projections", ErrUnsupported)
		}
		cfg.Projection = c.src.Projections[projection]
		// Projections carry no positions; the accessors report that.
		req.prefetch &^= PrefetchPositions
	}

	set, err := synapses.New(ctx, cfg)
	if err != nil {
		c.release()
		return nil, translateError(err)
	}

	s := newSynapses(set, c)
	if err := s.Load(ctx, req.prefetch); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (c *Circuit) setConfig(ids, filter *roaring.Bitmap, afferent bool) synapses.Config {
	attrs := c.src.Efferent
	if afferent {
		attrs = c.src.Afferent
	}
	logger := c.opts.logger.WithDirection(afferent)
	mc := c.opts.metricsCollector

	return synapses.Config{
		IDs:        ids,
		Filter:     filter,
		Afferent:   afferent,
		Summary:    c.src.Summary,
		Attributes: attrs,
		Extra:      c.src.Extra,
		Positions:  c.src.Positions,
		Cache:      c.opts.cache,
		Allocator:  c.alloc,
		Logger:     logger.Logger,
		Tracer:     c.tracer,
		OnStage: func(ctx context.Context, stage synapses.Stage, size int, d time.Duration, err error) {
			mc.RecordStage(stage.String(), size, d, err)
			logger.LogStage(ctx, stage.String(), size, d, err)
		},
		OnCache: func(ctx context.Context, hits, misses int) {
			mc.RecordCache(hits, misses)
			logger.LogCache(ctx, hits, misses)
		},
	}
}

func (c *Circuit) acquire() bool {
	for {
		n := c.refs.Load()
		if n <= 0 || c.closed.Load() {
			return false
		}
		if c.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (c *Circuit) release() {
	if c.refs.Add(-1) == 0 {
		c.closeSources()
	}
}

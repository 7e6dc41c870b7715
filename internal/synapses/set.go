package synapses

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/synapgo/internal/lazy"
	"github.com/hupe1980/synapgo/internal/mem"
	"github.com/hupe1980/synapgo/source"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// StageFunc is notified after every stage body run.
type StageFunc func(ctx context.Context, stage Stage, size int, d time.Duration, err error)

// CacheFunc is notified after every position cache lookup.
type CacheFunc func(ctx context.Context, hits, misses int)

// Config describes what a Set loads and where from.
//
// Either Projection is set (external mode) or Summary and Attributes are.
type Config struct {
	IDs      *roaring.Bitmap
	Filter   *roaring.Bitmap
	Afferent bool

	Summary    source.SummaryIndex
	Attributes source.AttributeSource
	Extra      source.ExtraSource
	Positions  source.PositionOpener
	Projection source.ProjectionSource
	Cache      source.PositionCache

	Allocator *mem.Allocator
	Logger    *slog.Logger
	Tracer    trace.Tracer
	OnStage   StageFunc
	OnCache   CacheFunc
}

// Set is a connection set: the columns of every synapse of a group of ids
// in one direction, each stage loaded at most once.
//
// A Set is logically immutable. Its columns are written only inside the
// stage bodies, each guarded by its own gate, and never again afterwards.
type Set struct {
	cfg      Config
	ids      *roaring.Bitmap
	filter   *roaring.Bitmap
	external bool
	size     int
	released atomic.Bool

	connectivity lazy.Gate
	attributes   lazy.Gate
	positions    lazy.Gate

	pre  mem.Buffer[uint32]
	post mem.Buffer[uint32]

	index        mem.Buffer[uint64]
	preSection   mem.Buffer[uint32]
	preSegment   mem.Buffer[uint32]
	preDistance  mem.Buffer[float32]
	postSection  mem.Buffer[uint32]
	postSegment  mem.Buffer[uint32]
	postDistance mem.Buffer[float32]
	delay        mem.Buffer[float32]
	conductance  mem.Buffer[float32]
	utilization  mem.Buffer[float32]
	depression   mem.Buffer[float32]
	facilitation mem.Buffer[float32]
	decay        mem.Buffer[float32]
	efficacy     mem.Buffer[int32]
	preSurface   [3]mem.Buffer[float32]
	postSurface  [3]mem.Buffer[float32]
	preCenter    [3]mem.Buffer[float32]
	postCenter   [3]mem.Buffer[float32]
}

// New creates a Set. Connectivity is resolved before New returns; in
// external mode the size is queried from the projection instead.
func New(ctx context.Context, cfg Config) (*Set, error) {
	if cfg.IDs == nil {
		cfg.IDs = roaring.New()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = noop.NewTracerProvider().Tracer("")
	}

	s := &Set{
		cfg:      cfg,
		ids:      cfg.IDs.Clone(),
		external: cfg.Projection != nil,
	}
	if cfg.Filter != nil && !cfg.Filter.IsEmpty() {
		s.filter = cfg.Filter.Clone()
	}

	if s.external {
		size, err := cfg.Projection.SizeForIDs(ctx, s.ids)
		if err != nil {
			return nil, fmt.Errorf("projection size: %w", err)
		}
		if size < 0 {
			return nil, fmt.Errorf("%w: negative projection size %d", ErrInconsistent, size)
		}
		s.size = size
		return s, nil
	}

	if cfg.Summary == nil || cfg.Attributes == nil {
		return nil, fmt.Errorf("%w: summary and attribute sources are required", ErrSourceOpen)
	}
	if err := s.EnsureConnectivity(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Size returns the number of synapses.
func (s *Set) Size() int { return s.size }

// Afferent reports the direction of the set.
func (s *Set) Afferent() bool { return s.cfg.Afferent }

// External reports whether the set is backed by a projection source.
func (s *Set) External() bool { return s.external }

// IDs returns a copy of the requested ids.
func (s *Set) IDs() *roaring.Bitmap { return s.ids.Clone() }

// StageDone reports whether stage has completed.
func (s *Set) StageDone(stage Stage) bool {
	switch stage {
	case StageConnectivity:
		if s.external {
			return s.attributes.Done()
		}
		return s.connectivity.Done()
	case StageAttributes:
		return s.attributes.Done()
	case StagePositions:
		return s.positions.Done()
	default:
		return false
	}
}

// EnsureConnectivity resolves the pre and post gid columns.
//
// In external mode the gids come with the attribute rows, so this ensures
// the attribute stage instead.
func (s *Set) EnsureConnectivity(ctx context.Context) error {
	if s.external {
		return s.EnsureAttributes(ctx)
	}
	return s.run(ctx, &s.connectivity, StageConnectivity, s.resolveConnectivity)
}

// EnsureAttributes loads the scalar attribute columns.
func (s *Set) EnsureAttributes(ctx context.Context) error {
	if !s.external {
		if err := s.EnsureConnectivity(ctx); err != nil {
			return err
		}
	}
	return s.run(ctx, &s.attributes, StageAttributes, s.loadAttributes)
}

// EnsurePositions loads the position columns.
func (s *Set) EnsurePositions(ctx context.Context) error {
	if s.external {
		return fmt.Errorf("%w: positions of a projection", ErrUnsupported)
	}
	if err := s.EnsureConnectivity(ctx); err != nil {
		return err
	}
	return s.run(ctx, &s.positions, StagePositions, s.loadPositions)
}

func (s *Set) run(ctx context.Context, g *lazy.Gate, stage Stage, body func(context.Context) error) error {
	if s.released.Load() {
		return ErrReleased
	}
	return g.Do(func() error {
		if s.released.Load() {
			return ErrReleased
		}

		ctx, span := s.cfg.Tracer.Start(ctx, "synapses."+stage.String(),
			trace.WithAttributes(
				attribute.String("stage", stage.String()),
				attribute.Bool("afferent", s.cfg.Afferent),
				attribute.Bool("external", s.external),
				attribute.Int64("ids", int64(s.ids.GetCardinality())),
			))
		defer span.End()

		start := time.Now()
		err := body(ctx)
		elapsed := time.Since(start)

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.Int("size", s.size))
		}
		if s.cfg.OnStage != nil {
			s.cfg.OnStage(ctx, stage, s.size, elapsed, err)
		}
		return err
	})
}

func (s *Set) keep(peer uint32) bool {
	return s.filter == nil || s.filter.Contains(peer)
}

// Release drops every column and returns its memory to the controller.
// The set must not be used afterwards.
func (s *Set) Release() {
	if s.released.Swap(true) {
		return
	}
	s.pre.Release()
	s.post.Release()
	s.releaseAttributes()
	s.releasePositions()
}

// Reserved returns the bytes held by the set's columns.
func (s *Set) Reserved() int64 {
	var total int64
	total += s.pre.Reserved() + s.post.Reserved() + s.index.Reserved()
	for _, b := range s.float32Columns() {
		total += b.Reserved()
	}
	for _, b := range []*mem.Buffer[uint32]{&s.preSection, &s.preSegment, &s.postSection, &s.postSegment} {
		total += b.Reserved()
	}
	total += s.efficacy.Reserved()
	return total
}

func (s *Set) float32Columns() []*mem.Buffer[float32] {
	cols := []*mem.Buffer[float32]{
		&s.preDistance, &s.postDistance, &s.delay, &s.conductance,
		&s.utilization, &s.depression, &s.facilitation, &s.decay,
	}
	for i := range 3 {
		cols = append(cols, &s.preSurface[i], &s.postSurface[i], &s.preCenter[i], &s.postCenter[i])
	}
	return cols
}

package synapgo

import (
	"context"
	"fmt"
	"iter"
	"sync/atomic"

	"github.com/hupe1980/synapgo/internal/synapses"
	"golang.org/x/sync/errgroup"
)

type shared struct {
	set     *synapses.Set
	circuit *Circuit
	refs    atomic.Int64
}

// Synapses is a handle on a lazily loaded set of synapses.
//
// Handles obtained with Clone share the same set: a stage loaded through
// one handle is visible through all of them. Every handle must be closed;
// the set's memory is released when the last one is.
//
// Column accessors load the owning stage on first use and return the
// column itself. The returned slices must not be modified.
type Synapses struct {
	shared *shared
	closed atomic.Bool
}

func newSynapses(set *synapses.Set, c *Circuit) *Synapses {
	sh := &shared{set: set, circuit: c}
	sh.refs.Store(1)
	return &Synapses{shared: sh}
}

// Clone returns another handle on the same set.
func (s *Synapses) Clone() (*Synapses, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	s.shared.refs.Add(1)
	return &Synapses{shared: s.shared}, nil
}

// Close releases this handle. Closing a handle twice is a no-op.
func (s *Synapses) Close() error {
	if s == nil || s.closed.Swap(true) {
		return nil
	}
	if s.shared.refs.Add(-1) == 0 {
		s.shared.set.Release()
		s.shared.circuit.release()
	}
	return nil
}

// Size returns the number of synapses.
func (s *Synapses) Size() int { return s.shared.set.Size() }

// Empty reports whether the set has no synapses.
func (s *Synapses) Empty() bool { return s.Size() == 0 }

// Afferent reports whether the set holds incoming synapses.
func (s *Synapses) Afferent() bool { return s.shared.set.Afferent() }

// External reports whether the set comes from an external projection.
func (s *Synapses) External() bool { return s.shared.set.External() }

// Loaded reports whether the stages in p have completed.
func (s *Synapses) Loaded(p Prefetch) bool {
	set := s.shared.set
	if p.Has(PrefetchAttributes) && !set.StageDone(synapses.StageAttributes) {
		return false
	}
	if p.Has(PrefetchPositions) && !set.StageDone(synapses.StagePositions) {
		return false
	}
	return true
}

// Load loads the stages in p. Attribute and position stages run concurrently.
func (s *Synapses) Load(ctx context.Context, p Prefetch) error {
	if s.closed.Load() {
		return ErrClosed
	}
	set := s.shared.set

	g, ctx := errgroup.WithContext(ctx)
	if p.Has(PrefetchAttributes) {
		g.Go(func() error { return set.EnsureAttributes(ctx) })
	}
	if p.Has(PrefetchPositions) {
		g.Go(func() error { return set.EnsurePositions(ctx) })
	}
	return translateError(g.Wait())
}

// At returns a view of synapse i. Like slice indexing, it panics if i is
// outside [0, Size()).
func (s *Synapses) At(i int) Synapse {
	if i < 0 || i >= s.Size() {
		panic(fmt.Sprintf("synapgo: index %d out of range [0:%d]", i, s.Size()))
	}
	return Synapse{s: s, i: i}
}

// All iterates over every synapse in order.
func (s *Synapses) All() iter.Seq2[int, Synapse] {
	return func(yield func(int, Synapse) bool) {
		for i := range s.Size() {
			if !yield(i, s.At(i)) {
				return
			}
		}
	}
}

func (s *Synapses) uint32s(c synapses.Column) ([]uint32, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	col, err := s.shared.set.Uint32(context.Background(), c)
	return col, translateError(err)
}

func (s *Synapses) float32s(c synapses.Column) ([]float32, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	col, err := s.shared.set.Float32(context.Background(), c)
	return col, translateError(err)
}

// Indices returns the synapse indices.
// Only incoming synapses have indices.
func (s *Synapses) Indices() ([]uint64, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	col, err := s.shared.set.Index(context.Background())
	return col, translateError(err)
}

// PreGIDs returns the presynaptic gids.
func (s *Synapses) PreGIDs() ([]uint32, error) { return s.uint32s(synapses.ColPreGID) }

// PreSectionIDs returns the presynaptic section ids.
func (s *Synapses) PreSectionIDs() ([]uint32, error) { return s.uint32s(synapses.ColPreSectionID) }

// PreSegmentIDs returns the presynaptic segment ids.
func (s *Synapses) PreSegmentIDs() ([]uint32, error) { return s.uint32s(synapses.ColPreSegmentID) }

// PreDistances returns the presynaptic distances along the segment.
func (s *Synapses) PreDistances() ([]float32, error) { return s.float32s(synapses.ColPreDistance) }

// PreSurfaceXPositions returns the presynaptic surface x coordinates.
// Absent when no position row carried surface positions.
func (s *Synapses) PreSurfaceXPositions() ([]float32, error) {
	return s.float32s(synapses.ColPreSurfaceX)
}

// PreSurfaceYPositions returns the presynaptic surface y coordinates.
func (s *Synapses) PreSurfaceYPositions() ([]float32, error) {
	return s.float32s(synapses.ColPreSurfaceY)
}

// PreSurfaceZPositions returns the presynaptic surface z coordinates.
func (s *Synapses) PreSurfaceZPositions() ([]float32, error) {
	return s.float32s(synapses.ColPreSurfaceZ)
}

// PreCenterXPositions returns the presynaptic center x coordinates.
func (s *Synapses) PreCenterXPositions() ([]float32, error) {
	return s.float32s(synapses.ColPreCenterX)
}

// PreCenterYPositions returns the presynaptic center y coordinates.
func (s *Synapses) PreCenterYPositions() ([]float32, error) {
	return s.float32s(synapses.ColPreCenterY)
}

// PreCenterZPositions returns the presynaptic center z coordinates.
func (s *Synapses) PreCenterZPositions() ([]float32, error) {
	return s.float32s(synapses.ColPreCenterZ)
}

// PostGIDs returns the postsynaptic gids.
func (s *Synapses) PostGIDs() ([]uint32, error) { return s.uint32s(synapses.ColPostGID) }

// PostSectionIDs returns the postsynaptic section ids.
func (s *Synapses) PostSectionIDs() ([]uint32, error) { return s.uint32s(synapses.ColPostSectionID) }

// PostSegmentIDs returns the postsynaptic segment ids.
func (s *Synapses) PostSegmentIDs() ([]uint32, error) { return s.uint32s(synapses.ColPostSegmentID) }

// PostDistances returns the postsynaptic distances along the segment.
func (s *Synapses) PostDistances() ([]float32, error) { return s.float32s(synapses.ColPostDistance) }

// PostSurfaceXPositions returns the postsynaptic surface x coordinates.
// Absent when no position row carried surface positions.
func (s *Synapses) PostSurfaceXPositions() ([]float32, error) {
	return s.float32s(synapses.ColPostSurfaceX)
}

// PostSurfaceYPositions returns the postsynaptic surface y coordinates.
func (s *Synapses) PostSurfaceYPositions() ([]float32, error) {
	return s.float32s(synapses.ColPostSurfaceY)
}

// PostSurfaceZPositions returns the postsynaptic surface z coordinates.
func (s *Synapses) PostSurfaceZPositions() ([]float32, error) {
	return s.float32s(synapses.ColPostSurfaceZ)
}

// PostCenterXPositions returns the postsynaptic center x coordinates.
func (s *Synapses) PostCenterXPositions() ([]float32, error) {
	return s.float32s(synapses.ColPostCenterX)
}

// PostCenterYPositions returns the postsynaptic center y coordinates.
func (s *Synapses) PostCenterYPositions() ([]float32, error) {
	return s.float32s(synapses.ColPostCenterY)
}

// PostCenterZPositions returns the postsynaptic center z coordinates.
func (s *Synapses) PostCenterZPositions() ([]float32, error) {
	return s.float32s(synapses.ColPostCenterZ)
}

// Delays returns the axonal delays.
func (s *Synapses) Delays() ([]float32, error) { return s.float32s(synapses.ColDelay) }

// Conductances returns the peak conductances.
func (s *Synapses) Conductances() ([]float32, error) { return s.float32s(synapses.ColConductance) }

// Utilizations returns the release probabilities.
func (s *Synapses) Utilizations() ([]float32, error) { return s.float32s(synapses.ColUtilization) }

// Depressions returns the depression time constants.
func (s *Synapses) Depressions() ([]float32, error) { return s.float32s(synapses.ColDepression) }

// Facilitations returns the facilitation time constants.
func (s *Synapses) Facilitations() ([]float32, error) { return s.float32s(synapses.ColFacilitation) }

// Decays returns the decay time constants.
func (s *Synapses) Decays() ([]float32, error) { return s.float32s(synapses.ColDecay) }

// Efficacies returns the absolute synaptic efficacies.
func (s *Synapses) Efficacies() ([]int32, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	col, err := s.shared.set.Efficacy(context.Background())
	return col, translateError(err)
}

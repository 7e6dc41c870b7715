package synapses

import (
	"context"

	"github.com/hupe1980/synapgo/internal/mem"
)

func column[T mem.Element](ctx context.Context, s *Set, c Column, b *mem.Buffer[T]) ([]T, error) {
	var err error
	switch c.Stage() {
	case StageConnectivity:
		err = s.EnsureConnectivity(ctx)
	case StageAttributes:
		err = s.EnsureAttributes(ctx)
	case StagePositions:
		err = s.EnsurePositions(ctx)
	}
	if err != nil {
		return nil, err
	}
	if !b.Present() {
		return nil, &ColumnError{Column: c}
	}
	return b.Slice(), nil
}

// Index returns the synapse index column.
func (s *Set) Index(ctx context.Context) ([]uint64, error) {
	return column(ctx, s, ColIndex, &s.index)
}

// Uint32 returns a gid, section or segment column.
func (s *Set) Uint32(ctx context.Context, c Column) ([]uint32, error) {
	switch c {
	case ColPreGID:
		return column(ctx, s, c, &s.pre)
	case ColPostGID:
		return column(ctx, s, c, &s.post)
	case ColPreSectionID:
		return column(ctx, s, c, &s.preSection)
	case ColPreSegmentID:
		return column(ctx, s, c, &s.preSegment)
	case ColPostSectionID:
		return column(ctx, s, c, &s.postSection)
	case ColPostSegmentID:
		return column(ctx, s, c, &s.postSegment)
	default:
		return nil, &ColumnError{Column: c}
	}
}

// Float32 returns a distance, position or synaptic parameter column.
func (s *Set) Float32(ctx context.Context, c Column) ([]float32, error) {
	if b := s.float32Buffer(c); b != nil {
		return column(ctx, s, c, b)
	}
	return nil, &ColumnError{Column: c}
}

// Efficacy returns the efficacy column.
func (s *Set) Efficacy(ctx context.Context) ([]int32, error) {
	return column(ctx, s, ColEfficacy, &s.efficacy)
}

func (s *Set) float32Buffer(c Column) *mem.Buffer[float32] {
	switch c {
	case ColPreDistance:
		return &s.preDistance
	case ColPostDistance:
		return &s.postDistance
	case ColDelay:
		return &s.delay
	case ColConductance:
		return &s.conductance
	case ColUtilization:
		return &s.utilization
	case ColDepression:
		return &s.depression
	case ColFacilitation:
		return &s.facilitation
	case ColDecay:
		return &s.decay
	case ColPreSurfaceX, ColPreSurfaceY, ColPreSurfaceZ:
		return &s.preSurface[c-ColPreSurfaceX]
	case ColPreCenterX, ColPreCenterY, ColPreCenterZ:
		return &s.preCenter[c-ColPreCenterX]
	case ColPostSurfaceX, ColPostSurfaceY, ColPostSurfaceZ:
		return &s.postSurface[c-ColPostSurfaceX]
	case ColPostCenterX, ColPostCenterY, ColPostCenterZ:
		return &s.postCenter[c-ColPostCenterX]
	default:
		return nil
	}
}

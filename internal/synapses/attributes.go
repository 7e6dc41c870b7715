package synapses

import (
	"context"
	"fmt"

	"github.com/hupe1980/synapgo/internal/mem"
	"github.com/hupe1980/synapgo/source"
)

func (s *Set) attributeSource() source.AttributeSource {
	if s.external {
		return s.cfg.Projection
	}
	return s.cfg.Attributes
}

func (s *Set) allocateAttributes() error {
	a, n := s.cfg.Allocator, s.size

	if s.external {
		if err := mem.Allocate(a, &s.pre, n); err != nil {
			return err
		}
		if err := mem.Allocate(a, &s.post, n); err != nil {
			return err
		}
	}
	for _, b := range []*mem.Buffer[uint32]{&s.preSection, &s.preSegment, &s.postSection, &s.postSegment} {
		if err := mem.Allocate(a, b, n); err != nil {
			return err
		}
	}
	for _, b := range []*mem.Buffer[float32]{
		&s.preDistance, &s.postDistance, &s.delay, &s.conductance,
		&s.utilization, &s.depression, &s.facilitation, &s.decay,
	} {
		if err := mem.Allocate(a, b, n); err != nil {
			return err
		}
	}
	if err := mem.Allocate(a, &s.efficacy, n); err != nil {
		return err
	}
	// Incoming sets always carry an index: explicit or the row ordinal.
	if s.cfg.Afferent {
		if err := mem.Allocate(a, &s.index, n); err != nil {
			return err
		}
	}
	return nil
}

func (s *Set) releaseAttributes() {
	if s.external {
		s.pre.Release()
		s.post.Release()
	}
	s.index.Release()
	for _, b := range []*mem.Buffer[uint32]{&s.preSection, &s.preSegment, &s.postSection, &s.postSegment} {
		b.Release()
	}
	for _, b := range []*mem.Buffer[float32]{
		&s.preDistance, &s.postDistance, &s.delay, &s.conductance,
		&s.utilization, &s.depression, &s.facilitation, &s.decay,
	} {
		b.Release()
	}
	s.efficacy.Release()
}

// loadAttributes fills every scalar column from the attribute rows of the
// requested ids, in the same order connectivity produced the pairs.
func (s *Set) loadAttributes(ctx context.Context) error {
	if err := s.allocateAttributes(); err != nil {
		s.releaseAttributes()
		return err
	}
	if err := s.fillAttributes(ctx); err != nil {
		s.releaseAttributes()
		return err
	}
	return nil
}

func (s *Set) fillAttributes(ctx context.Context) error {
	src := s.attributeSource()
	withExtra := s.cfg.Afferent && !s.external && s.cfg.Extra != nil

	var (
		pre, post   = s.pre.Slice(), s.post.Slice()
		index       = s.index.Slice()
		preSection  = s.preSection.Slice()
		preSegment  = s.preSegment.Slice()
		preDist     = s.preDistance.Slice()
		postSection = s.postSection.Slice()
		postSegment = s.postSegment.Slice()
		postDist    = s.postDistance.Slice()
		delay       = s.delay.Slice()
		conductance = s.conductance.Slice()
		utilization = s.utilization.Slice()
		depression  = s.depression.Slice()
		facil       = s.facilitation.Slice()
		decay       = s.decay.Slice()
		efficacy    = s.efficacy.Slice()
	)

	i := 0
	it := s.ids.Iterator()
	for it.HasNext() {
		id := it.Next()

		rows, err := src.Read(ctx, id)
		if err != nil {
			return fmt.Errorf("read attributes of %d: %w", id, err)
		}
		if err := rows.Validate(); err != nil {
			return inconsistent(StageAttributes, id, 0, "%v", err)
		}
		if !rows.Empty() && rows.Width < source.AttributeWidth {
			return inconsistent(StageAttributes, id, 0, "row width %d, expected %d", rows.Width, source.AttributeWidth)
		}

		var extra source.Matrix
		if withExtra {
			extra, err = s.cfg.Extra.Read(ctx, id)
			if err != nil {
				return fmt.Errorf("read synapse indices of %d: %w", id, err)
			}
			if extra.Rows() < rows.Rows() || (!extra.Empty() && extra.Width < source.ExtraWidth) {
				return inconsistent(StageAttributes, id, 0, "%d index rows for %d attribute rows", extra.Rows(), rows.Rows())
			}
		}

		for j := range rows.Rows() {
			row := rows.Row(j)
			peer := uint32(row[source.ColPeer])
			if !s.keep(peer) {
				continue
			}
			if i >= s.size {
				return inconsistent(StageAttributes, id, j, "more rows than the %d resolved synapses", s.size)
			}

			from, to := peer, id
			if !s.cfg.Afferent {
				from, to = id, peer
			}
			if s.external {
				pre[i], post[i] = from, to
			} else if pre[i] != from || post[i] != to {
				return inconsistent(StageAttributes, id, j, "pair (%d,%d) disagrees with connectivity (%d,%d)", from, to, pre[i], post[i])
			}

			delay[i] = row[source.ColDelay]
			postSection[i] = uint32(row[source.ColPostSection])
			postSegment[i] = uint32(row[source.ColPostSegment])
			postDist[i] = row[source.ColPostDistance]
			preSection[i] = uint32(row[source.ColPreSection])
			preSegment[i] = uint32(row[source.ColPreSegment])
			preDist[i] = row[source.ColPreDistance]
			conductance[i] = row[source.ColConductance]
			utilization[i] = row[source.ColUtilization]
			depression[i] = row[source.ColDepression]
			facil[i] = row[source.ColFacilitation]
			decay[i] = row[source.ColDecay]
			efficacy[i] = int32(row[source.ColEfficacy])

			switch {
			case withExtra:
				index[i] = uint64(extra.Row(j)[0])
			case s.cfg.Afferent:
				index[i] = uint64(j)
			}
			i++
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	if i != s.size {
		return inconsistent(StageAttributes, 0, i, "%d rows for %d resolved synapses", i, s.size)
	}
	return nil
}

package synapses

import (
	"context"
	"fmt"

	"github.com/hupe1980/synapgo/internal/mem"
	"github.com/hupe1980/synapgo/source"
)

func (s *Set) positionColumns() []*mem.Buffer[float32] {
	cols := make([]*mem.Buffer[float32], 0, 12)
	for i := range 3 {
		cols = append(cols, &s.preSurface[i], &s.postSurface[i], &s.preCenter[i], &s.postCenter[i])
	}
	return cols
}

func (s *Set) releasePositions() {
	for _, b := range s.positionColumns() {
		b.Release()
	}
}

func (s *Set) releaseSurface() {
	for i := range 3 {
		s.preSurface[i].Release()
		s.postSurface[i].Release()
	}
}

// loadPositions fills the position columns from the cache or, on a miss,
// from the position source. The source is opened on the first miss only.
// On failure every position column is dropped before returning.
func (s *Set) loadPositions(ctx context.Context) error {
	for _, b := range s.positionColumns() {
		if err := mem.Allocate(s.cfg.Allocator, b, s.size); err != nil {
			s.releasePositions()
			return err
		}
	}

	if s.size == 0 {
		s.releaseSurface()
		return nil
	}

	surface, err := s.fillPositions(ctx)
	if err != nil {
		s.releasePositions()
		return err
	}
	if !surface {
		s.releaseSurface()
	}
	return nil
}

func (s *Set) cachedPositions(ctx context.Context) ([]string, map[string]source.Matrix) {
	cache := s.cfg.Cache
	if cache == nil {
		return nil, nil
	}

	keys := cache.CreateKeys(s.ids, s.cfg.Afferent)
	if uint64(len(keys)) != s.ids.GetCardinality() {
		if l := s.cfg.Logger; l != nil {
			l.WarnContext(ctx, "position cache returned wrong key count, bypassing cache",
				"keys", len(keys), "ids", s.ids.GetCardinality())
		}
		return nil, nil
	}

	wide := s.cfg.Positions != nil && s.cfg.Positions.SurfacePositions()
	hits, err := cache.LoadPositions(ctx, keys, wide)
	if err != nil {
		if l := s.cfg.Logger; l != nil {
			l.WarnContext(ctx, "position cache load failed", "error", err)
		}
		hits = nil
	}
	if s.cfg.OnCache != nil {
		s.cfg.OnCache(ctx, len(hits), len(keys)-len(hits))
	}
	return keys, hits
}

func (s *Set) fillPositions(ctx context.Context) (bool, error) {
	keys, hits := s.cachedPositions(ctx)

	var (
		src      source.PositionSource
		surface  bool
		preSurf  = [3][]float32{s.preSurface[0].Slice(), s.preSurface[1].Slice(), s.preSurface[2].Slice()}
		postSurf = [3][]float32{s.postSurface[0].Slice(), s.postSurface[1].Slice(), s.postSurface[2].Slice()}
		preCtr   = [3][]float32{s.preCenter[0].Slice(), s.preCenter[1].Slice(), s.preCenter[2].Slice()}
		postCtr  = [3][]float32{s.postCenter[0].Slice(), s.postCenter[1].Slice(), s.postCenter[2].Slice()}
	)

	i, k := 0, 0
	it := s.ids.Iterator()
	for it.HasNext() {
		id := it.Next()
		var key string
		if keys != nil {
			key = keys[k]
		}
		k++

		rows, ok := hits[key]
		if !ok {
			if src == nil {
				if s.cfg.Positions == nil {
					return false, fmt.Errorf("%w: no position source", ErrSourceOpen)
				}
				var err error
				src, err = s.cfg.Positions.OpenPositions(ctx, s.cfg.Afferent)
				if err != nil {
					return false, fmt.Errorf("%w: positions: %w", ErrSourceOpen, err)
				}
			}
			var err error
			rows, err = src.Read(ctx, id)
			if err != nil {
				return false, fmt.Errorf("read positions of %d: %w", id, err)
			}
			if keys != nil {
				if err := s.cfg.Cache.SavePositions(ctx, id, key, rows); err != nil {
					if l := s.cfg.Logger; l != nil {
						l.WarnContext(ctx, "position cache save failed", "id", id, "key", key, "error", err)
					}
				}
			}
		}

		if err := rows.Validate(); err != nil {
			return false, inconsistent(StagePositions, id, 0, "%v", err)
		}
		if rows.Empty() {
			continue
		}

		var wide bool
		switch rows.Width {
		case source.WidePositionWidth:
			wide = true
			surface = true
		case source.NarrowPositionWidth:
		default:
			return false, inconsistent(StagePositions, id, 0, "row width %d", rows.Width)
		}

		for j := range rows.Rows() {
			row := rows.Row(j)
			if !s.keep(uint32(row[0])) {
				continue
			}
			if i >= s.size {
				return false, inconsistent(StagePositions, id, j, "more rows than the %d resolved synapses", s.size)
			}

			c := 1
			if wide {
				for d := range 3 {
					preSurf[d][i] = row[1+d]
					postSurf[d][i] = row[4+d]
				}
				c = 7
			}
			for d := range 3 {
				preCtr[d][i] = row[c+d]
				postCtr[d][i] = row[c+3+d]
			}
			i++
		}
		if err := ctx.Err(); err != nil {
			return false, err
		}
	}

	if i != s.size {
		return false, inconsistent(StagePositions, 0, i, "%d rows for %d resolved synapses", i, s.size)
	}
	return surface, nil
}

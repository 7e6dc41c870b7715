package synapses

import (
	"context"
	"fmt"

	"github.com/hupe1980/synapgo/internal/mem"
)

// resolveConnectivity expands the summary counts of every requested id into
// (peer, id) pairs. Ids missing from the summary contribute nothing.
func (s *Set) resolveConnectivity(ctx context.Context) error {
	var peers, owners []uint32

	it := s.ids.Iterator()
	for it.HasNext() {
		id := it.Next()
		entries, err := s.cfg.Summary.Read(ctx, id)
		if err != nil {
			return fmt.Errorf("read summary of %d: %w", id, err)
		}
		for _, e := range entries {
			if !s.keep(e.Peer) {
				continue
			}
			for range e.Count(s.cfg.Afferent) {
				peers = append(peers, e.Peer)
				owners = append(owners, id)
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	n := len(peers)
	if err := mem.Allocate(s.cfg.Allocator, &s.pre, n); err != nil {
		return err
	}
	if err := mem.Allocate(s.cfg.Allocator, &s.post, n); err != nil {
		s.pre.Release()
		return err
	}
	copy(s.pre.Slice(), peers)
	copy(s.post.Slice(), owners)

	// Outgoing: the requested id is the origin.
	if !s.cfg.Afferent {
		mem.Swap(&s.pre, &s.post)
	}
	s.size = n
	return nil
}

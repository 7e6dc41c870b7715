package main

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/synapgo"
)

// parseIDs parses a comma separated list of ids and inclusive ranges,
// e.g. "1-100,205,300-310".
func parseIDs(s string) (*roaring.Bitmap, error) {
	ids := roaring.New()
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		first, err := strconv.ParseUint(strings.TrimSpace(lo), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", part, err)
		}
		last := first
		if isRange {
			if last, err = strconv.ParseUint(strings.TrimSpace(hi), 10, 32); err != nil {
				return nil, fmt.Errorf("invalid id %q: %w", part, err)
			}
		}
		if last < first {
			return nil, fmt.Errorf("invalid range %q", part)
		}
		ids.AddRange(first, last+1)
	}
	if ids.IsEmpty() {
		return nil, fmt.Errorf("no ids in %q", s)
	}
	return ids, nil
}

// resolveIDs parses a GID list, or "population/nodes" where nodes are
// node ids of that population, e.g. "ca1/0-99".
func resolveIDs(ctx context.Context, c *synapgo.Circuit, s string) (*roaring.Bitmap, error) {
	name, nodes, ok := strings.Cut(s, "/")
	if !ok {
		return parseIDs(s)
	}
	nodeIDs, err := parseIDs(nodes)
	if err != nil {
		return nil, err
	}
	m, err := c.Mapping(ctx)
	if err != nil {
		return nil, err
	}
	pop, err := m.Population(name)
	if err != nil {
		return nil, err
	}

	gids := roaring.New()
	it := nodeIDs.Iterator()
	for it.HasNext() {
		gid, err := pop.GID(uint64(it.Next()))
		if err != nil {
			return nil, err
		}
		if gid > math.MaxUint32 {
			return nil, fmt.Errorf("gid %d of %s does not fit 32 bits", gid, name)
		}
		gids.Add(uint32(gid))
	}
	return gids, nil
}

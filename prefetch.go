package synapgo

import "strings"

// Prefetch selects the stages loaded eagerly when a request is made.
// Connectivity is always resolved eagerly.
type Prefetch uint8

const (
	PrefetchNone       Prefetch = 0
	PrefetchAttributes Prefetch = 1 << (iota - 1)
	PrefetchPositions
	PrefetchAll = PrefetchAttributes | PrefetchPositions
)

// Has reports whether p includes all stages of q.
func (p Prefetch) Has(q Prefetch) bool {
	return p&q == q
}

func (p Prefetch) String() string {
	switch p {
	case PrefetchNone:
		return "none"
	case PrefetchAll:
		return "all"
	}
	var parts []string
	if p.Has(PrefetchAttributes) {
		parts = append(parts, "attributes")
	}
	if p.Has(PrefetchPositions) {
		parts = append(parts, "positions")
	}
	return strings.Join(parts, "|")
}

// ParsePrefetch parses "none", "attributes", "positions" or "all".
func ParsePrefetch(s string) (Prefetch, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return PrefetchNone, true
	case "attributes":
		return PrefetchAttributes, true
	case "positions":
		return PrefetchPositions, true
	case "all":
		return PrefetchAll, true
	default:
		return PrefetchNone, false
	}
}

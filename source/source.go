// Package source declares the data services a synapse set is loaded from.
//
// The core only depends on these interfaces. Package dataset provides a
// blob-backed implementation of all of them, package poscache provides the
// PositionCache, and this package ships in-memory implementations that
// count their reads.
package source

import (
	"context"

	"github.com/RoaringBitmap/roaring/v2"
)

// Attribute row layout. Rows are flat float32 records of AttributeWidth fields.
const (
	ColPeer         = 0
	ColDelay        = 1
	ColPostSection  = 2
	ColPostSegment  = 3
	ColPostDistance = 4
	ColPreSection   = 5
	ColPreSegment   = 6
	ColPreDistance  = 7
	ColConductance  = 8
	ColUtilization  = 9
	ColDepression   = 10
	ColFacilitation = 11
	ColDecay        = 12
	ColEfficacy     = 17

	AttributeWidth = 19
)

// Position row layouts.
//
// Narrow rows: peer, pre center xyz, post center xyz.
// Wide rows: peer, pre surface xyz, post surface xyz, pre center xyz, post center xyz.
const (
	NarrowPositionWidth = 7
	WidePositionWidth   = 13
)

// ExtraWidth is the width of explicit synapse index rows.
const ExtraWidth = 1

// SummaryEntry is one peer of an entity with its connection counts.
type SummaryEntry struct {
	Peer     uint32
	Efferent uint32
	Afferent uint32
}

// Count returns the number of connections in the requested direction.
func (e SummaryEntry) Count(afferent bool) uint32 {
	if afferent {
		return e.Afferent
	}
	return e.Efferent
}

// SummaryIndex reports per entity the connection counts per peer.
// An id without connections yields an empty result, not an error.
type SummaryIndex interface {
	Read(ctx context.Context, id uint32) ([]SummaryEntry, error)
}

// AttributeSource returns the attribute row group of an entity.
type AttributeSource interface {
	Read(ctx context.Context, id uint32) (Matrix, error)
}

// ExtraSource returns explicit synapse indices (width 1 rows) of an entity,
// parallel to its attribute rows.
type ExtraSource interface {
	Read(ctx context.Context, id uint32) (Matrix, error)
}

// PositionSource returns the position row group of an entity.
type PositionSource interface {
	Read(ctx context.Context, id uint32) (Matrix, error)
}

// PositionOpener opens position sources on demand.
//
// Opening can be expensive, so loaders call OpenPositions only when a row
// group is not cache resident. The opener owns the returned source.
type PositionOpener interface {
	OpenPositions(ctx context.Context, afferent bool) (PositionSource, error)

	// SurfacePositions reports whether the position rows carry surface columns.
	SurfacePositions() bool
}

// ProjectionSource is an external afferent source without a summary index.
type ProjectionSource interface {
	AttributeSource

	// SizeForIDs returns the number of synapses of ids.
	SizeForIDs(ctx context.Context, ids *roaring.Bitmap) (int, error)
}

// PositionCache is an optional key value store for position row groups.
type PositionCache interface {
	// CreateKeys returns one key per id, in ascending id order.
	CreateKeys(ids *roaring.Bitmap, afferent bool) []string

	// LoadPositions returns the resident row groups. Missing keys are absent from the map.
	LoadPositions(ctx context.Context, keys []string, wide bool) (map[string]Matrix, error)

	// SavePositions stores the row group of id under key.
	SavePositions(ctx context.Context, id uint32, key string, rows Matrix) error
}

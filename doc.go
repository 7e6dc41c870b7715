// Package synapgo loads columnar synapse data lazily and shares it safely
// between goroutines.
//
// A Circuit answers requests for the incoming (afferent) or outgoing
// (efferent) synapses of a set of gids. Each request returns a Synapses
// handle whose columns are loaded in three stages:
//
//   - connectivity: pre and post gids, resolved when the request is made
//   - attributes: sections, segments, distances and synaptic parameters
//   - positions: center and, when the data has them, surface positions
//
// Attribute and position stages run on first access to one of their columns,
// exactly once, no matter how many goroutines ask concurrently.
//
// # Quick Start
//
//	ctx := context.Background()
//	store, _ := blobstore.NewLocalStore("./circuit")
//	c, _ := synapgo.Open(ctx, store)
//	defer c.Close()
//
//	syns, _ := c.AfferentSynapses(ctx, roaring.BitmapOf(1, 2, 3))
//	defer syns.Close()
//
//	pre, _ := syns.PreGIDs()          // no further IO
//	delays, _ := syns.Delays()        // loads attributes
//	x, _ := syns.PreCenterXPositions() // loads positions
//
// # Filtering and Prefetch
//
//	syns, _ := c.AfferentSynapses(ctx, post,
//	    synapgo.WithFilter(pre),
//	    synapgo.WithPrefetch(synapgo.PrefetchAll),
//	)
//
// # Position Cache
//
// Positions can be served from a key value cache (see package poscache):
//
//	cache := poscache.New(poscache.NewMemoryBackend(64 << 20))
//	c, _ := synapgo.Open(ctx, store, synapgo.WithPositionCache(cache))
//
// # Errors
//
// Columns a source never produced report ErrColumnUnavailable, positions of
// external projections report ErrUnsupported, and data that contradicts
// itself reports ErrInconsistent.
package synapgo

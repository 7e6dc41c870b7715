// Package dataset stores synapse tables as blobs and serves them as the
// sources a synapgo.Circuit loads from.
//
// A dataset is a manifest.json naming one table per column group:
//
//	manifest.json
//	tables/summary.synt             peer, efferent count, afferent count (uint32)
//	tables/afferent.synt            19 attribute fields per synapse
//	tables/efferent.synt
//	tables/extra.synt               explicit afferent synapse index
//	tables/afferent_positions.synt  7 (narrow) or 13 (wide) fields
//	tables/efferent_positions.synt
//	tables/projections/<name>.synt  external afferent attributes
//
// Every table stores the rows of one id per compressed block followed by
// an id-sorted index, so a lookup costs one ranged read. Position tables
// are opened the first time a position stage runs.
package dataset

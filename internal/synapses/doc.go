// Package synapses implements the connection set and its three load stages.
//
// # Stages
//
//   - connectivity: expands the summary index into (pre, post) gid pairs.
//     Runs inside New, or is folded into the attribute stage for projections.
//   - attributes: reads the attribute rows and fills every scalar column,
//     checking each row against the resolved connectivity.
//   - positions: reads position rows through an optional cache, opening the
//     position source only on the first miss. Surface columns are dropped
//     when no row carried them.
//
// Each stage is guarded by a lazy.Gate. Attribute and position stages may
// run concurrently; each runs at most once to success. A failed stage drops
// the columns it allocated and can be retried.
package synapses

// Package cache provides byte-oriented caches for immutable blocks: table
// row groups fetched from remote blob stores and encoded position rows.
//
// # Memory
//
// LRUBlockCache and ShardedLRUBlockCache hold blocks on the heap. Both
// reserve their bytes with a resource.Controller when one is supplied, so
// cached blocks count against the same limit as loaded synapse columns.
// ShardedLRUBlockCache spreads keys over 64 shards to reduce lock
// contention under parallel loads.
//
// # Disk
//
// DiskBlockCache persists blocks below a root directory, writes them in
// the background, and rebuilds its index from disk on startup.
package cache

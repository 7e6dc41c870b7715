// Package resource implements the Controller shared by every loaded synapse set.
//
// The Controller governs three resources:
//
//   - Memory: column buffers and cached position blocks reserve their bytes
//     before allocating (non-blocking, fail-fast)
//   - Concurrency: background stream prefetchers hold a worker slot
//   - IO: dataset reads wait on a token bucket
//
// # Memory Management
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 1 << 30,
//	})
//
//	if err := rc.AcquireMemory(1024 * 1024); err != nil {
//	    // ErrMemoryLimitExceeded
//	}
//	defer rc.ReleaseMemory(1024 * 1024)
//
// DefaultConfig derives the budget from physical memory.
//
// # Nil Safety
//
// All methods handle a nil Controller gracefully; they become no-ops.
package resource

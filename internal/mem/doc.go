// Package mem provides the aligned column allocator.
//
// # Aligned Allocation
//
// Columns are allocated 32-byte aligned (AVX friendly). Every allocation
// reserves its bytes with a resource.Controller first. When the aligned
// path cannot be served the allocator degrades to a plain zeroed slice and
// logs a warning; only when both fail does it report ErrOutOfMemory.
//
// # Ownership
//
// A Buffer is owned by exactly one column set. Release hands the reserved
// bytes back to the controller and leaves the buffer absent.
package mem

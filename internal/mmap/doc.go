// Package mmap maps synapse table files read-only into memory.
//
// On Unix the file is mapped with mmap(2) and madvise(2) hints are honored.
// Other platforms read the file into a heap buffer, which keeps the API
// identical at the cost of an upfront copy.
//
// A Mapping is safe for concurrent readers. Close is idempotent; callers
// must not touch slices returned by Bytes or Slice after Close returns.
package mmap

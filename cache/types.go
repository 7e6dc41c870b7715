package cache

import (
	"context"
	"encoding/binary"
	"hash/maphash"
)

// Kind separates key spaces.
type Kind uint8

const (
	KindUnknown   Kind = iota
	KindTable          // table row groups
	KindPositions      // encoded position rows
	KindBlob           // generic blob ranges
)

// Key identifies a cached block. It must be stable across processes.
type Key struct {
	Kind Kind
	// Path identifies the source, e.g. a blob name or a cache key prefix.
	Path string
	// Offset is a logical block identifier such as a byte offset.
	Offset uint64
}

func (k Key) hash(seed maphash.Seed) uint64 {
	var h maphash.Hash
	h.SetSeed(seed)

	var buf [9]byte
	buf[0] = byte(k.Kind)
	binary.LittleEndian.PutUint64(buf[1:], k.Offset)
	_, _ = h.Write(buf[:])
	_, _ = h.WriteString(k.Path)
	return h.Sum64()
}

// BlockCache is a byte-oriented cache for immutable blocks.
// Returned slices must be treated as read-only.
type BlockCache interface {
	// Get returns a cached block. ok=false if missing.
	Get(ctx context.Context, key Key) (b []byte, ok bool)
	// Set caches a block. Implementations may retain b.
	Set(ctx context.Context, key Key, b []byte)
	// Invalidate removes entries matching the predicate.
	Invalidate(predicate func(key Key) bool)
	// Close releases background resources.
	Close() error
	// Stats returns hit and miss counts.
	Stats() (hits, misses int64)
}

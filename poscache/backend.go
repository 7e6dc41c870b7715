package poscache

import (
	"context"
	"errors"

	"github.com/hupe1980/synapgo/blobstore"
	"github.com/hupe1980/synapgo/cache"
	"github.com/hupe1980/synapgo/resource"
)

// Backend stores encoded row groups by key.
type Backend interface {
	// Get returns the value of key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Put stores value under key.
	Put(ctx context.Context, key string, value []byte) error
}

// BatchBackend is implemented by backends that fetch many keys in one
// round trip. Absent keys are missing from the result.
type BatchBackend interface {
	Backend
	GetMany(ctx context.Context, keys []string) (map[string][]byte, error)
}

// BlockCacheBackend adapts a cache.BlockCache. Entries may be evicted at
// any time, which the position cache treats as a miss.
type BlockCacheBackend struct {
	bc cache.BlockCache
}

// NewBlockCacheBackend wraps bc.
func NewBlockCacheBackend(bc cache.BlockCache) *BlockCacheBackend {
	return &BlockCacheBackend{bc: bc}
}

// NewMemoryBackend returns an in-process backend holding up to capacity bytes.
func NewMemoryBackend(capacity int64) *BlockCacheBackend {
	return NewBlockCacheBackend(cache.NewShardedLRUBlockCache(capacity, nil))
}

// NewMemoryBackendWithController is NewMemoryBackend with cached bytes
// charged to rc.
func NewMemoryBackendWithController(capacity int64, rc *resource.Controller) *BlockCacheBackend {
	return NewBlockCacheBackend(cache.NewShardedLRUBlockCache(capacity, rc))
}

// NewDiskBackend returns a backend storing row groups below cfg.RootDir.
// Writes complete asynchronously.
func NewDiskBackend(cfg cache.DiskCacheConfig) (*BlockCacheBackend, error) {
	dc, err := cache.NewDiskBlockCache(cfg)
	if err != nil {
		return nil, err
	}
	return NewBlockCacheBackend(dc), nil
}

func blockKey(key string) cache.Key {
	return cache.Key{Kind: cache.KindPositions, Path: key}
}

// Get implements Backend.
func (b *BlockCacheBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok := b.bc.Get(ctx, blockKey(key))
	return v, ok, nil
}

// Put implements Backend.
func (b *BlockCacheBackend) Put(ctx context.Context, key string, value []byte) error {
	b.bc.Set(ctx, blockKey(key), value)
	return nil
}

// BlockCache returns the wrapped cache.
func (b *BlockCacheBackend) BlockCache() cache.BlockCache { return b.bc }

// Close closes the wrapped cache.
func (b *BlockCacheBackend) Close() error { return b.bc.Close() }

// BlobBackend stores each row group as a blob named by its key.
type BlobBackend struct {
	store blobstore.BlobStore
}

// NewBlobBackend returns a backend writing to store.
func NewBlobBackend(store blobstore.BlobStore) *BlobBackend {
	return &BlobBackend{store: store}
}

// Get implements Backend.
func (b *BlobBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := blobstore.ReadAll(ctx, b.store, key)
	if errors.Is(err, blobstore.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Put implements Backend.
func (b *BlobBackend) Put(ctx context.Context, key string, value []byte) error {
	return b.store.Put(ctx, key, value)
}

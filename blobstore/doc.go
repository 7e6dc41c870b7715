// Package blobstore abstracts where a synapse dataset lives.
//
// A dataset is a set of immutable blobs: a JSON manifest plus one table
// per column group. BlobStore reads and writes them; implementations must
// be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: a local directory, memory-mapped on Open
//   - MemoryStore: in-process, for tests and generated datasets
//   - CachingStore: block cache in front of any remote store
//   - s3.Store: Amazon S3 with range reads and multipart uploads
//   - minio.Store: MinIO and other S3-compatible servers
//
// Remote stores are usually wrapped in a CachingStore so repeated id
// lookups do not hit the network:
//
//	remote, _ := s3.New(ctx, "circuits", s3.WithPrefix("hippocampus/"))
//	store := blobstore.NewCachingStore(remote, cache.NewShardedLRUBlockCache(256<<20, nil), 0)
package blobstore

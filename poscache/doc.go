// Package poscache implements source.PositionCache on top of a byte
// oriented key value Backend.
//
// Row groups are stored as compressed blocks that carry their row width, so
// a cache shared between narrow and wide datasets reports mismatches as
// misses instead of returning rows of the wrong shape.
//
// Backends:
//
//   - NewMemoryBackend: a sharded in-process LRU.
//   - NewDiskBackend: a size bounded directory of block files.
//   - NewBlobBackend: any blobstore.BlobStore (local, S3, MinIO).
//   - poscache/dynamo: a DynamoDB table.
package poscache

// Package s3 provides an S3 implementation of blobstore.BlobStore.
//
// # Usage
//
//	store, err := s3.New(ctx, "circuits",
//	    s3.WithPrefix("hippocampus/"),
//	    s3.WithRegion("eu-central-1"),
//	)
//	c, err := synapgo.Open(ctx, store)
//
// # Features
//
//   - Range reads for per-id table lookups
//   - Multipart uploads for large tables
//   - CRC32C checksums on Put
//   - Automatic pagination for listing
package s3

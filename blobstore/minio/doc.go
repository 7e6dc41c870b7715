// Package minio provides a blobstore.BlobStore for MinIO and other
// S3-compatible object stores.
//
//	client, _ := minio.New("localhost:9000", &minio.Options{
//	    Creds: credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	})
//	store := minioblob.NewStore(client, "circuits", "hippocampus/")
package minio

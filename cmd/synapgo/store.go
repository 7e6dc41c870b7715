package main

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/hupe1980/synapgo/blobstore"
	miniostore "github.com/hupe1980/synapgo/blobstore/minio"
	s3store "github.com/hupe1980/synapgo/blobstore/s3"
	"github.com/hupe1980/synapgo/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// storeURI is a parsed dataset or cache location.
type storeURI struct {
	Scheme string // "file", "s3" or "minio"
	Bucket string
	Path   string // local root or key prefix
}

func parseStoreURI(raw string) (storeURI, error) {
	if raw == "" {
		return storeURI{}, fmt.Errorf("%w: empty store uri", config.ErrInvalid)
	}
	if !strings.Contains(raw, "://") {
		return storeURI{Scheme: "file", Path: raw}, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return storeURI{}, fmt.Errorf("%w: %s: %w", config.ErrInvalid, raw, err)
	}
	switch u.Scheme {
	case "file":
		return storeURI{Scheme: "file", Path: u.Host + u.Path}, nil
	case "s3", "minio":
		if u.Host == "" {
			return storeURI{}, fmt.Errorf("%w: %s has no bucket", config.ErrInvalid, raw)
		}
		return storeURI{Scheme: u.Scheme, Bucket: u.Host, Path: strings.Trim(u.Path, "/")}, nil
	default:
		return storeURI{}, fmt.Errorf("%w: unsupported scheme %q", config.ErrInvalid, u.Scheme)
	}
}

// openStore opens the blob store named by raw.
func openStore(ctx context.Context, cfg *config.Config, raw string) (blobstore.BlobStore, error) {
	loc, err := parseStoreURI(raw)
	if err != nil {
		return nil, err
	}

	switch loc.Scheme {
	case "s3":
		opts := []s3store.Option{s3store.WithPrefix(loc.Path), s3store.WithRegion(cfg.S3.Region)}
		if cfg.S3.Endpoint != "" {
			opts = append(opts, s3store.WithEndpoint(cfg.S3.Endpoint))
		}
		return s3store.New(ctx, loc.Bucket, opts...)
	case "minio":
		if cfg.Minio.Endpoint == "" {
			return nil, fmt.Errorf("%w: minio.endpoint is required for %s", config.ErrInvalid, raw)
		}
		client, err := minio.New(cfg.Minio.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.Minio.AccessKey, cfg.Minio.SecretKey, ""),
			Secure: cfg.Minio.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}
		return miniostore.NewStore(client, loc.Bucket, loc.Path), nil
	default:
		return blobstore.NewLocalStore(loc.Path), nil
	}
}

package main

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/pyro/blobstore"
	miniostore "github.com/hupe1980/pyro/blobstore/minio"
	s3store "github.com/hupe1980/pyro/blobstore/s3"
)

// openSpillStore resolves a spill location:
//
//	/var/tmp/pyro                          local directory
//	s3://bucket/prefix                     AWS S3, default credential chain
//	minio://host:9000/bucket/prefix        MinIO, MINIO_ACCESS_KEY and MINIO_SECRET_KEY
//
// MinIO locations accept ?secure=true for TLS.
func openSpillStore(ctx context.Context, location string) (blobstore.Store, error) {
	if !strings.Contains(location, "://") {
		return blobstore.NewLocalStore(location), nil
	}

	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("spill location: %w", err)
	}
	switch u.Scheme {
	case "file":
		return blobstore.NewLocalStore(u.Path), nil
	case "s3":
		if u.Host == "" {
			return nil, fmt.Errorf("spill location %q: missing bucket", location)
		}
		store, err := s3store.New(ctx, u.Host, strings.TrimPrefix(u.Path, "/"))
		if err != nil {
			return nil, fmt.Errorf("s3 client: %w", err)
		}
		return store, nil
	case "minio":
		bucket, prefix, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
		if u.Host == "" || bucket == "" {
			return nil, fmt.Errorf("spill location %q: expected minio://host/bucket[/prefix]", location)
		}
		secure := false
		if s := u.Query().Get("secure"); s != "" {
			if secure, err = strconv.ParseBool(s); err != nil {
				return nil, fmt.Errorf("spill location %q: secure: %w", location, err)
			}
		}
		client, err := minio.New(u.Host, &minio.Options{
			Creds:  credentials.NewEnvMinio(),
			Secure: secure,
		})
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}
		return miniostore.NewStore(client, bucket, prefix), nil
	default:
		return nil, fmt.Errorf("spill location %q: unsupported scheme %q", location, u.Scheme)
	}
}

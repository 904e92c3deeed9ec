package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/pyro/blobstore"
	miniostore "github.com/hupe1980/pyro/blobstore/minio"
	s3store "github.com/hupe1980/pyro/blobstore/s3"
)

func TestOpenSpillStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := openSpillStore(ctx, dir)
	require.NoError(t, err)
	assert.IsType(t, &blobstore.LocalStore{}, store)

	store, err = openSpillStore(ctx, "file://"+dir)
	require.NoError(t, err)
	assert.IsType(t, &blobstore.LocalStore{}, store)

	store, err = openSpillStore(ctx, "minio://localhost:9000/bucket/spill?secure=false")
	require.NoError(t, err)
	assert.IsType(t, &miniostore.Store{}, store)

	t.Setenv("AWS_REGION", "eu-central-1")
	store, err = openSpillStore(ctx, "s3://bucket/spill")
	require.NoError(t, err)
	assert.IsType(t, &s3store.Store{}, store)
}

func TestOpenSpillStoreErrors(t *testing.T) {
	ctx := context.Background()
	for _, location := range []string{
		"s3:///prefix",
		"minio://localhost:9000",
		"minio://localhost:9000/bucket?secure=maybe",
		"gs://bucket/prefix",
	} {
		t.Run(location, func(t *testing.T) {
			_, err := openSpillStore(ctx, location)
			assert.Error(t, err)
		})
	}
}

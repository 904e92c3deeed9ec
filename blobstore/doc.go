// Package blobstore provides the object storage used to spill evicted
// partition indexes.
//
// Store is the interface for writing and reading whole blobs. Implementations
// must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - MemoryStore: in-process map, for tests and small runs
//   - LocalStore: a directory on the local file system
//   - minio.Store: MinIO and other S3-compatible services
//   - s3.Store: Amazon S3
//
// # Custom Implementations
//
//	type Store interface {
//	    Put(ctx, name, data) error
//	    Get(ctx, name) ([]byte, error)
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
package blobstore

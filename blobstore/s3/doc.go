// Package s3 provides an Amazon S3 implementation of blobstore.Store.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket", "spill/")
//	miner, err := pyro.New(rel, pyro.WithSpillStore(store))
//
// New loads credentials and region through the default AWS configuration
// chain. Use NewStore to supply a preconfigured client.
package s3

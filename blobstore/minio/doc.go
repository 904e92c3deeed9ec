// Package minio provides a blobstore.Store implementation using the MinIO client.
//
// MinIO is an S3-compatible object store. The same client also talks to Ceph,
// SeaweedFS, Garage and other S3-compatible services.
//
// # Basic Usage
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := minioblob.NewStore(client, "profiling", "spill/")
//	miner, err := pyro.New(rel, pyro.WithSpillStore(store))
package minio

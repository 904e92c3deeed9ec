// Package pyro discovers approximate functional dependencies (FDs) and
// approximate unique column combinations (UCCs) of a relation.
//
// A dependency is reported when its error does not exceed a threshold and
// none of its generalizations does. The g1' error of an FD X -> A is the
// share of ordered tuple pairs that agree on X and disagree on A. The error
// of a UCC X is the share of tuple pairs that agree on X.
//
// # Quick Start
//
//	b := model.NewRelationBuilder("people", "first", "last", "zip", "city")
//	b.AddRow("ada", "lovelace", "10115", "berlin")
//	// ...
//	rel, _ := b.Build()
//
//	m, _ := pyro.New(rel, pyro.WithMaxError(0.01, 0))
//	res, _ := m.Discover(ctx)
//	for _, fd := range res.FDs {
//	    fmt.Println(fd, fd.Error)
//	}
//
// # Search
//
// Every right-hand side column gets its own search space over the lattice
// of left-hand sides, and keys get one more. The search spaces are
// processed by a pool of workers (see WithParallelism). Each search space
// starts from the single columns, ascends from a launch pad towards a
// dependency and then trickles down to the minimal dependencies below the
// peak it reached. Agree-set samples estimate errors so that exact error
// calculations are reserved for the candidates close to the threshold.
//
// # Position List Indexes
//
// Errors are computed on position list indexes (PLIs). PLIs of column
// combinations are composed from cached ones and kept in a cache bounded by
// WithMemoryLimit. With WithSpillStore, evicted PLIs are written to a
// blobstore.Store (local directory, S3 or MinIO) instead of being dropped.
//
// # Observability
//
// Structured logging goes through log/slog (see WithLogger). Metrics are
// reported to a MetricsCollector; BasicMetricsCollector keeps counters in
// memory and PrometheusCollector exports them.
package pyro

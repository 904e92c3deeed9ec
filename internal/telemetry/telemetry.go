// Package telemetry defines the metrics hooks shared by every layer of a
// discovery run. The public pyro package re-exports Collector as
// MetricsCollector and provides in-memory and Prometheus implementations.
package telemetry

import "time"

// Dependency kinds passed to RecordDependency.
const (
	KindFD  = "fd"
	KindUCC = "ucc"
)

// Collector receives operational metrics.
type Collector interface {
	// RecordPLIRequest is called for every partition index request.
	// hit reports whether the index was served from the cache.
	RecordPLIRequest(hit bool)

	// RecordComposition is called after an index was composed from operands.
	RecordComposition(operands int, probeAll bool, duration time.Duration)

	// RecordErrorCalculation is called after an exact error calculation.
	RecordErrorCalculation(duration time.Duration)

	// RecordSample is called after an agree-set sample was drawn.
	RecordSample(size int, exact bool)

	// RecordDependency is called for every registered dependency.
	RecordDependency(kind string)

	// RecordEviction is called after cache eviction removed entries.
	RecordEviction(removed int)

	// RecordSpill is called after an evicted index was written to the spill store.
	RecordSpill(bytes int, err error)

	// RecordRestore is called after an index was read back from the spill store.
	RecordRestore(bytes int, err error)

	// RecordSearchSpace is called after a search space was exhausted.
	RecordSearchSpace(duration time.Duration, err error)
}

// Noop discards every metric.
type Noop struct{}

func (Noop) RecordPLIRequest(bool)                      {}
func (Noop) RecordComposition(int, bool, time.Duration) {}
func (Noop) RecordErrorCalculation(time.Duration)       {}
func (Noop) RecordSample(int, bool)                     {}
func (Noop) RecordDependency(string)                    {}
func (Noop) RecordEviction(int)                         {}
func (Noop) RecordSpill(int, error)                     {}
func (Noop) RecordRestore(int, error)                   {}
func (Noop) RecordSearchSpace(time.Duration, error)     {}

// OrNoop returns c, or Noop when c is nil.
func OrNoop(c Collector) Collector {
	if c == nil {
		return Noop{}
	}
	return c
}

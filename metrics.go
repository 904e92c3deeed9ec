package pyro

import (
	"sync/atomic"
	"time"

	"github.com/hupe1980/pyro/internal/telemetry"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems, or use
// PrometheusCollector.
type MetricsCollector = telemetry.Collector

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector = telemetry.Noop

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	PLIHits               atomic.Int64
	PLIMisses             atomic.Int64
	Compositions          atomic.Int64
	ProbeAllCompositions  atomic.Int64
	CompositionTotalNanos atomic.Int64
	ErrorCalculations     atomic.Int64
	ErrorCalculationNanos atomic.Int64
	Samples               atomic.Int64
	ExactSamples          atomic.Int64
	SampledPairs          atomic.Int64
	FDs                   atomic.Int64
	UCCs                  atomic.Int64
	Evictions             atomic.Int64
	Spills                atomic.Int64
	SpillErrors           atomic.Int64
	SpilledBytes          atomic.Int64
	Restores              atomic.Int64
	RestoreErrors         atomic.Int64
	SearchSpaces          atomic.Int64
	SearchSpaceErrors     atomic.Int64
	SearchSpaceTotalNanos atomic.Int64
}

// RecordPLIRequest implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPLIRequest(hit bool) {
	if hit {
		b.PLIHits.Add(1)
	} else {
		b.PLIMisses.Add(1)
	}
}

// RecordComposition implements MetricsCollector.
func (b *BasicMetricsCollector) RecordComposition(_ int, probeAll bool, duration time.Duration) {
	b.Compositions.Add(1)
	b.CompositionTotalNanos.Add(duration.Nanoseconds())
	if probeAll {
		b.ProbeAllCompositions.Add(1)
	}
}

// RecordErrorCalculation implements MetricsCollector.
func (b *BasicMetricsCollector) RecordErrorCalculation(duration time.Duration) {
	b.ErrorCalculations.Add(1)
	b.ErrorCalculationNanos.Add(duration.Nanoseconds())
}

// RecordSample implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSample(size int, exact bool) {
	b.Samples.Add(1)
	b.SampledPairs.Add(int64(size))
	if exact {
		b.ExactSamples.Add(1)
	}
}

// RecordDependency implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDependency(kind string) {
	switch kind {
	case telemetry.KindFD:
		b.FDs.Add(1)
	case telemetry.KindUCC:
		b.UCCs.Add(1)
	}
}

// RecordEviction implements MetricsCollector.
func (b *BasicMetricsCollector) RecordEviction(removed int) {
	b.Evictions.Add(int64(removed))
}

// RecordSpill implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSpill(bytes int, err error) {
	b.Spills.Add(1)
	if err != nil {
		b.SpillErrors.Add(1)
		return
	}
	b.SpilledBytes.Add(int64(bytes))
}

// RecordRestore implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRestore(_ int, err error) {
	b.Restores.Add(1)
	if err != nil {
		b.RestoreErrors.Add(1)
	}
}

// RecordSearchSpace implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearchSpace(duration time.Duration, err error) {
	b.SearchSpaces.Add(1)
	b.SearchSpaceTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SearchSpaceErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		PLIHits:              b.PLIHits.Load(),
		PLIMisses:            b.PLIMisses.Load(),
		Compositions:         b.Compositions.Load(),
		ProbeAllCompositions: b.ProbeAllCompositions.Load(),
		CompositionAvgNanos:  avg(b.CompositionTotalNanos.Load(), b.Compositions.Load()),
		ErrorCalculations:    b.ErrorCalculations.Load(),
		ErrorCalcAvgNanos:    avg(b.ErrorCalculationNanos.Load(), b.ErrorCalculations.Load()),
		Samples:              b.Samples.Load(),
		ExactSamples:         b.ExactSamples.Load(),
		SampledPairs:         b.SampledPairs.Load(),
		FDs:                  b.FDs.Load(),
		UCCs:                 b.UCCs.Load(),
		Evictions:            b.Evictions.Load(),
		Spills:               b.Spills.Load(),
		SpillErrors:          b.SpillErrors.Load(),
		SpilledBytes:         b.SpilledBytes.Load(),
		Restores:             b.Restores.Load(),
		RestoreErrors:        b.RestoreErrors.Load(),
		SearchSpaces:         b.SearchSpaces.Load(),
		SearchSpaceErrors:    b.SearchSpaceErrors.Load(),
		SearchSpaceAvgNanos:  avg(b.SearchSpaceTotalNanos.Load(), b.SearchSpaces.Load()),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// HitRate returns the share of PLI requests served from the cache.
func (s BasicMetricsStats) HitRate() float64 {
	total := s.PLIHits + s.PLIMisses
	if total == 0 {
		return 0
	}
	return float64(s.PLIHits) / float64(total)
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	PLIHits              int64
	PLIMisses            int64
	Compositions         int64
	ProbeAllCompositions int64
	CompositionAvgNanos  int64
	ErrorCalculations    int64
	ErrorCalcAvgNanos    int64
	Samples              int64
	ExactSamples         int64
	SampledPairs         int64
	FDs                  int64
	UCCs                 int64
	Evictions            int64
	Spills               int64
	SpillErrors          int64
	SpilledBytes         int64
	Restores             int64
	RestoreErrors        int64
	SearchSpaces         int64
	SearchSpaceErrors    int64
	SearchSpaceAvgNanos  int64
}

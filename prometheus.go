package pyro

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector exports discovery metrics to Prometheus.
type PrometheusCollector struct {
	pliRequests         *prometheus.CounterVec
	compositions        *prometheus.CounterVec
	compositionOperands prometheus.Histogram
	compositionDuration prometheus.Histogram
	errorCalculations   prometheus.Histogram
	samples             *prometheus.CounterVec
	sampleSize          prometheus.Histogram
	dependencies        *prometheus.CounterVec
	evictions           prometheus.Counter
	spillBytes          *prometheus.CounterVec
	spillErrors         *prometheus.CounterVec
	searchSpaces        *prometheus.CounterVec
	searchSpaceDuration prometheus.Histogram
}

var _ MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheusCollector registers the pyro metrics with reg. A nil reg
// registers with the default registerer.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &PrometheusCollector{
		pliRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pyro_pli_requests_total",
			Help: "Partition index requests by cache result",
		}, []string{"result"}),
		compositions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pyro_pli_compositions_total",
			Help: "Composed partition indexes by composition method",
		}, []string{"method"}),
		compositionOperands: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "pyro_pli_composition_operands",
			Help:    "Number of cached operands per composition",
			Buckets: prometheus.LinearBuckets(1, 1, 8),
		}),
		compositionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "pyro_pli_composition_duration_seconds",
			Help:    "Duration of partition index compositions",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		errorCalculations: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "pyro_error_calculation_duration_seconds",
			Help:    "Duration of exact error calculations",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		samples: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pyro_samples_total",
			Help: "Agree-set samples drawn",
		}, []string{"exact"}),
		sampleSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "pyro_sample_size",
			Help:    "Tuple pairs per agree-set sample",
			Buckets: prometheus.ExponentialBuckets(10, 4, 8),
		}),
		dependencies: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pyro_dependencies_total",
			Help: "Registered minimal dependencies by kind",
		}, []string{"kind"}),
		evictions: f.NewCounter(prometheus.CounterOpts{
			Name: "pyro_pli_evictions_total",
			Help: "Partition indexes evicted from the cache",
		}),
		spillBytes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pyro_spill_bytes_total",
			Help: "Bytes moved through the spill tier",
		}, []string{"op"}),
		spillErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pyro_spill_errors_total",
			Help: "Failed spill tier operations",
		}, []string{"op"}),
		searchSpaces: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pyro_search_spaces_total",
			Help: "Exhausted search spaces by outcome",
		}, []string{"result"}),
		searchSpaceDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "pyro_search_space_duration_seconds",
			Help:    "Duration of search space traversals",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
}

// RecordPLIRequest implements MetricsCollector.
func (p *PrometheusCollector) RecordPLIRequest(hit bool) {
	if hit {
		p.pliRequests.WithLabelValues("hit").Inc()
	} else {
		p.pliRequests.WithLabelValues("miss").Inc()
	}
}

// RecordComposition implements MetricsCollector.
func (p *PrometheusCollector) RecordComposition(operands int, probeAll bool, duration time.Duration) {
	method := "pairwise"
	if probeAll {
		method = "probe_all"
	}
	p.compositions.WithLabelValues(method).Inc()
	p.compositionOperands.Observe(float64(operands))
	p.compositionDuration.Observe(duration.Seconds())
}

// RecordErrorCalculation implements MetricsCollector.
func (p *PrometheusCollector) RecordErrorCalculation(duration time.Duration) {
	p.errorCalculations.Observe(duration.Seconds())
}

// RecordSample implements MetricsCollector.
func (p *PrometheusCollector) RecordSample(size int, exact bool) {
	p.samples.WithLabelValues(strconv.FormatBool(exact)).Inc()
	p.sampleSize.Observe(float64(size))
}

// RecordDependency implements MetricsCollector.
func (p *PrometheusCollector) RecordDependency(kind string) {
	p.dependencies.WithLabelValues(kind).Inc()
}

// RecordEviction implements MetricsCollector.
func (p *PrometheusCollector) RecordEviction(removed int) {
	p.evictions.Add(float64(removed))
}

// RecordSpill implements MetricsCollector.
func (p *PrometheusCollector) RecordSpill(bytes int, err error) {
	p.recordSpillOp("spill", bytes, err)
}

// RecordRestore implements MetricsCollector.
func (p *PrometheusCollector) RecordRestore(bytes int, err error) {
	p.recordSpillOp("restore", bytes, err)
}

func (p *PrometheusCollector) recordSpillOp(op string, bytes int, err error) {
	if err != nil {
		p.spillErrors.WithLabelValues(op).Inc()
		return
	}
	p.spillBytes.WithLabelValues(op).Add(float64(bytes))
}

// RecordSearchSpace implements MetricsCollector.
func (p *PrometheusCollector) RecordSearchSpace(duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	p.searchSpaces.WithLabelValues(result).Inc()
	p.searchSpaceDuration.Observe(duration.Seconds())
}

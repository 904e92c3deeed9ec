package pyro

import (
	"log/slog"
	"time"

	"github.com/hupe1980/pyro/blobstore"
	"github.com/hupe1980/pyro/lattice"
)

// Collector receives every minimal dependency as soon as it is confirmed.
// Implementations must be safe for concurrent use.
type Collector = lattice.Collector

type options struct {
	cfg              Config
	metricsCollector MetricsCollector
	logger           *Logger
	collector        Collector
	spillStore       blobstore.Store
	spillPrefix      string
	progressInterval time.Duration
}

// Option configures a Miner.
type Option func(*options)

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.cfg = cfg
	}
}

// WithMaxError sets the error threshold and its deviation.
func WithMaxError(maxError, deviation float64) Option {
	return func(o *options) {
		o.cfg.MaxError = maxError
		o.cfg.ErrorDeviation = deviation
	}
}

// WithSampleSize sets the agree-set sample size. Zero disables sampling.
func WithSampleSize(n int) Option {
	return func(o *options) {
		o.cfg.SampleSize = n
	}
}

// WithParallelism sets the number of concurrently processed search spaces.
func WithParallelism(n int) Option {
	return func(o *options) {
		o.cfg.Parallelism = n
	}
}

// WithSeed seeds sampling, coin caching and random ascension.
func WithSeed(seed uint64) Option {
	return func(o *options) {
		o.cfg.Seed = seed
	}
}

// WithLaunchPadOrder selects the launch pad order, "arity" or "error".
func WithLaunchPadOrder(order string) Option {
	return func(o *options) {
		o.cfg.LaunchPadOrder = order
	}
}

// WithTargets selects whether FDs and keys are discovered.
func WithTargets(fds, keys bool) Option {
	return func(o *options) {
		o.cfg.FindFDs = fds
		o.cfg.FindKeys = keys
	}
}

// WithMaxLHS bounds the arity of reported dependencies. Zero means unbounded.
func WithMaxLHS(n int) Option {
	return func(o *options) {
		o.cfg.MaxLHS = n
	}
}

// WithCaching sets the caching method by name and its parameter.
func WithCaching(method string, value float64) Option {
	return func(o *options) {
		o.cfg.CachingMethod = method
		o.cfg.CachingValue = value
	}
}

// WithMemoryLimit bounds cached multi-column PLIs and selects the eviction
// method applied when the limit is reached.
func WithMemoryLimit(bytes int64, eviction string) Option {
	return func(o *options) {
		o.cfg.MemoryLimit = bytes
		o.cfg.EvictionMethod = eviction
	}
}

// WithSpillStore writes evicted PLIs to store below prefix. The run id is
// appended to prefix so that concurrent runs do not collide.
//
// Example with a local directory:
//
//	m, _ := pyro.New(rel,
//	    pyro.WithMemoryLimit(64<<20, "least-used"),
//	    pyro.WithSpillStore(blobstore.NewLocalStore("/tmp/pyro"), "spill"))
func WithSpillStore(store blobstore.Store, prefix string) Option {
	return func(o *options) {
		o.spillStore = store
		o.spillPrefix = prefix
	}
}

// WithCollector registers c to receive every dependency as it is found.
func WithCollector(c Collector) Option {
	return func(o *options) {
		o.collector = c
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &pyro.BasicMetricsCollector{}
//	m, _ := pyro.New(rel, pyro.WithMetricsCollector(metrics))
//	// ... m.Discover(ctx) ...
//	stats := metrics.GetStats()
//	fmt.Printf("PLI hit rate: %.2f\n", stats.HitRate())
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := pyro.NewJSONLogger(slog.LevelInfo)
//	m, _ := pyro.New(rel, pyro.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithProgressInterval sets how often progress is logged at most.
func WithProgressInterval(d time.Duration) Option {
	return func(o *options) {
		o.progressInterval = d
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		cfg:              DefaultConfig(),
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		spillPrefix:      "pyro",
		progressInterval: 10 * time.Second,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}

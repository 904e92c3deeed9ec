package plicache

import (
	"log/slog"
	"math/rand/v2"

	"github.com/hupe1980/pyro/blobstore"
	"github.com/hupe1980/pyro/internal/compress"
	"github.com/hupe1980/pyro/internal/resource"
	"github.com/hupe1980/pyro/internal/telemetry"
)

// DefaultNaryIntersectionSize is the operand count from which a composition
// probes all remaining columns at once instead of intersecting pairwise.
const DefaultNaryIntersectionSize = 4

// Random is the randomness source of the coin caching method.
type Random interface {
	Float64() float64
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	cachingMethod        CachingMethod
	cachingValue         float64
	evictionMethod       EvictionMethod
	naryIntersectionSize int
	rng                  Random
	resources            *resource.Controller
	spillStore           blobstore.Store
	spillPrefix          string
	compression          compress.Type
	logger               *slog.Logger
	metrics              telemetry.Collector
}

func defaultOptions() options {
	return options{
		cachingMethod:        CachingAll,
		cachingValue:         0.5,
		evictionMethod:       EvictionNone,
		naryIntersectionSize: DefaultNaryIntersectionSize,
		compression:          compress.ZSTD,
		spillPrefix:          "pli",
	}
}

// WithCachingMethod sets the caching method and its value.
func WithCachingMethod(m CachingMethod, value float64) Option {
	return func(o *options) {
		o.cachingMethod = m
		o.cachingValue = value
	}
}

// WithEvictionMethod sets the eviction method used when the memory budget is exhausted.
func WithEvictionMethod(m EvictionMethod) Option {
	return func(o *options) {
		o.evictionMethod = m
	}
}

// WithNaryIntersectionSize sets the operand count from which ProbeAll is used.
func WithNaryIntersectionSize(n int) Option {
	return func(o *options) {
		if n > 1 {
			o.naryIntersectionSize = n
		}
	}
}

// WithRandom sets the randomness source of the coin caching method.
// The source is only used under the cache lock.
func WithRandom(rng Random) Option {
	return func(o *options) {
		o.rng = rng
	}
}

// WithResourceController sets the controller that bounds the memory of
// cached multi-column PLIs and throttles spill IO.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.resources = rc
	}
}

// WithSpillStore enables the spill tier. Evicted PLIs are written below
// prefix and restored on an exact request.
func WithSpillStore(store blobstore.Store, prefix string) Option {
	return func(o *options) {
		o.spillStore = store
		if prefix != "" {
			o.spillPrefix = prefix
		}
	}
}

// WithCompression sets the codec of spilled PLIs.
func WithCompression(t compress.Type) Option {
	return func(o *options) {
		o.compression = t
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m telemetry.Collector) Option {
	return func(o *options) {
		o.metrics = m
	}
}

func (o *options) finish() {
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	o.metrics = telemetry.OrNoop(o.metrics)
	if o.rng == nil {
		o.rng = rand.New(rand.NewPCG(0, 0))
	}
}

package lattice

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/hupe1980/pyro/internal/telemetry"
	"github.com/hupe1980/pyro/model"
	"github.com/hupe1980/pyro/plicache"
	"github.com/hupe1980/pyro/sample"
	"github.com/hupe1980/pyro/verticalmap"
)

// Config holds the traversal parameters shared by all search spaces.
type Config struct {
	// SampleSize is the number of tuple pairs per agree-set sample.
	// Zero disables sampling; every candidate error is then computed exactly.
	SampleSize int
	// SampleBooster multiplies the sample size of nested search spaces.
	SampleBooster float64
	// EstimateConfidence is the confidence of error intervals. A negative
	// value yields point estimates.
	EstimateConfidence float64
	// MaxLHS bounds the arity of candidates. Zero means unbounded.
	MaxLHS int
	// DeferFailedLaunchPads requeues launch pads that did not lead to a
	// dependency behind all other launch pads.
	DeferFailedLaunchPads bool
	// EstimateOnly trusts sampled estimates instead of computing errors.
	EstimateOnly bool
	// CheckEstimates verifies every minimal dependency and its parents exactly.
	CheckEstimates bool
	// AscendRandomly picks a random extension instead of the one with the
	// lowest estimated error.
	AscendRandomly bool
}

// DefaultConfig returns the default traversal parameters.
func DefaultConfig() Config {
	return Config{
		SampleSize:            500,
		SampleBooster:         10,
		EstimateConfidence:    -1,
		DeferFailedLaunchPads: true,
	}
}

func (c Config) maxLHS() int {
	if c.MaxLHS <= 0 {
		return math.MaxInt
	}
	return c.MaxLHS
}

// Collector receives every minimal dependency as soon as it is confirmed.
// Implementations must be safe for concurrent use.
type Collector interface {
	RegisterFD(lhs model.Vertical, rhs *model.Column, err, score float64)
	RegisterUCC(key model.Vertical, err, score float64)
}

// LockedRand is a seeded random source safe for concurrent use.
type LockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewLockedRand returns a PCG source seeded with seed.
func NewLockedRand(seed uint64) *LockedRand {
	return &LockedRand{r: rand.New(rand.NewPCG(seed, seed))}
}

// Float64 returns a number in [0, 1).
func (l *LockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

// IntN returns a number in [0, n).
func (l *LockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

// Uint64N returns a number in [0, n).
func (l *LockedRand) Uint64N(n uint64) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Uint64N(n)
}

// ContextOption configures a ProfilingContext.
type ContextOption func(*ProfilingContext)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ContextOption {
	return func(pc *ProfilingContext) {
		if l != nil {
			pc.logger = l
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m telemetry.Collector) ContextOption {
	return func(pc *ProfilingContext) {
		pc.metrics = telemetry.OrNoop(m)
	}
}

// WithRandom sets the random source. It should be the source the PLI cache
// was configured with so that a seed reproduces a run.
func WithRandom(r *LockedRand) ContextOption {
	return func(pc *ProfilingContext) {
		if r != nil {
			pc.rng = r
		}
	}
}

// ProfilingContext bundles the state shared by the search spaces of one run.
type ProfilingContext struct {
	cfg       Config
	relation  *model.Relation
	cache     *plicache.Cache
	samples   *verticalmap.Blocking[*sample.AgreeSetSample]
	collector Collector
	rng       *LockedRand
	logger    *slog.Logger
	metrics   telemetry.Collector
}

// NewProfilingContext creates a context over the relation of cache. When
// sampling is enabled, one sample focused on each column is drawn.
func NewProfilingContext(cfg Config, cache *plicache.Cache, collector Collector, opts ...ContextOption) *ProfilingContext {
	pc := &ProfilingContext{
		cfg:       cfg,
		relation:  cache.Relation(),
		cache:     cache,
		collector: collector,
		rng:       NewLockedRand(0),
		logger:    slog.New(slog.DiscardHandler),
		metrics:   telemetry.Noop{},
	}
	for _, opt := range opts {
		opt(pc)
	}

	if cfg.SampleSize > 0 {
		pc.samples = verticalmap.NewBlocking[*sample.AgreeSetSample](pc.relation.Schema())
		for _, cd := range pc.relation.Columns() {
			pc.putSample(sample.CreateFocusedFor(pc.relation, cd.Column().Vertical(), cd.PLI(), cfg.SampleSize, pc.rng))
		}
	}
	return pc
}

// Config returns the traversal parameters.
func (pc *ProfilingContext) Config() Config { return pc.cfg }

// Relation returns the profiled relation.
func (pc *ProfilingContext) Relation() *model.Relation { return pc.relation }

// Schema returns the schema of the profiled relation.
func (pc *ProfilingContext) Schema() *model.Schema { return pc.relation.Schema() }

// Cache returns the PLI cache.
func (pc *ProfilingContext) Cache() *plicache.Cache { return pc.cache }

// Logger returns the logger.
func (pc *ProfilingContext) Logger() *slog.Logger { return pc.logger }

// Metrics returns the metrics collector.
func (pc *ProfilingContext) Metrics() telemetry.Collector { return pc.metrics }

// Random returns the random source.
func (pc *ProfilingContext) Random() *LockedRand { return pc.rng }

// HasSamples reports whether agree-set sampling is enabled.
func (pc *ProfilingContext) HasSamples() bool { return pc.samples != nil }

// NumSamples returns the number of stored agree-set samples.
func (pc *ProfilingContext) NumSamples() int {
	if pc.samples == nil {
		return 0
	}
	return pc.samples.Len()
}

// AgreeSetSample returns the stored sample with the best sampling ratio
// among those focused on a subset of focus, or nil if there is none.
func (pc *ProfilingContext) AgreeSetSample(focus model.Vertical) *sample.AgreeSetSample {
	if pc.samples == nil {
		return nil
	}
	var best *sample.AgreeSetSample
	for _, e := range pc.samples.SubsetEntries(focus) {
		if best == nil || e.Value.SamplingRatio() > best.SamplingRatio() {
			best = e.Value
		}
	}
	return best
}

// CreateFocusedSample draws a sample of size SampleSize*boost focused on
// focus and stores it.
func (pc *ProfilingContext) CreateFocusedSample(ctx context.Context, focus model.Vertical, boost float64) (*sample.AgreeSetSample, error) {
	h, err := pc.cache.GetOrCreateFor(ctx, focus)
	if err != nil {
		return nil, err
	}
	size := int(float64(pc.cfg.SampleSize) * boost)
	smp := sample.CreateFocusedFor(pc.relation, focus, h.PLI(), size, pc.rng)
	pc.logger.Debug("created focused sample",
		"focus", focus,
		"size", smp.SampleSize(),
		"population", smp.PopulationSize(),
		"exact", smp.IsExact(),
	)
	pc.putSample(smp)
	return smp, nil
}

func (pc *ProfilingContext) putSample(smp *sample.AgreeSetSample) {
	pc.samples.Put(smp.Focus(), smp)
	pc.metrics.RecordSample(int(smp.SampleSize()), smp.IsExact())
}

func (pc *ProfilingContext) registerFD(lhs model.Vertical, rhs *model.Column, err float64) {
	pc.metrics.RecordDependency(telemetry.KindFD)
	if pc.collector != nil {
		pc.collector.RegisterFD(lhs, rhs, err, 0)
	}
}

func (pc *ProfilingContext) registerUCC(key model.Vertical, err float64) {
	pc.metrics.RecordDependency(telemetry.KindUCC)
	if pc.collector != nil {
		pc.collector.RegisterUCC(key, err, 0)
	}
}

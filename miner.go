package pyro

import (
	"context"
	"fmt"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hupe1980/pyro/internal/compress"
	"github.com/hupe1980/pyro/internal/resource"
	"github.com/hupe1980/pyro/lattice"
	"github.com/hupe1980/pyro/model"
	"github.com/hupe1980/pyro/plicache"
)

// Miner discovers the minimal approximate FDs and UCCs of a relation.
type Miner struct {
	relation       *model.Relation
	opts           options
	order          lattice.Comparator
	cachingMethod  plicache.CachingMethod
	evictionMethod plicache.EvictionMethod
	compression    compress.Type
}

// New creates a Miner for rel. The configuration is validated here, so
// configuration errors never surface from Discover.
//
// Example:
//
//	m, err := pyro.New(rel, pyro.WithMaxError(0.01, 0), pyro.WithParallelism(4))
//	if err != nil {
//	    return err
//	}
//	res, err := m.Discover(ctx)
func New(rel *model.Relation, optFns ...Option) (*Miner, error) {
	if rel == nil || rel.NumColumns() == 0 {
		return nil, ErrEmptyRelation
	}

	o := applyOptions(optFns)
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Miner{relation: rel, opts: o}
	var err error
	if m.order, err = lattice.ParseComparator(o.cfg.LaunchPadOrder); err != nil {
		return nil, err
	}
	if m.cachingMethod, err = plicache.ParseCachingMethod(o.cfg.CachingMethod); err != nil {
		return nil, err
	}
	if m.evictionMethod, err = plicache.ParseEvictionMethod(o.cfg.EvictionMethod); err != nil {
		return nil, err
	}
	if m.compression, err = compress.ParseType(o.cfg.SpillCompression); err != nil {
		return nil, err
	}
	return m, nil
}

// Config returns the effective configuration.
func (m *Miner) Config() Config { return m.opts.cfg }

// Discover runs one search space per right-hand side column and one for
// keys on a pool of workers. Every call is an independent run with its own
// PLI cache.
//
// When ctx is cancelled no further search spaces are dispatched and the
// dependencies found so far are returned together with the context error.
func (m *Miner) Discover(ctx context.Context) (*Result, error) {
	start := time.Now()
	cfg := m.opts.cfg
	runID := uuid.NewString()
	logger := m.opts.logger.WithRunID(runID)

	logger.InfoContext(ctx, "discovery started",
		"relation", m.relation.Schema().Name(),
		"rows", m.relation.NumRows(),
		"columns", m.relation.NumColumns(),
		"max_error", cfg.MaxError,
		"parallelism", cfg.Parallelism,
	)

	rc := resource.NewController(resource.Config{
		MemoryLimitBytes:   cfg.MemoryLimit,
		IOLimitBytesPerSec: cfg.SpillIOLimit,
	})
	rng := lattice.NewLockedRand(cfg.Seed)

	cacheOpts := []plicache.Option{
		plicache.WithCachingMethod(m.cachingMethod, cfg.CachingValue),
		plicache.WithEvictionMethod(m.evictionMethod),
		plicache.WithNaryIntersectionSize(cfg.NaryIntersectionSize),
		plicache.WithRandom(rng),
		plicache.WithResourceController(rc),
		plicache.WithLogger(logger.Logger),
		plicache.WithMetrics(m.opts.metricsCollector),
	}
	if m.opts.spillStore != nil {
		cacheOpts = append(cacheOpts,
			plicache.WithSpillStore(m.opts.spillStore, path.Join(m.opts.spillPrefix, runID)),
			plicache.WithCompression(m.compression),
		)
	}
	cache, err := plicache.New(m.relation, cacheOpts...)
	if err != nil {
		return nil, translateError(err)
	}
	defer func() {
		if cerr := cache.Close(context.WithoutCancel(ctx)); cerr != nil {
			logger.WarnContext(ctx, "closing pli cache failed", "error", cerr)
		}
	}()

	collector := newResultCollector(ctx, logger, m.opts.collector)
	pc := lattice.NewProfilingContext(cfg.latticeConfig(), cache, collector,
		lattice.WithLogger(logger.Logger),
		lattice.WithMetrics(m.opts.metricsCollector),
		lattice.WithRandom(rng),
	)

	spaces, err := m.searchSpaces(pc)
	if err != nil {
		return nil, translateError(err)
	}

	err = translateError(m.run(ctx, logger, spaces))

	fds, uccs := collector.sorted()
	res := &Result{
		RunID:        runID,
		Relation:     m.relation.Schema().Name(),
		FDs:          fds,
		UCCs:         uccs,
		Start:        start,
		Duration:     time.Since(start),
		SearchSpaces: len(spaces),
		CachedPLIs:   cache.Size(),
		Samples:      pc.NumSamples(),
		PeakMemory:   rc.Peak(),
	}
	logger.LogDiscovery(ctx, len(fds), len(uccs), res.Duration, err)
	return res, err
}

func (m *Miner) searchSpaces(pc *lattice.ProfilingContext) ([]*lattice.SearchSpace, error) {
	cfg := m.opts.cfg
	var spaces []*lattice.SearchSpace
	if cfg.FindFDs {
		for _, col := range m.relation.Schema().Columns() {
			st, err := lattice.NewStrategy(pc, cfg.ErrorMeasure, col, cfg.MaxError, cfg.ErrorDeviation)
			if err != nil {
				return nil, err
			}
			spaces = append(spaces, lattice.NewSearchSpace(len(spaces), pc, st, m.order))
		}
	}
	if cfg.FindKeys {
		st, err := lattice.NewStrategy(pc, cfg.ErrorMeasure, nil, cfg.MaxError, cfg.ErrorDeviation)
		if err != nil {
			return nil, err
		}
		spaces = append(spaces, lattice.NewSearchSpace(len(spaces), pc, st, m.order))
	}
	return spaces, nil
}

// run hands out search spaces to the workers. Each search space is
// traversed by exactly one worker.
func (m *Miner) run(ctx context.Context, logger *Logger, spaces []*lattice.SearchSpace) error {
	var (
		mu        sync.Mutex
		next      int
		completed atomic.Int64
	)
	pop := func() (*lattice.SearchSpace, bool) {
		mu.Lock()
		defer mu.Unlock()
		if next >= len(spaces) {
			return nil, false
		}
		ss := spaces[next]
		next++
		return ss, true
	}
	progress := rate.Sometimes{Interval: m.opts.progressInterval}

	g, gctx := errgroup.WithContext(ctx)
	for range min(m.opts.cfg.Parallelism, len(spaces)) {
		g.Go(func() error {
			for {
				if err := gctx.Err(); err != nil {
					return err
				}
				ss, ok := pop()
				if !ok {
					return nil
				}
				if err := m.runSearchSpace(gctx, logger, ss); err != nil {
					return err
				}
				done := completed.Add(1)
				progress.Do(func() {
					logger.InfoContext(ctx, "discovery progress", "completed", done, "total", len(spaces))
				})
			}
		})
	}
	return g.Wait()
}

func (m *Miner) runSearchSpace(ctx context.Context, logger *Logger, ss *lattice.SearchSpace) error {
	start := time.Now()
	l := logger.WithSearchSpace(ss.ID())
	if fd, ok := ss.Strategy().(*lattice.FDStrategy); ok {
		l = l.WithRHS(fd.RHS().Name())
	}

	err := ss.EnsureInitialized(ctx)
	if err == nil {
		err = ss.Discover(ctx)
	}

	d := time.Since(start)
	m.opts.metricsCollector.RecordSearchSpace(d, err)
	l.LogSearchSpace(ctx, ss.Strategy().String(), d, err)
	if err != nil {
		return fmt.Errorf("search space %s: %w", ss.Strategy(), err)
	}
	return nil
}

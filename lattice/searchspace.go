package lattice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hupe1980/pyro/internal/queue"
	"github.com/hupe1980/pyro/model"
	"github.com/hupe1980/pyro/verticalmap"
)

var (
	// ErrInconsistentTrickleDown is returned when trickling down reaches a
	// state that contradicts the recorded visitees.
	ErrInconsistentTrickleDown = errors.New("lattice: inconsistent trickle down")

	// ErrEstimateCheckFailed is returned by the estimate self-check when a
	// reported minimal dependency is not minimal or not a dependency.
	ErrEstimateCheckFailed = errors.New("lattice: minimal dependency estimate check failed")
)

// SearchStats accumulates the time spent in the phases of a search space.
type SearchStats struct {
	Polling       time.Duration
	Ascending     time.Duration
	TricklingDown time.Duration
	Nested        int
}

// SearchSpace traverses the lattice for one strategy. It is not safe for
// concurrent use.
type SearchSpace struct {
	id       int
	pc       *ProfilingContext
	strategy DependencyStrategy
	order    Comparator
	logger   *slog.Logger

	// scope restricts nested search spaces to subsets of its keys.
	scope          *verticalmap.Map[model.Vertical]
	globalVisitees *verticalmap.Map[VerticalInfo]
	localVisitees  *verticalmap.Map[VerticalInfo]

	launchPads     *queue.PriorityQueue[DependencyCandidate]
	launchPadIndex *verticalmap.Map[DependencyCandidate]
	deferred       []DependencyCandidate

	recursionDepth int
	sampleBoost    float64
	initialized    bool
	stats          SearchStats
}

// NewSearchSpace creates a top-level search space.
func NewSearchSpace(id int, pc *ProfilingContext, strategy DependencyStrategy, order Comparator) *SearchSpace {
	schema := pc.Schema()
	return newSearchSpace(id, pc, strategy, order, nil, verticalmap.New[VerticalInfo](schema), 0, 1)
}

func newSearchSpace(
	id int,
	pc *ProfilingContext,
	strategy DependencyStrategy,
	order Comparator,
	scope *verticalmap.Map[model.Vertical],
	globalVisitees *verticalmap.Map[VerticalInfo],
	depth int,
	sampleBoost float64,
) *SearchSpace {
	schema := pc.Schema()
	return &SearchSpace{
		id:       id,
		pc:       pc,
		strategy: strategy,
		order:    order,
		logger: pc.Logger().With(
			slog.Int("search_space", id),
			slog.String("strategy", strategy.String()),
			slog.Int("depth", depth),
		),
		scope:          scope,
		globalVisitees: globalVisitees,
		launchPads: queue.New(func(a, b DependencyCandidate) bool {
			return order(a, b) < 0
		}, schema.NumColumns()),
		launchPadIndex: verticalmap.New[DependencyCandidate](schema),
		recursionDepth: depth,
		sampleBoost:    sampleBoost,
	}
}

// ID returns the identifier given at construction.
func (s *SearchSpace) ID() int { return s.id }

// Strategy returns the strategy of the search space.
func (s *SearchSpace) Strategy() DependencyStrategy { return s.strategy }

// Stats returns the accumulated phase timings.
func (s *SearchSpace) Stats() SearchStats { return s.stats }

// NumLaunchPads returns the number of pending launch pads, deferred ones included.
func (s *SearchSpace) NumLaunchPads() int { return s.launchPads.Len() + len(s.deferred) }

// EnsureInitialized lets the strategy seed the launch pads. Later calls are no-ops.
func (s *SearchSpace) EnsureInitialized(ctx context.Context) error {
	if s.initialized {
		return nil
	}
	if err := s.strategy.EnsureInitialized(ctx, s); err != nil {
		return err
	}
	s.initialized = true
	s.logger.Debug("search space initialized", "launch_pads", s.launchPads.Len())
	return nil
}

// AddLaunchPad queues c unless a launch pad for the same vertical is pending.
func (s *SearchSpace) AddLaunchPad(c DependencyCandidate) {
	if s.launchPadIndex.ContainsKey(c.Vertical) {
		return
	}
	s.launchPads.Push(c)
	s.launchPadIndex.Put(c.Vertical, c)
}

// Discover processes launch pads until none is left. It stops early when
// ctx is done.
func (s *SearchSpace) Discover(ctx context.Context) error {
	s.logger.Debug("discovering")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		pad, ok, err := s.pollLaunchPad(ctx)
		s.stats.Polling += time.Since(start)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if s.localVisitees == nil {
			s.localVisitees = verticalmap.New[VerticalInfo](s.pc.Schema())
		}

		found, err := s.ascend(ctx, pad)
		if err != nil {
			return err
		}
		s.returnLaunchPad(pad, !found)
	}
}

func (s *SearchSpace) pollLaunchPad(ctx context.Context) (DependencyCandidate, bool, error) {
	for {
		if s.launchPads.Len() == 0 {
			if len(s.deferred) == 0 {
				return DependencyCandidate{}, false, nil
			}
			for _, pad := range s.deferred {
				s.launchPads.Push(pad)
			}
			s.deferred = nil
		}

		pad, _ := s.launchPads.Pop()
		s.launchPadIndex.Remove(pad.Vertical)

		if isImpliedByMinDep(pad.Vertical, s.globalVisitees) || isImpliedByMinDep(pad.Vertical, s.localVisitees) {
			s.logger.Debug("removing subset-pruned launch pad", "launch_pad", pad.Vertical)
			continue
		}

		var supersets []model.Vertical
		for _, e := range s.globalVisitees.SupersetEntries(pad.Vertical) {
			supersets = append(supersets, e.Key)
		}
		if s.localVisitees != nil {
			for _, e := range s.localVisitees.SupersetEntries(pad.Vertical) {
				if e.Value.IsPruningSubsets() {
					supersets = append(supersets, e.Key)
				}
			}
		}
		if len(supersets) == 0 {
			return pad, true, nil
		}
		if err := s.escapeLaunchPad(ctx, pad.Vertical, supersets); err != nil {
			return DependencyCandidate{}, false, err
		}
	}
}

// escapeLaunchPad replaces a launch pad that lies below visited verticals by
// its minimal extensions that leave every one of them.
func (s *SearchSpace) escapeLaunchPad(ctx context.Context, pad model.Vertical, pruningSupersets []model.Vertical) error {
	irrelevant := s.strategy.IrrelevantColumns()
	complements := make([]model.Vertical, len(pruningSupersets))
	for i, sup := range pruningSupersets {
		complements[i] = sup.Invert().Without(irrelevant)
	}

	prune := func(hs model.Vertical) bool {
		candidate := pad.Union(hs)
		if s.scope != nil {
			if _, ok := s.scope.AnySupersetEntry(candidate, nil); !ok {
				return true
			}
		}
		if isImpliedByMinDep(candidate, s.localVisitees) || isImpliedByMinDep(candidate, s.globalVisitees) {
			return true
		}
		_, pending := s.launchPadIndex.AnySubsetEntry(candidate, nil)
		return pending
	}

	hittingSet := CalculateHittingSet(s.pc.Schema(), complements, prune)
	s.logger.Debug("escaping launch pad", "launch_pad", pad, "pruning_supersets", len(pruningSupersets), "escapes", len(hittingSet))

	maxLHS := s.pc.cfg.maxLHS()
	for _, escaping := range hittingSet {
		v := pad.Union(escaping)
		if v.Arity() > maxLHS {
			continue
		}
		c, err := s.strategy.CreateDependencyCandidate(ctx, v)
		if err != nil {
			return err
		}
		s.AddLaunchPad(c)
	}
	return nil
}

func (s *SearchSpace) returnLaunchPad(pad DependencyCandidate, deferIt bool) {
	if deferIt && s.pc.cfg.DeferFailedLaunchPads {
		s.deferred = append(s.deferred, pad)
		s.logger.Debug("deferred launch pad", "launch_pad", pad.Vertical)
	} else {
		s.launchPads.Push(pad)
	}
	s.launchPadIndex.Put(pad.Vertical, pad)
}

func (s *SearchSpace) resample(ctx context.Context, v model.Vertical) error {
	ok, err := s.strategy.ShouldResample(v, s.sampleBoost)
	if err != nil || !ok {
		return err
	}
	_, err = s.pc.CreateFocusedSample(ctx, v, s.sampleBoost)
	return err
}

// evaluate returns the error of c, trusting its estimate in estimate-only mode.
func (s *SearchSpace) evaluate(ctx context.Context, c DependencyCandidate) (float64, error) {
	if s.pc.cfg.EstimateOnly {
		return c.Error.Mean, nil
	}
	return s.strategy.CalculateError(ctx, c.Vertical)
}

// ascend climbs from pad towards supersets until a dependency is found or
// the lattice ends. It reports whether a dependency was found.
func (s *SearchSpace) ascend(ctx context.Context, pad DependencyCandidate) (bool, error) {
	start := time.Now()
	defer func() { s.stats.Ascending += time.Since(start) }()

	s.logger.Debug("ascending", "from", s.strategy.Format(pad.Vertical))
	if err := s.resample(ctx, pad.Vertical); err != nil {
		return false, err
	}

	maxDep := s.strategy.MaxDependencyError()
	ceiling := s.pc.relation.NumColumns() - s.strategy.IrrelevantColumns().Arity()
	maxLHS := s.pc.cfg.maxLHS()

	candidate := pad
	var (
		errVal float64
		known  bool
	)
	for {
		switch {
		case candidate.Exact:
			errVal, known = candidate.Error.Mean, true
			isDep := errVal <= maxDep
			s.localVisitees.Put(candidate.Vertical, VerticalInfo{IsDependency: isDep, Error: errVal})
		case candidate.Error.Min > maxDep:
			known = false
		default:
			e, err := s.evaluate(ctx, candidate)
			if err != nil {
				return false, err
			}
			errVal, known = e, true
			s.localVisitees.Put(candidate.Vertical, VerticalInfo{IsDependency: e <= maxDep, Error: e})
			if e > maxDep {
				if err := s.resample(ctx, candidate.Vertical); err != nil {
					return false, err
				}
			}
		}
		if known && errVal <= maxDep {
			break
		}

		arity := candidate.Vertical.Arity()
		if arity >= ceiling || arity >= maxLHS {
			break
		}
		next, ok, err := s.nextAscension(ctx, candidate.Vertical)
		if err != nil {
			return false, err
		}
		if !ok {
			break
		}
		candidate = next
	}

	if !known {
		s.logger.Debug("hit ceiling", "vertical", candidate.Vertical)
		e, err := s.strategy.CalculateError(ctx, candidate.Vertical)
		if err != nil {
			return false, err
		}
		errVal = e
	}

	if errVal <= maxDep {
		s.logger.Debug("peak found, minimizing", "peak", candidate.Vertical, "error", errVal)
		if err := s.trickleDown(ctx, candidate.Vertical, errVal); err != nil {
			return false, err
		}
		if s.recursionDepth == 0 {
			s.globalVisitees.Put(candidate.Vertical, ForMinimalDependency())
		}
		return true, nil
	}

	if s.recursionDepth == 0 {
		s.globalVisitees.Put(candidate.Vertical, ForMaximalNonDependency())
		s.logger.Debug("maximal non-dependency", "vertical", candidate.Vertical, "error", errVal)
	} else {
		s.localVisitees.Put(candidate.Vertical, ForNonDependency())
		s.logger.Debug("local maximal non-dependency", "vertical", candidate.Vertical, "error", errVal)
	}
	return false, nil
}

// nextAscension picks the extension of v by one relevant column with the
// lowest estimated error, or a random one when configured.
func (s *SearchSpace) nextAscension(ctx context.Context, v model.Vertical) (DependencyCandidate, bool, error) {
	var (
		next  DependencyCandidate
		found bool
		seen  int
	)
	for _, col := range s.pc.Schema().Columns() {
		idx := col.Index()
		if v.ContainsColumn(idx) || s.strategy.IsIrrelevantColumn(idx) {
			continue
		}
		extended := v.UnionColumn(idx)
		if s.scope != nil {
			if _, ok := s.scope.AnySupersetEntry(extended, nil); !ok {
				continue
			}
		}
		if isImpliedByMinDep(extended, s.globalVisitees) {
			continue
		}
		c, err := s.strategy.CreateDependencyCandidate(ctx, extended)
		if err != nil {
			return DependencyCandidate{}, false, err
		}
		seen++
		switch {
		case !found:
			next, found = c, true
		case s.pc.cfg.AscendRandomly:
			if s.pc.rng.IntN(seen) == 0 {
				next = c
			}
		case c.Error.Mean < next.Error.Mean:
			next = c
		}
	}
	return next, found, nil
}

// trickleDown finds the minimal dependencies below mainPeak and registers them.
func (s *SearchSpace) trickleDown(ctx context.Context, mainPeak model.Vertical, mainPeakError float64) error {
	start := time.Now()
	defer func() { s.stats.TricklingDown += time.Since(start) }()

	schema := s.pc.Schema()
	minNonDep := s.strategy.MinNonDependencyError()

	maximalNonDeps := make(map[string]struct{})
	allegedNonDeps := make(map[string]struct{})
	allegedMinDeps := verticalmap.New[VerticalInfo](schema)
	peaks := queue.New(peakFirst, 4)
	peaks.Push(exactCandidate(mainPeak, mainPeakError))

	for peaks.Len() > 0 {
		peak, _ := peaks.Top()

		if subsetDeps := subsetDependencies(peak.Vertical, allegedMinDeps); len(subsetDeps) > 0 {
			peaks.Pop()
			seen := make(map[string]struct{})
			for _, h := range CalculateHittingSet(schema, subsetDeps, nil) {
				escaped := peak.Vertical.Without(h)
				key := escaped.Key()
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				if escaped.IsEmpty() {
					continue
				}
				if _, ok := allegedNonDeps[key]; ok {
					continue
				}
				c, err := s.strategy.CreateDependencyCandidate(ctx, escaped)
				if err != nil {
					return err
				}
				if c.Error.Mean > minNonDep {
					allegedNonDeps[key] = struct{}{}
					continue
				}
				if isKnownNonDependency(escaped, s.localVisitees) || isKnownNonDependency(escaped, s.globalVisitees) {
					continue
				}
				peaks.Push(c)
			}
			continue
		}

		found, err := s.trickleDownFrom(ctx, peak, allegedMinDeps, allegedNonDeps)
		if err != nil {
			return err
		}
		if !found {
			peaks.Pop()
		}
	}

	uncertain := 0
	for _, e := range allegedMinDeps.EntrySet() {
		if e.Value.IsExtremal && !s.globalVisitees.ContainsKey(e.Key) {
			s.registerMinimalDependency(e.Key, e.Value)
		}
		if !e.Value.IsExtremal {
			uncertain++
		}
	}
	s.logger.Debug("alleged minimal dependencies", "count", allegedMinDeps.Len(), "uncertain", uncertain)

	allegedMinDepKeys := allegedMinDeps.KeySet()
	for _, v := range allegedMinDepKeys {
		if !mainPeak.Contains(v) {
			return fmt.Errorf("%w: %s is not below peak %s", ErrInconsistentTrickleDown, v, mainPeak)
		}
	}

	seen := make(map[string]struct{})
	for _, leaveOut := range CalculateHittingSet(schema, allegedMinDepKeys, nil) {
		candidate := mainPeak.Without(leaveOut)
		key := candidate.Key()
		if _, dup := seen[key]; dup || candidate.IsEmpty() {
			continue
		}
		seen[key] = struct{}{}
		if _, ok := maximalNonDeps[key]; ok {
			continue
		}
		if isKnownNonDependency(candidate, s.localVisitees) || isKnownNonDependency(candidate, s.globalVisitees) {
			continue
		}

		var errVal float64
		if s.pc.cfg.EstimateOnly {
			c, err := s.strategy.CreateDependencyCandidate(ctx, candidate)
			if err != nil {
				return err
			}
			errVal = c.Error.Mean
		} else {
			e, err := s.strategy.CalculateError(ctx, candidate)
			if err != nil {
				return err
			}
			errVal = e
		}

		if errVal > minNonDep {
			maximalNonDeps[key] = struct{}{}
			s.localVisitees.Put(candidate, ForNonDependency())
		} else {
			peaks.Push(exactCandidate(candidate, errVal))
		}
	}

	if peaks.Len() == 0 {
		for _, e := range allegedMinDeps.EntrySet() {
			if !e.Value.IsExtremal && !s.globalVisitees.ContainsKey(e.Key) {
				s.registerMinimalDependency(e.Key, e.Value)
			}
		}
		return nil
	}

	s.logger.Debug("new peaks, descending into nested search space", "peaks", peaks.Len())
	return s.discoverNested(ctx, peaks.Drain(), allegedMinDeps)
}

// discoverNested runs a nested search space restricted to the subsets of
// peaks and then registers the alleged minimal dependencies it did not refute.
func (s *SearchSpace) discoverNested(ctx context.Context, peaks []DependencyCandidate, allegedMinDeps *verticalmap.Map[VerticalInfo]) error {
	schema := s.pc.Schema()
	scope := verticalmap.New[model.Vertical](schema)
	columns := schema.EmptyVertical()
	for _, p := range peaks {
		scope.Put(p.Vertical, p.Vertical)
		columns = columns.Union(p.Vertical)
	}

	boost := s.sampleBoost * s.pc.cfg.SampleBooster
	s.logger.Debug("increasing sample boost", "boost", boost)
	nested := newSearchSpace(s.id, s.pc, s.strategy.Clone(), s.order, scope, s.globalVisitees, s.recursionDepth+1, boost)
	for _, col := range columns.Indices() {
		c, err := s.strategy.CreateDependencyCandidate(ctx, schema.VerticalOf(col))
		if err != nil {
			return err
		}
		nested.AddLaunchPad(c)
	}
	nested.initialized = true
	nested.localVisitees = s.localVisitees

	s.stats.Nested++
	if err := nested.Discover(ctx); err != nil {
		return err
	}
	s.localVisitees = nested.localVisitees
	s.stats.Nested += nested.stats.Nested

	for _, e := range allegedMinDeps.EntrySet() {
		if !isImpliedByMinDep(e.Key, s.globalVisitees) {
			s.logger.Debug("alleged minimal dependency confirmed", "dependency", s.strategy.Format(e.Key))
			s.registerMinimalDependency(e.Key, e.Value)
		}
	}
	return nil
}

// trickleDownFrom descends from c towards a minimal dependency below it. It
// reports whether an alleged minimal dependency was recorded.
func (s *SearchSpace) trickleDownFrom(
	ctx context.Context,
	c DependencyCandidate,
	allegedMinDeps *verticalmap.Map[VerticalInfo],
	allegedNonDeps map[string]struct{},
) (bool, error) {
	maxDep := s.strategy.MaxDependencyError()
	minNonDep := s.strategy.MinNonDependencyError()
	if c.Error.Min > maxDep {
		return false, fmt.Errorf("%w: candidate %s exceeds the dependency threshold", ErrInconsistentTrickleDown, c)
	}

	allParentsKnown := true
	if c.Vertical.Arity() > 1 {
		parents := queue.New(minErrorFirst, c.Vertical.Arity())
		for _, p := range c.Vertical.Parents() {
			if isKnownNonDependency(p, s.localVisitees) || isKnownNonDependency(p, s.globalVisitees) {
				continue
			}
			if _, ok := allegedNonDeps[p.Key()]; ok {
				allParentsKnown = false
				continue
			}
			pcand, err := s.strategy.CreateDependencyCandidate(ctx, p)
			if err != nil {
				return false, err
			}
			parents.Push(pcand)
		}

		for parents.Len() > 0 {
			parent, _ := parents.Pop()
			if parent.Error.Min > minNonDep {
				// No remaining parent can be a dependency either.
				for ok := true; ok; parent, ok = parents.Pop() {
					if parent.Exact {
						s.localVisitees.Put(parent.Vertical, ForNonDependency())
					} else {
						allegedNonDeps[parent.Vertical.Key()] = struct{}{}
						allParentsKnown = false
					}
				}
				break
			}

			found, err := s.trickleDownFrom(ctx, parent, allegedMinDeps, allegedNonDeps)
			if err != nil || found {
				return found, err
			}

			if !c.Exact {
				e, err := s.strategy.CalculateError(ctx, c.Vertical)
				if err != nil {
					return false, err
				}
				c = exactCandidate(c.Vertical, e)
				if e > minNonDep {
					break
				}
			}
		}
	}

	errVal := c.Error.Mean
	if !c.Exact {
		e, err := s.strategy.CalculateError(ctx, c.Vertical)
		if err != nil {
			return false, err
		}
		errVal = e
	}

	if errVal <= maxDep {
		s.logger.Debug("minimal dependency candidate", "arity", c.Vertical.Arity(), "candidate", s.strategy.Format(c.Vertical), "error", errVal)
		allegedMinDeps.RemoveSupersetEntries(c.Vertical)
		allegedMinDeps.Put(c.Vertical, VerticalInfo{IsDependency: true, IsExtremal: allParentsKnown, Error: errVal})
		if allParentsKnown && s.pc.cfg.CheckEstimates {
			if err := s.requireMinimalDependency(ctx, c.Vertical); err != nil {
				return false, err
			}
		}
		return true, nil
	}

	s.localVisitees.Put(c.Vertical, ForNonDependency())
	if err := s.resample(ctx, c.Vertical); err != nil {
		return false, err
	}
	return false, nil
}

// requireMinimalDependency verifies exactly that v is a dependency and that
// none of its parents is one.
func (s *SearchSpace) requireMinimalDependency(ctx context.Context, v model.Vertical) error {
	e, err := s.strategy.CalculateError(ctx, v)
	if err != nil {
		return err
	}
	if e > s.strategy.MaxDependencyError() {
		return fmt.Errorf("%w: %s has error %f", ErrEstimateCheckFailed, s.strategy.Format(v), e)
	}
	for _, p := range v.Parents() {
		pe, err := s.strategy.CalculateError(ctx, p)
		if err != nil {
			return err
		}
		if pe <= s.strategy.MinNonDependencyError() {
			return fmt.Errorf("%w: parent %s has error %f", ErrEstimateCheckFailed, s.strategy.Format(p), pe)
		}
	}
	return nil
}

func (s *SearchSpace) registerMinimalDependency(v model.Vertical, info VerticalInfo) {
	info.IsExtremal = true
	s.globalVisitees.Put(v, info)
	s.logger.Debug("minimal dependency", "dependency", s.strategy.Format(v), "error", info.Error)
	s.strategy.RegisterDependency(v, info.Error)
}

func subsetDependencies(v model.Vertical, infos *verticalmap.Map[VerticalInfo]) []model.Vertical {
	var deps []model.Vertical
	for _, e := range infos.SubsetEntries(v) {
		if e.Value.IsDependency {
			deps = append(deps, e.Key)
		}
	}
	return deps
}

// isImpliedByMinDep reports whether a subset of v is a known minimal dependency.
func isImpliedByMinDep(v model.Vertical, infos *verticalmap.Map[VerticalInfo]) bool {
	if infos == nil {
		return false
	}
	_, ok := infos.AnySubsetEntry(v, func(_ model.Vertical, info VerticalInfo) bool {
		return info.IsDependency && info.IsExtremal
	})
	return ok
}

// isKnownNonDependency reports whether a superset of v is a known non-dependency.
func isKnownNonDependency(v model.Vertical, infos *verticalmap.Map[VerticalInfo]) bool {
	if infos == nil {
		return false
	}
	_, ok := infos.AnySupersetEntry(v, func(_ model.Vertical, info VerticalInfo) bool {
		return !info.IsDependency
	})
	return ok
}

package lattice

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/pyro/model"
	"github.com/hupe1980/pyro/pli"
)

// FDStrategy searches for approximate functional dependencies X -> rhs
// under the g1' error.
type FDStrategy struct {
	thresholds
	pc  *ProfilingContext
	rhs *model.Column
}

// NewFDStrategy returns the FD strategy for rhs.
func NewFDStrategy(pc *ProfilingContext, rhs *model.Column, maxError, deviation float64) *FDStrategy {
	return &FDStrategy{thresholds: newThresholds(maxError, deviation), pc: pc, rhs: rhs}
}

// RHS returns the right-hand side column.
func (s *FDStrategy) RHS() *model.Column { return s.rhs }

// EnsureInitialized seeds the search space with the empty left-hand side.
func (s *FDStrategy) EnsureInitialized(ctx context.Context, ss *SearchSpace) error {
	empty := s.pc.Schema().EmptyVertical()
	c, err := s.exact(ctx, empty)
	if err != nil {
		return err
	}
	ss.AddLaunchPad(c)
	return nil
}

// CalculateError returns the share of tuple pairs that agree on lhs but not on rhs.
func (s *FDStrategy) CalculateError(ctx context.Context, lhs model.Vertical) (float64, error) {
	start := time.Now()
	defer func() { s.pc.metrics.RecordErrorCalculation(time.Since(start)) }()

	cache := s.pc.cache
	if lhs.IsEmpty() {
		p, ok := cache.Get(s.rhs.Vertical())
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrMissingColumnPLI, s.rhs)
		}
		return pairShare(s.pc, float64(p.Nip())), nil
	}

	h, err := cache.GetOrCreateFor(ctx, lhs)
	if err != nil {
		return 0, err
	}
	if joint, ok := cache.Get(lhs.UnionColumn(s.rhs.Index())); ok {
		return pairShare(s.pc, float64(h.PLI().Nep()-joint.Nep())), nil
	}
	return pairShare(s.pc, float64(s.violations(h.PLI()))), nil
}

// violations probes the rhs values through the clusters of lhs and counts
// the pairs of each cluster that fall into different rhs groups.
func (s *FDStrategy) violations(lhs *pli.PLI) uint64 {
	probing := s.pc.relation.ProbingTable(s.rhs.Index())
	counts := make(map[int]int)
	var total uint64
	for _, cluster := range lhs.Clusters() {
		clear(counts)
		for _, row := range cluster {
			if id := probing[row]; id != pli.SingletonValueID {
				counts[id]++
			}
		}
		n := pli.Pairs(len(cluster))
		for _, k := range counts {
			n -= pli.Pairs(k)
		}
		total += n
	}
	return total
}

// CreateDependencyCandidate estimates the error of lhs from the best agree-set
// sample. Left-hand sides of arity one or less, and all of them when sampling
// is disabled, get their exact error.
func (s *FDStrategy) CreateDependencyCandidate(ctx context.Context, lhs model.Vertical) (DependencyCandidate, error) {
	if lhs.Arity() <= 1 {
		return s.exact(ctx, lhs)
	}
	smp := s.pc.AgreeSetSample(lhs)
	if smp == nil {
		return s.exact(ctx, lhs)
	}
	ci, err := smp.EstimateMixed(lhs, s.rhs.Vertical(), s.pc.cfg.EstimateConfidence)
	if err != nil {
		return DependencyCandidate{}, err
	}
	ci = ci.Multiply(float64(s.pc.relation.NumTuplePairs()))
	return DependencyCandidate{Vertical: lhs, Error: pairShareInterval(s.pc, ci)}, nil
}

func (s *FDStrategy) exact(ctx context.Context, lhs model.Vertical) (DependencyCandidate, error) {
	e, err := s.CalculateError(ctx, lhs)
	if err != nil {
		return DependencyCandidate{}, err
	}
	return exactCandidate(lhs, e), nil
}

// RegisterDependency reports lhs -> rhs.
func (s *FDStrategy) RegisterDependency(lhs model.Vertical, err float64) {
	s.pc.registerFD(lhs, s.rhs, err)
}

// ShouldResample reports whether a larger sample for v pays off.
func (s *FDStrategy) ShouldResample(v model.Vertical, boost float64) (bool, error) {
	return shouldResample(s.pc, v, boost)
}

// IsIrrelevantColumn reports whether index is the right-hand side.
func (s *FDStrategy) IsIrrelevantColumn(index int) bool { return index == s.rhs.Index() }

// IrrelevantColumns returns the right-hand side.
func (s *FDStrategy) IrrelevantColumns() model.Vertical { return s.rhs.Vertical() }

// Clone returns a strategy for the same right-hand side and thresholds.
func (s *FDStrategy) Clone() DependencyStrategy {
	maxError, deviation := s.target()
	return NewFDStrategy(s.pc, s.rhs, maxError, deviation)
}

// Format renders lhs -> rhs, e.g. "[A B]->C".
func (s *FDStrategy) Format(lhs model.Vertical) string {
	return fmt.Sprintf("%s->%s", lhs, s.rhs)
}

func (s *FDStrategy) String() string {
	return fmt.Sprintf("FD[RHS=%s, g1'=%s]", s.rhs, s.band())
}

package lattice

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/pyro/model"
	"github.com/hupe1980/pyro/sample"
)

// KeyStrategy searches for approximate unique column combinations under the
// g1' error: the share of tuple pairs that agree on the key.
type KeyStrategy struct {
	thresholds
	pc *ProfilingContext
}

// NewKeyStrategy returns the key strategy.
func NewKeyStrategy(pc *ProfilingContext, maxError, deviation float64) *KeyStrategy {
	return &KeyStrategy{thresholds: newThresholds(maxError, deviation), pc: pc}
}

// EnsureInitialized seeds the search space with every single column.
func (s *KeyStrategy) EnsureInitialized(ctx context.Context, ss *SearchSpace) error {
	for _, col := range s.pc.Schema().Columns() {
		if s.IsIrrelevantColumn(col.Index()) {
			continue
		}
		c, err := s.CreateDependencyCandidate(ctx, col.Vertical())
		if err != nil {
			return err
		}
		ss.AddLaunchPad(c)
	}
	return nil
}

// CalculateError returns the share of tuple pairs that agree on key.
func (s *KeyStrategy) CalculateError(ctx context.Context, key model.Vertical) (float64, error) {
	start := time.Now()
	defer func() { s.pc.metrics.RecordErrorCalculation(time.Since(start)) }()

	if key.IsEmpty() {
		return pairShare(s.pc, float64(s.pc.relation.NumTuplePairs())), nil
	}
	h, err := s.pc.cache.GetOrCreateFor(ctx, key)
	if err != nil {
		return 0, err
	}
	return pairShare(s.pc, float64(h.PLI().Nep())), nil
}

// CreateDependencyCandidate estimates the error of key from the best agree-set
// sample. Keys of arity one or less, and all of them when sampling is
// disabled, get their exact error.
func (s *KeyStrategy) CreateDependencyCandidate(ctx context.Context, key model.Vertical) (DependencyCandidate, error) {
	if key.Arity() <= 1 {
		return s.exact(ctx, key)
	}
	smp := s.pc.AgreeSetSample(key)
	if smp == nil {
		return s.exact(ctx, key)
	}
	ci, err := smp.EstimateAgreementsWithConfidence(key, s.pc.cfg.EstimateConfidence)
	if err != nil {
		return DependencyCandidate{}, err
	}
	ci = ci.Multiply(float64(s.pc.relation.NumTuplePairs()))
	return DependencyCandidate{Vertical: key, Error: pairShareInterval(s.pc, ci)}, nil
}

func (s *KeyStrategy) exact(ctx context.Context, key model.Vertical) (DependencyCandidate, error) {
	e, err := s.CalculateError(ctx, key)
	if err != nil {
		return DependencyCandidate{}, err
	}
	return exactCandidate(key, e), nil
}

// RegisterDependency reports key as a unique column combination.
func (s *KeyStrategy) RegisterDependency(key model.Vertical, err float64) {
	s.pc.registerUCC(key, err)
}

// ShouldResample reports whether a larger sample for v pays off.
func (s *KeyStrategy) ShouldResample(v model.Vertical, boost float64) (bool, error) {
	return shouldResample(s.pc, v, boost)
}

// IsIrrelevantColumn always reports false.
func (s *KeyStrategy) IsIrrelevantColumn(int) bool { return false }

// IrrelevantColumns returns the empty vertical.
func (s *KeyStrategy) IrrelevantColumns() model.Vertical { return s.pc.Schema().EmptyVertical() }

// Clone returns a key strategy with the same thresholds.
func (s *KeyStrategy) Clone() DependencyStrategy {
	maxError, deviation := s.target()
	return NewKeyStrategy(s.pc, maxError, deviation)
}

// Format renders the key, e.g. "key[A B]".
func (s *KeyStrategy) Format(key model.Vertical) string {
	return "key" + key.String()
}

func (s *KeyStrategy) String() string {
	return fmt.Sprintf("key[g1'=%s]", s.band())
}

func exactCandidate(v model.Vertical, e float64) DependencyCandidate {
	return DependencyCandidate{Vertical: v, Error: sample.Point(e), Exact: true}
}

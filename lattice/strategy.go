package lattice

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/hupe1980/pyro/model"
	"github.com/hupe1980/pyro/sample"
)

var (
	// ErrUnknownErrorMeasure is returned for an unknown error measure name.
	ErrUnknownErrorMeasure = errors.New("lattice: unknown error measure")

	// ErrMissingColumnPLI is returned when the PLI of a single column is not cached.
	ErrMissingColumnPLI = errors.New("lattice: column pli missing from cache")
)

// ErrorMeasureG1Prime is the g1' error measure: the share of tuple pairs
// violating the dependency.
const ErrorMeasureG1Prime = "g1prime"

// errorQuantum is the granularity errors are rounded up to.
const errorQuantum = 32768

// DependencyStrategy defines the dependency kind a SearchSpace looks for.
type DependencyStrategy interface {
	// EnsureInitialized seeds the launch pads of s.
	EnsureInitialized(ctx context.Context, s *SearchSpace) error
	// CalculateError computes the exact error of v.
	CalculateError(ctx context.Context, v model.Vertical) (float64, error)
	// CreateDependencyCandidate estimates the error of v.
	CreateDependencyCandidate(ctx context.Context, v model.Vertical) (DependencyCandidate, error)
	// RegisterDependency reports a minimal dependency to the collector.
	RegisterDependency(v model.Vertical, err float64)
	// ShouldResample reports whether a larger sample for v pays off.
	ShouldResample(v model.Vertical, boost float64) (bool, error)
	// IsIrrelevantColumn reports whether the column may not appear in candidates.
	IsIrrelevantColumn(index int) bool
	// IrrelevantColumns returns all irrelevant columns.
	IrrelevantColumns() model.Vertical
	// MinNonDependencyError is the error above which a vertical is a non-dependency.
	MinNonDependencyError() float64
	// MaxDependencyError is the error up to which a vertical is a dependency.
	MaxDependencyError() float64
	// Clone returns a strategy with the same target and thresholds.
	Clone() DependencyStrategy
	// Format renders v as a dependency of this strategy.
	Format(v model.Vertical) string
	String() string
}

// NewStrategy returns the strategy for measure. A nil rhs selects the key
// strategy, any other column the FD strategy for that right-hand side.
func NewStrategy(pc *ProfilingContext, measure string, rhs *model.Column, maxError, deviation float64) (DependencyStrategy, error) {
	if measure != ErrorMeasureG1Prime {
		return nil, fmt.Errorf("%w: %q", ErrUnknownErrorMeasure, measure)
	}
	if rhs == nil {
		return NewKeyStrategy(pc, maxError, deviation), nil
	}
	return NewFDStrategy(pc, rhs, maxError, deviation), nil
}

// thresholds is the decision band shared by all strategies.
type thresholds struct {
	minNonDep float64
	maxDep    float64
}

func newThresholds(maxError, deviation float64) thresholds {
	return thresholds{minNonDep: maxError - deviation, maxDep: maxError + deviation}
}

func (t thresholds) MinNonDependencyError() float64 { return t.minNonDep }

func (t thresholds) MaxDependencyError() float64 { return t.maxDep }

func (t thresholds) target() (maxError, deviation float64) {
	return (t.maxDep + t.minNonDep) / 2, (t.maxDep - t.minNonDep) / 2
}

func (t thresholds) band() string {
	return fmt.Sprintf("[%.5f, %.5f]", t.minNonDep, t.maxDep)
}

// roundError rounds up to the next multiple of 1/32768.
func roundError(e float64) float64 {
	return math.Ceil(e*errorQuantum) / errorQuantum
}

// pairShare converts a number of tuple pairs into a rounded share of all pairs.
func pairShare(pc *ProfilingContext, pairs float64) float64 {
	total := pc.relation.NumTuplePairs()
	if total == 0 {
		return 0
	}
	return roundError(pairs / float64(total))
}

func pairShareInterval(pc *ProfilingContext, ci sample.ConfidenceInterval) sample.ConfidenceInterval {
	return sample.ConfidenceInterval{
		Min:  pairShare(pc, ci.Min),
		Mean: pairShare(pc, ci.Mean),
		Max:  pairShare(pc, ci.Max),
	}
}

// shouldResample reports whether a sample of size SampleSize*boost for v
// would be exact or at least double the sampling ratio of the current one.
func shouldResample(pc *ProfilingContext, v model.Vertical, boost float64) (bool, error) {
	if pc.cfg.SampleSize <= 0 || v.Arity() < 1 {
		return false, nil
	}
	smp := pc.AgreeSetSample(v)
	if smp == nil || smp.IsExact() {
		return false, nil
	}

	var nep float64
	if p, ok := pc.cache.Get(v); ok {
		nep = float64(p.Nep())
	} else {
		ratio, err := smp.EstimateAgreements(v)
		if err != nil {
			return false, err
		}
		nep = ratio * float64(pc.relation.NumTuplePairs())
	}

	boosted := float64(pc.cfg.SampleSize) * boost
	if nep <= boosted {
		return true, nil
	}
	return boosted/nep >= 2*smp.SamplingRatio(), nil
}

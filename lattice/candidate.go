package lattice

import (
	"cmp"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/pyro/model"
	"github.com/hupe1980/pyro/sample"
)

// ErrUnknownComparator is returned for an unknown launch pad order.
var ErrUnknownComparator = errors.New("lattice: unknown launch pad order")

// DependencyCandidate pairs a vertical with its (estimated) error.
type DependencyCandidate struct {
	Vertical model.Vertical
	Error    sample.ConfidenceInterval
	// Exact reports whether Error is the true error rather than an estimate.
	Exact bool
}

func (c DependencyCandidate) String() string {
	if c.Exact {
		return fmt.Sprintf("%s (error=%s, exact)", c.Vertical, c.Error)
	}
	return fmt.Sprintf("%s (error=%s)", c.Vertical, c.Error)
}

// Comparator orders launch pads. The candidate that compares lowest is
// processed first.
type Comparator func(a, b DependencyCandidate) int

// ArityErrorComparator orders by arity, then by mean error, then by columns.
func ArityErrorComparator(a, b DependencyCandidate) int {
	if c := cmp.Compare(a.Vertical.Arity(), b.Vertical.Arity()); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Error.Mean, b.Error.Mean); c != 0 {
		return c
	}
	return a.Vertical.Compare(b.Vertical)
}

// ErrorArityComparator orders by mean error, then by arity, then by columns.
func ErrorArityComparator(a, b DependencyCandidate) int {
	if c := cmp.Compare(a.Error.Mean, b.Error.Mean); c != 0 {
		return c
	}
	return a.Vertical.Compare(b.Vertical)
}

// ParseComparator returns the comparator named "arity" or "error".
func ParseComparator(name string) (Comparator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "arity":
		return ArityErrorComparator, nil
	case "error":
		return ErrorArityComparator, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownComparator, name)
}

// peakFirst puts the peak with the highest arity, then the highest mean
// error, on top.
func peakFirst(a, b DependencyCandidate) bool {
	if x, y := a.Vertical.Arity(), b.Vertical.Arity(); x != y {
		return x > y
	}
	return a.Error.Mean > b.Error.Mean
}

// minErrorFirst puts the candidate with the lowest minimum error, then the
// lowest arity, on top.
func minErrorFirst(a, b DependencyCandidate) bool {
	if a.Error.Min != b.Error.Min {
		return a.Error.Min < b.Error.Min
	}
	return a.Vertical.Arity() < b.Vertical.Arity()
}

// VerticalInfo records what is known about a visited vertical.
type VerticalInfo struct {
	IsDependency bool
	// IsExtremal marks minimal dependencies and maximal non-dependencies.
	IsExtremal bool
	Error      float64
}

// ForMinimalDependency describes a minimal dependency.
func ForMinimalDependency() VerticalInfo {
	return VerticalInfo{IsDependency: true, IsExtremal: true}
}

// ForMaximalNonDependency describes a maximal non-dependency.
func ForMaximalNonDependency() VerticalInfo {
	return VerticalInfo{IsExtremal: true}
}

// ForNonDependency describes a non-dependency that may not be maximal.
func ForNonDependency() VerticalInfo {
	return VerticalInfo{}
}

// IsPruningSubsets reports whether subsets of the vertical are decided.
func (i VerticalInfo) IsPruningSubsets() bool { return !i.IsDependency || i.IsExtremal }

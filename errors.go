package pyro

import (
	"errors"
	"fmt"

	"github.com/hupe1980/pyro/lattice"
	"github.com/hupe1980/pyro/plicache"
	"github.com/hupe1980/pyro/sample"
	"github.com/hupe1980/pyro/verticalmap"
)

var (
	// ErrUnknownComparator is returned for an unknown launch pad order.
	ErrUnknownComparator = lattice.ErrUnknownComparator

	// ErrUnknownErrorMeasure is returned for an unknown error measure.
	ErrUnknownErrorMeasure = lattice.ErrUnknownErrorMeasure

	// ErrUnsupportedCachingMethod is returned for an unknown caching method.
	ErrUnsupportedCachingMethod = plicache.ErrUnsupportedCachingMethod

	// ErrUnsupportedEvictionMethod is returned for an unknown eviction method.
	ErrUnsupportedEvictionMethod = plicache.ErrUnsupportedEvictionMethod

	// ErrEmptyRelation is returned when the relation has no columns.
	ErrEmptyRelation = errors.New("relation has no columns")

	// ErrInvariantViolated marks internal precondition failures. They point
	// to a defect rather than to bad input.
	ErrInvariantViolated = errors.New("invariant violated")
)

// ErrInvalidOption indicates an out-of-range configuration value.
type ErrInvalidOption struct {
	Name  string
	Value any
	cause error
}

func (e *ErrInvalidOption) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("invalid option %s=%v: %v", e.Name, e.Value, e.cause)
	}
	return fmt.Sprintf("invalid option %s=%v", e.Name, e.Value)
}

func (e *ErrInvalidOption) Unwrap() error { return e.cause }

func invalidOption(name string, value any, cause error) error {
	return &ErrInvalidOption{Name: name, Value: value, cause: cause}
}

var invariantErrors = []error{
	sample.ErrFocusNotContained,
	plicache.ErrNoOperands,
	verticalmap.ErrExclusionIntersects,
	lattice.ErrInconsistentTrickleDown,
	lattice.ErrMissingColumnPLI,
	lattice.ErrEstimateCheckFailed,
}

func translateError(err error) error {
	if err == nil {
		return nil
	}
	for _, target := range invariantErrors {
		if errors.Is(err, target) {
			return fmt.Errorf("%w: %w", ErrInvariantViolated, err)
		}
	}
	return err
}

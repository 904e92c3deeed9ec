package plicache

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedCachingMethod is returned for an unknown caching method.
	ErrUnsupportedCachingMethod = errors.New("plicache: unsupported caching method")

	// ErrUnsupportedEvictionMethod is returned for an unknown eviction method.
	ErrUnsupportedEvictionMethod = errors.New("plicache: unsupported eviction method")
)

// CachingMethod decides whether a composed PLI is retained.
type CachingMethod int

const (
	// CachingAll retains every composed PLI.
	CachingAll CachingMethod = iota
	// CachingNone never retains composed PLIs.
	CachingNone
	// CachingCoin retains a PLI with probability equal to the caching value.
	CachingCoin
	// CachingEntropy retains PLIs whose entropy reaches value * log(rows).
	CachingEntropy
	// CachingTrueUniquenessEntropy retains PLIs whose entropy reaches value * max column entropy.
	CachingTrueUniquenessEntropy
	// CachingMeanEntropyThreshold retains PLIs whose entropy reaches the mean column entropy.
	CachingMeanEntropyThreshold
	// CachingHeuristicQ2 retains PLIs whose entropy lies between the median and the max column entropy.
	CachingHeuristicQ2
	// CachingGini retains PLIs whose Gini impurity reaches the median column Gini impurity.
	CachingGini
	// CachingInvertedEntropy retains PLIs whose inverted entropy reaches the median column inverted entropy.
	CachingInvertedEntropy
)

var cachingMethodNames = map[CachingMethod]string{
	CachingAll:                   "all",
	CachingNone:                  "none",
	CachingCoin:                  "coin",
	CachingEntropy:               "entropy",
	CachingTrueUniquenessEntropy: "true-uniqueness-entropy",
	CachingMeanEntropyThreshold:  "mean-entropy-threshold",
	CachingHeuristicQ2:           "heuristic-q2",
	CachingGini:                  "gini",
	CachingInvertedEntropy:       "inverted-entropy",
}

func (m CachingMethod) String() string {
	if s, ok := cachingMethodNames[m]; ok {
		return s
	}
	return fmt.Sprintf("CachingMethod(%d)", int(m))
}

// Valid reports whether m is a known caching method.
func (m CachingMethod) Valid() bool {
	_, ok := cachingMethodNames[m]
	return ok
}

// ParseCachingMethod parses the name of a caching method.
func ParseCachingMethod(s string) (CachingMethod, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for m, name := range cachingMethodNames {
		if name == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedCachingMethod, s)
}

// EvictionMethod decides which multi-column entries leave the cache when the
// memory budget is exhausted.
type EvictionMethod int

const (
	// EvictionNone keeps the cache as is and declines to retain new entries.
	EvictionNone EvictionMethod = iota
	// EvictionMedianUsage drops entries used no more often than the median.
	EvictionMedianUsage
	// EvictionLeastUsed halves the evictable entries, least used first.
	EvictionLeastUsed
	// EvictionLowestEntropy halves the evictable entries, lowest entropy first.
	EvictionLowestEntropy
)

var evictionMethodNames = map[EvictionMethod]string{
	EvictionNone:          "none",
	EvictionMedianUsage:   "median-usage",
	EvictionLeastUsed:     "least-used",
	EvictionLowestEntropy: "lowest-entropy",
}

func (m EvictionMethod) String() string {
	if s, ok := evictionMethodNames[m]; ok {
		return s
	}
	return fmt.Sprintf("EvictionMethod(%d)", int(m))
}

// Valid reports whether m is a known eviction method.
func (m EvictionMethod) Valid() bool {
	_, ok := evictionMethodNames[m]
	return ok
}

// ParseEvictionMethod parses the name of an eviction method.
func ParseEvictionMethod(s string) (EvictionMethod, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for m, name := range evictionMethodNames {
		if name == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedEvictionMethod, s)
}

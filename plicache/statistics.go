package plicache

import (
	"log/slog"
	"slices"

	"github.com/hupe1980/pyro/model"
)

// minInformativeEntropy excludes (near) constant columns from medians.
const minInformativeEntropy = 0.001

// Statistics is a snapshot of column PLI measures taken once per relation.
type Statistics struct {
	MinEntropy            float64
	MeanEntropy           float64
	MedianEntropy         float64
	MedianGini            float64
	MedianInvertedEntropy float64

	// MaximumEntropy is the reference value of the caching method. Its
	// meaning depends on the method, see ComputeStatistics.
	MaximumEntropy float64
}

// ComputeStatistics derives the statistics snapshot of rel for method.
//
// MaximumEntropy is log(rows) for coin, none, all and entropy; the largest
// column entropy for true-uniqueness-entropy and heuristic-q2; the mean column
// entropy for mean-entropy-threshold; the median Gini impurity for gini and
// the median inverted entropy for inverted-entropy.
func ComputeStatistics(rel *model.Relation, method CachingMethod, logger *slog.Logger) Statistics {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var (
		s        Statistics
		maxEnt   float64
		entropy  []float64
		gini     []float64
		inverted []float64
	)
	for i, cd := range rel.Columns() {
		p := cd.PLI()
		e := p.Entropy()
		if i == 0 || e < s.MinEntropy {
			s.MinEntropy = e
		}
		if i == 0 || e > maxEnt {
			maxEnt = e
		}
		s.MeanEntropy += e
		if e >= minInformativeEntropy {
			entropy = append(entropy, e)
			gini = append(gini, p.GiniImpurity())
		}
		if p.InvertedEntropy() >= minInformativeEntropy {
			inverted = append(inverted, p.InvertedEntropy())
		}
	}
	if n := rel.NumColumns(); n > 0 {
		s.MeanEntropy /= float64(n)
	}
	s.MedianEntropy = median(entropy, "entropy", logger)
	s.MedianGini = median(gini, "gini", logger)
	s.MedianInvertedEntropy = median(inverted, "inverted entropy", logger)

	switch method {
	case CachingTrueUniquenessEntropy, CachingHeuristicQ2:
		s.MaximumEntropy = maxEnt
	case CachingMeanEntropyThreshold:
		s.MaximumEntropy = s.MeanEntropy
	case CachingGini:
		s.MaximumEntropy = s.MedianGini
	case CachingInvertedEntropy:
		s.MaximumEntropy = s.MedianInvertedEntropy
	default:
		s.MaximumEntropy = rel.MaximumEntropy()
	}
	return s
}

func median(values []float64, measure string, logger *slog.Logger) float64 {
	if len(values) <= 1 {
		logger.Warn("median over too few columns, using 0", "measure", measure, "values", len(values))
		return 0
	}
	values = slices.Clone(values)
	slices.Sort(values)
	n := len(values)
	if n%2 == 0 {
		return (values[n/2-1] + values[n/2]) / 2
	}
	return values[n/2]
}

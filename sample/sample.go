package sample

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/bits-and-blooms/bitset"

	"github.com/hupe1980/pyro/model"
	"github.com/hupe1980/pyro/pli"
)

// ErrFocusNotContained is returned when an estimate is requested for a
// vertical that does not contain the focus of the sample.
var ErrFocusNotContained = errors.New("sample: vertical does not contain the sample focus")

// stdDevSmoothing is the pseudo-count used when estimating the standard
// deviation of the hit ratio.
const stdDevSmoothing = 1.0

// Random is the source of randomness used for sampling.
// *math/rand/v2.Rand satisfies it.
type Random interface {
	Uint64N(n uint64) uint64
	IntN(n int) int
}

type agreeSetCount struct {
	agree *bitset.BitSet
	count uint64
}

// AgreeSetSample is an immutable sample of agree sets.
type AgreeSetSample struct {
	focus          model.Vertical
	sampleSize     uint64
	populationSize uint64
	numTuplePairs  uint64
	counts         []agreeSetCount
}

// Focus returns the vertical every sampled pair agrees on.
func (s *AgreeSetSample) Focus() model.Vertical { return s.focus }

// SampleSize returns the number of sampled pairs.
func (s *AgreeSetSample) SampleSize() uint64 { return s.sampleSize }

// PopulationSize returns the number of pairs the sample was drawn from.
func (s *AgreeSetSample) PopulationSize() uint64 { return s.populationSize }

// NumAgreeSets returns the number of distinct agree sets observed.
func (s *AgreeSetSample) NumAgreeSets() int { return len(s.counts) }

// IsExact reports whether the whole population was enumerated.
func (s *AgreeSetSample) IsExact() bool { return s.sampleSize == s.populationSize }

// SamplingRatio returns sampleSize / populationSize.
func (s *AgreeSetSample) SamplingRatio() float64 {
	if s.populationSize == 0 {
		return 1
	}
	return float64(s.sampleSize) / float64(s.populationSize)
}

// NumAgreeSupersets counts the sampled pairs agreeing on every column of agree.
func (s *AgreeSetSample) NumAgreeSupersets(agree model.Vertical) uint64 {
	var n uint64
	for _, c := range s.counts {
		if c.agree.IsSuperSet(agree.Bits()) {
			n += c.count
		}
	}
	return n
}

// NumAgreeSupersetsMixed counts the sampled pairs agreeing on every column of
// agree and on no column of disagree.
func (s *AgreeSetSample) NumAgreeSupersetsMixed(agree, disagree model.Vertical) uint64 {
	_, mixed := s.NumAgreeSupersetsExt(agree, disagree)
	return mixed
}

// NumAgreeSupersetsExt returns both the agreeing and the mixed count in one pass.
func (s *AgreeSetSample) NumAgreeSupersetsExt(agree, disagree model.Vertical) (agreeing, mixed uint64) {
	for _, c := range s.counts {
		if !c.agree.IsSuperSet(agree.Bits()) {
			continue
		}
		agreeing += c.count
		if c.agree.IntersectionCardinality(disagree.Bits()) == 0 {
			mixed += c.count
		}
	}
	return agreeing, mixed
}

// EstimateAgreements returns the estimated share of all tuple pairs of the
// relation that agree on agree.
func (s *AgreeSetSample) EstimateAgreements(agree model.Vertical) (float64, error) {
	if !agree.Contains(s.focus) {
		return 0, fmt.Errorf("%w: %s does not contain %s", ErrFocusNotContained, agree, s.focus)
	}
	if s.populationSize == 0 || s.sampleSize == 0 {
		return 0, nil
	}
	return s.ratioToRelationRatio(float64(s.NumAgreeSupersets(agree)) / float64(s.sampleSize)), nil
}

// EstimateAgreementsWithConfidence is EstimateAgreements with a confidence
// interval. A negative confidence yields a point estimate.
func (s *AgreeSetSample) EstimateAgreementsWithConfidence(agree model.Vertical, confidence float64) (ConfidenceInterval, error) {
	if !agree.Contains(s.focus) {
		return ConfidenceInterval{}, fmt.Errorf("%w: %s does not contain %s", ErrFocusNotContained, agree, s.focus)
	}
	if s.populationSize == 0 {
		return ConfidenceInterval{}, nil
	}
	return s.estimateGivenNumHits(s.NumAgreeSupersets(agree), confidence), nil
}

// EstimateMixed estimates the share of all tuple pairs that agree on agree
// and disagree on every column of disagree.
func (s *AgreeSetSample) EstimateMixed(agree, disagree model.Vertical, confidence float64) (ConfidenceInterval, error) {
	if !agree.Contains(s.focus) {
		return ConfidenceInterval{}, fmt.Errorf("%w: %s does not contain %s", ErrFocusNotContained, agree, s.focus)
	}
	if s.populationSize == 0 {
		return ConfidenceInterval{}, nil
	}
	return s.estimateGivenNumHits(s.NumAgreeSupersetsMixed(agree, disagree), confidence), nil
}

func (s *AgreeSetSample) estimateGivenNumHits(hits uint64, confidence float64) ConfidenceInterval {
	if s.sampleSize == 0 {
		return ConfidenceInterval{}
	}
	n := float64(s.sampleSize)
	sampleRatio := float64(hits) / n
	relationRatio := s.ratioToRelationRatio(sampleRatio)
	if s.IsExact() || confidence < 0 {
		return Point(relationRatio)
	}

	z := Probit((confidence + 1) / 2)
	smoothed := (float64(hits) + stdDevSmoothing/2) / (n + stdDevSmoothing)
	stdDev := math.Sqrt(smoothed * (1 - smoothed) / n)
	minRatio := math.Max(sampleRatio-z*stdDev, nonNegativeFraction(float64(hits), float64(s.numTuplePairs)))
	maxRatio := math.Min(sampleRatio+z*stdDev, 1)

	return ConfidenceInterval{
		Min:  s.ratioToRelationRatio(minRatio),
		Mean: relationRatio,
		Max:  s.ratioToRelationRatio(maxRatio),
	}
}

func (s *AgreeSetSample) ratioToRelationRatio(ratio float64) float64 {
	if s.numTuplePairs == 0 {
		return 0
	}
	return ratio * float64(s.populationSize) / float64(s.numTuplePairs)
}

func nonNegativeFraction(a, b float64) float64 {
	if a == 0 {
		return 0
	}
	return math.Max(math.SmallestNonzeroFloat64, a/b)
}

func (s *AgreeSetSample) String() string {
	return fmt.Sprintf("AgreeSetSample[focus=%s, %d/%d pairs, %d agree sets]",
		s.focus, s.sampleSize, s.populationSize, len(s.counts))
}

// counter accumulates agree sets keyed by their bit words.
type counter struct {
	index  map[string]int
	counts []agreeSetCount
}

func newCounter() *counter {
	return &counter{index: make(map[string]int)}
}

func (c *counter) add(agree *bitset.BitSet) {
	key := model.BitsKey(agree)
	if i, ok := c.index[key]; ok {
		c.counts[i].count++
		return
	}
	c.index[key] = len(c.counts)
	c.counts = append(c.counts, agreeSetCount{agree: agree, count: 1})
}

type agreeFunc func(a, b int) *bitset.BitSet

func agreeSetsOver(rel *model.Relation, prototype *bitset.BitSet, columns []int) agreeFunc {
	tables := make([][]int, len(columns))
	for i, c := range columns {
		tables[i] = rel.ProbingTable(c)
	}
	return func(a, b int) *bitset.BitSet {
		agree := prototype.Clone()
		for i, t := range tables {
			if v := t[a]; v != pli.SingletonValueID && v == t[b] {
				agree.Set(uint(columns[i]))
			}
		}
		return agree
	}
}

// CreateFocusedFor samples up to size tuple pairs from the clusters of
// restrictionPLI, the PLI of restriction. When size reaches the number of
// equivalence pairs of restrictionPLI, all pairs are enumerated and the
// sample is exact.
func CreateFocusedFor(rel *model.Relation, restriction model.Vertical, restrictionPLI *pli.PLI, size int, rng Random) *AgreeSetSample {
	agreeSet := agreeSetsOver(rel, restriction.Bits(), restriction.Invert().Indices())
	nep := restrictionPLI.Nep()
	sampleSize := min(uint64(max(size, 0)), nep)
	c := newCounter()
	clusters := restrictionPLI.Clusters()

	if sampleSize >= nep {
		for _, cluster := range clusters {
			for i := 0; i < len(cluster); i++ {
				for j := i + 1; j < len(cluster); j++ {
					c.add(agreeSet(cluster[i], cluster[j]))
				}
			}
		}
	} else {
		cumulative := make([]uint64, len(clusters))
		var running uint64
		for i, cluster := range clusters {
			running += pli.Pairs(len(cluster))
			cumulative[i] = running
		}
		for range sampleSize {
			r := rng.Uint64N(nep)
			idx := sort.Search(len(cumulative), func(i int) bool { return cumulative[i] > r })
			cluster := clusters[idx]
			a, b := distinctPair(rng, len(cluster))
			c.add(agreeSet(cluster[a], cluster[b]))
		}
	}

	return &AgreeSetSample{
		focus:          restriction,
		sampleSize:     sampleSize,
		populationSize: nep,
		numTuplePairs:  rel.NumTuplePairs(),
		counts:         c.counts,
	}
}

// CreateFor samples up to size tuple pairs of the whole relation. The sample
// has an empty focus. When size reaches the number of tuple pairs, all pairs
// are enumerated.
func CreateFor(rel *model.Relation, size int, rng Random) *AgreeSetSample {
	schema := rel.Schema()
	all := schema.FullVertical()
	agreeSet := agreeSetsOver(rel, schema.EmptyVertical().Bits(), all.Indices())
	pairs := rel.NumTuplePairs()
	sampleSize := min(uint64(max(size, 0)), pairs)
	c := newCounter()

	if sampleSize >= pairs {
		for a := 0; a < rel.NumRows(); a++ {
			for b := a + 1; b < rel.NumRows(); b++ {
				c.add(agreeSet(a, b))
			}
		}
	} else {
		for range sampleSize {
			a, b := distinctPair(rng, rel.NumRows())
			c.add(agreeSet(a, b))
		}
	}

	return &AgreeSetSample{
		focus:          schema.EmptyVertical(),
		sampleSize:     sampleSize,
		populationSize: pairs,
		numTuplePairs:  pairs,
		counts:         c.counts,
	}
}

// distinctPair draws two different indices in [0, n). n must be at least 2.
func distinctPair(rng Random, n int) (int, int) {
	a := rng.IntN(n)
	b := rng.IntN(n - 1)
	if b >= a {
		b++
	}
	return a, b
}

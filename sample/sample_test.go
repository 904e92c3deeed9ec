package sample

import (
	"math"
	"math/rand/v2"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/pyro/model"
)

func abcRelation(t *testing.T) *model.Relation {
	t.Helper()
	rel, err := model.NewRelationBuilder("abc", "A", "B", "C").
		AddRow("1", "1", "5").
		AddRow("1", "2", "5").
		AddRow("2", "3", "5").
		Build()
	require.NoError(t, err)
	return rel
}

func moduloRelation(t *testing.T, rows int) *model.Relation {
	t.Helper()
	b := model.NewRelationBuilder("mod", "X", "Y", "ID")
	for i := range rows {
		b.AddRow(strconv.Itoa(i%2), strconv.Itoa(i%4), strconv.Itoa(i))
	}
	rel, err := b.Build()
	require.NoError(t, err)
	return rel
}

func newRand() *rand.Rand { return rand.New(rand.NewPCG(7, 11)) }

func TestCreateFocusedFor_Exhaustive(t *testing.T) {
	rel := abcRelation(t)
	s := rel.Schema()
	a := s.VerticalOf(0)

	smp := CreateFocusedFor(rel, a, rel.ColumnData(0).PLI(), 10, newRand())
	assert.True(t, smp.IsExact())
	assert.Equal(t, uint64(1), smp.SampleSize())
	assert.Equal(t, uint64(1), smp.PopulationSize())
	assert.Equal(t, 1, smp.NumAgreeSets())

	est, err := smp.EstimateAgreements(a)
	require.NoError(t, err)
	assert.InDelta(t, 1.0/3.0, est, 1e-12)

	est, err = smp.EstimateAgreements(s.VerticalOf(0, 1))
	require.NoError(t, err)
	assert.Zero(t, est)

	ci, err := smp.EstimateMixed(a, s.VerticalOf(2), 0.9)
	require.NoError(t, err)
	assert.Equal(t, Point(0), ci)

	ci, err = smp.EstimateMixed(a, s.VerticalOf(1), 0.9)
	require.NoError(t, err)
	assert.InDelta(t, 1.0/3.0, ci.Mean, 1e-12)
	assert.True(t, ci.IsPoint())
}

func TestEstimate_FocusNotContained(t *testing.T) {
	rel := abcRelation(t)
	s := rel.Schema()
	smp := CreateFocusedFor(rel, s.VerticalOf(0), rel.ColumnData(0).PLI(), 10, newRand())

	_, err := smp.EstimateAgreements(s.VerticalOf(1))
	assert.ErrorIs(t, err, ErrFocusNotContained)
	_, err = smp.EstimateAgreementsWithConfidence(s.VerticalOf(1), 0.9)
	assert.ErrorIs(t, err, ErrFocusNotContained)
	_, err = smp.EstimateMixed(s.VerticalOf(2), s.VerticalOf(1), 0.9)
	assert.ErrorIs(t, err, ErrFocusNotContained)
}

func TestCreateFor_Unfocused(t *testing.T) {
	rel := abcRelation(t)
	s := rel.Schema()

	smp := CreateFor(rel, 100, newRand())
	assert.True(t, smp.IsExact())
	assert.True(t, smp.Focus().IsEmpty())
	assert.Equal(t, uint64(3), smp.NumAgreeSupersets(s.VerticalOf(2)))
	assert.Equal(t, uint64(1), smp.NumAgreeSupersets(s.VerticalOf(0)))

	agreeing, mixed := smp.NumAgreeSupersetsExt(s.VerticalOf(2), s.VerticalOf(0))
	assert.Equal(t, uint64(3), agreeing)
	assert.Equal(t, uint64(2), mixed)

	est, err := smp.EstimateAgreements(s.VerticalOf(2))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, est, 1e-12)
}

func TestCreateFor_Random(t *testing.T) {
	rel := moduloRelation(t, 40)

	smp := CreateFor(rel, 50, newRand())
	assert.False(t, smp.IsExact())
	assert.Equal(t, uint64(50), smp.SampleSize())
	assert.Equal(t, rel.NumTuplePairs(), smp.PopulationSize())
	// ID is unique, so no sampled pair agrees on it
	assert.Zero(t, smp.NumAgreeSupersets(rel.Schema().VerticalOf(2)))
}

func TestCreateFocusedFor_ConfidenceInterval(t *testing.T) {
	rel := moduloRelation(t, 200)
	s := rel.Schema()
	x := s.VerticalOf(0)
	xPLI := rel.ColumnData(0).PLI()
	require.Equal(t, uint64(9900), xPLI.Nep())

	smp := CreateFocusedFor(rel, x, xPLI, 50, newRand())
	require.False(t, smp.IsExact())
	assert.InDelta(t, 50.0/9900.0, smp.SamplingRatio(), 1e-12)

	ci, err := smp.EstimateAgreementsWithConfidence(x, 0.9)
	require.NoError(t, err)
	assert.InDelta(t, 9900.0/19900.0, ci.Mean, 1e-12)
	assert.Less(t, ci.Min, ci.Mean)
	assert.InDelta(t, ci.Mean, ci.Max, 1e-12)

	xy := s.VerticalOf(0, 1)
	ci, err = smp.EstimateAgreementsWithConfidence(xy, 0.9)
	require.NoError(t, err)
	assert.LessOrEqual(t, ci.Min, ci.Mean)
	assert.LessOrEqual(t, ci.Mean, ci.Max)
	assert.GreaterOrEqual(t, ci.Min, 0.0)

	point, err := smp.EstimateAgreementsWithConfidence(xy, -1)
	require.NoError(t, err)
	assert.True(t, point.IsPoint())
}

func TestCreateFocusedFor_Convergence(t *testing.T) {
	rel := moduloRelation(t, 200)
	s := rel.Schema()
	x := s.VerticalOf(0)
	xy := s.VerticalOf(0, 1)
	exact := 4900.0 / 19900.0

	width := math.Inf(1)
	for _, size := range []int{100, 1000, 5000} {
		smp := CreateFocusedFor(rel, x, rel.ColumnData(0).PLI(), size, newRand())
		ci, err := smp.EstimateAgreementsWithConfidence(xy, 0.95)
		require.NoError(t, err)
		assert.Less(t, ci.Width(), width, "size %d", size)
		width = ci.Width()
	}

	smp := CreateFocusedFor(rel, x, rel.ColumnData(0).PLI(), 10000, newRand())
	require.True(t, smp.IsExact())
	ci, err := smp.EstimateAgreementsWithConfidence(xy, 0.95)
	require.NoError(t, err)
	assert.Zero(t, ci.Width())
	assert.InDelta(t, exact, ci.Mean, 1e-12)
}

func TestEmptyPopulation(t *testing.T) {
	rel, err := model.NewRelationBuilder("r", "A").AddRow("1").AddRow("2").Build()
	require.NoError(t, err)
	a := rel.Schema().VerticalOf(0)

	smp := CreateFocusedFor(rel, a, rel.ColumnData(0).PLI(), 10, newRand())
	assert.True(t, smp.IsExact())

	est, err := smp.EstimateAgreements(a)
	require.NoError(t, err)
	assert.Zero(t, est)

	ci, err := smp.EstimateAgreementsWithConfidence(a, 0.9)
	require.NoError(t, err)
	assert.Equal(t, ConfidenceInterval{}, ci)
}

func TestProbit(t *testing.T) {
	assert.InDelta(t, 0, Probit(0.5), 1e-12)
	assert.InDelta(t, 0.8416, Probit(0.8), 1e-3)
	assert.InDelta(t, 1.2816, Probit(0.9), 1e-3)
	assert.InDelta(t, 1.6449, Probit(0.95), 1e-3)
	assert.InDelta(t, 1.9600, Probit(0.975), 1e-3)
	assert.InDelta(t, -1.9600, Probit(0.025), 1e-3)
	assert.True(t, math.IsInf(Probit(1), 1))
	assert.True(t, math.IsInf(Probit(0), -1))
}

func TestConfidenceInterval(t *testing.T) {
	ci := ConfidenceInterval{Min: 0.1, Mean: 0.2, Max: 0.4}
	scaled := ci.Multiply(10)
	assert.InDelta(t, 1, scaled.Min, 1e-12)
	assert.InDelta(t, 4, scaled.Max, 1e-12)
	assert.False(t, ci.IsPoint())
	assert.True(t, Point(3).IsPoint())
	assert.Equal(t, "0.500000", Point(0.5).String())
}

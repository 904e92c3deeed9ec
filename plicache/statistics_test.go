package plicache

import (
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/pyro/model"
)

func TestComputeStatistics(t *testing.T) {
	b := model.NewRelationBuilder("stats", "K", "A", "B", "ID")
	for i := range 8 {
		b.AddRow("k", strconv.Itoa(i%2), strconv.Itoa(i%4), strconv.Itoa(i))
	}
	rel, err := b.Build()
	require.NoError(t, err)

	ln2 := math.Log(2)
	s := ComputeStatistics(rel, CachingEntropy, nil)
	assert.InDelta(t, 0, s.MinEntropy, 1e-9)
	assert.InDelta(t, 1.5*ln2, s.MeanEntropy, 1e-9)
	assert.InDelta(t, 2*ln2, s.MedianEntropy, 1e-9)
	assert.InDelta(t, 0.75, s.MedianGini, 1e-9)
	assert.InDelta(t, math.Log(8), s.MaximumEntropy, 1e-9)

	tests := []struct {
		method CachingMethod
		want   float64
	}{
		{CachingAll, math.Log(8)},
		{CachingTrueUniquenessEntropy, 3 * ln2},
		{CachingHeuristicQ2, 3 * ln2},
		{CachingMeanEntropyThreshold, 1.5 * ln2},
		{CachingGini, 0.75},
		{CachingInvertedEntropy, s.MedianInvertedEntropy},
	}
	for _, tt := range tests {
		t.Run(tt.method.String(), func(t *testing.T) {
			got := ComputeStatistics(rel, tt.method, nil)
			assert.InDelta(t, tt.want, got.MaximumEntropy, 1e-9)
		})
	}
}

func TestComputeStatistics_TooFewColumns(t *testing.T) {
	rel, err := model.NewRelationBuilder("single", "A").
		AddRow("1").
		AddRow("2").
		Build()
	require.NoError(t, err)

	s := ComputeStatistics(rel, CachingAll, nil)
	assert.Zero(t, s.MedianEntropy)
	assert.Zero(t, s.MedianGini)
	assert.InDelta(t, math.Log(2), s.MaximumEntropy, 1e-12)
}

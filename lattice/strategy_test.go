package lattice

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/pyro/model"
	"github.com/hupe1980/pyro/plicache"
)

// abc is the relation A=[1 1 2], B=[1 2 3], C=[5 5 5].
func abc(t *testing.T) *model.Relation {
	t.Helper()
	rel, err := model.NewRelationBuilder("abc", "A", "B", "C").
		AddRow("1", "1", "5").
		AddRow("1", "2", "5").
		AddRow("2", "3", "5").
		Build()
	require.NoError(t, err)
	return rel
}

// residues builds 60 rows with A=i%2, B=i%3, C=i%5, D=i%4, E=i%7.
func residues(t *testing.T) *model.Relation {
	t.Helper()
	b := model.NewRelationBuilder("residues", "A", "B", "C", "D", "E")
	for i := range 60 {
		b.AddRow(strconv.Itoa(i%2), strconv.Itoa(i%3), strconv.Itoa(i%5), strconv.Itoa(i%4), strconv.Itoa(i%7))
	}
	rel, err := b.Build()
	require.NoError(t, err)
	return rel
}

func newContext(t *testing.T, rel *model.Relation, cfg Config, collector Collector) *ProfilingContext {
	t.Helper()
	cache, err := plicache.New(rel)
	require.NoError(t, err)
	return NewProfilingContext(cfg, cache, collector, WithRandom(NewLockedRand(7)))
}

func exactConfig() Config {
	cfg := DefaultConfig()
	cfg.SampleSize = 0
	return cfg
}

func TestFDStrategyCalculateError(t *testing.T) {
	ctx := context.Background()
	rel := abc(t)
	pc := newContext(t, rel, exactConfig(), nil)
	s := rel.Schema()

	fd := NewFDStrategy(pc, s.Column(0), 0.01, 0)

	tests := []struct {
		lhs  model.Vertical
		want float64
	}{
		{s.EmptyVertical(), roundError(2.0 / 3)},
		{s.VerticalOf(1), 0},
		{s.VerticalOf(2), roundError(2.0 / 3)},
		{s.VerticalOf(1, 2), 0},
	}
	for _, tt := range tests {
		t.Run(fd.Format(tt.lhs), func(t *testing.T) {
			got, err := fd.CalculateError(ctx, tt.lhs)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}

	constant := NewFDStrategy(pc, s.Column(2), 0.01, 0)
	got, err := constant.CalculateError(ctx, s.EmptyVertical())
	require.NoError(t, err)
	assert.Zero(t, got)
}

func TestFDStrategyJointPLI(t *testing.T) {
	ctx := context.Background()
	rel := residues(t)
	pc := newContext(t, rel, exactConfig(), nil)
	s := rel.Schema()

	fd := NewFDStrategy(pc, s.Column(0), 0.01, 0)
	want := roundError(300.0 / 1770)

	probed, err := fd.CalculateError(ctx, s.VerticalOf(1))
	require.NoError(t, err)
	assert.InDelta(t, want, probed, 1e-12)

	_, err = pc.Cache().GetOrCreateFor(ctx, s.VerticalOf(0, 1))
	require.NoError(t, err)

	joint, err := fd.CalculateError(ctx, s.VerticalOf(1))
	require.NoError(t, err)
	assert.InDelta(t, want, joint, 1e-12)
}

func TestKeyStrategyCalculateError(t *testing.T) {
	ctx := context.Background()
	rel := abc(t)
	pc := newContext(t, rel, exactConfig(), nil)
	s := rel.Schema()
	key := NewKeyStrategy(pc, 0.01, 0)

	tests := []struct {
		key  model.Vertical
		want float64
	}{
		{s.EmptyVertical(), 1},
		{s.VerticalOf(0), roundError(1.0 / 3)},
		{s.VerticalOf(1), 0},
		{s.VerticalOf(2), 1},
		{s.VerticalOf(0, 2), roundError(1.0 / 3)},
	}
	for _, tt := range tests {
		t.Run(key.Format(tt.key), func(t *testing.T) {
			got, err := key.CalculateError(ctx, tt.key)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestCreateDependencyCandidate(t *testing.T) {
	ctx := context.Background()
	rel := abc(t)
	s := rel.Schema()

	t.Run("exact without samples", func(t *testing.T) {
		pc := newContext(t, rel, exactConfig(), nil)
		fd := NewFDStrategy(pc, s.Column(1), 0.01, 0)
		c, err := fd.CreateDependencyCandidate(ctx, s.VerticalOf(0, 2))
		require.NoError(t, err)
		assert.True(t, c.Exact)
		assert.InDelta(t, roundError(1.0/3), c.Error.Mean, 1e-12)
	})

	t.Run("estimated from samples", func(t *testing.T) {
		pc := newContext(t, rel, DefaultConfig(), nil)
		require.Equal(t, 3, pc.NumSamples())

		fd := NewFDStrategy(pc, s.Column(1), 0.01, 0)
		c, err := fd.CreateDependencyCandidate(ctx, s.VerticalOf(0, 2))
		require.NoError(t, err)
		assert.False(t, c.Exact)
		assert.InDelta(t, roundError(1.0/3), c.Error.Mean, 1e-12)

		key := NewKeyStrategy(pc, 0.01, 0)
		c, err = key.CreateDependencyCandidate(ctx, s.VerticalOf(0, 2))
		require.NoError(t, err)
		assert.False(t, c.Exact)
		assert.InDelta(t, roundError(1.0/3), c.Error.Mean, 1e-12)
	})

	t.Run("single columns are exact", func(t *testing.T) {
		pc := newContext(t, rel, DefaultConfig(), nil)
		key := NewKeyStrategy(pc, 0.01, 0)
		c, err := key.CreateDependencyCandidate(ctx, s.VerticalOf(0))
		require.NoError(t, err)
		assert.True(t, c.Exact)
	})
}

func TestShouldResample(t *testing.T) {
	rel := abc(t)
	s := rel.Schema()

	pc := newContext(t, rel, exactConfig(), nil)
	ok, err := NewKeyStrategy(pc, 0.01, 0).ShouldResample(s.VerticalOf(0, 1), 1)
	require.NoError(t, err)
	assert.False(t, ok, "sampling disabled")

	pc = newContext(t, rel, DefaultConfig(), nil)
	key := NewKeyStrategy(pc, 0.01, 0)
	ok, err = key.ShouldResample(s.EmptyVertical(), 1)
	require.NoError(t, err)
	assert.False(t, ok, "empty vertical")

	ok, err = key.ShouldResample(s.VerticalOf(0, 1), 1)
	require.NoError(t, err)
	assert.False(t, ok, "exact samples")
}

func TestShouldResampleInexactSample(t *testing.T) {
	rel := residues(t)
	s := rel.Schema()
	cfg := DefaultConfig()
	cfg.SampleSize = 100
	pc := newContext(t, rel, cfg, nil)
	key := NewKeyStrategy(pc, 0, 0)

	// The B sample covers 100 of 570 pairs, and [A B] agrees on at most 570.
	ok, err := key.ShouldResample(s.VerticalOf(0, 1), 10)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestShouldResampleRatioWouldNotDouble(t *testing.T) {
	rel := residues(t)
	s := rel.Schema()
	cfg := DefaultConfig()
	cfg.SampleSize = 100
	pc := newContext(t, rel, cfg, nil)
	key := NewKeyStrategy(pc, 0, 0)
	ad := s.VerticalOf(0, 3)

	// The D sample covers 100 of 420 pairs, and 100/420 does not double its ratio.
	best := pc.AgreeSetSample(ad)
	require.NotNil(t, best)
	assert.False(t, best.IsExact())
	assert.True(t, best.Focus().Equal(s.VerticalOf(3)))

	ok, err := key.ShouldResample(ad, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = key.ShouldResample(ad, 2.5)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewStrategy(t *testing.T) {
	rel := abc(t)
	pc := newContext(t, rel, exactConfig(), nil)
	s := rel.Schema()

	st, err := NewStrategy(pc, ErrorMeasureG1Prime, nil, 0.05, 0.01)
	require.NoError(t, err)
	assert.IsType(t, &KeyStrategy{}, st)
	assert.InDelta(t, 0.04, st.MinNonDependencyError(), 1e-12)
	assert.InDelta(t, 0.06, st.MaxDependencyError(), 1e-12)
	assert.True(t, st.IrrelevantColumns().IsEmpty())
	assert.Equal(t, "key[A B]", st.Format(s.VerticalOf(0, 1)))

	st, err = NewStrategy(pc, ErrorMeasureG1Prime, s.Column(2), 0.05, 0.01)
	require.NoError(t, err)
	fd, ok := st.(*FDStrategy)
	require.True(t, ok)
	assert.Equal(t, "C", fd.RHS().Name())
	assert.True(t, fd.IsIrrelevantColumn(2))
	assert.False(t, fd.IsIrrelevantColumn(0))
	assert.Equal(t, "[A B]->C", fd.Format(s.VerticalOf(0, 1)))
	assert.Contains(t, fd.String(), "RHS=C")

	clone := fd.Clone()
	assert.InDelta(t, fd.MinNonDependencyError(), clone.MinNonDependencyError(), 1e-12)
	assert.InDelta(t, fd.MaxDependencyError(), clone.MaxDependencyError(), 1e-12)

	_, err = NewStrategy(pc, "g3", nil, 0.05, 0)
	assert.ErrorIs(t, err, ErrUnknownErrorMeasure)
}

func TestRoundError(t *testing.T) {
	assert.Zero(t, roundError(0))
	assert.Equal(t, 1.0/errorQuantum, roundError(1e-9))
	assert.Equal(t, 1.0, roundError(1))
	assert.GreaterOrEqual(t, roundError(1.0/3), 1.0/3)
}

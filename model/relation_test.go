package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelationBuilder(t *testing.T) {
	rel, err := NewRelationBuilder("r", "A", "B", "C").
		AddRow("1", "1", "5").
		AddRow("1", "2", "5").
		AddRow("2", "3", "5").
		Build()
	require.NoError(t, err)

	assert.Equal(t, 3, rel.NumRows())
	assert.Equal(t, 3, rel.NumColumns())
	assert.Equal(t, uint64(3), rel.NumTuplePairs())

	assert.Equal(t, [][]int{{0, 1}}, rel.ColumnData(0).PLI().Clusters())
	assert.Empty(t, rel.ColumnData(1).PLI().Clusters())
	assert.Equal(t, [][]int{{0, 1, 2}}, rel.ColumnData(2).PLI().Clusters())

	assert.Equal(t, []int{1, 1, 0}, rel.ProbingTable(0))
	assert.Equal(t, 0, rel.ColumnData(1).ProbingTableValue(2))
}

func TestRelationBuilder_Nulls(t *testing.T) {
	build := func(eq bool) *Relation {
		rel, err := NewRelationBuilder("r", "A").
			WithNullValue("").
			WithNullEqualsNull(eq).
			AddRow("").
			AddRow("").
			AddRow("x").
			Build()
		require.NoError(t, err)
		return rel
	}

	eq := build(true)
	assert.Equal(t, [][]int{{0, 1}}, eq.ColumnData(0).PLI().Clusters())
	assert.Equal(t, uint64(2), eq.ColumnData(0).NullRows().GetCardinality())

	neq := build(false)
	assert.Empty(t, neq.ColumnData(0).PLI().Clusters())
	assert.True(t, neq.ColumnData(0).NullRows().Contains(1))
}

func TestRelationBuilder_RowWidth(t *testing.T) {
	_, err := NewRelationBuilder("r", "A", "B").AddRow("1").Build()
	assert.ErrorIs(t, err, ErrRowWidth)

	_, err = NewRelationBuilder("r").Build()
	assert.ErrorIs(t, err, ErrNoColumns)
}

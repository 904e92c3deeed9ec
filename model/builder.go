package model

import (
	"fmt"

	"github.com/hupe1980/pyro/pli"
)

// RelationBuilder collects string rows and dictionary-encodes them into a Relation.
//
// Example:
//
//	rel, err := model.NewRelationBuilder("people", "name", "zip", "city").
//	    AddRow("ann", "10115", "berlin").
//	    AddRow("bob", "10115", "berlin").
//	    Build()
type RelationBuilder struct {
	schema         *Schema
	nullValue      *string
	nullEqualsNull bool
	dictionaries   []map[string]int
	columns        [][]int
	err            error
}

// NewRelationBuilder creates a builder for a relation with the given column names.
func NewRelationBuilder(name string, columnNames ...string) *RelationBuilder {
	b := &RelationBuilder{
		schema:         NewSchema(name, columnNames...),
		nullEqualsNull: true,
		dictionaries:   make([]map[string]int, len(columnNames)),
		columns:        make([][]int, len(columnNames)),
	}
	for i := range b.dictionaries {
		b.dictionaries[i] = make(map[string]int)
	}
	return b
}

// WithNullValue marks cells equal to s as null.
func (b *RelationBuilder) WithNullValue(s string) *RelationBuilder {
	b.nullValue = &s
	return b
}

// WithNullEqualsNull controls whether two nulls are considered equal.
// When false, every null is a singleton.
func (b *RelationBuilder) WithNullEqualsNull(eq bool) *RelationBuilder {
	b.nullEqualsNull = eq
	return b
}

// AddRow appends a tuple. A width mismatch is reported by Build.
func (b *RelationBuilder) AddRow(values ...string) *RelationBuilder {
	if b.err != nil {
		return b
	}
	if len(values) != len(b.columns) {
		b.err = fmt.Errorf("%w: row %d has %d values, want %d",
			ErrRowWidth, b.NumRows(), len(values), len(b.columns))
		return b
	}
	for i, v := range values {
		b.columns[i] = append(b.columns[i], b.encode(i, v))
	}
	return b
}

// NumRows returns the number of rows added so far.
func (b *RelationBuilder) NumRows() int {
	if len(b.columns) == 0 {
		return 0
	}
	return len(b.columns[0])
}

// Build finalizes the relation.
func (b *RelationBuilder) Build() (*Relation, error) {
	if b.err != nil {
		return nil, b.err
	}
	return NewRelation(b.schema, b.columns, b.nullEqualsNull)
}

func (b *RelationBuilder) encode(col int, v string) int {
	if b.nullValue != nil && v == *b.nullValue {
		return pli.NullValueID
	}
	dict := b.dictionaries[col]
	id, ok := dict[v]
	if !ok {
		id = len(dict) + 1
		dict[v] = id
	}
	return id
}

package model

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
)

// Column is a single attribute of a schema.
type Column struct {
	schema *Schema
	name   string
	index  int
}

// Name returns the column name.
func (c *Column) Name() string { return c.name }

// Index returns the position of the column in its schema.
func (c *Column) Index() int { return c.index }

// Schema returns the owning schema.
func (c *Column) Schema() *Schema { return c.schema }

// Vertical returns the single-column vertical of c.
func (c *Column) Vertical() Vertical { return c.schema.VerticalOf(c.index) }

// String returns the column name.
func (c *Column) String() string { return c.name }

// Schema is an ordered list of columns.
type Schema struct {
	name    string
	columns []*Column
	byName  map[string]*Column
}

// NewSchema creates a schema with the given column names.
// Duplicate names get a positional suffix so that lookups stay unambiguous.
func NewSchema(name string, columnNames ...string) *Schema {
	s := &Schema{
		name:    name,
		columns: make([]*Column, len(columnNames)),
		byName:  make(map[string]*Column, len(columnNames)),
	}
	for i, n := range columnNames {
		if _, dup := s.byName[n]; dup || n == "" {
			n = fmt.Sprintf("%s#%d", n, i)
		}
		c := &Column{schema: s, name: n, index: i}
		s.columns[i] = c
		s.byName[n] = c
	}
	return s
}

// Name returns the schema (relation) name.
func (s *Schema) Name() string { return s.name }

// NumColumns returns the number of columns.
func (s *Schema) NumColumns() int { return len(s.columns) }

// Columns returns all columns in order. The slice must not be modified.
func (s *Schema) Columns() []*Column { return s.columns }

// Column returns the column at index i.
func (s *Schema) Column(i int) *Column { return s.columns[i] }

// ColumnByName looks up a column by name.
func (s *Schema) ColumnByName(name string) (*Column, bool) {
	c, ok := s.byName[name]
	return c, ok
}

// EmptyVertical returns the vertical without columns.
func (s *Schema) EmptyVertical() Vertical {
	return Vertical{schema: s, bits: bitset.New(uint(len(s.columns)))}
}

// FullVertical returns the vertical holding every column.
func (s *Schema) FullVertical() Vertical {
	b := bitset.New(uint(len(s.columns)))
	b.FlipRange(0, uint(len(s.columns)))
	return Vertical{schema: s, bits: b}
}

// VerticalOf returns the vertical holding the given column indices.
func (s *Schema) VerticalOf(indices ...int) Vertical {
	b := bitset.New(uint(len(s.columns)))
	for _, i := range indices {
		b.Set(uint(i))
	}
	return Vertical{schema: s, bits: b}
}

// VerticalFromBits wraps a copy of b as a vertical of s.
func (s *Schema) VerticalFromBits(b *bitset.BitSet) Vertical {
	c := bitset.New(uint(len(s.columns)))
	for i, ok := b.NextSet(0); ok && i < uint(len(s.columns)); i, ok = b.NextSet(i + 1) {
		c.Set(i)
	}
	return Vertical{schema: s, bits: c}
}

// VerticalOfNames returns the vertical holding the named columns.
func (s *Schema) VerticalOfNames(names ...string) (Vertical, error) {
	indices := make([]int, 0, len(names))
	for _, n := range names {
		c, ok := s.byName[n]
		if !ok {
			return Vertical{}, fmt.Errorf("%w: %q", ErrUnknownColumn, n)
		}
		indices = append(indices, c.index)
	}
	return s.VerticalOf(indices...), nil
}

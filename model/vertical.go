package model

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bitset"
)

// Vertical is an immutable set of columns of a schema.
//
// The zero value is not usable; verticals are created through a Schema.
// All operations return new verticals and never modify the receiver.
type Vertical struct {
	schema *Schema
	bits   *bitset.BitSet
}

// Schema returns the schema the vertical belongs to.
func (v Vertical) Schema() *Schema { return v.schema }

// Bits exposes the underlying column bitset. It must not be modified.
func (v Vertical) Bits() *bitset.BitSet { return v.bits }

// Arity returns the number of columns in the vertical.
func (v Vertical) Arity() int { return int(v.bits.Count()) }

// IsEmpty reports whether the vertical contains no columns.
func (v Vertical) IsEmpty() bool { return v.bits.None() }

// ContainsColumn reports whether the column with the given index is part of v.
func (v Vertical) ContainsColumn(index int) bool {
	return index >= 0 && v.bits.Test(uint(index))
}

// Contains reports whether other is a subset of v.
func (v Vertical) Contains(other Vertical) bool {
	return v.bits.IsSuperSet(other.bits)
}

// Intersects reports whether v and other share at least one column.
func (v Vertical) Intersects(other Vertical) bool {
	return v.bits.IntersectionCardinality(other.bits) > 0
}

// Union returns v ∪ other.
func (v Vertical) Union(other Vertical) Vertical {
	return v.derive(v.bits.Union(other.bits))
}

// UnionColumn returns v with the given column added.
func (v Vertical) UnionColumn(index int) Vertical {
	b := v.bits.Clone()
	b.Set(uint(index))
	return v.derive(b)
}

// Project returns v ∩ other.
func (v Vertical) Project(other Vertical) Vertical {
	return v.derive(v.bits.Intersection(other.bits))
}

// Without returns v \ other.
func (v Vertical) Without(other Vertical) Vertical {
	return v.derive(v.bits.Difference(other.bits))
}

// WithoutColumn returns v with the given column removed.
func (v Vertical) WithoutColumn(index int) Vertical {
	b := v.bits.Clone()
	b.Clear(uint(index))
	return v.derive(b)
}

// Invert returns the complement of v within the schema.
func (v Vertical) Invert() Vertical {
	return v.derive(v.bits.Complement())
}

// InvertWithin returns the complement of v within scope.
func (v Vertical) InvertWithin(scope Vertical) Vertical {
	return v.derive(v.bits.SymmetricDifference(scope.bits))
}

// Equal reports whether both verticals contain the same columns.
func (v Vertical) Equal(other Vertical) bool {
	return v.bits.Equal(other.bits)
}

// Indices returns the column indices in ascending order.
func (v Vertical) Indices() []int {
	out := make([]int, 0, v.bits.Count())
	for i, ok := v.bits.NextSet(0); ok; i, ok = v.bits.NextSet(i + 1) {
		out = append(out, int(i))
	}
	return out
}

// Columns returns the columns of v in schema order.
func (v Vertical) Columns() []*Column {
	out := make([]*Column, 0, v.bits.Count())
	for i, ok := v.bits.NextSet(0); ok; i, ok = v.bits.NextSet(i + 1) {
		out = append(out, v.schema.columns[i])
	}
	return out
}

// Parents returns all verticals obtained by removing exactly one column.
// Verticals with arity < 2 have no parents.
func (v Vertical) Parents() []Vertical {
	if v.Arity() < 2 {
		return nil
	}
	parents := make([]Vertical, 0, v.Arity())
	for i, ok := v.bits.NextSet(0); ok; i, ok = v.bits.NextSet(i + 1) {
		parents = append(parents, v.WithoutColumn(int(i)))
	}
	return parents
}

// Compare orders verticals by arity and then by their bits: of two verticals
// with equal arity, the one that does not hold the lowest differing column
// sorts first.
func (v Vertical) Compare(other Vertical) int {
	if a, b := v.Arity(), other.Arity(); a != b {
		if a < b {
			return -1
		}
		return 1
	}
	diff := v.bits.SymmetricDifference(other.bits)
	first, ok := diff.NextSet(0)
	if !ok {
		return 0
	}
	if other.bits.Test(first) {
		return -1
	}
	return 1
}

// Key returns a compact string usable as a Go map key.
func (v Vertical) Key() string {
	return BitsKey(v.bits)
}

// BitsKey encodes the words of b as a string usable as a Go map key.
func BitsKey(b *bitset.BitSet) string {
	words := b.Words()
	buf := make([]byte, 8*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint64(buf[8*i:], w)
	}
	return string(buf)
}

// String renders the vertical with column names, e.g. "[A B]".
func (v Vertical) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for n, c := range v.Columns() {
		if n > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(c.name)
	}
	sb.WriteByte(']')
	return sb.String()
}

// IndexString renders the vertical with column indices, e.g. "[0,1]".
func (v Vertical) IndexString() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for n, i := range v.Indices() {
		if n > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(i))
	}
	sb.WriteByte(']')
	return sb.String()
}

func (v Vertical) derive(b *bitset.BitSet) Vertical {
	return Vertical{schema: v.schema, bits: b}
}

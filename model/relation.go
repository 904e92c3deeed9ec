package model

import (
	"math"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/pyro/pli"
)

// ColumnData holds the encoded values of a single column.
type ColumnData struct {
	column  *Column
	pli     *pli.PLI
	probing []int
	nulls   *roaring.Bitmap
}

// Column returns the described column.
func (d *ColumnData) Column() *Column { return d.column }

// PLI returns the single-column position list index.
func (d *ColumnData) PLI() *pli.PLI { return d.pli }

// ProbingTable maps each row to its cluster id (0 for singletons).
// The slice must not be modified.
func (d *ColumnData) ProbingTable() []int { return d.probing }

// ProbingTableValue returns the cluster id of row.
func (d *ColumnData) ProbingTableValue(row int) int { return d.probing[row] }

// NullRows returns the rows holding a null value.
func (d *ColumnData) NullRows() *roaring.Bitmap { return d.nulls }

// Relation is a columnar relation with precomputed single-column PLIs.
type Relation struct {
	schema  *Schema
	columns []*ColumnData
	numRows int
}

// Schema returns the relation schema.
func (r *Relation) Schema() *Schema { return r.schema }

// NumRows returns the number of tuples.
func (r *Relation) NumRows() int { return r.numRows }

// NumColumns returns the number of columns.
func (r *Relation) NumColumns() int { return len(r.columns) }

// NumTuplePairs returns the number of unordered pairs of distinct tuples.
func (r *Relation) NumTuplePairs() uint64 { return pli.Pairs(r.numRows) }

// ColumnData returns the data of the column at index i.
func (r *Relation) ColumnData(i int) *ColumnData { return r.columns[i] }

// Columns returns the data of every column in schema order.
func (r *Relation) Columns() []*ColumnData { return r.columns }

// ProbingTable returns the probing table of column i.
func (r *Relation) ProbingTable(i int) []int { return r.columns[i].probing }

// MaximumEntropy returns the entropy of a relation without duplicate tuples.
func (r *Relation) MaximumEntropy() float64 {
	if r.numRows == 0 {
		return 0
	}
	return math.Log(float64(r.numRows))
}

// NewRelation builds a relation from dictionary-encoded columns. columns[i][row]
// is the value id of the row in column i; pli.NullValueID marks nulls.
func NewRelation(schema *Schema, columns [][]int, nullEqualsNull bool) (*Relation, error) {
	if schema.NumColumns() == 0 {
		return nil, ErrNoColumns
	}
	if len(columns) != schema.NumColumns() {
		return nil, ErrRowWidth
	}
	numRows := len(columns[0])
	r := &Relation{
		schema:  schema,
		columns: make([]*ColumnData, len(columns)),
		numRows: numRows,
	}
	for i, values := range columns {
		if len(values) != numRows {
			return nil, ErrRowWidth
		}
		p := pli.CreateFor(values, nullEqualsNull)
		r.columns[i] = &ColumnData{
			column:  schema.Column(i),
			pli:     p,
			probing: p.ProbingTable(),
			nulls:   p.NullCluster(),
		}
	}
	return r, nil
}

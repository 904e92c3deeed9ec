package pli

import (
	"encoding/binary"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"
)

const (
	// SingletonValueID is the probing table value of rows in stripped clusters.
	SingletonValueID = 0

	// NullValueID marks a null cell in dictionary-encoded input.
	NullValueID = -1
)

// ProbingSource exposes per-column probing tables of a relation.
type ProbingSource interface {
	ProbingTable(column int) []int
}

// PLI is a stripped position list index. It is immutable apart from its
// usage counter and the lazily built probing table, both safe for concurrent use.
type PLI struct {
	clusters        [][]int
	nullCluster     *roaring.Bitmap
	relationSize    int
	size            int
	nep             uint64
	entropy         float64
	invertedEntropy float64
	gini            float64

	freq         atomic.Int64
	probingOnce  sync.Once
	probingTable []int
}

// CreateFor builds the PLI of a single dictionary-encoded column.
// With nullEqualsNull == false every null becomes its own singleton.
func CreateFor(values []int, nullEqualsNull bool) *PLI {
	index := make(map[int][]int)
	nulls := roaring.New()
	for row, v := range values {
		if v == NullValueID {
			nulls.Add(uint32(row))
			if !nullEqualsNull {
				continue
			}
		}
		index[v] = append(index[v], row)
	}
	clusters := make([][]int, 0, len(index))
	for _, rows := range index {
		if len(rows) > 1 {
			clusters = append(clusters, rows)
		}
	}
	return New(clusters, len(values), nulls)
}

// New creates a PLI from clusters over a relation with relationSize rows.
// Singleton clusters are dropped and clusters are sorted by their first row.
// The PLI takes ownership of clusters. nulls may be nil.
func New(clusters [][]int, relationSize int, nulls *roaring.Bitmap) *PLI {
	stripped := clusters[:0]
	for _, c := range clusters {
		if len(c) > 1 {
			stripped = append(stripped, c)
		}
	}
	slices.SortFunc(stripped, func(a, b []int) int { return a[0] - b[0] })
	if nulls == nil {
		nulls = roaring.New()
	}
	p := &PLI{
		clusters:     stripped,
		nullCluster:  nulls,
		relationSize: relationSize,
	}
	p.computeStatistics()
	return p
}

func (p *PLI) computeStatistics() {
	n := float64(p.relationSize)
	var sumNLogN, squares float64
	for _, c := range p.clusters {
		k := len(c)
		p.size += k
		p.nep += Pairs(k)
		fk := float64(k)
		sumNLogN += fk * math.Log(fk)
		if n > 0 {
			share := fk / n
			squares += share * share
			if share < 1 {
				p.invertedEntropy -= (1 - share) * math.Log(1-share)
			}
		}
	}
	if n == 0 {
		return
	}
	p.entropy = math.Log(n) - sumNLogN/n
	singletons := float64(p.relationSize - p.size)
	p.gini = 1 - squares - singletons*(1/n)*(1/n)
	if p.gini == 0 {
		p.invertedEntropy = 0
	}
}

// Pairs returns n choose 2.
func Pairs(n int) uint64 {
	if n < 2 {
		return 0
	}
	return uint64(n) * uint64(n-1) / 2
}

// Clusters returns the non-singleton clusters. The result must not be modified.
func (p *PLI) Clusters() [][]int { return p.clusters }

// NullCluster returns the rows holding a null in at least one indexed column.
func (p *PLI) NullCluster() *roaring.Bitmap { return p.nullCluster }

// RelationSize returns the number of rows of the indexed relation.
func (p *PLI) RelationSize() int { return p.relationSize }

// Size returns the number of rows in non-singleton clusters.
func (p *PLI) Size() int { return p.size }

// Nep returns the number of equivalence pairs, the sum of C(n, 2) over clusters.
func (p *PLI) Nep() uint64 { return p.nep }

// Nip returns the number of row pairs that disagree.
func (p *PLI) Nip() uint64 { return Pairs(p.relationSize) - p.nep }

// NumNonSingletonClusters returns the number of stored clusters.
func (p *PLI) NumNonSingletonClusters() int { return len(p.clusters) }

// NumClusters returns the number of clusters including stripped singletons.
func (p *PLI) NumClusters() int { return len(p.clusters) + p.relationSize - p.size }

// Entropy returns the Shannon entropy (natural log) of the partition.
func (p *PLI) Entropy() float64 { return p.entropy }

// InvertedEntropy returns Σ −(1−n/N)·log(1−n/N) over the non-singleton clusters.
func (p *PLI) InvertedEntropy() float64 { return p.invertedEntropy }

// GiniImpurity returns 1 − Σ (n/N)² over all clusters including singletons.
func (p *PLI) GiniImpurity() float64 { return p.gini }

// IncFreq increments the usage counter.
func (p *PLI) IncFreq() { p.freq.Add(1) }

// Freq returns the usage counter.
func (p *PLI) Freq() int64 { return p.freq.Load() }

// MemoryBytes estimates the retained heap size of the PLI.
func (p *PLI) MemoryBytes() int64 {
	return int64(8*p.size+24*len(p.clusters)+96) + int64(p.nullCluster.GetSizeInBytes())
}

// ProbingTable maps every row to its 1-based cluster number, or to
// SingletonValueID for stripped rows. It is built once and must not be modified.
func (p *PLI) ProbingTable() []int {
	p.probingOnce.Do(func() {
		table := make([]int, p.relationSize)
		for id, c := range p.clusters {
			for _, row := range c {
				table[row] = id + 1
			}
		}
		p.probingTable = table
	})
	return p.probingTable
}

// Intersect returns the PLI of the union of both attribute sets.
// The smaller index is scanned and probed against the other's table.
func (p *PLI) Intersect(that *PLI) *PLI {
	var out *PLI
	if p.size > that.size {
		out = that.Probe(p.ProbingTable())
	} else {
		out = p.Probe(that.ProbingTable())
	}
	out.nullCluster = roaring.Or(p.nullCluster, that.nullCluster)
	return out
}

// Probe splits every cluster by the values of a probing table.
func (p *PLI) Probe(table []int) *PLI {
	var clusters [][]int
	partial := make(map[int][]int)
	for _, c := range p.clusters {
		for _, row := range c {
			id := table[row]
			if id == SingletonValueID {
				continue
			}
			partial[id] = append(partial[id], row)
		}
		for id, rows := range partial {
			if len(rows) > 1 {
				clusters = append(clusters, rows)
			}
			delete(partial, id)
		}
	}
	return New(clusters, p.relationSize, p.nullCluster.Clone())
}

// ProbeAll splits every cluster by the combined values of the given columns
// in one pass. A row that is a singleton in any probed column is dropped.
func (p *PLI) ProbeAll(columns []int, src ProbingSource) *PLI {
	tables := make([][]int, len(columns))
	for i, c := range columns {
		tables[i] = src.ProbingTable(c)
	}
	var clusters [][]int
	partial := make(map[string][]int)
	key := make([]byte, 0, 4*len(columns))
	for _, c := range p.clusters {
	rows:
		for _, row := range c {
			key = key[:0]
			for _, t := range tables {
				id := t[row]
				if id == SingletonValueID {
					continue rows
				}
				key = binary.AppendUvarint(key, uint64(id))
			}
			partial[string(key)] = append(partial[string(key)], row)
		}
		for k, rows := range partial {
			if len(rows) > 1 {
				clusters = append(clusters, rows)
			}
			delete(partial, k)
		}
	}
	return New(clusters, p.relationSize, p.nullCluster.Clone())
}

// Equal reports whether both PLIs describe the same partition.
func (p *PLI) Equal(that *PLI) bool {
	if p.relationSize != that.relationSize || len(p.clusters) != len(that.clusters) {
		return false
	}
	for i := range p.clusters {
		if !slices.Equal(p.clusters[i], that.clusters[i]) {
			return false
		}
	}
	return true
}

// String renders the clusters, e.g. "{[0,1],[3,4,5]}".
func (p *PLI) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, c := range p.clusters {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteByte('[')
		for j, row := range c {
			if j > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.Itoa(row))
		}
		sb.WriteByte(']')
	}
	sb.WriteByte('}')
	return sb.String()
}

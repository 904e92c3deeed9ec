package verticalmap

import (
	"errors"
	"iter"
	"slices"

	"github.com/bits-and-blooms/bitset"

	"github.com/hupe1980/pyro/model"
)

// ErrExclusionIntersects is returned by restricted superset queries whose key
// shares columns with the exclusion set.
var ErrExclusionIntersects = errors.New("verticalmap: key intersects exclusion")

// Entry is a key/value pair of a Map.
type Entry[V any] struct {
	Key   model.Vertical
	Value V
}

// Map maps verticals of one schema to values of type V.
type Map[V any] struct {
	schema            *model.Schema
	root              *node[V]
	size              int
	shrinkInvocations int
}

// New creates an empty map for verticals of schema.
func New[V any](schema *model.Schema) *Map[V] {
	return &Map[V]{
		schema: schema,
		root:   newNode[V](0, schema.NumColumns()),
	}
}

// Schema returns the schema of the keys.
func (m *Map[V]) Schema() *model.Schema { return m.schema }

// Len returns the number of entries.
func (m *Map[V]) Len() int { return m.size }

// IsEmpty reports whether the map has no entries.
func (m *Map[V]) IsEmpty() bool { return m.size == 0 }

// Get returns the value stored under exactly key.
func (m *Map[V]) Get(key model.Vertical) (V, bool) {
	n := m.root.find(key.Bits())
	if n == nil || !n.hasValue {
		var zero V
		return zero, false
	}
	return n.value, true
}

// ContainsKey reports whether key has a value.
func (m *Map[V]) ContainsKey(key model.Vertical) bool {
	_, ok := m.Get(key)
	return ok
}

// Put stores value under key and returns the previous value, if any.
func (m *Map[V]) Put(key model.Vertical, value V) (V, bool) {
	old, existed := m.root.put(key.Bits(), value)
	if !existed {
		m.size++
	}
	return old, existed
}

// Remove deletes key and returns its value, if any.
func (m *Map[V]) Remove(key model.Vertical) (V, bool) {
	old, existed := m.root.remove(key.Bits(), 0)
	if existed {
		m.size--
	}
	return old, existed
}

// All iterates over every entry in trie order.
func (m *Map[V]) All() iter.Seq2[model.Vertical, V] {
	return func(yield func(model.Vertical, V) bool) {
		m.root.traverse(m.path(), func(path *bitset.BitSet, v V) bool {
			return yield(m.schema.VerticalFromBits(path), v)
		})
	}
}

// KeySet returns all keys.
func (m *Map[V]) KeySet() []model.Vertical {
	keys := make([]model.Vertical, 0, m.size)
	for k := range m.All() {
		keys = append(keys, k)
	}
	return keys
}

// Values returns all values.
func (m *Map[V]) Values() []V {
	values := make([]V, 0, m.size)
	for _, v := range m.All() {
		values = append(values, v)
	}
	return values
}

// EntrySet returns all entries.
func (m *Map[V]) EntrySet() []Entry[V] {
	entries := make([]Entry[V], 0, m.size)
	for k, v := range m.All() {
		entries = append(entries, Entry[V]{Key: k, Value: v})
	}
	return entries
}

// SubsetKeys returns the keys that are subsets of key.
func (m *Map[V]) SubsetKeys(key model.Vertical) []model.Vertical {
	var keys []model.Vertical
	m.root.collectSubsets(key.Bits(), 0, m.path(), func(path *bitset.BitSet, _ V) bool {
		keys = append(keys, m.schema.VerticalFromBits(path))
		return true
	})
	return keys
}

// SubsetEntries returns the entries whose keys are subsets of key.
func (m *Map[V]) SubsetEntries(key model.Vertical) []Entry[V] {
	var entries []Entry[V]
	m.root.collectSubsets(key.Bits(), 0, m.path(), m.appendTo(&entries))
	return entries
}

// AnySubsetEntry returns some entry whose key is a subset of key and that
// satisfies cond. A nil cond accepts every entry.
func (m *Map[V]) AnySubsetEntry(key model.Vertical, cond func(model.Vertical, V) bool) (Entry[V], bool) {
	var (
		found Entry[V]
		ok    bool
	)
	m.root.collectSubsets(key.Bits(), 0, m.path(), m.first(cond, &found, &ok))
	return found, ok
}

// SupersetEntries returns the entries whose keys are supersets of key.
func (m *Map[V]) SupersetEntries(key model.Vertical) []Entry[V] {
	var entries []Entry[V]
	m.root.collectSupersets(key.Bits(), nil, m.path(), m.appendTo(&entries))
	return entries
}

// AnySupersetEntry returns some entry whose key is a superset of key and that
// satisfies cond. A nil cond accepts every entry.
func (m *Map[V]) AnySupersetEntry(key model.Vertical, cond func(model.Vertical, V) bool) (Entry[V], bool) {
	var (
		found Entry[V]
		ok    bool
	)
	m.root.collectSupersets(key.Bits(), nil, m.path(), m.first(cond, &found, &ok))
	return found, ok
}

// RestrictedSupersetEntries returns the entries whose keys are supersets of
// key and disjoint from exclusion.
func (m *Map[V]) RestrictedSupersetEntries(key, exclusion model.Vertical) ([]Entry[V], error) {
	if key.Intersects(exclusion) {
		return nil, ErrExclusionIntersects
	}
	var entries []Entry[V]
	m.root.collectSupersets(key.Bits(), exclusion.Bits(), m.path(), m.appendTo(&entries))
	return entries, nil
}

// RemoveSupersetEntries removes every entry whose key is a superset of key.
// It reports whether anything was removed.
func (m *Map[V]) RemoveSupersetEntries(key model.Vertical) bool {
	entries := m.SupersetEntries(key)
	for _, e := range entries {
		m.Remove(e.Key)
	}
	return len(entries) > 0
}

// RemoveSubsetEntries removes every entry whose key is a subset of key.
// It reports whether anything was removed.
func (m *Map[V]) RemoveSubsetEntries(key model.Vertical) bool {
	keys := m.SubsetKeys(key)
	for _, k := range keys {
		m.Remove(k)
	}
	return len(keys) > 0
}

// Shrink removes removable entries, in the order given by less, until at most
// Len()*factor entries remain or no removable entry is left. It returns the
// removed entries.
func (m *Map[V]) Shrink(factor float64, less func(a, b Entry[V]) bool, canRemove func(Entry[V]) bool) []Entry[V] {
	m.shrinkInvocations++
	target := int(float64(m.size) * factor)
	candidates := m.removable(canRemove)
	slices.SortStableFunc(candidates, func(a, b Entry[V]) int {
		switch {
		case less(a, b):
			return -1
		case less(b, a):
			return 1
		}
		return 0
	})
	var removed []Entry[V]
	for _, e := range candidates {
		if m.size <= target {
			break
		}
		m.Remove(e.Key)
		removed = append(removed, e)
	}
	return removed
}

// ShrinkMedian removes every removable entry whose score is at most the median
// score of all entries. It returns the removed entries.
func (m *Map[V]) ShrinkMedian(score func(Entry[V]) float64, canRemove func(Entry[V]) bool) []Entry[V] {
	m.shrinkInvocations++
	if m.size == 0 {
		return nil
	}
	entries := m.EntrySet()
	scores := make([]float64, len(entries))
	for i, e := range entries {
		scores[i] = score(e)
	}
	median := Median(slices.Clone(scores))

	var removed []Entry[V]
	for i, e := range entries {
		if scores[i] <= median && (canRemove == nil || canRemove(e)) {
			m.Remove(e.Key)
			removed = append(removed, e)
		}
	}
	return removed
}

// ShrinkInvocations returns how often Shrink or ShrinkMedian ran.
func (m *Map[V]) ShrinkInvocations() int { return m.shrinkInvocations }

// Median returns the median of values. values is reordered.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	slices.Sort(values)
	mid := len(values) / 2
	if len(values)%2 == 1 {
		return values[mid]
	}
	return (values[mid-1] + values[mid]) / 2
}

func (m *Map[V]) removable(canRemove func(Entry[V]) bool) []Entry[V] {
	var out []Entry[V]
	for k, v := range m.All() {
		e := Entry[V]{Key: k, Value: v}
		if canRemove == nil || canRemove(e) {
			out = append(out, e)
		}
	}
	return out
}

func (m *Map[V]) path() *bitset.BitSet {
	return bitset.New(uint(m.schema.NumColumns()))
}

func (m *Map[V]) appendTo(entries *[]Entry[V]) visitor[V] {
	return func(path *bitset.BitSet, v V) bool {
		*entries = append(*entries, Entry[V]{Key: m.schema.VerticalFromBits(path), Value: v})
		return true
	}
}

func (m *Map[V]) first(cond func(model.Vertical, V) bool, found *Entry[V], ok *bool) visitor[V] {
	return func(path *bitset.BitSet, v V) bool {
		key := m.schema.VerticalFromBits(path)
		if cond != nil && !cond(key, v) {
			return true
		}
		*found, *ok = Entry[V]{Key: key, Value: v}, true
		return false
	}
}

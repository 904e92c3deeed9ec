package verticalmap

import (
	"sync"

	"github.com/hupe1980/pyro/model"
)

// Blocking is a Map guarded by a reader/writer lock. Queries take the read
// lock; mutations take the write lock.
type Blocking[V any] struct {
	mu sync.RWMutex
	m  *Map[V]
}

// NewBlocking creates an empty concurrent map for verticals of schema.
func NewBlocking[V any](schema *model.Schema) *Blocking[V] {
	return &Blocking[V]{m: New[V](schema)}
}

// Len returns the number of entries.
func (b *Blocking[V]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.m.Len()
}

// IsEmpty reports whether the map has no entries.
func (b *Blocking[V]) IsEmpty() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.m.IsEmpty()
}

// Get returns the value stored for exactly key.
func (b *Blocking[V]) Get(key model.Vertical) (V, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.m.Get(key)
}

// ContainsKey reports whether key is stored.
func (b *Blocking[V]) ContainsKey(key model.Vertical) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.m.ContainsKey(key)
}

// Put stores value for key and returns the previous value, if any.
func (b *Blocking[V]) Put(key model.Vertical, value V) (V, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.m.Put(key, value)
}

// Remove deletes key and returns its value, if any.
func (b *Blocking[V]) Remove(key model.Vertical) (V, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.m.Remove(key)
}

// KeySet returns all keys.
func (b *Blocking[V]) KeySet() []model.Vertical {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.m.KeySet()
}

// Values returns all values.
func (b *Blocking[V]) Values() []V {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.m.Values()
}

// EntrySet returns all entries.
func (b *Blocking[V]) EntrySet() []Entry[V] {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.m.EntrySet()
}

// SubsetKeys returns the keys that are subsets of key.
func (b *Blocking[V]) SubsetKeys(key model.Vertical) []model.Vertical {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.m.SubsetKeys(key)
}

// SubsetEntries returns the entries whose keys are subsets of key.
func (b *Blocking[V]) SubsetEntries(key model.Vertical) []Entry[V] {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.m.SubsetEntries(key)
}

// AnySubsetEntry returns the first subset entry of key accepted by cond.
func (b *Blocking[V]) AnySubsetEntry(key model.Vertical, cond func(model.Vertical, V) bool) (Entry[V], bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.m.AnySubsetEntry(key, cond)
}

// SupersetEntries returns the entries whose keys are supersets of key.
func (b *Blocking[V]) SupersetEntries(key model.Vertical) []Entry[V] {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.m.SupersetEntries(key)
}

// AnySupersetEntry returns the first superset entry of key accepted by cond.
func (b *Blocking[V]) AnySupersetEntry(key model.Vertical, cond func(model.Vertical, V) bool) (Entry[V], bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.m.AnySupersetEntry(key, cond)
}

// RestrictedSupersetEntries returns the superset entries of key disjoint from exclusion.
func (b *Blocking[V]) RestrictedSupersetEntries(key, exclusion model.Vertical) ([]Entry[V], error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.m.RestrictedSupersetEntries(key, exclusion)
}

// RemoveSupersetEntries deletes every superset entry of key.
func (b *Blocking[V]) RemoveSupersetEntries(key model.Vertical) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.m.RemoveSupersetEntries(key)
}

// RemoveSubsetEntries deletes every subset entry of key.
func (b *Blocking[V]) RemoveSubsetEntries(key model.Vertical) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.m.RemoveSubsetEntries(key)
}

// Shrink removes entries as Map.Shrink does.
func (b *Blocking[V]) Shrink(factor float64, less func(a, b Entry[V]) bool, canRemove func(Entry[V]) bool) []Entry[V] {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.m.Shrink(factor, less, canRemove)
}

// ShrinkMedian removes entries as Map.ShrinkMedian does.
func (b *Blocking[V]) ShrinkMedian(score func(Entry[V]) float64, canRemove func(Entry[V]) bool) []Entry[V] {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.m.ShrinkMedian(score, canRemove)
}

// ShrinkInvocations returns the number of shrink calls.
func (b *Blocking[V]) ShrinkInvocations() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.m.ShrinkInvocations()
}

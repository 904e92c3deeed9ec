package verticalmap

import (
	"math/rand/v2"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/pyro/model"
)

func keyStrings(keys []model.Vertical) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.IndexString()
	}
	slices.Sort(out)
	return out
}

func entryKeys[V any](entries []Entry[V]) []model.Vertical {
	out := make([]model.Vertical, len(entries))
	for i, e := range entries {
		out[i] = e.Key
	}
	return out
}

func TestMap_PutGetRemove(t *testing.T) {
	s := model.NewSchema("r", "A", "B", "C", "D")
	m := New[string](s)

	_, existed := m.Put(s.VerticalOf(0, 2), "ac")
	assert.False(t, existed)
	old, existed := m.Put(s.VerticalOf(0, 2), "AC")
	assert.True(t, existed)
	assert.Equal(t, "ac", old)
	m.Put(s.EmptyVertical(), "empty")
	m.Put(s.VerticalOf(0, 2, 3), "acd")

	assert.Equal(t, 3, m.Len())
	v, ok := m.Get(s.VerticalOf(0, 2))
	require.True(t, ok)
	assert.Equal(t, "AC", v)
	assert.False(t, m.ContainsKey(s.VerticalOf(0)))
	assert.True(t, m.ContainsKey(s.EmptyVertical()))

	removed, ok := m.Remove(s.VerticalOf(0, 2, 3))
	require.True(t, ok)
	assert.Equal(t, "acd", removed)
	_, ok = m.Remove(s.VerticalOf(0, 2, 3))
	assert.False(t, ok)
	_, ok = m.Get(s.VerticalOf(0, 2, 3))
	assert.False(t, ok)
	assert.Equal(t, 2, m.Len())

	// the AC node must survive pruning of its emptied child
	assert.True(t, m.ContainsKey(s.VerticalOf(0, 2)))

	m.Remove(s.VerticalOf(0, 2))
	m.Remove(s.EmptyVertical())
	assert.True(t, m.IsEmpty())
	assert.True(t, m.root.isEmpty())
}

func TestMap_SubsetSupersetQueries(t *testing.T) {
	const numColumns = 7
	names := []string{"A", "B", "C", "D", "E", "F", "G"}
	s := model.NewSchema("r", names...)
	rng := rand.New(rand.NewPCG(1, 2))

	randomVertical := func() model.Vertical {
		var idx []int
		for i := range numColumns {
			if rng.IntN(3) == 0 {
				idx = append(idx, i)
			}
		}
		return s.VerticalOf(idx...)
	}

	m := New[int](s)
	var inserted []model.Vertical
	for i := range 60 {
		k := randomVertical()
		if _, existed := m.Put(k, i); !existed {
			inserted = append(inserted, k)
		}
	}
	assert.Equal(t, len(inserted), m.Len())
	assert.Equal(t, keyStrings(inserted), keyStrings(m.KeySet()))

	for range 40 {
		q := randomVertical()
		var wantSub, wantSuper []model.Vertical
		for _, k := range inserted {
			if q.Contains(k) {
				wantSub = append(wantSub, k)
			}
			if k.Contains(q) {
				wantSuper = append(wantSuper, k)
			}
		}
		assert.Equal(t, keyStrings(wantSub), keyStrings(m.SubsetKeys(q)), "subsets of %s", q)
		assert.Equal(t, keyStrings(wantSub), keyStrings(entryKeys(m.SubsetEntries(q))))
		assert.Equal(t, keyStrings(wantSuper), keyStrings(entryKeys(m.SupersetEntries(q))), "supersets of %s", q)

		_, ok := m.AnySubsetEntry(q, nil)
		assert.Equal(t, len(wantSub) > 0, ok)
		_, ok = m.AnySupersetEntry(q, nil)
		assert.Equal(t, len(wantSuper) > 0, ok)

		exclusion := randomVertical().Without(q)
		var wantRestricted []model.Vertical
		for _, k := range wantSuper {
			if !k.Intersects(exclusion) {
				wantRestricted = append(wantRestricted, k)
			}
		}
		got, err := m.RestrictedSupersetEntries(q, exclusion)
		require.NoError(t, err)
		assert.Equal(t, keyStrings(wantRestricted), keyStrings(entryKeys(got)))
	}
}

func TestMap_AnyEntryWithCondition(t *testing.T) {
	s := model.NewSchema("r", "A", "B", "C")
	m := New[int](s)
	m.Put(s.VerticalOf(0), 1)
	m.Put(s.VerticalOf(0, 1), 2)
	m.Put(s.VerticalOf(0, 1, 2), 3)

	e, ok := m.AnySubsetEntry(s.FullVertical(), func(_ model.Vertical, v int) bool { return v == 2 })
	require.True(t, ok)
	assert.Equal(t, "[0,1]", e.Key.IndexString())

	_, ok = m.AnySupersetEntry(s.VerticalOf(1), func(_ model.Vertical, v int) bool { return v == 1 })
	assert.False(t, ok)
}

func TestMap_RestrictedSupersetEntries_Intersecting(t *testing.T) {
	s := model.NewSchema("r", "A", "B")
	m := New[int](s)

	_, err := m.RestrictedSupersetEntries(s.VerticalOf(0), s.VerticalOf(0, 1))
	assert.ErrorIs(t, err, ErrExclusionIntersects)
}

func TestMap_RemoveSubsetAndSupersetEntries(t *testing.T) {
	s := model.NewSchema("r", "A", "B", "C")
	m := New[int](s)
	m.Put(s.VerticalOf(0), 1)
	m.Put(s.VerticalOf(0, 1), 2)
	m.Put(s.VerticalOf(1, 2), 3)
	m.Put(s.VerticalOf(0, 1, 2), 4)

	assert.True(t, m.RemoveSupersetEntries(s.VerticalOf(0, 1)))
	assert.Equal(t, []string{"[0]", "[1,2]"}, keyStrings(m.KeySet()))
	assert.False(t, m.RemoveSupersetEntries(s.VerticalOf(0, 2)))

	assert.True(t, m.RemoveSubsetEntries(s.VerticalOf(0, 2)))
	assert.Equal(t, []string{"[1,2]"}, keyStrings(m.KeySet()))
}

func TestMap_Shrink(t *testing.T) {
	s := model.NewSchema("r", "A", "B", "C")
	m := New[int](s)
	m.Put(s.VerticalOf(0), 5)
	m.Put(s.VerticalOf(1), 1)
	m.Put(s.VerticalOf(0, 1), 2)
	m.Put(s.VerticalOf(0, 2), 3)

	removed := m.Shrink(0.5,
		func(a, b Entry[int]) bool { return a.Value < b.Value },
		func(e Entry[int]) bool { return e.Key.Arity() > 1 },
	)
	require.Len(t, removed, 2)
	assert.Equal(t, 2, removed[0].Value)
	assert.Equal(t, 3, removed[1].Value)
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, 1, m.ShrinkInvocations())
}

func TestMap_ShrinkMedian(t *testing.T) {
	s := model.NewSchema("r", "A", "B", "C")
	m := New[float64](s)
	m.Put(s.VerticalOf(0), 1)
	m.Put(s.VerticalOf(1), 2)
	m.Put(s.VerticalOf(2), 3)
	m.Put(s.VerticalOf(0, 1), 4)

	removed := m.ShrinkMedian(func(e Entry[float64]) float64 { return e.Value }, nil)
	assert.Len(t, removed, 2)
	assert.Equal(t, []string{"[0,1]", "[2]"}, keyStrings(m.KeySet()))
}

func TestMedian(t *testing.T) {
	assert.Zero(t, Median(nil))
	assert.Equal(t, 2.0, Median([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, Median([]float64{4, 1, 3, 2}))
}

func TestBlocking_Concurrent(t *testing.T) {
	s := model.NewSchema("r", "A", "B", "C", "D", "E")
	b := NewBlocking[int](s)

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 32 {
				key := s.VerticalOf(w%5, i%5)
				b.Put(key, i)
				b.SubsetEntries(s.FullVertical())
				b.SupersetEntries(key)
				b.Get(key)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, len(b.KeySet()), b.Len())
	assert.LessOrEqual(t, b.Len(), 15)
}

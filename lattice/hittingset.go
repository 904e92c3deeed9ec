package lattice

import (
	"slices"

	"github.com/hupe1980/pyro/model"
	"github.com/hupe1980/pyro/verticalmap"
)

// CalculateHittingSet returns the minimal verticals that intersect every
// vertical in verticals. Members for which prune reports true are dropped
// together with all their extensions. A nil prune keeps every member.
func CalculateHittingSet(schema *model.Schema, verticals []model.Vertical, prune func(model.Vertical) bool) []model.Vertical {
	sorted := slices.Clone(verticals)
	slices.SortStableFunc(sorted, func(a, b model.Vertical) int { return a.Arity() - b.Arity() })

	consolidated := verticalmap.New[struct{}](schema)
	hittingSet := verticalmap.New[struct{}](schema)
	hittingSet.Put(schema.EmptyVertical(), struct{}{})

	for _, v := range sorted {
		// A processed subset of v is already hit by every member.
		if _, ok := consolidated.AnySubsetEntry(v, nil); ok {
			continue
		}
		consolidated.Put(v, struct{}{})

		invalid := hittingSet.SubsetKeys(v.Invert())
		slices.SortStableFunc(invalid, func(a, b model.Vertical) int { return a.Arity() - b.Arity() })
		for _, m := range invalid {
			hittingSet.Remove(m)
		}

		columns := v.Indices()
		for _, m := range invalid {
			for _, col := range columns {
				corrected := m.UnionColumn(col)
				// invalid is ordered by arity, so a non-minimal member always
				// finds a smaller member already in place.
				if _, ok := hittingSet.AnySubsetEntry(corrected, nil); ok {
					continue
				}
				if prune != nil && prune(corrected) {
					continue
				}
				hittingSet.Put(corrected, struct{}{})
			}
		}
		if hittingSet.IsEmpty() {
			break
		}
	}
	return hittingSet.KeySet()
}

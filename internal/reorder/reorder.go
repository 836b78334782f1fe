// Package reorder folds a partial drag-and-drop reorder of a visible subset
// of tiles back into the full ordering.
package reorder

import (
	"sort"

	"github.com/starford/tiledash/internal/models"
)

// Result is the reconciled collection and its flattened id order.
type Result struct {
	Tiles []models.Tile
	Order []string
}

// Reconcile applies subsetIDs, the new relative order of some regular
// tiles, to tiles.
//
// Regular tiles are walked in their current order. Every tile that belongs
// to the subset is replaced by the next subset tile; every other tile keeps
// its slot. Regular tiles are then numbered 0..n-1 and large tiles continue
// from n, so each partition stays dense and regular tiles always precede
// large ones.
//
// Subset ids that are unknown, duplicated, or belong to large tiles are
// ignored. The input slice is not modified.
func Reconcile(tiles []models.Tile, subsetIDs []string) Result {
	sorted := make([]models.Tile, len(tiles))
	for i, t := range tiles {
		sorted[i] = t.Clone()
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	var regular, large []models.Tile
	for _, t := range sorted {
		if t.IsLarge() {
			large = append(large, t)
		} else {
			regular = append(regular, t)
		}
	}

	byID := make(map[string]models.Tile, len(regular))
	for _, t := range regular {
		byID[t.ID] = t
	}

	// Only ids that name a regular tile take part. The filtered subset then
	// has exactly as many entries as the walk below has substitution slots,
	// so the cursor cannot run past its end.
	subset := make([]string, 0, len(subsetIDs))
	inSubset := make(map[string]bool, len(subsetIDs))
	for _, id := range subsetIDs {
		if _, ok := byID[id]; !ok || inSubset[id] {
			continue
		}
		inSubset[id] = true
		subset = append(subset, id)
	}

	out := make([]models.Tile, 0, len(sorted))
	cursor := 0
	for _, t := range regular {
		if inSubset[t.ID] && cursor < len(subset) {
			out = append(out, byID[subset[cursor]])
			cursor++
			continue
		}
		out = append(out, t)
	}
	for i := range out {
		out[i].Order = i
	}
	for _, t := range large {
		t.Order = len(out)
		out = append(out, t)
	}

	order := make([]string, len(out))
	for i, t := range out {
		order[i] = t.ID
	}
	return Result{Tiles: out, Order: order}
}

// Sorted returns a copy of tiles ordered by Order, regular tiles first.
func Sorted(tiles []models.Tile) []models.Tile {
	out := make([]models.Tile, len(tiles))
	copy(out, tiles)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsLarge() != out[j].IsLarge() {
			return !out[i].IsLarge()
		}
		return out[i].Order < out[j].Order
	})
	return out
}

// Package aggregate builds customer pricelists from several supplier
// snapshots: per-source composition, dedup across sources, substitution
// expansion and the final general markup.
package aggregate

import (
	"github.com/partstrade/trade-service/internal/normalize"
	"github.com/partstrade/trade-service/internal/types"
)

// Combine concatenates the row sets in order and keeps one row per
// (oem, brand) key. An own-price row beats any third-party row; otherwise
// the lower price wins and ties keep the row seen first. Output follows the
// first appearance of each key.
func Combine(sources ...[]types.PriceRow) []types.PriceRow {
	index := make(map[string]int)
	var out []types.PriceRow

	for _, rows := range sources {
		for _, r := range rows {
			key := normalize.Key(r.OEM, r.Brand)
			i, seen := index[key]
			if !seen {
				index[key] = len(out)
				out = append(out, r)
				continue
			}
			if better(r, out[i]) {
				out[i] = r
			}
		}
	}
	return out
}

func better(candidate, current types.PriceRow) bool {
	if candidate.IsOwnPrice != current.IsOwnPrice {
		return candidate.IsOwnPrice
	}
	return candidate.Price.LessThan(current.Price)
}

// Index keys rows by normalized (oem, brand).
func Index(rows []types.PriceRow) map[string]types.PriceRow {
	out := make(map[string]types.PriceRow, len(rows))
	for _, r := range rows {
		key := normalize.Key(r.OEM, r.Brand)
		if _, ok := out[key]; !ok {
			out[key] = r
		}
	}
	return out
}

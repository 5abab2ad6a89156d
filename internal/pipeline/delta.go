package pipeline

import (
	"fmt"
	"strings"

	"github.com/partstrade/trade-service/internal/types"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Change is one position whose price or quantity moved.
type Change struct {
	Row      types.PriceRow  `json:"row"`
	OldPrice decimal.Decimal `json:"oldPrice"`
	NewPrice decimal.Decimal `json:"newPrice"`
	OldQty   int             `json:"oldQty"`
	NewQty   int             `json:"newQty"`
}

// Delta compares a new snapshot with the previous one of the same provider.
type Delta struct {
	New             []types.PriceRow `json:"new,omitempty"`
	Removed         []types.PriceRow `json:"removed,omitempty"`
	PriceChanges    []Change         `json:"priceChanges,omitempty"`
	QuantityChanges []Change         `json:"quantityChanges,omitempty"`
}

// Empty reports whether nothing changed.
func (d Delta) Empty() bool {
	return len(d.New) == 0 && len(d.Removed) == 0 && len(d.PriceChanges) == 0 && len(d.QuantityChanges) == 0
}

// ComputeDelta keys both snapshots by part. Changes at or below the noise
// floor are ignored. Output follows the order of cur, removed rows the
// order of prev.
func ComputeDelta(prev, cur []types.PriceRow, noise NoiseFloor) Delta {
	var d Delta

	old := make(map[int64]types.PriceRow, len(prev))
	for _, r := range prev {
		old[r.AutoPartID] = r
	}
	present := make(map[int64]struct{}, len(cur))

	for _, r := range cur {
		present[r.AutoPartID] = struct{}{}
		before, ok := old[r.AutoPartID]
		if !ok {
			d.New = append(d.New, r)
			continue
		}

		change := Change{Row: r, OldPrice: before.Price, NewPrice: r.Price, OldQty: before.Quantity, NewQty: r.Quantity}
		if exceedsNoise(before.Price, r.Price, noise.PricePct) {
			d.PriceChanges = append(d.PriceChanges, change)
		}
		if exceedsNoise(decimal.NewFromInt(int64(before.Quantity)), decimal.NewFromInt(int64(r.Quantity)), noise.QtyPct) {
			d.QuantityChanges = append(d.QuantityChanges, change)
		}
	}

	for _, r := range prev {
		if _, ok := present[r.AutoPartID]; !ok {
			d.Removed = append(d.Removed, r)
		}
	}
	return d
}

// exceedsNoise reports whether the relative change from old to cur is above
// floorPct. Any change from zero counts.
func exceedsNoise(old, cur, floorPct decimal.Decimal) bool {
	if old.Equal(cur) {
		return false
	}
	if old.IsZero() {
		return true
	}
	pct := cur.Sub(old).Abs().Div(old.Abs()).Mul(hundred)
	return pct.GreaterThan(floorPct)
}

// Render formats the delta as a plain-text report, at most maxLines entries
// per section.
func (d Delta) Render(title string, maxLines int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Pricelist update: %s\n", title)
	fmt.Fprintf(&b, "new %d, removed %d, price changes %d, quantity changes %d\n",
		len(d.New), len(d.Removed), len(d.PriceChanges), len(d.QuantityChanges))

	section(&b, "New positions", len(d.New), maxLines, func(i int) string {
		r := d.New[i]
		return fmt.Sprintf("%s %s: %d pcs at %s", r.Brand, r.OEM, r.Quantity, r.Price.StringFixed(2))
	})
	section(&b, "Removed positions", len(d.Removed), maxLines, func(i int) string {
		r := d.Removed[i]
		return fmt.Sprintf("%s %s", r.Brand, r.OEM)
	})
	section(&b, "Price changes", len(d.PriceChanges), maxLines, func(i int) string {
		c := d.PriceChanges[i]
		return fmt.Sprintf("%s %s: %s -> %s", c.Row.Brand, c.Row.OEM, c.OldPrice.StringFixed(2), c.NewPrice.StringFixed(2))
	})
	section(&b, "Quantity changes", len(d.QuantityChanges), maxLines, func(i int) string {
		c := d.QuantityChanges[i]
		return fmt.Sprintf("%s %s: %d -> %d", c.Row.Brand, c.Row.OEM, c.OldQty, c.NewQty)
	})
	return b.String()
}

func section(b *strings.Builder, title string, n, maxLines int, line func(int) string) {
	if n == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	for i := 0; i < n && i < maxLines; i++ {
		b.WriteString("  " + line(i) + "\n")
	}
	if n > maxLines {
		fmt.Fprintf(b, "  ... and %d more\n", n-maxLines)
	}
}

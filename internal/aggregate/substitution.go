package aggregate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/partstrade/trade-service/internal/normalize"
	"github.com/partstrade/trade-service/internal/types"
)

// SubstitutionSource loads active substitution rules.
type SubstitutionSource interface {
	// ActiveSubstitutions returns active rules for the given source parts
	// that are global or scoped to customerConfigID, keyed by source part.
	ActiveSubstitutions(ctx context.Context, sourcePartIDs []int64, customerConfigID int64) (map[int64][]types.Substitution, error)
}

// HouseBrand identifies the generic brand whose parts are cross-referenced.
type HouseBrand struct {
	Name string
	// Prefix is stripped from house OEM numbers to get the clean code.
	Prefix string
}

// Expander adds substitution rows for house-brand parts.
type Expander struct {
	source SubstitutionSource
	house  HouseBrand
}

// NewExpander creates a substitution expander.
func NewExpander(source SubstitutionSource, house HouseBrand) *Expander {
	house.Name = normalize.Brand(house.Name)
	house.Prefix = normalize.OEM(house.Prefix)
	return &Expander{source: source, house: house}
}

// CleanCode strips the house prefix from a house-brand OEM.
func (e *Expander) CleanCode(oem string) string {
	code := normalize.OEM(oem)
	if e.house.Prefix != "" {
		code = strings.TrimPrefix(code, e.house.Prefix)
	}
	return code
}

// Expand returns rows followed by one synthetic row per applicable rule.
// Originals are never changed. A synthetic row whose key is already present
// is dropped so each (oem, brand) appears once.
func (e *Expander) Expand(ctx context.Context, rows []types.PriceRow, customerConfigID int64) ([]types.PriceRow, error) {
	if e.house.Name == "" {
		return rows, nil
	}

	var houseIDs []int64
	for _, r := range rows {
		if normalize.Brand(r.Brand) == e.house.Name {
			houseIDs = append(houseIDs, r.AutoPartID)
		}
	}
	if len(houseIDs) == 0 {
		return rows, nil
	}

	rules, err := e.source.ActiveSubstitutions(ctx, houseIDs, customerConfigID)
	if err != nil {
		return nil, fmt.Errorf("load substitutions: %w", err)
	}

	seen := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		seen[normalize.Key(r.OEM, r.Brand)] = struct{}{}
	}

	out := append(make([]types.PriceRow, 0, len(rows)), rows...)
	for _, r := range rows {
		if normalize.Brand(r.Brand) != e.house.Name {
			continue
		}
		for _, sub := range e.SubstituteRows(r, rules[r.AutoPartID]) {
			key := normalize.Key(sub.OEM, sub.Brand)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, sub)
		}
	}
	return out, nil
}

// SubstituteRows applies the rules of one source row. Nothing is emitted
// when the source quantity is below the smallest min_source_quantity of the
// rules. Rules run by ascending priority.
func (e *Expander) SubstituteRows(src types.PriceRow, rules []types.Substitution) []types.PriceRow {
	active := make([]types.Substitution, 0, len(rules))
	for _, r := range rules {
		if r.IsActive {
			active = append(active, r)
		}
	}
	if len(active) == 0 {
		return nil
	}

	gate := active[0].MinSourceQuantity
	for _, r := range active[1:] {
		if r.MinSourceQuantity < gate {
			gate = r.MinSourceQuantity
		}
	}
	if src.Quantity < gate {
		return nil
	}

	sort.SliceStable(active, func(i, j int) bool { return active[i].Priority < active[j].Priority })

	out := make([]types.PriceRow, 0, len(active))
	for _, rule := range active {
		qty := src.Quantity
		if src.Quantity > rule.MinSourceQuantity {
			qty = max(1, src.Quantity-rule.QuantityReduction)
		}

		oem := rule.SubstitutionOEM
		if oem == "" {
			oem = e.CleanCode(src.OEM)
		}

		row := src
		row.AutoPartID = 0
		row.BrandID = rule.SubstitutionBrandID
		row.Brand = rule.SubstitutionBrand
		row.OEM = normalize.OEM(oem)
		row.Quantity = qty
		row.Substituted = true
		out = append(out, row)
	}
	return out
}

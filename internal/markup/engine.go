// Package markup applies pricing configurations to price rows.
//
// Stages run in a fixed order:
//
//  1. per-source markup
//  2. price-interval coefficients
//  3. brand filter
//  4. position filter
//  5. supplier-quantity bands
//  6. general markup
//
// Apply never mutates its input and has no hidden state, so the same rows
// and config always give the same output.
package markup

import (
	"github.com/partstrade/trade-service/internal/types"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Config is the engine's view of a customer or source configuration.
type Config struct {
	// IndividualMarkups are percentages keyed by provider config id.
	IndividualMarkups map[int64]decimal.Decimal
	// OwnPriceMarkup and ThirdPartyMarkup apply in stage 1 to rows whose
	// provider config has no individual markup.
	OwnPriceMarkup   decimal.Decimal
	ThirdPartyMarkup decimal.Decimal
	Filters          []types.Filter
	GeneralMarkup    decimal.Decimal
}

// Options tweaks a single Apply call.
type Options struct {
	// SkipGeneral leaves out stage 6; the aggregator applies it once after
	// combining sources.
	SkipGeneral bool
}

// Stats counts rows through the stages.
type Stats struct {
	Input             int
	DroppedByBrand    int
	DroppedByPosition int
	DroppedByQuantity int
	Output            int
}

// FromCustomerConfig builds the config-level engine settings.
func FromCustomerConfig(c types.CustomerPriceListConfig) Config {
	return Config{
		IndividualMarkups: c.IndividualMarkups,
		OwnPriceMarkup:    c.OwnPriceListMarkup,
		ThirdPartyMarkup:  c.ThirdPartyMarkup,
		Filters:           c.Filters,
		GeneralMarkup:     c.GeneralMarkup,
	}
}

// FromSource builds the settings of one composed source. The source markup
// is its individual markup; sources carry no general markup.
func FromSource(s types.CustomerPriceListSource) Config {
	cfg := Config{Filters: s.Filters}
	if !s.Markup.IsZero() {
		cfg.IndividualMarkups = map[int64]decimal.Decimal{s.ProviderConfigID: s.Markup}
	}
	return cfg
}

// Apply runs the stage pipeline and returns new rows with prices rounded to
// 2 fraction digits.
func Apply(rows []types.PriceRow, cfg Config, opts Options) ([]types.PriceRow, Stats) {
	stats := Stats{Input: len(rows)}

	out := make([]types.PriceRow, len(rows))
	copy(out, rows)

	for i := range out {
		if pct, ok := stageOneMarkup(out[i], cfg); ok {
			out[i].Price = applyPct(out[i].Price, pct)
		}
	}

	intervals := collectIntervals(cfg.Filters)
	for i := range out {
		out[i].Price = applyIntervals(out[i].Price, intervals)
	}

	for _, f := range filtersOf(cfg.Filters, types.FilterBrand) {
		before := len(out)
		out = keepByID(out, f, func(r types.PriceRow) int64 { return r.BrandID })
		stats.DroppedByBrand += before - len(out)
	}

	for _, f := range filtersOf(cfg.Filters, types.FilterPosition) {
		before := len(out)
		out = keepByID(out, f, func(r types.PriceRow) int64 { return r.AutoPartID })
		stats.DroppedByPosition += before - len(out)
	}

	for _, f := range filtersOf(cfg.Filters, types.FilterSupplierQuantity) {
		before := len(out)
		out = keepInBands(out, f.Bands)
		stats.DroppedByQuantity += before - len(out)
	}

	if !opts.SkipGeneral && !cfg.GeneralMarkup.IsZero() {
		for i := range out {
			out[i].Price = applyPct(out[i].Price, cfg.GeneralMarkup)
		}
	}

	for i := range out {
		out[i].Price = out[i].Price.Round(2)
	}

	stats.Output = len(out)
	return out, stats
}

// ApplyGeneral applies only the general markup stage.
func ApplyGeneral(rows []types.PriceRow, pct decimal.Decimal) []types.PriceRow {
	out := make([]types.PriceRow, len(rows))
	copy(out, rows)
	for i := range out {
		if !pct.IsZero() {
			out[i].Price = applyPct(out[i].Price, pct)
		}
		out[i].Price = out[i].Price.Round(2)
	}
	return out
}

func stageOneMarkup(r types.PriceRow, cfg Config) (decimal.Decimal, bool) {
	if pct, ok := cfg.IndividualMarkups[r.ProviderConfigID]; ok {
		return pct, true
	}
	if r.IsOwnPrice && !cfg.OwnPriceMarkup.IsZero() {
		return cfg.OwnPriceMarkup, true
	}
	if !r.IsOwnPrice && !cfg.ThirdPartyMarkup.IsZero() {
		return cfg.ThirdPartyMarkup, true
	}
	return decimal.Zero, false
}

func applyPct(price, pct decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(1).Add(pct.Div(hundred)))
}

// applyIntervals multiplies once per matching interval, in configured order.
// Each match tests the already adjusted price.
func applyIntervals(price decimal.Decimal, intervals []types.PriceInterval) decimal.Decimal {
	for _, iv := range intervals {
		if price.GreaterThanOrEqual(iv.Min) && price.LessThanOrEqual(iv.Max) {
			price = applyPct(price, iv.Coefficient)
		}
	}
	return price
}

func collectIntervals(filters []types.Filter) []types.PriceInterval {
	var out []types.PriceInterval
	for _, f := range filtersOf(filters, types.FilterPriceInterval) {
		out = append(out, f.Intervals...)
	}
	return out
}

func filtersOf(filters []types.Filter, kind types.FilterKind) []types.Filter {
	var out []types.Filter
	for _, f := range filters {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

// keepByID applies an include/exclude id-set filter. An empty set means the
// filter is not configured.
func keepByID(rows []types.PriceRow, f types.Filter, id func(types.PriceRow) int64) []types.PriceRow {
	if len(f.IDs) == 0 {
		return rows
	}
	set := make(map[int64]struct{}, len(f.IDs))
	for _, v := range f.IDs {
		set[v] = struct{}{}
	}

	include := f.Mode != types.ModeExclude
	out := rows[:0:0]
	for _, r := range rows {
		_, hit := set[id(r)]
		if hit == include {
			out = append(out, r)
		}
	}
	return out
}

func keepInBands(rows []types.PriceRow, bands []types.QuantityBand) []types.PriceRow {
	if len(bands) == 0 {
		return rows
	}
	out := rows[:0:0]
	for _, r := range rows {
		for _, b := range bands {
			if b.ProviderID == r.ProviderID && r.Quantity >= b.MinQty && (b.MaxQty == 0 || r.Quantity <= b.MaxQty) {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

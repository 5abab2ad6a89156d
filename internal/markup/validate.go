package markup

import (
	"fmt"

	"github.com/partstrade/trade-service/internal/apperr"
	"github.com/partstrade/trade-service/internal/types"
)

// ValidateIntervals rejects malformed intervals and reports overlapping ones
// as warnings. Overlaps are allowed: a price in both ranges is multiplied by
// both coefficients.
func ValidateIntervals(intervals []types.PriceInterval) ([]string, error) {
	for i, iv := range intervals {
		if iv.Min.IsNegative() {
			return nil, apperr.Newf(apperr.CodeValidation, "price interval %d: min %s is negative", i, iv.Min)
		}
		if iv.Min.GreaterThan(iv.Max) {
			return nil, apperr.Newf(apperr.CodeValidation, "price interval %d: min %s is above max %s", i, iv.Min, iv.Max)
		}
	}

	var warnings []string
	for i := 0; i < len(intervals); i++ {
		for j := i + 1; j < len(intervals); j++ {
			a, b := intervals[i], intervals[j]
			if a.Min.LessThanOrEqual(b.Max) && b.Min.LessThanOrEqual(a.Max) {
				warnings = append(warnings, fmt.Sprintf(
					"price intervals %d [%s, %s] and %d [%s, %s] overlap; coefficients stack",
					i, a.Min, a.Max, j, b.Min, b.Max))
			}
		}
	}
	return warnings, nil
}

// ValidateConfig checks every price-interval filter of a customer config.
func ValidateConfig(c types.CustomerPriceListConfig) ([]string, error) {
	var all []types.PriceInterval
	for _, f := range filtersOf(c.Filters, types.FilterPriceInterval) {
		all = append(all, f.Intervals...)
	}
	for _, s := range c.Sources {
		for _, f := range filtersOf(s.Filters, types.FilterPriceInterval) {
			if _, err := ValidateIntervals(f.Intervals); err != nil {
				return nil, err
			}
		}
	}
	return ValidateIntervals(all)
}

package parsers

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxQuantity is the largest stock or order quantity accepted from a file.
// Quantities are stored in INTEGER columns.
const MaxQuantity = 1_000_000_000

var currencySuffixRe = regexp.MustCompile(`(?i)\s*(РУБ\.?|Р\.|RUB|RUR|USD|EUR)\s*$`)

// ParsePrice parses a supplier price cell and rounds it to 2 fraction digits.
// Handles "1299.50", "1 299,50", "1.299,50", "1,299.50" and a trailing
// currency marker.
func ParsePrice(value string) (decimal.Decimal, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '₽', '$', '€', ' ', '\u00a0', '\u202f', '\'':
			return -1
		}
		return r
	}, strings.TrimSpace(value))
	cleaned = currencySuffixRe.ReplaceAllString(strings.ToUpper(cleaned), "")
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("empty price value")
	}

	d, err := decimal.NewFromString(normalizeSeparators(cleaned))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid price format %q", value)
	}
	return d.Round(2), nil
}

// ParseQuantity parses a stock cell. Comparison prefixes such as ">10" are
// read as the bound, fractional quantities are truncated.
func ParseQuantity(value string) (int, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f':
			return -1
		}
		return r
	}, strings.TrimSpace(value))
	cleaned = strings.TrimLeft(cleaned, "><=+≥≤")
	if cleaned == "" {
		return 0, fmt.Errorf("empty quantity value")
	}

	d, err := decimal.NewFromString(normalizeSeparators(cleaned))
	if err != nil {
		return 0, fmt.Errorf("invalid quantity format %q", value)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("negative quantity %q", value)
	}
	if d.GreaterThanOrEqual(decimal.NewFromInt(MaxQuantity + 1)) {
		return 0, fmt.Errorf("quantity %q exceeds %d", value, MaxQuantity)
	}
	return int(d.IntPart()), nil
}

// normalizeSeparators turns European or US grouping into a plain decimal.
// The right-most of ',' and '.' is the decimal separator; a lone ',' is
// decimal as in Russian locale exports.
func normalizeSeparators(s string) string {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastComma > lastDot:
		s = strings.ReplaceAll(s, ".", "")
		return strings.ReplaceAll(s, ",", ".")
	case lastDot > lastComma:
		s = strings.ReplaceAll(s, ",", "")
		if strings.Count(s, ".") > 1 {
			// "1.299.000" groups thousands
			return strings.ReplaceAll(s, ".", "")
		}
		return s
	default:
		return s
	}
}

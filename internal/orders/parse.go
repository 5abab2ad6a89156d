package orders

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/partstrade/trade-service/internal/parsers"
	"github.com/partstrade/trade-service/internal/types"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Line is one parsed order row. RowIndex is the 1-based sheet row.
type Line struct {
	RowIndex       int
	OEM            string
	Brand          string
	Name           string
	Quantity       int
	RequestedPrice *decimal.Decimal
}

// ParseLines reads order lines from the sheet. Rows without an oem or with
// an unreadable quantity are reported and left out.
func ParseLines(sheet *parsers.Sheet, cm types.OrderColumnMap) ([]Line, []types.ParseError) {
	var (
		lines []Line
		bad   []types.ParseError
	)
	for i := cm.StartRow; i < len(sheet.Rows); i++ {
		raw := sheet.Rows[i]
		rowNumber := i + 1

		oem := cellAt(raw, cm.OEMCol)
		qtyRaw := cellAt(raw, cm.QtyCol)
		if oem == "" && qtyRaw == "" {
			continue
		}
		if oem == "" {
			bad = append(bad, lineError(rowNumber, "oem", "missing oem", ""))
			continue
		}

		qty, err := parsers.ParseQuantity(qtyRaw)
		if err != nil || qty <= 0 {
			bad = append(bad, lineError(rowNumber, "quantity", "invalid quantity", qtyRaw))
			continue
		}

		line := Line{
			RowIndex: rowNumber,
			OEM:      oem,
			Brand:    cellAt(raw, cm.BrandCol),
			Name:     cellAt(raw, cm.NameCol),
			Quantity: qty,
		}
		if priceRaw := cellAt(raw, cm.PriceCol); priceRaw != "" {
			if price, err := parsers.ParsePrice(priceRaw); err == nil {
				line.RequestedPrice = &price
			}
		}
		lines = append(lines, line)
	}
	return lines, bad
}

// NumberSource is what the order number can be read from.
type NumberSource struct {
	Sheet      *parsers.Sheet
	Columns    types.OrderColumnMap
	Patterns   []string
	Subject    string
	Filename   string
	Body       string
	CustomerID int64
	Date       time.Time
	Hash       string
}

// OrderNumber reads the order number from the configured column, then from
// the first pattern matching subject, filename or body (first capture group
// when present), and otherwise generates <customer>-<date>-<hash8>.
func OrderNumber(src NumberSource, logger zerolog.Logger) string {
	if src.Columns.OrderNumberCol > 0 && src.Sheet != nil {
		for i := src.Columns.StartRow; i < len(src.Sheet.Rows); i++ {
			if v := cellAt(src.Sheet.Rows[i], src.Columns.OrderNumberCol); v != "" {
				return v
			}
		}
	}

	for _, pattern := range src.Patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			logger.Warn().Err(err).Str("pattern", pattern).Msg("Skipping invalid order number pattern")
			continue
		}
		for _, text := range []string{src.Subject, src.Filename, src.Body} {
			if text == "" {
				continue
			}
			m := re.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			n := m[0]
			if len(m) > 1 {
				n = m[1]
			}
			if n = strings.TrimSpace(n); n != "" {
				return n
			}
		}
	}

	hash := src.Hash
	if len(hash) > 8 {
		hash = hash[:8]
	}
	return fmt.Sprintf("%d-%s-%s", src.CustomerID, src.Date.Format("20060102"), hash)
}

func cellAt(row []string, col int) string {
	if col <= 0 || col > len(row) {
		return ""
	}
	return strings.TrimSpace(row[col-1])
}

func lineError(rowNumber int, field, message, original string) types.ParseError {
	pe := types.ParseError{
		RowNumber: types.IntPtr(rowNumber),
		Field:     types.StringPtr(field),
		Message:   message,
	}
	if original != "" {
		pe.OriginalValue = types.StringPtr(original)
	}
	return pe
}

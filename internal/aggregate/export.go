package aggregate

import (
	"fmt"
	"strings"

	"github.com/partstrade/trade-service/internal/types"
	"github.com/xuri/excelize/v2"
)

const exportSheet = "Pricelist"

var exportHeader = []interface{}{"Brand", "OEM", "Name", "Quantity", "Price"}

// ExportXLSX renders rows as a single-sheet workbook.
func ExportXLSX(rows []types.PriceRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, err
	}

	sw, err := f.NewStreamWriter(exportSheet)
	if err != nil {
		return nil, err
	}

	if err := sw.SetRow("A1", exportHeader); err != nil {
		return nil, err
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		price, _ := r.Price.Round(2).Float64()
		if err := sw.SetRow(cell, []interface{}{r.Brand, r.OEM, r.Name, r.Quantity, price}); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "customer"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, name)
}

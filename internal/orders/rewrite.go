package orders

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/partstrade/trade-service/internal/apperr"
	"github.com/partstrade/trade-service/internal/parsers"
	pcsv "github.com/partstrade/trade-service/internal/parsers/csv"
	"github.com/partstrade/trade-service/internal/types"
	"github.com/xuri/excelize/v2"
)

// Rewritten is the order file with confirmed quantities written back.
type Rewritten struct {
	Filename string
	Content  []byte
}

// writeColumn returns the 1-based column the ship mode writes to.
func writeColumn(mode types.ShipMode, cm types.OrderColumnMap) (int, error) {
	switch mode {
	case types.ShipModeReplaceQty:
		return cm.QtyCol, nil
	case types.ShipModeWriteShipQty:
		if cm.ShipQtyCol <= 0 {
			return 0, apperr.New(apperr.CodeConfig, "ship mode WRITE_SHIP_QTY needs ship_qty_col")
		}
		return cm.ShipQtyCol, nil
	case types.ShipModeWriteRejectQty:
		if cm.RejectQtyCol <= 0 {
			return 0, apperr.New(apperr.CodeConfig, "ship mode WRITE_REJECT_QTY needs reject_qty_col")
		}
		return cm.RejectQtyCol, nil
	default:
		return 0, apperr.Newf(apperr.CodeConfig, "unknown ship mode %q", mode)
	}
}

func writeValue(mode types.ShipMode, item types.CustomerOrderItem) int {
	if mode == types.ShipModeWriteRejectQty {
		return item.RejectQty
	}
	return item.ShipQty
}

// RewriteFile writes the confirmed quantities of items into the order file
// at their row positions. xlsx files are edited in place; csv keeps its
// delimiter and is written as UTF-8; xls cannot be written and comes back
// as xlsx.
func RewriteFile(sheet *parsers.Sheet, mode types.ShipMode, cm types.OrderColumnMap, items []types.CustomerOrderItem) (*Rewritten, error) {
	col, err := writeColumn(mode, cm)
	if err != nil {
		return nil, err
	}

	switch sheet.Type {
	case types.FileTypeXLSX:
		return rewriteXLSX(sheet, col, mode, items)
	case types.FileTypeCSV:
		return rewriteCSV(sheet, col, mode, items)
	case types.FileTypeXLS:
		return gridToXLSX(sheet, col, mode, items)
	default:
		return nil, apperr.Newf(apperr.CodeValidation, "cannot rewrite %s files", sheet.Type)
	}
}

func rewriteXLSX(sheet *parsers.Sheet, col int, mode types.ShipMode, items []types.CustomerOrderItem) (*Rewritten, error) {
	f, err := excelize.OpenReader(bytes.NewReader(sheet.Content))
	if err != nil {
		return nil, fmt.Errorf("open order workbook: %w", err)
	}
	defer f.Close()

	name := f.GetSheetList()[0]
	for _, item := range items {
		cell, err := excelize.CoordinatesToCellName(col, item.RowIndex)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellInt(name, cell, int64(writeValue(mode, item))); err != nil {
			return nil, fmt.Errorf("write %s: %w", cell, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return &Rewritten{Filename: sheet.Filename, Content: buf.Bytes()}, nil
}

func rewriteCSV(sheet *parsers.Sheet, col int, mode types.ShipMode, items []types.CustomerOrderItem) (*Rewritten, error) {
	rows := applyToGrid(sheet.Rows, col, mode, items)

	delim := pcsv.DetectDelimiter(string(sheet.Content))
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = []rune(string(delim))[0]
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("write order csv: %w", err)
	}
	return &Rewritten{Filename: sheet.Filename, Content: buf.Bytes()}, nil
}

func gridToXLSX(sheet *parsers.Sheet, col int, mode types.ShipMode, items []types.CustomerOrderItem) (*Rewritten, error) {
	rows := applyToGrid(sheet.Rows, col, mode, items)

	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow("Sheet1", cell, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	for _, item := range items {
		cell, err := excelize.CoordinatesToCellName(col, item.RowIndex)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellInt("Sheet1", cell, int64(writeValue(mode, item))); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	name := strings.TrimSuffix(sheet.Filename, filepath.Ext(sheet.Filename)) + ".xlsx"
	return &Rewritten{Filename: name, Content: buf.Bytes()}, nil
}

// applyToGrid copies rows and writes the item values, padding short rows.
func applyToGrid(src [][]string, col int, mode types.ShipMode, items []types.CustomerOrderItem) [][]string {
	rows := make([][]string, len(src))
	for i, r := range src {
		rows[i] = append([]string(nil), r...)
	}
	for _, item := range items {
		i := item.RowIndex - 1
		if i < 0 || i >= len(rows) {
			continue
		}
		for len(rows[i]) < col {
			rows[i] = append(rows[i], "")
		}
		rows[i][col-1] = strconv.Itoa(writeValue(mode, item))
	}
	return rows
}

// Package xls reads legacy BIFF8 (.xls) workbooks.
package xls

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/extrame/xls"
)

// Parser reads the first worksheet of an .xls workbook.
type Parser struct {
	charset string
}

// NewParser creates an .xls parser. charset applies to workbooks that
// store 8-bit strings; "utf-8" is the library default.
func NewParser(charset string) *Parser {
	if charset == "" {
		charset = "utf-8"
	}
	return &Parser{charset: charset}
}

// ReadRows returns trimmed cell values of the first sheet. Missing rows come
// back as empty slices so indexes match the sheet.
func (p *Parser) ReadRows(content []byte) (rows [][]string, err error) {
	// the BIFF reader panics on some truncated files
	defer func() {
		if r := recover(); r != nil {
			rows = nil
			err = fmt.Errorf("failed to parse xls workbook: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(content), p.charset)
	if err != nil {
		return nil, fmt.Errorf("failed to parse xls workbook: %w", err)
	}
	if wb.NumSheets() == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, fmt.Errorf("workbook has no readable sheet")
	}

	rows = make([][]string, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			rows = append(rows, []string{})
			continue
		}
		last := row.LastCol()
		cells := make([]string, 0, last)
		for c := 0; c < last; c++ {
			cells = append(cells, strings.TrimSpace(row.Col(c)))
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

package parsers

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/partstrade/trade-service/internal/apperr"
	"github.com/partstrade/trade-service/internal/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var testColumns = types.ColumnMap{StartRow: 1, OEMCol: 1, BrandCol: 2, NameCol: 3, QtyCol: 4, PriceCol: 5}

func makeXLSX(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func wrapZip(t *testing.T, name string, content []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create(name)
	require.NoError(t, err)
	_, err = f.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func newTestExtractor() *Extractor {
	return NewExtractor(DefaultOptions(), zerolog.Nop())
}

func TestExtractXLSX(t *testing.T) {
	content := makeXLSX(t, [][]interface{}{
		{"OEM", "Brand", "Name", "Qty", "Price"},
		{" ABC1 ", "X", "Filter", 10, 100},
		{"", "X", "no oem", 1, 1},
		{"ABC2", "X", "bad qty", "lots", 1},
		{"ABC3", "X", "bad price", 1, "n/a"},
		{"ABC4", "X", "too expensive", 1, "100000000"},
		{"ABC5", "X", "negative", 1, -1},
		{},
		{"ABC6", "", "", "5", "12,5"},
	})

	res, err := newTestExtractor().Extract(context.Background(), content, "price.xlsx", testColumns)
	require.NoError(t, err)

	assert.Equal(t, 7, res.TotalRows)
	assert.Equal(t, 2, res.ValidRows)
	require.Len(t, res.Rows, 2)

	first := res.Rows[0]
	assert.Equal(t, "ABC1", first.OEM)
	assert.Equal(t, "X", first.Brand)
	assert.Equal(t, "Filter", first.Name)
	assert.Equal(t, 10, first.Quantity)
	assert.Equal(t, "100", first.Price.String())
	assert.Equal(t, 2, first.RowNumber)

	last := res.Rows[1]
	assert.Equal(t, "ABC6", last.OEM)
	assert.Empty(t, last.Brand)
	assert.Equal(t, "12.5", last.Price.String())

	assert.Len(t, res.Errors, 5)
}

func TestExtractPriceCeilingBoundary(t *testing.T) {
	content := []byte("OEM;Brand;Name;Qty;Price\nA;B;C;1;99999999.99\nA2;B;C;1;100000000\n")

	res, err := newTestExtractor().Extract(context.Background(), content, "csv", testColumns)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "A", res.Rows[0].OEM)
}

func TestExtractRejectsHugeQuantity(t *testing.T) {
	content := []byte("OEM;Brand;Name;Qty;Price\nA;B;C;1e30;10\nA2;B;C;5;10\n")

	res, err := newTestExtractor().Extract(context.Background(), content, "csv", testColumns)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "A2", res.Rows[0].OEM)

	require.Len(t, res.Errors, 1)
	require.NotNil(t, res.Errors[0].Field)
	assert.Equal(t, "quantity", *res.Errors[0].Field)
	assert.Equal(t, "1e30", *res.Errors[0].OriginalValue)
}

func TestExtractCSVInsideZip(t *testing.T) {
	csvContent := []byte("OEM;Brand;Name;Qty;Price\nA11-1109111;CHERY;Фильтр;3;150,50\n")
	content := wrapZip(t, "price.csv", csvContent)

	res, err := newTestExtractor().Extract(context.Background(), content, "mail.zip", testColumns)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "A11-1109111", res.Rows[0].OEM)
	assert.Equal(t, "150.5", res.Rows[0].Price.String())
}

func TestExtractNestedZip(t *testing.T) {
	inner := wrapZip(t, "price.xlsx", makeXLSX(t, [][]interface{}{
		{"OEM", "Brand", "Name", "Qty", "Price"},
		{"Z1", "FAW", "", 2, 10},
	}))
	content := wrapZip(t, "inner.zip", inner)

	res, err := newTestExtractor().Extract(context.Background(), content, "outer.zip", testColumns)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "Z1", res.Rows[0].OEM)
}

func TestExtractInvalidFiles(t *testing.T) {
	emptyZip := func() []byte {
		var buf bytes.Buffer
		require.NoError(t, zip.NewWriter(&buf).Close())
		return buf.Bytes()
	}()

	tests := []struct {
		name     string
		content  []byte
		filename string
	}{
		{"Unsupported extension", []byte("x"), "price.pdf"},
		{"Empty content", nil, "price.csv"},
		{"Empty archive", emptyZip, "price.zip"},
		{"Corrupt workbook", []byte("garbage"), "price.xlsx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestExtractor().Extract(context.Background(), tt.content, tt.filename, testColumns)
			require.Error(t, err)

			var invalid *InvalidFileError
			assert.ErrorAs(t, err, &invalid)
			assert.NotEmpty(t, invalid.Reason)
			assert.Equal(t, apperr.CodeInvalidFile, apperr.CodeOf(err))
		})
	}
}

func TestExtractRejectsBadColumnMap(t *testing.T) {
	cm := types.ColumnMap{OEMCol: 0, QtyCol: 1, PriceCol: 2}
	_, err := newTestExtractor().Extract(context.Background(), []byte("a;1;2"), "csv", cm)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
}

func TestResolveFileType(t *testing.T) {
	assert.Equal(t, types.FileTypeXLSX, ResolveFileType("xlsx"))
	assert.Equal(t, types.FileTypeXLSX, ResolveFileType(".xlsx"))
	assert.Equal(t, types.FileTypeCSV, ResolveFileType("report.CSV"))
	assert.Equal(t, types.FileType(""), ResolveFileType("doc"))
}

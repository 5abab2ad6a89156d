package xlsx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func workbook(t *testing.T, sheets map[string][][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	first := true
	for name, rows := range sheets {
		if first {
			require.NoError(t, f.SetSheetName("Sheet1", name))
			first = false
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(name, cell, &row))
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestReadRows(t *testing.T) {
	content := workbook(t, map[string][][]interface{}{
		"Prices": {
			{"OEM", "Brand", "Qty", "Price"},
			{" A11-1109111 ", "CHERY", 10, 150.5},
		},
	})

	rows, err := NewParser(DefaultOptions()).ReadRows(content)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"A11-1109111", "CHERY", "10", "150.5"}, rows[1])
}

func TestSelectSheet(t *testing.T) {
	content := workbook(t, map[string][][]interface{}{
		"Prices": {{"x"}},
	})

	t.Run("by name", func(t *testing.T) {
		rows, err := NewParser(XlsxParserOptions{SheetNameOrIndex: "Prices"}).ReadRows(content)
		require.NoError(t, err)
		assert.Equal(t, [][]string{{"x"}}, rows)
	})

	t.Run("missing name", func(t *testing.T) {
		_, err := NewParser(XlsxParserOptions{SheetNameOrIndex: "Nope"}).ReadRows(content)
		assert.Error(t, err)
	})

	t.Run("index out of range", func(t *testing.T) {
		_, err := NewParser(XlsxParserOptions{SheetNameOrIndex: 3}).ReadRows(content)
		assert.Error(t, err)
	})
}

func TestReadRowsRejectsGarbage(t *testing.T) {
	_, err := NewParser(DefaultOptions()).ReadRows([]byte("not a workbook"))
	assert.Error(t, err)
}

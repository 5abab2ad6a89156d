package orders

import (
	"bytes"
	"testing"

	"github.com/partstrade/trade-service/internal/apperr"
	"github.com/partstrade/trade-service/internal/parsers"
	"github.com/partstrade/trade-service/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var rewriteItems = []types.CustomerOrderItem{
	{RowIndex: 2, RequestedQty: 5, ShipQty: 3, RejectQty: 2},
	{RowIndex: 3, RequestedQty: 1, ShipQty: 0, RejectQty: 1},
}

func TestRewriteFileModes(t *testing.T) {
	cm := types.OrderColumnMap{OEMCol: 1, QtyCol: 2, ShipQtyCol: 3, RejectQtyCol: 4}
	sheet := &parsers.Sheet{
		Filename: "order.csv",
		Type:     types.FileTypeCSV,
		Content:  []byte("oem;qty\nA1;5\nB2;1\n"),
		Rows:     [][]string{{"oem", "qty"}, {"A1", "5"}, {"B2", "1"}},
	}

	tests := []struct {
		mode types.ShipMode
		want string
	}{
		{types.ShipModeReplaceQty, "oem;qty\nA1;3\nB2;0\n"},
		{types.ShipModeWriteShipQty, "oem;qty\nA1;5;3\nB2;1;0\n"},
		{types.ShipModeWriteRejectQty, "oem;qty\nA1;5;;2\nB2;1;;1\n"},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			out, err := RewriteFile(sheet, tt.mode, cm, rewriteItems)
			require.NoError(t, err)
			assert.Equal(t, "order.csv", out.Filename)
			assert.Equal(t, tt.want, string(out.Content))
		})
	}
}

func TestRewriteFileNeedsColumns(t *testing.T) {
	sheet := &parsers.Sheet{Filename: "order.csv", Type: types.FileTypeCSV, Rows: [][]string{{"A1", "5"}}}
	for _, mode := range []types.ShipMode{types.ShipModeWriteShipQty, types.ShipModeWriteRejectQty, "BOGUS"} {
		_, err := RewriteFile(sheet, mode, types.OrderColumnMap{OEMCol: 1, QtyCol: 2}, nil)
		assert.True(t, apperr.IsCode(err, apperr.CodeConfig), mode)
	}
}

func TestRewriteXLSKeepsGridAsXLSX(t *testing.T) {
	sheet := &parsers.Sheet{
		Filename: "legacy.xls",
		Type:     types.FileTypeXLS,
		Rows:     [][]string{{"oem", "qty"}, {"A1", "5"}, {"B2", "1"}},
	}
	out, err := RewriteFile(sheet, types.ShipModeReplaceQty, types.OrderColumnMap{OEMCol: 1, QtyCol: 2}, rewriteItems)
	require.NoError(t, err)
	assert.Equal(t, "legacy.xlsx", out.Filename)

	f, err := excelize.OpenReader(bytes.NewReader(out.Content))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"oem", "qty"}, {"A1", "3"}, {"B2", "0"}}, rows)
}

func TestRejectReport(t *testing.T) {
	content, err := RejectReport([]types.CustomerOrderItem{
		{RowIndex: 2, OEM: "A1", Brand: "BOSCH", RequestedQty: 5, ShipQty: 5},
		{RowIndex: 3, OEM: "B2", Brand: "MANN", RequestedQty: 4, ShipQty: 1, RejectQty: 3},
		{RowIndex: 4, OEM: "C3", Brand: "NGK", RequestedQty: 1, RejectQty: 1, RejectReason: ReasonNoOffer},
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(content))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(reportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"3", "B2", "MANN", "", "4", "3", ReasonOutOfStock}, rows[1])
	assert.Equal(t, ReasonNoOffer, rows[2][6])
}

func TestFanout(t *testing.T) {
	order := &types.CustomerOrder{ID: 9, Items: []types.CustomerOrderItem{
		{ID: 1, Status: types.ItemSupplier, ShipQty: 2, SupplierID: types.Int64Ptr(7), AutoPartID: types.Int64Ptr(100), MatchedPrice: decPtr("10")},
		{ID: 2, Status: types.ItemOwnStock, ShipQty: 1, AutoPartID: types.Int64Ptr(101)},
		{ID: 3, Status: types.ItemSupplier, ShipQty: 4, SupplierID: types.Int64Ptr(8), AutoPartID: types.Int64Ptr(102)},
		{ID: 4, Status: types.ItemSupplier, ShipQty: 1, SupplierID: types.Int64Ptr(7), AutoPartID: types.Int64Ptr(103)},
		{ID: 5, Status: types.ItemRejected, RejectQty: 3, AutoPartID: types.Int64Ptr(104)},
	}}

	suppliers, stock := Fanout(order)
	require.Len(t, suppliers, 2)
	assert.Equal(t, int64(7), suppliers[0].ProviderID)
	assert.Len(t, suppliers[0].Items, 2)
	assert.Equal(t, "10", suppliers[0].Items[0].Price.String())
	assert.Equal(t, int64(8), suppliers[1].ProviderID)
	assert.Equal(t, types.SupplierOrderNew, suppliers[1].Status)

	require.NotNil(t, stock)
	assert.Equal(t, int64(9), stock.CustomerOrderID)
	require.Len(t, stock.Items, 1)
	assert.Equal(t, int64(2), stock.Items[0].CustomerOrderItemID)

	_, stock = Fanout(&types.CustomerOrder{Items: []types.CustomerOrderItem{{Status: types.ItemRejected}}})
	assert.Nil(t, stock)
}

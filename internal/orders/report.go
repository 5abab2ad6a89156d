package orders

import (
	"fmt"

	"github.com/partstrade/trade-service/internal/types"
	"github.com/xuri/excelize/v2"
)

const reportSheet = "Rejected"

var reportHeader = []interface{}{"Row", "OEM", "Brand", "Name", "Requested", "Rejected", "Reason"}

// RejectReport renders the rejected and partially shipped items of an order.
func RejectReport(items []types.CustomerOrderItem) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", reportSheet); err != nil {
		return nil, err
	}
	sw, err := f.NewStreamWriter(reportSheet)
	if err != nil {
		return nil, err
	}
	if err := sw.SetRow("A1", reportHeader); err != nil {
		return nil, err
	}

	row := 2
	for _, it := range items {
		if it.RejectQty == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return nil, err
		}
		reason := it.RejectReason
		if reason == "" {
			reason = ReasonOutOfStock
		}
		if err := sw.SetRow(cell, []interface{}{it.RowIndex, it.OEM, it.Brand, it.Name, it.RequestedQty, it.RejectQty, reason}); err != nil {
			return nil, fmt.Errorf("write report row %d: %w", row, err)
		}
		row++
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

package orders

import (
	"github.com/partstrade/trade-service/internal/types"
)

// Fanout routes the shipped items of a persisted order to one batch per
// supplier and one own-stock batch. Supplier batches follow the first
// appearance of each supplier; stock is nil when nothing ships from stock.
func Fanout(order *types.CustomerOrder) (suppliers []types.SupplierOrder, stock *types.StockOrder) {
	index := make(map[int64]int)

	for _, it := range order.Items {
		if it.ShipQty <= 0 || it.AutoPartID == nil {
			continue
		}
		fi := types.FanoutItem{
			CustomerOrderItemID: it.ID,
			AutoPartID:          *it.AutoPartID,
			Quantity:            it.ShipQty,
		}
		if it.MatchedPrice != nil {
			fi.Price = *it.MatchedPrice
		}

		switch it.Status {
		case types.ItemOwnStock:
			if stock == nil {
				stock = &types.StockOrder{CustomerOrderID: order.ID, Status: types.StockOrderNew}
			}
			stock.Items = append(stock.Items, fi)
		case types.ItemSupplier:
			if it.SupplierID == nil {
				continue
			}
			i, ok := index[*it.SupplierID]
			if !ok {
				i = len(suppliers)
				index[*it.SupplierID] = i
				suppliers = append(suppliers, types.SupplierOrder{
					ProviderID:      *it.SupplierID,
					CustomerOrderID: order.ID,
					Status:          types.SupplierOrderNew,
				})
			}
			suppliers[i].Items = append(suppliers[i].Items, fi)
		}
	}
	return suppliers, stock
}

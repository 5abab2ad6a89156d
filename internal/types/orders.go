package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ShipMode controls how confirmed quantities are written back into an order file.
type ShipMode string

const (
	ShipModeReplaceQty     ShipMode = "REPLACE_QTY"
	ShipModeWriteShipQty   ShipMode = "WRITE_SHIP_QTY"
	ShipModeWriteRejectQty ShipMode = "WRITE_REJECT_QTY"
)

// OrderColumnMap locates order fields. Columns are 1-based, 0 means absent.
type OrderColumnMap struct {
	StartRow       int `json:"start_row" validate:"gte=0"`
	OEMCol         int `json:"oem_col" validate:"gte=1"`
	BrandCol       int `json:"brand_col,omitempty" validate:"gte=0"`
	NameCol        int `json:"name_col,omitempty" validate:"gte=0"`
	QtyCol         int `json:"qty_col" validate:"gte=1"`
	PriceCol       int `json:"price_col,omitempty" validate:"gte=0"`
	ShipQtyCol     int `json:"ship_qty_col,omitempty" validate:"gte=0"`
	RejectQtyCol   int `json:"reject_qty_col,omitempty" validate:"gte=0"`
	OrderNumberCol int `json:"order_number_col,omitempty" validate:"gte=0"`
}

// CustomerOrderConfig holds the per-customer order processing settings.
type CustomerOrderConfig struct {
	ID                  int64           `json:"id"`
	CustomerID          int64           `json:"customerId"`
	PriceListConfigID   int64           `json:"priceListConfigId"`
	Columns             OrderColumnMap  `json:"columns"`
	OrderNumberPatterns []string        `json:"orderNumberPatterns,omitempty"`
	ShipMode            ShipMode        `json:"shipMode" validate:"required,oneof=REPLACE_QTY WRITE_SHIP_QTY WRITE_REJECT_QTY"`
	PriceTolerancePct   decimal.Decimal `json:"priceTolerancePct"`
	PriceWarningPct     decimal.Decimal `json:"priceWarningPct"`
	LastUID             int64           `json:"lastUid"`
	ReplyEmail          *string         `json:"replyEmail,omitempty"`
}

// OrderStatus is the lifecycle of a customer order.
type OrderStatus string

const (
	OrderNew       OrderStatus = "NEW"
	OrderProcessed OrderStatus = "PROCESSED"
	OrderSent      OrderStatus = "SENT"
	OrderError     OrderStatus = "ERROR"
)

// ItemStatus is the reconciliation outcome of one order line.
type ItemStatus string

const (
	ItemNew      ItemStatus = "NEW"
	ItemOwnStock ItemStatus = "OWN_STOCK"
	ItemSupplier ItemStatus = "SUPPLIER"
	ItemRejected ItemStatus = "REJECTED"
)

// CustomerOrder is one file-derived order batch.
type CustomerOrder struct {
	ID          int64               `json:"id"`
	CustomerID  int64               `json:"customerId"`
	OrderNumber string              `json:"orderNumber"`
	Filename    string              `json:"filename"`
	FileHash    string              `json:"fileHash"`
	Status      OrderStatus         `json:"status"`
	CreatedAt   time.Time           `json:"createdAt"`
	Items       []CustomerOrderItem `json:"items,omitempty"`
}

// CustomerOrderItem is one reconciled order line.
type CustomerOrderItem struct {
	ID             int64            `json:"id"`
	RowIndex       int              `json:"rowIndex"`
	OEM            string           `json:"oem"`
	Brand          string           `json:"brand"`
	Name           string           `json:"name,omitempty"`
	RequestedQty   int              `json:"requestedQty"`
	RequestedPrice *decimal.Decimal `json:"requestedPrice,omitempty"`
	ShipQty        int              `json:"shipQty"`
	RejectQty      int              `json:"rejectQty"`
	Status         ItemStatus       `json:"status"`
	SupplierID     *int64           `json:"supplierId,omitempty"`
	AutoPartID     *int64           `json:"autopartId,omitempty"`
	MatchedPrice   *decimal.Decimal `json:"matchedPrice,omitempty"`
	PriceDiffPct   *decimal.Decimal `json:"priceDiffPct,omitempty"`
	RejectReason   string           `json:"rejectReason,omitempty"`
}

// SupplierOrderStatus is the lifecycle of an outbound supplier batch.
type SupplierOrderStatus string

const (
	SupplierOrderNew       SupplierOrderStatus = "NEW"
	SupplierOrderScheduled SupplierOrderStatus = "SCHEDULED"
	SupplierOrderSent      SupplierOrderStatus = "SENT"
	SupplierOrderError     SupplierOrderStatus = "ERROR"
)

// StockOrderStatus is the lifecycle of an own-stock pick batch.
type StockOrderStatus string

const (
	StockOrderNew       StockOrderStatus = "NEW"
	StockOrderCompleted StockOrderStatus = "COMPLETED"
	StockOrderError     StockOrderStatus = "ERROR"
)

// FanoutItem is one accepted order line routed to a supplier or to stock.
type FanoutItem struct {
	CustomerOrderItemID int64           `json:"customerOrderItemId"`
	AutoPartID          int64           `json:"autopartId"`
	Quantity            int             `json:"quantity"`
	Price               decimal.Decimal `json:"price"`
}

// SupplierOrder groups accepted lines sourced from one supplier.
type SupplierOrder struct {
	ID              int64               `json:"id"`
	ProviderID      int64               `json:"providerId"`
	CustomerOrderID int64               `json:"customerOrderId"`
	Status          SupplierOrderStatus `json:"status"`
	Items           []FanoutItem        `json:"items"`
}

// StockOrder groups accepted lines served from own stock.
type StockOrder struct {
	ID              int64            `json:"id"`
	CustomerOrderID int64            `json:"customerOrderId"`
	Status          StockOrderStatus `json:"status"`
	Items           []FanoutItem     `json:"items"`
}

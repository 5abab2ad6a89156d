package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/partstrade/trade-service/internal/apperr"
	"github.com/partstrade/trade-service/internal/types"
)

// GetCustomerOrderConfig returns the order settings of a customer.
func (db *DB) GetCustomerOrderConfig(ctx context.Context, customerID int64) (*types.CustomerOrderConfig, error) {
	var (
		c                  types.CustomerOrderConfig
		columns, patterns  []byte
		tolerance, warning string
	)
	err := db.q(ctx).QueryRow(ctx, `
		SELECT id, customer_id, pricelist_config_id, columns, order_number_patterns, ship_mode,
		       price_tolerance_pct::text, price_warning_pct::text, last_uid, reply_email
		FROM customer_order_configs
		WHERE customer_id = $1
	`, customerID).Scan(&c.ID, &c.CustomerID, &c.PriceListConfigID, &columns, &patterns, &c.ShipMode,
		&tolerance, &warning, &c.LastUID, &c.ReplyEmail)
	if err != nil {
		return nil, apperr.FromDB(err, fmt.Sprintf("order config of customer %d not found", customerID))
	}

	if err := decodeJSON(columns, &c.Columns); err != nil {
		return nil, apperr.Wrap(apperr.CodeConfig, err, "invalid order column map")
	}
	if err := decodeJSON(patterns, &c.OrderNumberPatterns); err != nil {
		return nil, apperr.Wrap(apperr.CodeConfig, err, "invalid order number patterns")
	}
	if c.PriceTolerancePct, err = parseDecimal(tolerance); err != nil {
		return nil, err
	}
	if c.PriceWarningPct, err = parseDecimal(warning); err != nil {
		return nil, err
	}
	return &c, nil
}

// FindCustomerOrderByHash returns nil when no order of the customer has the hash.
func (db *DB) FindCustomerOrderByHash(ctx context.Context, customerID int64, hash string) (*types.CustomerOrder, error) {
	var o types.CustomerOrder
	err := db.q(ctx).QueryRow(ctx, `
		SELECT id, customer_id, order_number, filename, file_hash, status, created_at
		FROM customer_orders
		WHERE customer_id = $1 AND file_hash = $2
	`, customerID, hash).Scan(&o.ID, &o.CustomerID, &o.OrderNumber, &o.Filename, &o.FileHash, &o.Status, &o.CreatedAt)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.FromDB(err, "failed to look up order")
	}
	return &o, nil
}

// AdvanceOrderWatermark moves last_uid forward only.
func (db *DB) AdvanceOrderWatermark(ctx context.Context, configID, uid int64) error {
	_, err := db.q(ctx).Exec(ctx, `
		UPDATE customer_order_configs SET last_uid = GREATEST(last_uid, $2) WHERE id = $1
	`, configID, uid)
	return apperr.FromDB(err, "failed to advance order watermark")
}

// CreateCustomerOrder inserts the order and its items, filling in their ids.
func (db *DB) CreateCustomerOrder(ctx context.Context, order *types.CustomerOrder) error {
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	return db.WithTx(ctx, func(ctx context.Context) error {
		err := db.q(ctx).QueryRow(ctx, `
			INSERT INTO customer_orders (customer_id, order_number, filename, file_hash, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`, order.CustomerID, order.OrderNumber, order.Filename, order.FileHash, order.Status, order.CreatedAt).Scan(&order.ID)
		if err != nil {
			return apperr.FromDB(err, fmt.Sprintf("order %s already exists", order.OrderNumber))
		}
		if len(order.Items) == 0 {
			return nil
		}

		batch := &pgx.Batch{}
		for _, it := range order.Items {
			batch.Queue(`
				INSERT INTO customer_order_items (order_id, row_index, oem, brand, name, requested_qty,
					requested_price, ship_qty, reject_qty, status, supplier_id, autopart_id,
					matched_price, price_diff_pct, reject_reason)
				VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9, $10, $11, $12, $13::numeric, $14::numeric, $15)
				RETURNING id
			`, order.ID, it.RowIndex, it.OEM, it.Brand, it.Name, it.RequestedQty,
				nullNumeric(it.RequestedPrice), it.ShipQty, it.RejectQty, it.Status, it.SupplierID, it.AutoPartID,
				nullNumeric(it.MatchedPrice), nullNumeric(it.PriceDiffPct), it.RejectReason)
		}

		br := db.q(ctx).SendBatch(ctx, batch)
		for i := range order.Items {
			if err := br.QueryRow().Scan(&order.Items[i].ID); err != nil {
				br.Close()
				return apperr.FromDB(err, fmt.Sprintf("failed to insert order row %d", order.Items[i].RowIndex))
			}
		}
		return apperr.FromDB(br.Close(), "failed to insert order items")
	})
}

// CreateSupplierOrders inserts supplier batches with their items.
func (db *DB) CreateSupplierOrders(ctx context.Context, orders []types.SupplierOrder) error {
	return db.WithTx(ctx, func(ctx context.Context) error {
		for i := range orders {
			so := &orders[i]
			err := db.q(ctx).QueryRow(ctx, `
				INSERT INTO supplier_orders (provider_id, customer_order_id, status)
				VALUES ($1, $2, $3)
				RETURNING id
			`, so.ProviderID, so.CustomerOrderID, so.Status).Scan(&so.ID)
			if err != nil {
				return apperr.FromDB(err, fmt.Sprintf("failed to create order for provider %d", so.ProviderID))
			}
			if err := db.insertFanoutItems(ctx, `
				INSERT INTO supplier_order_items (supplier_order_id, customer_order_item_id, autopart_id, quantity, price)
				VALUES ($1, $2, $3, $4, $5::numeric)
			`, so.ID, so.Items); err != nil {
				return err
			}
		}
		return nil
	})
}

// CreateStockOrder inserts the own-stock batch of an order.
func (db *DB) CreateStockOrder(ctx context.Context, order *types.StockOrder) error {
	return db.WithTx(ctx, func(ctx context.Context) error {
		err := db.q(ctx).QueryRow(ctx, `
			INSERT INTO stock_orders (customer_order_id, status)
			VALUES ($1, $2)
			RETURNING id
		`, order.CustomerOrderID, order.Status).Scan(&order.ID)
		if err != nil {
			return apperr.FromDB(err, "failed to create stock order")
		}
		return db.insertFanoutItems(ctx, `
			INSERT INTO stock_order_items (stock_order_id, customer_order_item_id, autopart_id, quantity, price)
			VALUES ($1, $2, $3, $4, $5::numeric)
		`, order.ID, order.Items)
	})
}

func (db *DB) insertFanoutItems(ctx context.Context, query string, ownerID int64, items []types.FanoutItem) error {
	if len(items) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, it := range items {
		batch.Queue(query, ownerID, it.CustomerOrderItemID, it.AutoPartID, it.Quantity, numeric(it.Price))
	}
	br := db.q(ctx).SendBatch(ctx, batch)
	for range items {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return apperr.FromDB(err, "failed to insert fan-out item")
		}
	}
	return apperr.FromDB(br.Close(), "failed to insert fan-out items")
}

// Package orders reconciles customer order files against the customer's
// pricelist and the live offer set, writes the confirmed quantities back
// and routes accepted lines to supplier and stock batches.
package orders

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/partstrade/trade-service/internal/aggregate"
	"github.com/partstrade/trade-service/internal/apperr"
	"github.com/partstrade/trade-service/internal/metrics"
	"github.com/partstrade/trade-service/internal/normalize"
	"github.com/partstrade/trade-service/internal/notify"
	"github.com/partstrade/trade-service/internal/parsers"
	"github.com/partstrade/trade-service/internal/parsers/archive"
	"github.com/partstrade/trade-service/internal/storage"
	"github.com/partstrade/trade-service/internal/telemetry"
	"github.com/partstrade/trade-service/internal/types"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

var validate = validator.New()

// Store is the persistence the reconciler needs.
type Store interface {
	GetCustomerOrderConfig(ctx context.Context, customerID int64) (*types.CustomerOrderConfig, error)
	// LatestCustomerPriceRows returns the rows of the newest customer
	// pricelist snapshot of a config.
	LatestCustomerPriceRows(ctx context.Context, configID int64) ([]types.PriceRow, error)
	// FindCustomerOrderByHash returns nil when the file was never processed.
	FindCustomerOrderByHash(ctx context.Context, customerID int64, hash string) (*types.CustomerOrder, error)
	// AdvanceOrderWatermark raises last_uid to uid; lower values are ignored.
	AdvanceOrderWatermark(ctx context.Context, configID, uid int64) error
	// CreateCustomerOrder inserts the order with its items and sets their ids.
	// A second order with the same customer and hash is a conflict.
	CreateCustomerOrder(ctx context.Context, order *types.CustomerOrder) error
	CreateSupplierOrders(ctx context.Context, orders []types.SupplierOrder) error
	CreateStockOrder(ctx context.Context, order *types.StockOrder) error
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OfferSet computes the live aggregated offers of a customer config, every
// row bound to a catalog part.
type OfferSet interface {
	Offers(ctx context.Context, configID int64) (*aggregate.Computed, error)
}

// Request is one received order file.
type Request struct {
	CustomerID int64
	Filename   string
	Content    []byte
	Subject    string
	Body       string
	// UID is the mailbox identifier of the message, when mail-sourced.
	UID *int64
}

// PriceWarning reports an accepted or rejected line whose live price moved
// away from the customer's pricelist.
type PriceWarning struct {
	RowIndex int              `json:"rowIndex"`
	OEM      string           `json:"oem"`
	Brand    string           `json:"brand"`
	Expected decimal.Decimal  `json:"expected"`
	Offered  decimal.Decimal  `json:"offered"`
	DiffPct  decimal.Decimal  `json:"diffPct"`
	Critical bool             `json:"critical"`
	Status   types.ItemStatus `json:"status"`
}

// Result summarizes one reconciliation.
type Result struct {
	Order          *types.CustomerOrder  `json:"order"`
	Duplicate      bool                  `json:"duplicate"`
	Accepted       int                   `json:"accepted"`
	Rejected       int                   `json:"rejected"`
	Warnings       []PriceWarning        `json:"warnings,omitempty"`
	Skipped        []types.ParseError    `json:"skipped,omitempty"`
	SupplierOrders []types.SupplierOrder `json:"supplierOrders,omitempty"`
	StockOrder     *types.StockOrder     `json:"stockOrder,omitempty"`
	Output         *Rewritten            `json:"-"`
	RejectReport   []byte                `json:"-"`
}

// Reconciler processes customer order files.
type Reconciler struct {
	store     Store
	offers    OfferSet
	extractor *parsers.Extractor
	archive   storage.Storage
	notifier  *notify.Notifier
	metrics   *metrics.Recorder
	log       zerolog.Logger
	now       func() time.Time
}

// NewReconciler creates a reconciler. archive and notifier may be nil.
func NewReconciler(store Store, offers OfferSet, extractor *parsers.Extractor, archive storage.Storage, notifier *notify.Notifier, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		store:     store,
		offers:    offers,
		extractor: extractor,
		archive:   archive,
		notifier:  notifier,
		metrics:   metrics.NewRecorder(),
		log:       logger.With().Str("component", "order-reconciler").Logger(),
		now:       time.Now,
	}
}

// Reconcile processes one order file. A file already processed for the
// customer only advances the watermark. Nothing is persisted when the file
// cannot be read or rewritten.
func (r *Reconciler) Reconcile(ctx context.Context, req Request) (res *Result, err error) {
	if req.CustomerID <= 0 {
		return nil, apperr.New(apperr.CodeValidation, "customer id is required")
	}
	if len(req.Content) == 0 {
		return nil, apperr.New(apperr.CodeValidation, "order file is empty")
	}

	ctx, span := telemetry.StartSpan(ctx, "orders.Reconcile",
		attribute.Int64("customer.id", req.CustomerID),
		attribute.String("file.name", req.Filename))
	defer func() {
		telemetry.EndSpan(span, err)
		if err != nil {
			r.metrics.RecordOrderFile("error")
		}
	}()

	cfg, err := r.store.GetCustomerOrderConfig(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}
	if err := validate.Struct(cfg.Columns); err != nil {
		return nil, apperr.Wrap(apperr.CodeConfig, err, "invalid order column mapping")
	}

	hash := storage.ComputeChecksum(req.Content)
	existing, err := r.store.FindCustomerOrderByHash(ctx, req.CustomerID, hash)
	if err != nil {
		return nil, fmt.Errorf("check processed orders: %w", err)
	}
	if existing != nil {
		return r.duplicate(ctx, cfg, req, existing)
	}

	now := r.now().UTC()
	r.archiveRaw(ctx, req, hash, now)

	sheet, err := r.extractor.ReadSheet(ctx, req.Content, req.Filename)
	if err != nil {
		return nil, err
	}
	lines, skipped := ParseLines(sheet, cfg.Columns)
	if len(lines) == 0 {
		return nil, apperr.New(apperr.CodeValidation, "order file has no usable rows").WithDetails(skipped)
	}

	expectedRows, err := r.store.LatestCustomerPriceRows(ctx, cfg.PriceListConfigID)
	if err != nil {
		return nil, fmt.Errorf("load customer pricelist: %w", err)
	}
	live, err := r.offers.Offers(ctx, cfg.PriceListConfigID)
	if err != nil {
		return nil, fmt.Errorf("compute live offers: %w", err)
	}

	order := &types.CustomerOrder{
		CustomerID: req.CustomerID,
		Filename:   req.Filename,
		FileHash:   hash,
		Status:     types.OrderProcessed,
		CreatedAt:  now,
		OrderNumber: OrderNumber(NumberSource{
			Sheet:      sheet,
			Columns:    cfg.Columns,
			Patterns:   cfg.OrderNumberPatterns,
			Subject:    req.Subject,
			Filename:   req.Filename,
			Body:       req.Body,
			CustomerID: req.CustomerID,
			Date:       now,
			Hash:       hash,
		}, r.log),
	}

	res = &Result{Order: order, Skipped: skipped}
	r.reconcileLines(cfg, lines, newPriceIndex(expectedRows), newPriceIndex(live.Rows), res)

	// Column problems surface here, before anything is stored.
	res.Output, err = RewriteFile(sheet, cfg.ShipMode, cfg.Columns, order.Items)
	if err != nil {
		return nil, err
	}

	err = r.store.WithTx(ctx, func(ctx context.Context) error {
		if err := r.store.CreateCustomerOrder(ctx, order); err != nil {
			return err
		}
		res.SupplierOrders, res.StockOrder = Fanout(order)
		if len(res.SupplierOrders) > 0 {
			if err := r.store.CreateSupplierOrders(ctx, res.SupplierOrders); err != nil {
				return fmt.Errorf("create supplier orders: %w", err)
			}
		}
		if res.StockOrder != nil {
			if err := r.store.CreateStockOrder(ctx, res.StockOrder); err != nil {
				return fmt.Errorf("create stock order: %w", err)
			}
		}
		if req.UID != nil {
			return r.store.AdvanceOrderWatermark(ctx, cfg.ID, *req.UID)
		}
		return nil
	})
	if apperr.IsCode(err, apperr.CodeConflict) {
		// Another worker stored the same file first.
		existing, ferr := r.store.FindCustomerOrderByHash(ctx, req.CustomerID, hash)
		if ferr == nil && existing != nil {
			return r.duplicate(ctx, cfg, req, existing)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}

	r.notify(cfg, res)
	r.metrics.RecordOrderFile("processed")
	for _, it := range order.Items {
		r.metrics.RecordOrderItem(string(it.Status))
	}

	r.log.Info().
		Int64("customerId", req.CustomerID).
		Int64("orderId", order.ID).
		Str("orderNumber", order.OrderNumber).
		Int("items", len(order.Items)).
		Int("accepted", res.Accepted).
		Int("rejected", res.Rejected).
		Int("warnings", len(res.Warnings)).
		Int("skippedRows", len(skipped)).
		Msg("Order reconciled")

	return res, nil
}

func (r *Reconciler) duplicate(ctx context.Context, cfg *types.CustomerOrderConfig, req Request, existing *types.CustomerOrder) (*Result, error) {
	if req.UID != nil {
		if err := r.store.AdvanceOrderWatermark(ctx, cfg.ID, *req.UID); err != nil {
			return nil, fmt.Errorf("advance watermark: %w", err)
		}
	}
	r.metrics.RecordOrderFile("duplicate")
	r.log.Info().
		Int64("customerId", req.CustomerID).
		Int64("orderId", existing.ID).
		Str("filename", req.Filename).
		Msg("Order file already processed, skipping")
	return &Result{Order: existing, Duplicate: true}, nil
}

func (r *Reconciler) reconcileLines(cfg *types.CustomerOrderConfig, lines []Line, expected, live priceIndex, res *Result) {
	th := Thresholds{Tolerance: cfg.PriceTolerancePct, Warning: cfg.PriceWarningPct}

	for _, l := range lines {
		var expectedPrice *decimal.Decimal
		e := expected.lookup(l.OEM, l.Brand)
		if e != nil {
			expectedPrice = &e.Price
		}
		offer := live.lookup(l.OEM, l.Brand)
		out := Classify(l.Quantity, expectedPrice, offer, th)

		item := types.CustomerOrderItem{
			RowIndex:       l.RowIndex,
			OEM:            l.OEM,
			Brand:          l.Brand,
			Name:           l.Name,
			RequestedQty:   l.Quantity,
			RequestedPrice: l.RequestedPrice,
			ShipQty:        out.ShipQty,
			RejectQty:      out.RejectQty,
			Status:         out.Status,
			PriceDiffPct:   out.DiffPct,
			RejectReason:   out.Reason,
		}
		if offer != nil {
			item.MatchedPrice = types.DecimalPtr(offer.Price)
			switch {
			case offer.AutoPartID != 0:
				item.AutoPartID = types.Int64Ptr(offer.AutoPartID)
			case e != nil && e.AutoPartID != 0:
				// unresolved substitution row, the customer's pricelist holds the part
				item.AutoPartID = types.Int64Ptr(e.AutoPartID)
			}
			if !offer.IsOwnPrice {
				item.SupplierID = types.Int64Ptr(offer.ProviderID)
			}
			if item.Brand == "" {
				item.Brand = offer.Brand
			}
		}
		res.Order.Items = append(res.Order.Items, item)

		if out.Accepted() {
			res.Accepted++
		} else {
			res.Rejected++
		}
		if out.Severity != SeverityNone {
			res.Warnings = append(res.Warnings, PriceWarning{
				RowIndex: l.RowIndex,
				OEM:      l.OEM,
				Brand:    item.Brand,
				Expected: *expectedPrice,
				Offered:  offer.Price,
				DiffPct:  *out.DiffPct,
				Critical: out.Severity == SeverityCritical,
				Status:   out.Status,
			})
		}
	}
}

// notify sends price warnings, the reject report and the processed file.
// Delivery failures are logged by the notifier.
func (r *Reconciler) notify(cfg *types.CustomerOrderConfig, res *Result) {
	order := res.Order

	if len(res.Warnings) > 0 {
		r.notifier.Message(renderWarnings(order, res.Warnings))
	}

	hasRejects := false
	for _, it := range order.Items {
		if it.RejectQty > 0 {
			hasRejects = true
			break
		}
	}
	if hasRejects {
		report, err := RejectReport(order.Items)
		if err != nil {
			r.log.Error().Err(err).Int64("orderId", order.ID).Msg("Failed to render reject report")
		} else {
			res.RejectReport = report
			r.notifier.File(report, fmt.Sprintf("rejected_%s.xlsx", safeName(order.OrderNumber)),
				fmt.Sprintf("Order %s: %d rejected of %d", order.OrderNumber, res.Rejected, len(order.Items)))
		}
	}

	if cfg.ReplyEmail != nil && *cfg.ReplyEmail != "" && res.Output != nil {
		r.notifier.Email(*cfg.ReplyEmail,
			fmt.Sprintf("Order %s processed", order.OrderNumber),
			fmt.Sprintf("Order %s: %d lines accepted, %d rejected.", order.OrderNumber, res.Accepted, res.Rejected),
			res.Output.Content, res.Output.Filename)
	}
}

func renderWarnings(order *types.CustomerOrder, warnings []PriceWarning) string {
	var b strings.Builder
	critical := 0
	for _, w := range warnings {
		if w.Critical {
			critical++
		}
	}
	if critical > 0 {
		fmt.Fprintf(&b, "CRITICAL: order %s has %d price deviations above the warning threshold\n", order.OrderNumber, critical)
	} else {
		fmt.Fprintf(&b, "Order %s has %d price deviations\n", order.OrderNumber, len(warnings))
	}
	for _, w := range warnings {
		level := "warning"
		if w.Critical {
			level = "critical"
		}
		fmt.Fprintf(&b, "row %d %s %s: expected %s, offered %s (%s%%) %s, %s\n",
			w.RowIndex, w.Brand, w.OEM, w.Expected.StringFixed(2), w.Offered.StringFixed(2), w.DiffPct.StringFixed(2), level, w.Status)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (r *Reconciler) archiveRaw(ctx context.Context, req Request, hash string, at time.Time) {
	if r.archive == nil {
		return
	}
	key := storage.OrderKey(req.CustomerID, hash)
	meta := &storage.Metadata{
		ContentType:  archive.ContentType(req.Filename),
		OriginalName: req.Filename,
		Owner:        "customer:" + strconv.FormatInt(req.CustomerID, 10),
		ReceivedAt:   at,
	}
	if _, err := storage.Archive(ctx, r.archive, key, req.Content, meta); err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("Failed to archive order file")
	}
}

func safeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, s)
}

// priceIndex looks rows up by normalized (oem, brand). Lines without a
// brand match by oem alone when that is unambiguous.
type priceIndex struct {
	byKey map[string]types.PriceRow
	byOEM map[string][]types.PriceRow
}

func newPriceIndex(rows []types.PriceRow) priceIndex {
	ix := priceIndex{byKey: aggregate.Index(rows), byOEM: make(map[string][]types.PriceRow)}
	for _, row := range rows {
		oem := normalize.OEM(row.OEM)
		ix.byOEM[oem] = append(ix.byOEM[oem], row)
	}
	return ix
}

func (ix priceIndex) lookup(oem, brand string) *types.PriceRow {
	if strings.TrimSpace(brand) != "" {
		if row, ok := ix.byKey[normalize.Key(oem, brand)]; ok {
			return &row
		}
		return nil
	}
	if rows := ix.byOEM[normalize.OEM(oem)]; len(rows) == 1 {
		row := rows[0]
		return &row
	}
	return nil
}

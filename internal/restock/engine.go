// Package restock decides which parts to buy back to their minimum balance,
// where to buy them and at what price.
package restock

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/partstrade/trade-service/internal/apperr"
	"github.com/partstrade/trade-service/internal/metrics"
	"github.com/partstrade/trade-service/internal/offers"
	"github.com/partstrade/trade-service/internal/telemetry"
	"github.com/partstrade/trade-service/internal/types"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

// NoHistoryCap is the acceptable price of a part without price history.
// It is large enough to accept any offer.
var NoHistoryCap = decimal.New(1, 12)

var hundred = decimal.NewFromInt(100)

// Skip reasons.
const (
	SkipNoHistory        = "no_price_history"
	SkipNoOffer          = "no_offer"
	SkipBudget           = "budget"
	SkipMarketplaceError = "marketplace_error"
)

// Store is the persistence the engine needs.
type Store interface {
	// RestockCandidates returns parts whose stock is below
	// minimum_balance * thresholdPct / 100.
	RestockCandidates(ctx context.Context, thresholdPct decimal.Decimal) ([]types.RestockCandidate, error)
	// HistoricalMinPrices returns the lowest snapshot price since the given
	// time, for parts that have one.
	HistoricalMinPrices(ctx context.Context, autoPartIDs []int64, since time.Time) (map[int64]decimal.Decimal, error)
	// PriceListOffers returns offers from the newest active supplier
	// snapshots, own stock excluded.
	PriceListOffers(ctx context.Context, autoPartIDs []int64) (map[int64][]types.RestockOffer, error)
	SaveRestockDecisions(ctx context.Context, decisions []types.RestockDecision) error
}

// Config holds the engine settings.
type Config struct {
	// PriceDeviation multiplies the historical minimum into the price cap.
	PriceDeviation      decimal.Decimal `mapstructure:"percentage_deviation_order_price"`
	HistoryMonths       int             `mapstructure:"history_months"`
	ThresholdPercent    decimal.Decimal `mapstructure:"threshold_percent"`
	RequirePriceHistory bool            `mapstructure:"require_price_history"`
	UseMarketplace      bool            `mapstructure:"use_marketplace"`
	AutoOrder           bool            `mapstructure:"auto_order"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		PriceDeviation:   decimal.RequireFromString("1.15"),
		HistoryMonths:    6,
		ThresholdPercent: hundred,
		UseMarketplace:   true,
	}
}

// Request parameterizes one pass.
type Request struct {
	Budget decimal.Decimal `json:"budget"`
	// ThresholdPercent overrides the configured trigger band.
	ThresholdPercent *decimal.Decimal `json:"thresholdPercent,omitempty"`
}

// Skip is a candidate that got no decision.
type Skip struct {
	AutoPartID int64  `json:"autopartId"`
	Brand      string `json:"brand"`
	OEM        string `json:"oem"`
	Reason     string `json:"reason"`
}

// Result summarizes one pass.
type Result struct {
	RunID      string                  `json:"runId"`
	Candidates int                     `json:"candidates"`
	Decisions  []types.RestockDecision `json:"decisions"`
	Skipped    []Skip                  `json:"skipped,omitempty"`
	Budget     decimal.Decimal         `json:"budget"`
	Spent      decimal.Decimal         `json:"spent"`
	Ordered    int                     `json:"ordered"`
}

// Engine runs restock passes.
type Engine struct {
	store       Store
	marketplace offers.Source
	cfg         Config
	metrics     *metrics.Recorder
	log         zerolog.Logger
	now         func() time.Time
}

// NewEngine creates an engine. marketplace may be nil.
func NewEngine(store Store, marketplace offers.Source, cfg Config, logger zerolog.Logger) *Engine {
	if cfg.PriceDeviation.IsZero() {
		cfg.PriceDeviation = DefaultConfig().PriceDeviation
	}
	if cfg.ThresholdPercent.IsZero() {
		cfg.ThresholdPercent = hundred
	}
	return &Engine{
		store:       store,
		marketplace: marketplace,
		cfg:         cfg,
		metrics:     metrics.NewRecorder(),
		log:         logger.With().Str("component", "restock").Logger(),
		now:         time.Now,
	}
}

// Run decides purchases for every part under its trigger level. Parts are
// visited in candidate order; one that does not fit the remaining budget is
// skipped and the pass goes on.
func (e *Engine) Run(ctx context.Context, req Request) (res *Result, err error) {
	if !req.Budget.IsPositive() {
		return nil, apperr.New(apperr.CodeValidation, "budget must be positive")
	}
	threshold := e.cfg.ThresholdPercent
	if req.ThresholdPercent != nil {
		threshold = *req.ThresholdPercent
	}
	if !threshold.IsPositive() {
		return nil, apperr.New(apperr.CodeValidation, "threshold percent must be positive")
	}

	ctx, span := telemetry.StartSpan(ctx, "restock.Run", attribute.String("budget", req.Budget.String()))
	defer func() { telemetry.EndSpan(span, err) }()

	start := e.now()
	candidates, err := e.store.RestockCandidates(ctx, threshold)
	if err != nil {
		return nil, fmt.Errorf("load restock candidates: %w", err)
	}

	res = &Result{
		RunID:      uuid.NewString(),
		Candidates: len(candidates),
		Decisions:  []types.RestockDecision{},
		Budget:     req.Budget,
		Spent:      decimal.Zero,
	}
	if len(candidates) == 0 {
		return res, nil
	}

	ids := make([]int64, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.AutoPartID)
	}
	since := start.AddDate(0, -e.cfg.HistoryMonths, 0)
	history, err := e.store.HistoricalMinPrices(ctx, ids, since)
	if err != nil {
		return nil, fmt.Errorf("load price history: %w", err)
	}
	known, err := e.store.PriceListOffers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load pricelist offers: %w", err)
	}

	for _, c := range candidates {
		needed := c.NeededQuantity()
		if needed <= 0 {
			continue
		}

		priceCap, ok := e.priceCap(history, c.AutoPartID)
		if !ok {
			res.skip(e, c, SkipNoHistory)
			continue
		}

		offer, qty, found := SelectOffer(known[c.AutoPartID], priceCap, needed)
		if !found && e.cfg.UseMarketplace && e.marketplace != nil {
			offer, qty, found, err = e.marketplaceOffer(ctx, c, priceCap, needed)
			if err != nil {
				e.log.Warn().Err(err).Int64("autopartId", c.AutoPartID).Msg("Marketplace search failed")
				res.skip(e, c, SkipMarketplaceError)
				continue
			}
		}
		if !found {
			res.skip(e, c, SkipNoOffer)
			continue
		}

		total := offer.Price.Mul(decimal.NewFromInt(int64(qty))).Round(2)
		if res.Spent.Add(total).GreaterThan(req.Budget) {
			e.log.Info().
				Int64("autopartId", c.AutoPartID).
				Str("total", total.StringFixed(2)).
				Str("remaining", req.Budget.Sub(res.Spent).StringFixed(2)).
				Msg("Restock skipped, over budget")
			res.skip(e, c, SkipBudget)
			continue
		}

		res.Spent = res.Spent.Add(total)
		res.Decisions = append(res.Decisions, types.RestockDecision{
			RunID:      res.RunID,
			AutoPartID: c.AutoPartID,
			Brand:      c.Brand,
			OEM:        c.OEM,
			Quantity:   qty,
			UnitPrice:  offer.Price,
			Total:      total,
			PriceCap:   priceCap,
			Offer:      offer,
			CreatedAt:  start.UTC(),
		})
		e.metrics.RecordRestockDecision(string(offer.Source))
	}

	if len(res.Decisions) > 0 {
		if err := e.store.SaveRestockDecisions(ctx, res.Decisions); err != nil {
			return nil, fmt.Errorf("save restock decisions: %w", err)
		}
	}
	if e.cfg.AutoOrder {
		res.Ordered = e.order(ctx, res.Decisions)
	}

	e.log.Info().
		Str("runId", res.RunID).
		Int("candidates", res.Candidates).
		Int("decided", len(res.Decisions)).
		Int("skipped", len(res.Skipped)).
		Str("spent", res.Spent.StringFixed(2)).
		Str("budget", req.Budget.StringFixed(2)).
		Int("ordered", res.Ordered).
		Dur("duration", e.now().Sub(start)).
		Msg("Restock pass finished")

	return res, nil
}

func (r *Result) skip(e *Engine, c types.RestockCandidate, reason string) {
	r.Skipped = append(r.Skipped, Skip{AutoPartID: c.AutoPartID, Brand: c.Brand, OEM: c.OEM, Reason: reason})
	e.metrics.RecordRestockSkip(reason)
	e.log.Debug().Int64("autopartId", c.AutoPartID).Str("oem", c.OEM).Str("reason", reason).Msg("Restock candidate skipped")
}

// priceCap is the highest acceptable unit price. ok is false when history
// is missing and required.
func (e *Engine) priceCap(history map[int64]decimal.Decimal, partID int64) (decimal.Decimal, bool) {
	low, ok := history[partID]
	if !ok || !low.IsPositive() {
		if e.cfg.RequirePriceHistory {
			return decimal.Zero, false
		}
		return NoHistoryCap, true
	}
	return low.Mul(e.cfg.PriceDeviation).Round(2), true
}

func (e *Engine) marketplaceOffer(ctx context.Context, c types.RestockCandidate, priceCap decimal.Decimal, needed int) (types.RestockOffer, int, bool, error) {
	found, err := e.marketplace.GetOffers(ctx, c.OEM, c.Brand, true)
	if err != nil {
		return types.RestockOffer{}, 0, false, err
	}
	offer, qty, ok := SelectMarketplaceOffer(found, priceCap, needed)
	return offer, qty, ok, nil
}

// order puts marketplace decisions into the basket and places it. Failures
// are logged; decisions stay recorded either way.
func (e *Engine) order(ctx context.Context, decisions []types.RestockDecision) int {
	added := 0
	for _, d := range decisions {
		if d.Offer.Source != types.OfferFromMarketplace || d.Offer.Marketplace == nil {
			continue
		}
		ok, err := e.marketplace.AddToBasket(ctx, *d.Offer.Marketplace, d.Quantity, "restock "+d.RunID)
		if err != nil || !ok {
			e.log.Warn().Err(err).Int64("autopartId", d.AutoPartID).Msg("Failed to add restock position to basket")
			continue
		}
		added++
	}
	if added == 0 {
		return 0
	}

	ok, err := e.marketplace.OrderBasket(ctx)
	if err != nil || !ok {
		e.log.Warn().Err(err).Int("positions", added).Msg("Failed to order marketplace basket")
		return 0
	}
	return added
}

// SelectOffer picks the cheapest offer priced within priceCap that covers
// needed. Equal prices keep input order.
func SelectOffer(candidates []types.RestockOffer, priceCap decimal.Decimal, needed int) (types.RestockOffer, int, bool) {
	sorted := append([]types.RestockOffer(nil), candidates...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Price.LessThan(sorted[j].Price) })

	for _, o := range sorted {
		if o.Price.LessThanOrEqual(priceCap) && o.Quantity >= needed {
			return o, needed, true
		}
	}
	return types.RestockOffer{}, 0, false
}

// SelectMarketplaceOffer picks the cheapest marketplace offer within
// priceCap. The order quantity is needed rounded up to the offer's minimum
// order multiple, and the offer must have that much.
func SelectMarketplaceOffer(found []types.MarketplaceOffer, priceCap decimal.Decimal, needed int) (types.RestockOffer, int, bool) {
	sorted := append([]types.MarketplaceOffer(nil), found...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Cost.LessThan(sorted[j].Cost) })

	for i := range sorted {
		m := sorted[i]
		qty := OrderQuantity(needed, m.MinQnt)
		if m.Cost.GreaterThan(priceCap) || m.Qnt < qty {
			continue
		}
		return types.RestockOffer{
			Source:      types.OfferFromMarketplace,
			Price:       m.Cost,
			Quantity:    m.Qnt,
			MinOrderQty: m.MinQnt,
			Marketplace: &m,
		}, qty, true
	}
	return types.RestockOffer{}, 0, false
}

// OrderQuantity rounds needed up to a multiple of minQty.
func OrderQuantity(needed, minQty int) int {
	if minQty <= 1 || needed%minQty == 0 {
		return needed
	}
	return (needed/minQty + 1) * minQty
}

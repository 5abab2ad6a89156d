package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/partstrade/trade-service/internal/apperr"
	"github.com/partstrade/trade-service/internal/types"
	"github.com/shopspring/decimal"
)

// RestockCandidates returns parts whose own stock fell below
// minimum_balance * thresholdPct / 100. Stock is the quantity in the newest
// active snapshot of each own-stock provider; a part missing there has none.
func (db *DB) RestockCandidates(ctx context.Context, thresholdPct decimal.Decimal) ([]types.RestockCandidate, error) {
	rows, err := db.q(ctx).Query(ctx, `
		WITH own_latest AS (
			SELECT DISTINCT ON (pl.provider_id) pl.id
			FROM pricelists pl
			JOIN providers pr ON pr.id = pl.provider_id
			WHERE pr.is_own_stock AND pl.is_active
			ORDER BY pl.provider_id, pl.date DESC, pl.id DESC
		), stock AS (
			SELECT a.autopart_id, SUM(a.quantity) AS qty
			FROM pricelist_autopart_associations a
			JOIN own_latest o ON o.id = a.pricelist_id
			GROUP BY a.autopart_id
		)
		SELECT p.id, b.name, p.oem_number, COALESCE(p.name, ''), COALESCE(s.qty, 0)::int, p.minimum_balance
		FROM autoparts p
		JOIN brands b ON b.id = p.brand_id
		LEFT JOIN stock s ON s.autopart_id = p.id
		WHERE p.minimum_balance > 0
		  AND COALESCE(s.qty, 0) < p.minimum_balance * $1::numeric / 100
		ORDER BY p.id
	`, numeric(thresholdPct))
	if err != nil {
		return nil, apperr.FromDB(err, "failed to load restock candidates")
	}
	defer rows.Close()

	var out []types.RestockCandidate
	for rows.Next() {
		var c types.RestockCandidate
		if err := rows.Scan(&c.AutoPartID, &c.Brand, &c.OEM, &c.Name, &c.CurrentStock, &c.MinimumBalance); err != nil {
			return nil, apperr.FromDB(err, "failed to scan restock candidate")
		}
		out = append(out, c)
	}
	return out, apperr.FromDB(rows.Err(), "failed to load restock candidates")
}

// HistoricalMinPrices returns the lowest supplier price of each part seen
// in snapshots dated since the given time. Own-stock snapshots are ignored.
func (db *DB) HistoricalMinPrices(ctx context.Context, autoPartIDs []int64, since time.Time) (map[int64]decimal.Decimal, error) {
	out := make(map[int64]decimal.Decimal)
	if len(autoPartIDs) == 0 {
		return out, nil
	}

	rows, err := db.q(ctx).Query(ctx, `
		SELECT a.autopart_id, MIN(a.price)::text
		FROM pricelist_autopart_associations a
		JOIN pricelists pl ON pl.id = a.pricelist_id
		JOIN providers pr ON pr.id = pl.provider_id
		WHERE a.autopart_id = ANY($1) AND pl.date >= $2 AND NOT pr.is_own_stock
		GROUP BY a.autopart_id
	`, autoPartIDs, since)
	if err != nil {
		return nil, apperr.FromDB(err, "failed to load price history")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id    int64
			price string
		)
		if err := rows.Scan(&id, &price); err != nil {
			return nil, apperr.FromDB(err, "failed to scan price history")
		}
		if out[id], err = parseDecimal(price); err != nil {
			return nil, err
		}
	}
	return out, apperr.FromDB(rows.Err(), "failed to load price history")
}

// PriceListOffers returns in-stock offers of the newest active snapshot of
// every supplier config.
func (db *DB) PriceListOffers(ctx context.Context, autoPartIDs []int64) (map[int64][]types.RestockOffer, error) {
	out := make(map[int64][]types.RestockOffer)
	if len(autoPartIDs) == 0 {
		return out, nil
	}

	rows, err := db.q(ctx).Query(ctx, `
		WITH latest AS (
			SELECT DISTINCT ON (pl.provider_id, pl.config_id) pl.id, pl.provider_id
			FROM pricelists pl
			JOIN providers pr ON pr.id = pl.provider_id
			WHERE pl.is_active AND NOT pr.is_own_stock
			ORDER BY pl.provider_id, pl.config_id, pl.date DESC, pl.id DESC
		)
		SELECT a.autopart_id, l.provider_id, l.id, a.price::text, a.quantity
		FROM latest l
		JOIN pricelist_autopart_associations a ON a.pricelist_id = l.id
		WHERE a.autopart_id = ANY($1) AND a.quantity > 0
		ORDER BY a.autopart_id, a.price, l.provider_id
	`, autoPartIDs)
	if err != nil {
		return nil, apperr.FromDB(err, "failed to load pricelist offers")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			partID, providerID, priceListID int64
			price                           string
			o                               = types.RestockOffer{Source: types.OfferFromPriceList, MinOrderQty: 1}
		)
		if err := rows.Scan(&partID, &providerID, &priceListID, &price, &o.Quantity); err != nil {
			return nil, apperr.FromDB(err, "failed to scan pricelist offer")
		}
		if o.Price, err = parseDecimal(price); err != nil {
			return nil, err
		}
		o.ProviderID = &providerID
		o.PriceListID = &priceListID
		out[partID] = append(out[partID], o)
	}
	return out, apperr.FromDB(rows.Err(), "failed to load pricelist offers")
}

// SaveRestockDecisions persists the decisions of one run and sets their ids.
func (db *DB) SaveRestockDecisions(ctx context.Context, decisions []types.RestockDecision) error {
	if len(decisions) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i := range decisions {
		d := &decisions[i]
		if d.CreatedAt.IsZero() {
			d.CreatedAt = time.Now().UTC()
		}
		offer, err := jsonParam(d.Offer)
		if err != nil {
			return apperr.Wrap(apperr.CodeInternal, err, "failed to encode restock offer")
		}
		batch.Queue(`
			INSERT INTO restock_decisions (run_id, autopart_id, quantity, unit_price, total, price_cap,
				source, provider_id, pricelist_id, offer, created_at)
			VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7, $8, $9, $10::jsonb, $11)
			RETURNING id
		`, d.RunID, d.AutoPartID, d.Quantity, numeric(d.UnitPrice), numeric(d.Total), numeric(d.PriceCap),
			d.Offer.Source, d.Offer.ProviderID, d.Offer.PriceListID, offer, d.CreatedAt)
	}

	return db.WithTx(ctx, func(ctx context.Context) error {
		br := db.q(ctx).SendBatch(ctx, batch)
		for i := range decisions {
			if err := br.QueryRow().Scan(&decisions[i].ID); err != nil {
				br.Close()
				return apperr.FromDB(err, fmt.Sprintf("failed to save decision for part %d", decisions[i].AutoPartID))
			}
		}
		return apperr.FromDB(br.Close(), "failed to save restock decisions")
	})
}

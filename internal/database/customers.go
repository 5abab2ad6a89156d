package database

import (
	"context"
	"fmt"

	"github.com/partstrade/trade-service/internal/apperr"
	"github.com/partstrade/trade-service/internal/types"
	"github.com/shopspring/decimal"
)

// GetCustomerPriceListConfig returns a customer config with its sources.
func (db *DB) GetCustomerPriceListConfig(ctx context.Context, id int64) (*types.CustomerPriceListConfig, error) {
	var (
		c                   types.CustomerPriceListConfig
		general, own, third string
		individual, filters []byte
	)
	err := db.q(ctx).QueryRow(ctx, `
		SELECT id, customer_id, name, general_markup::text, own_price_list_markup::text,
		       third_party_markup::text, individual_markups, filters, schedule, email_to, is_active
		FROM customer_pricelist_configs
		WHERE id = $1
	`, id).Scan(&c.ID, &c.CustomerID, &c.Name, &general, &own, &third,
		&individual, &filters, &c.Schedule, &c.EmailTo, &c.IsActive)
	if err != nil {
		return nil, apperr.FromDB(err, fmt.Sprintf("customer pricelist config %d not found", id))
	}

	for dst, src := range map[*decimal.Decimal]string{&c.GeneralMarkup: general, &c.OwnPriceListMarkup: own, &c.ThirdPartyMarkup: third} {
		if *dst, err = parseDecimal(src); err != nil {
			return nil, err
		}
	}
	if err := decodeJSON(individual, &c.IndividualMarkups); err != nil {
		return nil, apperr.Wrap(apperr.CodeConfig, err, "invalid individual markups")
	}
	if err := decodeJSON(filters, &c.Filters); err != nil {
		return nil, apperr.Wrap(apperr.CodeConfig, err, "invalid config filters")
	}

	c.Sources, err = db.customerSources(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (db *DB) customerSources(ctx context.Context, configID int64) ([]types.CustomerPriceListSource, error) {
	rows, err := db.q(ctx).Query(ctx, `
		SELECT s.id, s.provider_config_id, pc.provider_id, pc.is_own_price OR pr.is_own_stock,
		       s.enabled, s.markup::text, s.filters
		FROM customer_pricelist_sources s
		JOIN provider_pricelist_configs pc ON pc.id = s.provider_config_id
		JOIN providers pr ON pr.id = pc.provider_id
		WHERE s.customer_config_id = $1
		ORDER BY s.id
	`, configID)
	if err != nil {
		return nil, apperr.FromDB(err, "failed to load config sources")
	}
	defer rows.Close()

	var out []types.CustomerPriceListSource
	for rows.Next() {
		var (
			s       types.CustomerPriceListSource
			markup  string
			filters []byte
		)
		if err := rows.Scan(&s.ID, &s.ProviderConfigID, &s.ProviderID, &s.IsOwnPrice, &s.Enabled, &markup, &filters); err != nil {
			return nil, apperr.FromDB(err, "failed to scan config source")
		}
		if s.Markup, err = parseDecimal(markup); err != nil {
			return nil, err
		}
		if err := decodeJSON(filters, &s.Filters); err != nil {
			return nil, apperr.Wrap(apperr.CodeConfig, err, fmt.Sprintf("invalid filters of source %d", s.ID))
		}
		out = append(out, s)
	}
	return out, apperr.FromDB(rows.Err(), "failed to load config sources")
}

// CreateCustomerPriceList persists a customer snapshot.
func (db *DB) CreateCustomerPriceList(ctx context.Context, pl types.CustomerPriceList) (*types.CustomerPriceList, error) {
	err := db.WithTx(ctx, func(ctx context.Context) error {
		err := db.q(ctx).QueryRow(ctx, `
			INSERT INTO customer_pricelists (customer_id, config_id, date, is_active)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, pl.CustomerID, pl.ConfigID, pl.Date, pl.IsActive).Scan(&pl.ID)
		if err != nil {
			return apperr.FromDB(err, "failed to create customer pricelist")
		}
		return db.insertAssociations(ctx, `
			INSERT INTO customer_pricelist_associations (customer_pricelist_id, autopart_id, quantity, price)
			VALUES ($1, $2, $3, $4::numeric)
		`, pl.ID, pl.Associations)
	})
	if err != nil {
		return nil, err
	}
	return &pl, nil
}

// LatestCustomerPriceRows returns the rows of the newest customer snapshot
// of a config.
func (db *DB) LatestCustomerPriceRows(ctx context.Context, configID int64) ([]types.PriceRow, error) {
	rows, err := db.q(ctx).Query(ctx, `
		WITH latest AS (
			SELECT id FROM customer_pricelists
			WHERE config_id = $1 AND is_active
			ORDER BY date DESC, id DESC
			LIMIT 1
		)
		SELECT a.autopart_id, p.brand_id, b.name, p.oem_number, COALESCE(p.name, ''),
		       a.quantity, a.price::text
		FROM latest l
		JOIN customer_pricelist_associations a ON a.customer_pricelist_id = l.id
		JOIN autoparts p ON p.id = a.autopart_id
		JOIN brands b ON b.id = p.brand_id
		ORDER BY a.autopart_id
	`, configID)
	if err != nil {
		return nil, apperr.FromDB(err, "failed to load customer pricelist")
	}
	defer rows.Close()

	var out []types.PriceRow
	for rows.Next() {
		var (
			r     types.PriceRow
			price string
		)
		if err := rows.Scan(&r.AutoPartID, &r.BrandID, &r.Brand, &r.OEM, &r.Name, &r.Quantity, &price); err != nil {
			return nil, apperr.FromDB(err, "failed to scan customer pricelist row")
		}
		if r.Price, err = parseDecimal(price); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, apperr.FromDB(rows.Err(), "failed to load customer pricelist")
}

// ActiveSubstitutions returns active rules of the source parts that are
// global or scoped to customerConfigID, ordered by priority.
func (db *DB) ActiveSubstitutions(ctx context.Context, sourcePartIDs []int64, customerConfigID int64) (map[int64][]types.Substitution, error) {
	out := make(map[int64][]types.Substitution)
	if len(sourcePartIDs) == 0 {
		return out, nil
	}

	rows, err := db.q(ctx).Query(ctx, `
		SELECT s.id, s.source_autopart_id, s.substitution_brand_id, b.name, s.substitution_oem_number,
		       s.priority, s.min_source_quantity, s.quantity_reduction, s.is_active, s.customer_config_id
		FROM autopart_substitutions s
		JOIN brands b ON b.id = s.substitution_brand_id
		WHERE s.is_active
		  AND s.source_autopart_id = ANY($1)
		  AND (s.customer_config_id IS NULL OR s.customer_config_id = $2)
		ORDER BY s.source_autopart_id, s.priority, s.id
	`, sourcePartIDs, customerConfigID)
	if err != nil {
		return nil, apperr.FromDB(err, "failed to load substitutions")
	}
	defer rows.Close()

	for rows.Next() {
		var s types.Substitution
		if err := rows.Scan(&s.ID, &s.SourceAutoPartID, &s.SubstitutionBrandID, &s.SubstitutionBrand,
			&s.SubstitutionOEM, &s.Priority, &s.MinSourceQuantity, &s.QuantityReduction, &s.IsActive,
			&s.CustomerConfigID); err != nil {
			return nil, apperr.FromDB(err, "failed to scan substitution")
		}
		out[s.SourceAutoPartID] = append(out[s.SourceAutoPartID], s)
	}
	return out, apperr.FromDB(rows.Err(), "failed to load substitutions")
}

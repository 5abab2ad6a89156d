package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/partstrade/trade-service/internal/apperr"
	"github.com/partstrade/trade-service/internal/types"
)

// associationBatchSize bounds the statements queued per batch round trip.
const associationBatchSize = 1000

const providerConfigColumns = `
	c.id, c.provider_id, c.name, c.columns, c.filename_pattern, c.subject_pattern,
	c.max_days_without_update, c.last_stale_alert_at, c.is_own_price
`

func scanProviderConfig(row interface{ Scan(...any) error }, extra ...any) (*types.ProviderPriceListConfig, error) {
	var (
		c       types.ProviderPriceListConfig
		columns []byte
	)
	dest := append([]any{&c.ID, &c.ProviderID, &c.Name, &columns, &c.FilenamePattern, &c.SubjectPattern,
		&c.MaxDaysWithoutUpdate, &c.LastStaleAlertAt, &c.IsOwnPrice}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if err := decodeJSON(columns, &c.Columns); err != nil {
		return nil, apperr.Wrap(apperr.CodeConfig, err, fmt.Sprintf("invalid column map of provider config %d", c.ID))
	}
	return &c, nil
}

// GetProviderConfig returns one provider pricelist config.
func (db *DB) GetProviderConfig(ctx context.Context, id int64) (*types.ProviderPriceListConfig, error) {
	c, err := scanProviderConfig(db.q(ctx).QueryRow(ctx,
		`SELECT `+providerConfigColumns+` FROM provider_pricelist_configs c WHERE c.id = $1`, id))
	if err != nil {
		return nil, apperr.FromDB(err, fmt.Sprintf("provider config %d not found", id))
	}
	return c, nil
}

// ListProviderConfigs returns the configs of a provider by id.
func (db *DB) ListProviderConfigs(ctx context.Context, providerID int64) ([]types.ProviderPriceListConfig, error) {
	rows, err := db.q(ctx).Query(ctx,
		`SELECT `+providerConfigColumns+` FROM provider_pricelist_configs c WHERE c.provider_id = $1 ORDER BY c.id`, providerID)
	if err != nil {
		return nil, apperr.FromDB(err, "failed to list provider configs")
	}
	defer rows.Close()

	var out []types.ProviderPriceListConfig
	for rows.Next() {
		c, err := scanProviderConfig(rows)
		if err != nil {
			return nil, apperr.FromDB(err, "failed to scan provider config")
		}
		out = append(out, *c)
	}
	return out, apperr.FromDB(rows.Err(), "failed to list provider configs")
}

// CreateIngestionRun inserts a run record.
func (db *DB) CreateIngestionRun(ctx context.Context, run *types.IngestionRun) error {
	_, err := db.q(ctx).Exec(ctx, `
		INSERT INTO ingestion_runs (id, provider_id, source, filename, file_hash, dedup_key, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, run.ID, run.ProviderID, string(run.Source), run.Filename, run.FileHash, run.DedupKey, string(run.Status), run.StartedAt)
	return apperr.FromDB(err, "failed to create ingestion run")
}

// UpdateIngestionRun writes the status, counters and outcome of a run.
func (db *DB) UpdateIngestionRun(ctx context.Context, run *types.IngestionRun) error {
	tag, err := db.q(ctx).Exec(ctx, `
		UPDATE ingestion_runs SET
			status = $2, total_rows = $3, valid_rows = $4, skipped_rows = $5,
			created_parts = $6, pricelist_id = $7, error = $8, finished_at = $9
		WHERE id = $1
	`, run.ID, string(run.Status), run.TotalRows, run.ValidRows, run.SkippedRows,
		run.CreatedParts, run.PriceListID, run.Error, run.FinishedAt)
	if err != nil {
		return apperr.FromDB(err, "failed to update ingestion run")
	}
	if tag.RowsAffected() == 0 {
		return apperr.Newf(apperr.CodeNotFound, "ingestion run %s not found", run.ID)
	}
	return nil
}

const runSelect = `
	SELECT id::text, provider_id, source, filename, file_hash, dedup_key, status,
	       total_rows, valid_rows, skipped_rows, created_parts, pricelist_id, error,
	       started_at, finished_at
	FROM ingestion_runs
`

func scanRun(row pgx.Row) (*types.IngestionRun, error) {
	var (
		r              types.IngestionRun
		source, status string
	)
	err := row.Scan(&r.ID, &r.ProviderID, &source, &r.Filename, &r.FileHash, &r.DedupKey, &status,
		&r.TotalRows, &r.ValidRows, &r.SkippedRows, &r.CreatedParts, &r.PriceListID, &r.Error,
		&r.StartedAt, &r.FinishedAt)
	if err != nil {
		return nil, err
	}
	r.Source = types.IngestionSource(source)
	r.Status = types.IngestionStatus(status)
	return &r, nil
}

// GetIngestionRun returns a run by id.
func (db *DB) GetIngestionRun(ctx context.Context, id string) (*types.IngestionRun, error) {
	r, err := scanRun(db.q(ctx).QueryRow(ctx, runSelect+` WHERE id = $1::uuid`, id))
	if err != nil {
		return nil, apperr.FromDB(err, fmt.Sprintf("ingestion run %s not found", id))
	}
	return r, nil
}

// FindPersistedRun returns nil when no persisted run matches.
func (db *DB) FindPersistedRun(ctx context.Context, providerID int64, dedupKey, fileHash string) (*types.IngestionRun, error) {
	r, err := scanRun(db.q(ctx).QueryRow(ctx, runSelect+`
		WHERE provider_id = $1 AND dedup_key = $2 AND file_hash = $3 AND status = $4
		ORDER BY started_at DESC
		LIMIT 1
	`, providerID, dedupKey, fileHash, string(types.StatusPersisted)))
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.FromDB(err, "failed to look up previous runs")
	}
	return r, nil
}

// snapshotRowsQuery reads the associations of the snapshot picked by the
// "latest" CTE passed in.
const snapshotRowsQuery = `
	SELECT a.autopart_id, p.brand_id, b.name, p.oem_number, COALESCE(p.name, ''),
	       a.quantity, a.price::text, l.provider_id, COALESCE(l.config_id, 0),
	       COALESCE(c.is_own_price, FALSE) OR pr.is_own_stock
	FROM latest l
	JOIN pricelist_autopart_associations a ON a.pricelist_id = l.id
	JOIN autoparts p ON p.id = a.autopart_id
	JOIN brands b ON b.id = p.brand_id
	JOIN providers pr ON pr.id = l.provider_id
	LEFT JOIN provider_pricelist_configs c ON c.id = l.config_id
	ORDER BY a.autopart_id
`

func (db *DB) priceRows(ctx context.Context, query string, args ...any) ([]types.PriceRow, error) {
	rows, err := db.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.FromDB(err, "failed to load snapshot rows")
	}
	defer rows.Close()

	var out []types.PriceRow
	for rows.Next() {
		var (
			r     types.PriceRow
			price string
		)
		if err := rows.Scan(&r.AutoPartID, &r.BrandID, &r.Brand, &r.OEM, &r.Name,
			&r.Quantity, &price, &r.ProviderID, &r.ProviderConfigID, &r.IsOwnPrice); err != nil {
			return nil, apperr.FromDB(err, "failed to scan snapshot row")
		}
		if r.Price, err = parseDecimal(price); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, apperr.FromDB(rows.Err(), "failed to load snapshot rows")
}

// LatestSnapshotRows returns the rows of the newest snapshot of a provider,
// restricted to configID when set.
func (db *DB) LatestSnapshotRows(ctx context.Context, providerID int64, configID *int64) ([]types.PriceRow, error) {
	return db.priceRows(ctx, `
		WITH latest AS (
			SELECT id, provider_id, config_id FROM pricelists
			WHERE provider_id = $1 AND ($2::bigint IS NULL OR config_id = $2) AND is_active
			ORDER BY date DESC, id DESC
			LIMIT 1
		)`+snapshotRowsQuery, providerID, configID)
}

// LatestPriceRows returns the rows of the newest active snapshot of a
// provider config.
func (db *DB) LatestPriceRows(ctx context.Context, providerConfigID int64) ([]types.PriceRow, error) {
	return db.priceRows(ctx, `
		WITH latest AS (
			SELECT id, provider_id, config_id FROM pricelists
			WHERE config_id = $1 AND is_active
			ORDER BY date DESC, id DESC
			LIMIT 1
		)`+snapshotRowsQuery, providerConfigID)
}

// CreatePriceList inserts a snapshot with its associations.
func (db *DB) CreatePriceList(ctx context.Context, pl types.PriceList) (*types.PriceList, error) {
	err := db.WithTx(ctx, func(ctx context.Context) error {
		err := db.q(ctx).QueryRow(ctx, `
			INSERT INTO pricelists (provider_id, config_id, date, is_active)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, pl.ProviderID, pl.ConfigID, pl.Date, pl.IsActive).Scan(&pl.ID)
		if err != nil {
			return apperr.FromDB(err, "failed to create pricelist")
		}
		return db.insertAssociations(ctx, `
			INSERT INTO pricelist_autopart_associations (pricelist_id, autopart_id, quantity, price)
			VALUES ($1, $2, $3, $4::numeric)
		`, pl.ID, pl.Associations)
	})
	if err != nil {
		return nil, err
	}
	return &pl, nil
}

// insertAssociations queues one insert per association in batches.
func (db *DB) insertAssociations(ctx context.Context, query string, ownerID int64, assocs []types.PriceListAssociation) error {
	for start := 0; start < len(assocs); start += associationBatchSize {
		end := min(start+associationBatchSize, len(assocs))

		batch := &pgx.Batch{}
		for _, a := range assocs[start:end] {
			batch.Queue(query, ownerID, a.AutoPartID, a.Quantity, numeric(a.Price))
		}

		br := db.q(ctx).SendBatch(ctx, batch)
		for i := start; i < end; i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return apperr.FromDB(err, fmt.Sprintf("failed to insert association %d", i))
			}
		}
		if err := br.Close(); err != nil {
			return apperr.FromDB(err, "failed to insert associations")
		}
	}
	return nil
}

// WatchItems returns the watch entries of the given parts.
func (db *DB) WatchItems(ctx context.Context, autoPartIDs []int64) ([]types.PriceWatchItem, error) {
	if len(autoPartIDs) == 0 {
		return nil, nil
	}
	rows, err := db.q(ctx).Query(ctx, `
		SELECT id, autopart_id, target_price::text, notify_on_change
		FROM price_watch_items
		WHERE autopart_id = ANY($1)
		ORDER BY id
	`, autoPartIDs)
	if err != nil {
		return nil, apperr.FromDB(err, "failed to load watch items")
	}
	defer rows.Close()

	var out []types.PriceWatchItem
	for rows.Next() {
		var (
			w      types.PriceWatchItem
			target *string
		)
		if err := rows.Scan(&w.ID, &w.AutoPartID, &target, &w.NotifyOnChange); err != nil {
			return nil, apperr.FromDB(err, "failed to scan watch item")
		}
		if w.TargetPrice, err = parseNullDecimal(target); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, apperr.FromDB(rows.Err(), "failed to load watch items")
}

// LastPriceCheck returns nil when the item was never checked.
func (db *DB) LastPriceCheck(ctx context.Context, watchItemID int64) (*types.PriceCheckLog, error) {
	var (
		l        types.PriceCheckLog
		price    string
		previous *string
	)
	err := db.q(ctx).QueryRow(ctx, `
		SELECT watch_item_id, provider_id, pricelist_id, price::text, previous_price::text, alerted, checked_at
		FROM price_check_logs
		WHERE watch_item_id = $1
		ORDER BY checked_at DESC, id DESC
		LIMIT 1
	`, watchItemID).Scan(&l.WatchItemID, &l.ProviderID, &l.PriceListID, &price, &previous, &l.Alerted, &l.CheckedAt)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.FromDB(err, "failed to load last price check")
	}
	if l.Price, err = parseDecimal(price); err != nil {
		return nil, err
	}
	if l.PreviousPrice, err = parseNullDecimal(previous); err != nil {
		return nil, err
	}
	return &l, nil
}

// CreatePriceCheckLog records a watchlist evaluation.
func (db *DB) CreatePriceCheckLog(ctx context.Context, entry types.PriceCheckLog) error {
	_, err := db.q(ctx).Exec(ctx, `
		INSERT INTO price_check_logs (watch_item_id, provider_id, pricelist_id, price, previous_price, alerted, checked_at)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6, $7)
	`, entry.WatchItemID, entry.ProviderID, entry.PriceListID, numeric(entry.Price),
		nullNumeric(entry.PreviousPrice), entry.Alerted, entry.CheckedAt)
	return apperr.FromDB(err, "failed to record price check")
}

// ProviderFreshness returns every provider config with its newest
// snapshot date.
func (db *DB) ProviderFreshness(ctx context.Context) ([]types.ProviderFreshness, error) {
	rows, err := db.q(ctx).Query(ctx, `
		SELECT `+providerConfigColumns+`, pr.name,
		       (SELECT MAX(p.date) FROM pricelists p WHERE p.config_id = c.id)
		FROM provider_pricelist_configs c
		JOIN providers pr ON pr.id = c.provider_id
		ORDER BY c.id
	`)
	if err != nil {
		return nil, apperr.FromDB(err, "failed to load provider freshness")
	}
	defer rows.Close()

	var out []types.ProviderFreshness
	for rows.Next() {
		var (
			name string
			last *time.Time
		)
		c, err := scanProviderConfig(rows, &name, &last)
		if err != nil {
			return nil, apperr.FromDB(err, "failed to scan provider freshness")
		}
		out = append(out, types.ProviderFreshness{Config: *c, ProviderName: name, LastPriceAt: last})
	}
	return out, apperr.FromDB(rows.Err(), "failed to load provider freshness")
}

// CreateStaleAlert records the alert and stamps the config.
func (db *DB) CreateStaleAlert(ctx context.Context, alert types.PriceListStaleAlert) error {
	return db.WithTx(ctx, func(ctx context.Context) error {
		_, err := db.q(ctx).Exec(ctx, `
			INSERT INTO pricelist_stale_alerts (provider_id, config_id, last_price_at, days_stale, alerted_at)
			VALUES ($1, $2, $3, $4, $5)
		`, alert.ProviderID, alert.ConfigID, alert.LastPriceAt, alert.DaysStale, alert.AlertedAt)
		if err != nil {
			return apperr.FromDB(err, "failed to record stale alert")
		}
		_, err = db.q(ctx).Exec(ctx,
			`UPDATE provider_pricelist_configs SET last_stale_alert_at = $2 WHERE id = $1`,
			alert.ConfigID, alert.AlertedAt)
		return apperr.FromDB(err, "failed to stamp stale alert")
	})
}

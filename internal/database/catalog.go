package database

import (
	"context"

	"github.com/partstrade/trade-service/internal/apperr"
	"github.com/partstrade/trade-service/internal/types"
)

const brandColumns = `b.id, b.name, b.country_of_origin, b.main_brand`

// Synonyms returns the direct synonyms of a brand.
func (db *DB) Synonyms(ctx context.Context, brandID int64) ([]types.Brand, error) {
	rows, err := db.q(ctx).Query(ctx, `
		SELECT `+brandColumns+`
		FROM brand_synonyms s
		JOIN brands b ON b.id = s.synonym_id
		WHERE s.brand_id = $1
		ORDER BY b.id
	`, brandID)
	if err != nil {
		return nil, apperr.FromDB(err, "failed to load synonyms")
	}
	defer rows.Close()

	var out []types.Brand
	for rows.Next() {
		var b types.Brand
		if err := rows.Scan(&b.ID, &b.Name, &b.CountryOfOrigin, &b.MainBrand); err != nil {
			return nil, apperr.FromDB(err, "failed to scan synonym")
		}
		out = append(out, b)
	}
	return out, apperr.FromDB(rows.Err(), "failed to load synonyms")
}

// FindBrandByName returns nil when no brand has that canonical name.
func (db *DB) FindBrandByName(ctx context.Context, name string) (*types.Brand, error) {
	var b types.Brand
	err := db.q(ctx).QueryRow(ctx, `SELECT `+brandColumns+` FROM brands b WHERE b.name = $1`, name).
		Scan(&b.ID, &b.Name, &b.CountryOfOrigin, &b.MainBrand)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.FromDB(err, "failed to find brand")
	}
	return &b, nil
}

// GetBrand returns the brand with id.
func (db *DB) GetBrand(ctx context.Context, id int64) (*types.Brand, error) {
	var b types.Brand
	err := db.q(ctx).QueryRow(ctx, `SELECT `+brandColumns+` FROM brands b WHERE b.id = $1`, id).
		Scan(&b.ID, &b.Name, &b.CountryOfOrigin, &b.MainBrand)
	if err != nil {
		return nil, apperr.FromDB(err, "brand not found")
	}
	return &b, nil
}

// AddSynonym links two brands in both directions.
func (db *DB) AddSynonym(ctx context.Context, a, b int64) error {
	if a == b {
		return apperr.New(apperr.CodeValidation, "a brand cannot be its own synonym")
	}
	return db.WithTx(ctx, func(ctx context.Context) error {
		_, err := db.q(ctx).Exec(ctx, `
			INSERT INTO brand_synonyms (brand_id, synonym_id)
			VALUES ($1, $2), ($2, $1)
			ON CONFLICT DO NOTHING
		`, a, b)
		return apperr.FromDB(err, "failed to add synonym")
	})
}

// RemoveSynonym unlinks two brands in both directions.
func (db *DB) RemoveSynonym(ctx context.Context, a, b int64) error {
	return db.WithTx(ctx, func(ctx context.Context) error {
		_, err := db.q(ctx).Exec(ctx, `
			DELETE FROM brand_synonyms
			WHERE (brand_id = $1 AND synonym_id = $2) OR (brand_id = $2 AND synonym_id = $1)
		`, a, b)
		return apperr.FromDB(err, "failed to remove synonym")
	})
}

const autopartSelect = `
	SELECT p.id, p.brand_id, b.name, p.oem_number, p.name, p.barcode,
	       p.minimum_balance, p.min_balance_auto, p.created_at
	FROM autoparts p
	JOIN brands b ON b.id = p.brand_id
`

func scanAutoPart(row interface{ Scan(...any) error }) (*types.AutoPart, error) {
	var p types.AutoPart
	err := row.Scan(&p.ID, &p.BrandID, &p.BrandName, &p.OEMNumber, &p.Name, &p.Barcode,
		&p.MinimumBalance, &p.MinBalanceAuto, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FindAutoPart returns nil when the part does not exist.
func (db *DB) FindAutoPart(ctx context.Context, brandID int64, oem string) (*types.AutoPart, error) {
	p, err := scanAutoPart(db.q(ctx).QueryRow(ctx, autopartSelect+` WHERE p.brand_id = $1 AND p.oem_number = $2`, brandID, oem))
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.FromDB(err, "failed to find part")
	}
	return p, nil
}

// CreateAutoPart inserts the part. When a concurrent insert won, the
// existing row is returned with created false.
func (db *DB) CreateAutoPart(ctx context.Context, part types.AutoPart) (*types.AutoPart, bool, error) {
	var id int64
	err := db.q(ctx).QueryRow(ctx, `
		INSERT INTO autoparts (brand_id, oem_number, name, barcode, minimum_balance, min_balance_auto)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (brand_id, oem_number) DO NOTHING
		RETURNING id
	`, part.BrandID, part.OEMNumber, part.Name, part.Barcode, part.MinimumBalance, part.MinBalanceAuto).Scan(&id)

	created := true
	if isNoRows(err) {
		created = false
	} else if err != nil {
		return nil, false, apperr.FromDB(err, "failed to create part")
	}

	saved, err := db.FindAutoPart(ctx, part.BrandID, part.OEMNumber)
	if err != nil {
		return nil, false, err
	}
	if saved == nil {
		return nil, false, apperr.Newf(apperr.CodeInternal, "part %d/%s vanished after insert", part.BrandID, part.OEMNumber)
	}
	return saved, created, nil
}

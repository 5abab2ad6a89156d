// Package catalog resolves supplier rows to catalog parts, creating parts on
// first sight. (brand, oem) identifies a part.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/partstrade/trade-service/internal/heuristics"
	"github.com/partstrade/trade-service/internal/normalize"
	"github.com/partstrade/trade-service/internal/types"
	"github.com/rs/zerolog"
)

// ErrInvalidOEM is returned when a code normalizes to nothing.
var ErrInvalidOEM = errors.New("oem is empty after normalization")

// Repository is the storage the matcher needs.
type Repository interface {
	normalize.SynonymSource
	// FindBrandByName returns nil when no brand has that canonical name.
	FindBrandByName(ctx context.Context, name string) (*types.Brand, error)
	// FindAutoPart returns nil when the part does not exist.
	FindAutoPart(ctx context.Context, brandID int64, oem string) (*types.AutoPart, error)
	// CreateAutoPart inserts the part or returns the row that won a
	// concurrent insert; created is false in that case.
	CreateAutoPart(ctx context.Context, part types.AutoPart) (saved *types.AutoPart, created bool, err error)
}

// BrandResolution is the outcome of brand lookup for one row.
type BrandResolution struct {
	Brand    types.Brand
	Inferred bool
	// Candidates lists the names that were tried, in order.
	Candidates []string
}

// Matcher resolves brands and parts. It caches brand lookups and is meant to
// live for one ingestion run.
type Matcher struct {
	repo   Repository
	log    zerolog.Logger
	brands map[string]*types.Brand
	parts  map[string]*types.AutoPart
}

// NewMatcher creates a matcher over repo.
func NewMatcher(repo Repository, logger zerolog.Logger) *Matcher {
	return &Matcher{
		repo:   repo,
		log:    logger.With().Str("component", "catalog").Logger(),
		brands: make(map[string]*types.Brand),
		parts:  make(map[string]*types.AutoPart),
	}
}

// ResolveBrand maps a raw brand cell to a known brand, collapsed to the main
// brand of its synonym group. Only an empty brand is inferred from the OEM.
// ok is false when nothing known matches; an explicit brand, placeholders
// such as "NOBRAND" included, is never replaced by an inferred one.
func (m *Matcher) ResolveBrand(ctx context.Context, rawBrand, oem string) (res BrandResolution, ok bool, err error) {
	name := normalize.Brand(rawBrand)
	if name == "" {
		res.Inferred = true
		res.Candidates = heuristics.Infer(oem)
	} else {
		res.Candidates = []string{name}
	}

	for _, candidate := range res.Candidates {
		brand, err := m.brandByName(ctx, normalize.Brand(candidate))
		if err != nil {
			return res, false, err
		}
		if brand == nil {
			continue
		}

		main, err := normalize.ResolveSynonymGroup(ctx, m.repo, *brand)
		if err != nil {
			return res, false, fmt.Errorf("resolve synonyms of %s: %w", brand.Name, err)
		}
		res.Brand = main
		return res, true, nil
	}
	return res, false, nil
}

func (m *Matcher) brandByName(ctx context.Context, name string) (*types.Brand, error) {
	if b, ok := m.brands[name]; ok {
		return b, nil
	}
	b, err := m.repo.FindBrandByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("find brand %s: %w", name, err)
	}
	m.brands[name] = b
	return b, nil
}

// GetOrCreate returns the part for (brand, oem), creating it with a derived
// barcode when absent. Repeated calls with noisy spellings of the same code
// return the same part.
func (m *Matcher) GetOrCreate(ctx context.Context, oem string, brand types.Brand, name string) (*types.AutoPart, bool, error) {
	code := normalize.OEM(oem)
	if code == "" {
		return nil, false, ErrInvalidOEM
	}

	key := fmt.Sprintf("%d|%s", brand.ID, code)
	if p, ok := m.parts[key]; ok {
		return p, false, nil
	}

	existing, err := m.repo.FindAutoPart(ctx, brand.ID, code)
	if err != nil {
		return nil, false, fmt.Errorf("find part %s %s: %w", brand.Name, code, err)
	}
	if existing != nil {
		m.parts[key] = existing
		return existing, false, nil
	}

	part := types.AutoPart{
		BrandID:   brand.ID,
		BrandName: brand.Name,
		OEMNumber: code,
		Barcode:   types.Barcode(brand.Name, code),
	}
	if cleaned := normalize.CleanName(name); cleaned != "" {
		part.Name = &cleaned
	}

	saved, created, err := m.repo.CreateAutoPart(ctx, part)
	if err != nil {
		return nil, false, fmt.Errorf("create part %s %s: %w", brand.Name, code, err)
	}
	if created {
		m.log.Debug().Int64("autopartId", saved.ID).Str("brand", brand.Name).Str("oem", code).Msg("Created catalog part")
	}
	m.parts[key] = saved
	return saved, created, nil
}

package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/partstrade/trade-service/internal/apperr"
	"github.com/partstrade/trade-service/internal/catalog"
	"github.com/partstrade/trade-service/internal/markup"
	"github.com/partstrade/trade-service/internal/metrics"
	"github.com/partstrade/trade-service/internal/notify"
	"github.com/partstrade/trade-service/internal/telemetry"
	"github.com/partstrade/trade-service/internal/types"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// Store is the persistence the builder needs.
type Store interface {
	catalog.Repository
	SubstitutionSource
	GetCustomerPriceListConfig(ctx context.Context, id int64) (*types.CustomerPriceListConfig, error)
	// LatestPriceRows returns the rows of the newest active snapshot of a
	// provider config, IsOwnPrice set from the config.
	LatestPriceRows(ctx context.Context, providerConfigID int64) ([]types.PriceRow, error)
	CreateCustomerPriceList(ctx context.Context, pl types.CustomerPriceList) (*types.CustomerPriceList, error)
}

// Computed is an aggregated offer set before persistence.
type Computed struct {
	Config   *types.CustomerPriceListConfig
	Rows     []types.PriceRow
	Warnings []string
}

// BuildOptions controls Build side effects.
type BuildOptions struct {
	// Email sends the export to the config's EmailTo address.
	Email bool
}

// BuildResult summarizes one persisted customer pricelist.
type BuildResult struct {
	PriceList *types.CustomerPriceList `json:"priceList"`
	Rows      int                      `json:"rows"`
	Filename  string                   `json:"filename"`
	Export    []byte                   `json:"-"`
	Emailed   bool                     `json:"emailed"`
	Warnings  []string                 `json:"warnings,omitempty"`
}

// Builder composes customer pricelists.
type Builder struct {
	store    Store
	expander *Expander
	notifier *notify.Notifier
	metrics  *metrics.Recorder
	log      zerolog.Logger
	now      func() time.Time
}

// NewBuilder creates a builder.
func NewBuilder(store Store, house HouseBrand, notifier *notify.Notifier, logger zerolog.Logger) *Builder {
	return &Builder{
		store:    store,
		expander: NewExpander(store, house),
		notifier: notifier,
		metrics:  metrics.NewRecorder(),
		log:      logger.With().Str("component", "pricelist-builder").Logger(),
		now:      time.Now,
	}
}

// Compute returns the aggregated, marked-up rows of a customer config.
// Each enabled source runs through its own markup and filters, then the
// config stages without general markup; sources are combined, expanded with
// substitutions and the general markup is applied once.
func (b *Builder) Compute(ctx context.Context, configID int64) (*Computed, error) {
	cfg, err := b.store.GetCustomerPriceListConfig(ctx, configID)
	if err != nil {
		return nil, err
	}

	warnings, err := markup.ValidateConfig(*cfg)
	if err != nil {
		return nil, err
	}

	var sources [][]types.PriceRow
	for _, src := range cfg.Sources {
		if !src.Enabled {
			continue
		}
		rows, err := b.store.LatestPriceRows(ctx, src.ProviderConfigID)
		if err != nil {
			return nil, fmt.Errorf("load snapshot of provider config %d: %w", src.ProviderConfigID, err)
		}
		for i := range rows {
			rows[i].IsOwnPrice = rows[i].IsOwnPrice || src.IsOwnPrice
		}

		rows, _ = markup.Apply(rows, markup.FromSource(src), markup.Options{SkipGeneral: true})
		rows, stats := markup.Apply(rows, markup.FromCustomerConfig(*cfg), markup.Options{SkipGeneral: true})
		b.log.Debug().
			Int64("configId", cfg.ID).
			Int64("providerConfigId", src.ProviderConfigID).
			Int("input", stats.Input).
			Int("output", stats.Output).
			Msg("Composed source")
		sources = append(sources, rows)
	}
	if len(sources) == 0 {
		return nil, apperr.Newf(apperr.CodeConfig, "customer config %d has no enabled sources", cfg.ID)
	}

	combined := Combine(sources...)
	expanded, err := b.expander.Expand(ctx, combined, cfg.ID)
	if err != nil {
		return nil, err
	}

	return &Computed{
		Config:   cfg,
		Rows:     markup.ApplyGeneral(expanded, cfg.GeneralMarkup),
		Warnings: warnings,
	}, nil
}

// Offers is Compute with every row bound to a catalog part. Substitution
// rows get their part created on demand.
func (b *Builder) Offers(ctx context.Context, configID int64) (*Computed, error) {
	computed, err := b.Compute(ctx, configID)
	if err != nil {
		return nil, err
	}
	rows, err := b.resolveParts(ctx, computed.Rows)
	if err != nil {
		return nil, err
	}
	computed.Rows = rows
	return computed, nil
}

// Build computes, persists and exports the customer pricelist of configID.
func (b *Builder) Build(ctx context.Context, configID int64, opts BuildOptions) (res *BuildResult, err error) {
	start := b.now()
	ctx, span := telemetry.StartSpan(ctx, "aggregate.Build", attribute.Int64("config.id", configID))
	defer func() { telemetry.EndSpan(span, err) }()

	computed, err := b.Offers(ctx, configID)
	if err != nil {
		return nil, err
	}
	cfg := computed.Config
	rows := computed.Rows

	pl := types.CustomerPriceList{
		CustomerID:   cfg.CustomerID,
		ConfigID:     cfg.ID,
		Date:         start.UTC(),
		IsActive:     true,
		Associations: make([]types.PriceListAssociation, 0, len(rows)),
	}
	for _, r := range rows {
		pl.Associations = append(pl.Associations, types.PriceListAssociation{
			AutoPartID: r.AutoPartID,
			Quantity:   r.Quantity,
			Price:      r.Price,
		})
	}

	saved, err := b.store.CreateCustomerPriceList(ctx, pl)
	if err != nil {
		return nil, fmt.Errorf("persist customer pricelist: %w", err)
	}

	export, err := ExportXLSX(rows)
	if err != nil {
		return nil, fmt.Errorf("export customer pricelist: %w", err)
	}

	res = &BuildResult{
		PriceList: saved,
		Rows:      len(rows),
		Filename:  fmt.Sprintf("pricelist_%s_%s.xlsx", sanitizeName(cfg.Name), start.Format("2006-01-02")),
		Export:    export,
		Warnings:  computed.Warnings,
	}

	if opts.Email && cfg.EmailTo != nil && *cfg.EmailTo != "" {
		b.notifier.Email(*cfg.EmailTo,
			fmt.Sprintf("Price list %s", cfg.Name),
			fmt.Sprintf("Price list %s dated %s, %d positions.", cfg.Name, start.Format("02.01.2006"), len(rows)),
			export, res.Filename)
		res.Emailed = true
	}

	b.metrics.RecordCustomerPriceList(len(rows), b.now().Sub(start))
	b.log.Info().
		Int64("configId", cfg.ID).
		Int64("priceListId", saved.ID).
		Int("rows", len(rows)).
		Bool("emailed", res.Emailed).
		Msg("Customer pricelist built")

	return res, nil
}

// resolveParts gives substitution rows a catalog part and drops rows that
// collapse onto a part already present.
func (b *Builder) resolveParts(ctx context.Context, rows []types.PriceRow) ([]types.PriceRow, error) {
	matcher := catalog.NewMatcher(b.store, b.log)
	seen := make(map[int64]struct{}, len(rows))
	out := make([]types.PriceRow, 0, len(rows))

	for _, r := range rows {
		if r.AutoPartID == 0 {
			part, _, err := matcher.GetOrCreate(ctx, r.OEM, types.Brand{ID: r.BrandID, Name: r.Brand}, r.Name)
			if err != nil {
				return nil, fmt.Errorf("resolve substitution %s %s: %w", r.Brand, r.OEM, err)
			}
			r.AutoPartID = part.ID
		}
		if _, dup := seen[r.AutoPartID]; dup {
			continue
		}
		seen[r.AutoPartID] = struct{}{}
		out = append(out, r)
	}
	return out, nil
}

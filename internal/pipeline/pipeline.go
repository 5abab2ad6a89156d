// Package pipeline ingests supplier pricelist files into dated snapshots.
//
// One ingestion run moves RECEIVED -> PARSED -> MATCHED -> PERSISTED, or to
// FAILED from any state. Parts created while matching and the snapshot
// itself are written in one transaction, so a failed run leaves nothing
// behind except its run record.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/partstrade/trade-service/internal/apperr"
	"github.com/partstrade/trade-service/internal/catalog"
	"github.com/partstrade/trade-service/internal/metrics"
	"github.com/partstrade/trade-service/internal/notify"
	"github.com/partstrade/trade-service/internal/parsers"
	"github.com/partstrade/trade-service/internal/storage"
	"github.com/partstrade/trade-service/internal/telemetry"
	"github.com/partstrade/trade-service/internal/types"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/semaphore"
)

// Store is the persistence the ingestion pipeline needs.
type Store interface {
	catalog.Repository

	GetProviderConfig(ctx context.Context, id int64) (*types.ProviderPriceListConfig, error)
	ListProviderConfigs(ctx context.Context, providerID int64) ([]types.ProviderPriceListConfig, error)

	CreateIngestionRun(ctx context.Context, run *types.IngestionRun) error
	UpdateIngestionRun(ctx context.Context, run *types.IngestionRun) error
	GetIngestionRun(ctx context.Context, id string) (*types.IngestionRun, error)
	// FindPersistedRun returns nil when no persisted run of the provider
	// carries both dedupKey and fileHash.
	FindPersistedRun(ctx context.Context, providerID int64, dedupKey, fileHash string) (*types.IngestionRun, error)

	// LatestSnapshotRows returns the rows of the newest snapshot of the
	// provider, restricted to configID when set. Empty when there is none.
	LatestSnapshotRows(ctx context.Context, providerID int64, configID *int64) ([]types.PriceRow, error)
	CreatePriceList(ctx context.Context, pl types.PriceList) (*types.PriceList, error)

	WatchItems(ctx context.Context, autoPartIDs []int64) ([]types.PriceWatchItem, error)
	// LastPriceCheck returns nil when the item was never checked.
	LastPriceCheck(ctx context.Context, watchItemID int64) (*types.PriceCheckLog, error)
	CreatePriceCheckLog(ctx context.Context, entry types.PriceCheckLog) error

	ProviderFreshness(ctx context.Context) ([]types.ProviderFreshness, error)
	CreateStaleAlert(ctx context.Context, alert types.PriceListStaleAlert) error

	// WithTx runs fn in one transaction carried by the context passed to fn.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// NoiseFloor is the smallest relative change, in percent, that counts as a
// price or quantity change.
type NoiseFloor struct {
	PricePct decimal.Decimal
	QtyPct   decimal.Decimal
}

// Options configures an Ingestor.
type Options struct {
	Extract parsers.Options
	Noise   NoiseFloor
	// MaxConcurrent bounds ingestions running at once across providers.
	MaxConcurrent int64
	// ReportLines caps the lines per section of the delta report.
	ReportLines int
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		Extract: parsers.DefaultOptions(),
		Noise: NoiseFloor{
			PricePct: decimal.RequireFromString("0.01"),
			QtyPct:   decimal.RequireFromString("0.0001"),
		},
		MaxConcurrent: 4,
		ReportLines:   20,
	}
}

// Request is one received supplier file.
type Request struct {
	ProviderID int64
	// ConfigID selects a stored column mapping; Columns overrides it.
	ConfigID *int64
	Columns  *types.ColumnMap
	Filename string
	Content  []byte
	Source   types.IngestionSource
	// DedupKey identifies the delivery (a mail message id). Runs without it
	// always create a new snapshot.
	DedupKey string
}

// Result is the structured summary of one ingestion.
type Result struct {
	Run       types.IngestionRun       `json:"run"`
	PriceList *types.PriceList         `json:"priceList,omitempty"`
	Duplicate bool                     `json:"duplicate"`
	Skipped   map[types.SkipReason]int `json:"skipped,omitempty"`
	Reasons   []string                 `json:"reasons,omitempty"`
	Warnings  []types.ParseWarning     `json:"warnings,omitempty"`
	Delta     *Delta                   `json:"delta,omitempty"`
}

// Ingestor runs pricelist ingestions.
type Ingestor struct {
	store     Store
	extractor *parsers.Extractor
	archive   storage.Storage
	notifier  *notify.Notifier
	metrics   *metrics.Recorder
	opts      Options
	locks     *keyedMutex
	sem       *semaphore.Weighted
	log       zerolog.Logger
	now       func() time.Time
}

// NewIngestor creates an ingestor. archive and notifier may be nil.
func NewIngestor(store Store, archive storage.Storage, notifier *notify.Notifier, opts Options, logger zerolog.Logger) *Ingestor {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	if opts.ReportLines <= 0 {
		opts.ReportLines = 20
	}
	return &Ingestor{
		store:     store,
		extractor: parsers.NewExtractor(opts.Extract, logger),
		archive:   archive,
		notifier:  notifier,
		metrics:   metrics.NewRecorder(),
		opts:      opts,
		locks:     newKeyedMutex(),
		sem:       semaphore.NewWeighted(opts.MaxConcurrent),
		log:       logger.With().Str("component", "ingestion").Logger(),
		now:       time.Now,
	}
}

// Ingest runs one file through the pipeline. Ingestions of the same provider
// are serialized. A delivery already persisted under the same dedup key and
// content hash is reported as a duplicate without creating anything.
func (in *Ingestor) Ingest(ctx context.Context, req Request) (res *Result, err error) {
	if req.ProviderID <= 0 {
		return nil, apperr.New(apperr.CodeValidation, "provider id is required")
	}
	if len(req.Content) == 0 {
		return nil, apperr.New(apperr.CodeValidation, "file is empty")
	}
	if req.Source == "" {
		req.Source = types.SourceAPI
	}

	ctx, span := telemetry.StartSpan(ctx, "pipeline.Ingest",
		attribute.Int64("provider.id", req.ProviderID),
		attribute.String("file.name", req.Filename))
	defer func() { telemetry.EndSpan(span, err) }()

	if err := in.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer in.sem.Release(1)

	unlock := in.locks.Lock(req.ProviderID)
	defer unlock()

	received, dup, err := in.receive(ctx, req)
	if err != nil {
		return nil, err
	}
	if dup != nil {
		in.log.Info().
			Str("runId", dup.ID).
			Int64("providerId", req.ProviderID).
			Str("dedupKey", req.DedupKey).
			Msg("Skipping already ingested delivery")
		return &Result{Run: *dup, Duplicate: true}, nil
	}

	run := received.run
	res, err = in.process(ctx, req, received)
	if err != nil {
		in.fail(ctx, run, err)
		return nil, err
	}
	return res, nil
}

// GetRun returns a run record.
func (in *Ingestor) GetRun(ctx context.Context, id string) (*types.IngestionRun, error) {
	run, err := in.store.GetIngestionRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, apperr.Newf(apperr.CodeNotFound, "ingestion run %s not found", id)
	}
	return run, nil
}

func (in *Ingestor) process(ctx context.Context, req Request, rc *receivedFile) (*Result, error) {
	run := rc.run

	columns, configID, err := in.resolveColumns(ctx, req)
	if err != nil {
		return nil, err
	}

	parsed, err := in.parse(ctx, req, columns, run)
	if err != nil {
		return nil, err
	}

	previous, err := in.store.LatestSnapshotRows(ctx, req.ProviderID, configID)
	if err != nil {
		return nil, fmt.Errorf("load previous snapshot: %w", err)
	}

	matched, saved, err := in.persist(ctx, req, configID, parsed, run)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Run:       *run,
		PriceList: saved,
		Skipped:   matched.skipped,
		Reasons:   matched.reasons,
		Warnings:  parsed.Warnings,
	}

	delta := ComputeDelta(previous, matched.rows, in.opts.Noise)
	res.Delta = &delta
	if len(previous) > 0 && !delta.Empty() {
		in.notifier.Message(delta.Render(fmt.Sprintf("provider %d", req.ProviderID), in.opts.ReportLines))
	}

	if err := in.checkWatchlist(ctx, req.ProviderID, saved.ID, matched.rows); err != nil {
		// the snapshot is committed; watchlist problems only get logged
		in.log.Warn().Err(err).Int64("priceListId", saved.ID).Msg("Watchlist evaluation failed")
	}

	duration := in.now().Sub(run.StartedAt)
	in.metrics.RecordIngestion(string(types.StatusPersisted), run.ValidRows, run.SkippedRows, run.CreatedParts, duration)
	in.log.Info().
		Str("runId", run.ID).
		Int64("providerId", req.ProviderID).
		Int64("priceListId", saved.ID).
		Int("total", run.TotalRows).
		Int("valid", run.ValidRows).
		Int("skipped", run.SkippedRows).
		Int("createdParts", run.CreatedParts).
		Int("new", len(delta.New)).
		Int("removed", len(delta.Removed)).
		Int("priceChanges", len(delta.PriceChanges)).
		Dur("duration", duration).
		Msg("Ingestion persisted")

	return res, nil
}

func (in *Ingestor) resolveColumns(ctx context.Context, req Request) (types.ColumnMap, *int64, error) {
	var cfg *types.ProviderPriceListConfig
	if req.ConfigID != nil {
		c, err := in.store.GetProviderConfig(ctx, *req.ConfigID)
		if err != nil {
			return types.ColumnMap{}, nil, err
		}
		if c.ProviderID != req.ProviderID {
			return types.ColumnMap{}, nil, apperr.Newf(apperr.CodeValidation,
				"config %d does not belong to provider %d", c.ID, req.ProviderID)
		}
		cfg = c
	}

	switch {
	case req.Columns != nil && cfg != nil:
		return *req.Columns, &cfg.ID, nil
	case req.Columns != nil:
		return *req.Columns, nil, nil
	case cfg != nil:
		return cfg.Columns, &cfg.ID, nil
	}

	configs, err := in.store.ListProviderConfigs(ctx, req.ProviderID)
	if err != nil {
		return types.ColumnMap{}, nil, err
	}
	match := MatchConfig(configs, req.Filename, "")
	if match == nil {
		return types.ColumnMap{}, nil, apperr.Newf(apperr.CodeConfig,
			"provider %d has no pricelist config matching %q", req.ProviderID, req.Filename)
	}
	return match.Columns, &match.ID, nil
}

func (in *Ingestor) transition(ctx context.Context, run *types.IngestionRun, status types.IngestionStatus) error {
	run.Status = status
	if status.IsTerminal() {
		run.FinishedAt = types.TimePtr(in.now().UTC())
	}
	if err := in.store.UpdateIngestionRun(ctx, run); err != nil {
		return fmt.Errorf("update run %s to %s: %w", run.ID, status, err)
	}
	return nil
}

func (in *Ingestor) fail(ctx context.Context, run *types.IngestionRun, cause error) {
	msg := cause.Error()
	run.Error = &msg

	var noRows *NoValidRowsError
	if errors.As(cause, &noRows) {
		run.TotalRows = noRows.TotalRows
		run.SkippedRows = noRows.Skipped
		run.ValidRows = 0
	}

	// the caller's context may be what failed
	if err := in.transition(context.WithoutCancel(ctx), run, types.StatusFailed); err != nil {
		in.log.Error().Err(err).Str("runId", run.ID).Msg("Failed to record run failure")
	}

	in.metrics.RecordIngestion(string(types.StatusFailed), 0, run.SkippedRows, 0, in.now().Sub(run.StartedAt))
	in.log.Error().
		Err(cause).
		Str("runId", run.ID).
		Int64("providerId", run.ProviderID).
		Str("code", string(apperr.CodeOf(cause))).
		Msg("Ingestion failed")
}

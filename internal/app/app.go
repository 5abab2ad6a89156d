// Package app wires configuration into the running components shared by
// the server and the CLI.
package app

import (
	"context"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/partstrade/trade-service/config"
	"github.com/partstrade/trade-service/internal/aggregate"
	"github.com/partstrade/trade-service/internal/database"
	"github.com/partstrade/trade-service/internal/notify"
	"github.com/partstrade/trade-service/internal/offers"
	"github.com/partstrade/trade-service/internal/orders"
	"github.com/partstrade/trade-service/internal/parsers"
	"github.com/partstrade/trade-service/internal/parsers/charset"
	"github.com/partstrade/trade-service/internal/pipeline"
	"github.com/partstrade/trade-service/internal/restock"
	"github.com/partstrade/trade-service/internal/storage"
	"github.com/partstrade/trade-service/internal/telemetry"
)

var (
	_ pipeline.Store  = (*database.DB)(nil)
	_ aggregate.Store = (*database.DB)(nil)
	_ orders.Store    = (*database.DB)(nil)
	_ restock.Store   = (*database.DB)(nil)
)

// App holds the connected components of one process.
type App struct {
	Config     *config.Config
	Log        zerolog.Logger
	DB         *database.DB
	Archive    storage.Storage
	Notifier   *notify.Notifier
	Offers     offers.Source
	Ingestor   *pipeline.Ingestor
	Builder    *aggregate.Builder
	Reconciler *orders.Reconciler
	Restock    *restock.Engine

	closers []func(ctx context.Context) error
}

// New connects the database, storage, notification sinks, tracing and the
// marketplace client, then builds the domain components over them. On error
// everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (_ *App, err error) {
	a := &App{Config: cfg, Log: logger}
	defer func() {
		if err != nil {
			err = multierr.Append(err, a.Close(context.Background()))
		}
	}()

	shutdown, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, shutdown)

	a.DB, err = database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func(context.Context) error {
		a.DB.Close()
		return nil
	})

	a.Archive, err = storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	sink, err := NewSink(cfg.Kafka, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func(context.Context) error {
		return notify.CloseAll(sink...)
	})
	a.Notifier = notify.NewNotifier(sink, cfg.Ingestion.NotifyTimeout, logger)

	if cfg.Marketplace.BaseURL != "" {
		if a.Offers, err = a.newOffers(ctx); err != nil {
			return nil, err
		}
	}

	extract := ExtractOptions(cfg)
	a.Ingestor = pipeline.NewIngestor(a.DB, a.Archive, a.Notifier, IngestOptions(cfg, extract), logger)
	a.Builder = aggregate.NewBuilder(a.DB, aggregate.HouseBrand{
		Name:   cfg.Pricing.HouseBrand,
		Prefix: cfg.Pricing.HousePrefix,
	}, a.Notifier, logger)
	a.Reconciler = orders.NewReconciler(a.DB, a.Builder, parsers.NewExtractor(extract, logger), a.Archive, a.Notifier, logger)
	a.Restock = restock.NewEngine(a.DB, a.Offers, cfg.Restock, logger)

	return a, nil
}

func (a *App) newOffers(ctx context.Context) (offers.Source, error) {
	client, err := offers.NewClient(a.Config.Marketplace, a.Log)
	if err != nil {
		return nil, err
	}
	if a.Config.Redis.URL == "" {
		return client, nil
	}

	rc, err := offers.NewRedisClient(ctx, a.Config.Redis.URL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func(context.Context) error {
		return rc.Close()
	})
	return offers.NewCachedSource(client, offers.NewRedisCache(rc), a.Config.Marketplace.CacheTTL, a.Log), nil
}

// Close waits for pending notifications and releases everything in reverse
// order of acquisition.
func (a *App) Close(ctx context.Context) error {
	a.Notifier.Wait()

	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i](ctx))
	}
	a.closers = nil
	return err
}

// NewSink returns the log sink, fanned out to kafka when brokers are set.
func NewSink(cfg config.KafkaConfig, logger zerolog.Logger) (notify.MultiSink, error) {
	sinks := notify.MultiSink{notify.NewLogSink(logger)}
	if len(cfg.Brokers) == 0 {
		return sinks, nil
	}

	writer, err := notify.NewKafkaWriter(notify.KafkaConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		Username: cfg.Username,
		Password: cfg.Password,
		TLS:      cfg.TLS,
	})
	if err != nil {
		return nil, err
	}
	return append(sinks, notify.NewKafkaSink(writer)), nil
}

// ExtractOptions maps configuration onto the spreadsheet extractor.
func ExtractOptions(cfg *config.Config) parsers.Options {
	opts := parsers.DefaultOptions()
	if cfg.Pricing.PriceCeiling.IsPositive() {
		opts.PriceCeiling = cfg.Pricing.PriceCeiling
	}
	if cfg.Ingestion.MaxArchiveMB > 0 {
		opts.Archive.MaxFileSize = cfg.Ingestion.MaxArchiveMB << 20
	}
	opts.CSV.Encoding = charset.Encoding(cfg.Ingestion.CSVCharset)
	return opts
}

// IngestOptions maps configuration onto the ingestion pipeline.
func IngestOptions(cfg *config.Config, extract parsers.Options) pipeline.Options {
	opts := pipeline.DefaultOptions()
	opts.Extract = extract
	opts.Noise = pipeline.NoiseFloor{
		PricePct: cfg.Ingestion.PriceNoisePct,
		QtyPct:   cfg.Ingestion.QtyNoisePct,
	}
	if cfg.Ingestion.MaxConcurrent > 0 {
		opts.MaxConcurrent = cfg.Ingestion.MaxConcurrent
	}
	if cfg.Ingestion.ReportLines > 0 {
		opts.ReportLines = cfg.Ingestion.ReportLines
	}
	return opts
}

// Package handlers exposes the pipeline entry points over HTTP.
package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/partstrade/trade-service/internal/aggregate"
	"github.com/partstrade/trade-service/internal/orders"
	"github.com/partstrade/trade-service/internal/pipeline"
	"github.com/partstrade/trade-service/internal/restock"
	"github.com/partstrade/trade-service/internal/types"
)

// Ingestor runs pricelist ingestions.
type Ingestor interface {
	Ingest(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
	GetRun(ctx context.Context, id string) (*types.IngestionRun, error)
	CheckStalePricelists(ctx context.Context, now time.Time) ([]types.PriceListStaleAlert, error)
}

// PriceListBuilder builds customer pricelists.
type PriceListBuilder interface {
	Build(ctx context.Context, configID int64, opts aggregate.BuildOptions) (*aggregate.BuildResult, error)
}

// OrderReconciler processes customer order files.
type OrderReconciler interface {
	Reconcile(ctx context.Context, req orders.Request) (*orders.Result, error)
}

// RestockRunner runs restock passes.
type RestockRunner interface {
	Run(ctx context.Context, req restock.Request) (*restock.Result, error)
}

// SynonymStore maintains brand synonyms.
type SynonymStore interface {
	AddSynonym(ctx context.Context, a, b int64) error
	RemoveSynonym(ctx context.Context, a, b int64) error
}

// Pinger reports database reachability.
type Pinger interface {
	Status(ctx context.Context) error
}

// Deps are the components behind the API.
type Deps struct {
	Ingestor   Ingestor
	Builder    PriceListBuilder
	Reconciler OrderReconciler
	Restock    RestockRunner
	Synonyms   SynonymStore
	DB         Pinger
	// MaxUpload caps uploaded file sizes in bytes.
	MaxUpload int64
}

// Handler serves the API.
type Handler struct {
	deps Deps
	log  zerolog.Logger
	now  func() time.Time
}

// New creates a handler.
func New(deps Deps, logger zerolog.Logger) *Handler {
	if deps.MaxUpload <= 0 {
		deps.MaxUpload = 64 << 20
	}
	return &Handler{
		deps: deps,
		log:  logger.With().Str("component", "http").Logger(),
		now:  time.Now,
	}
}

// Register mounts the API routes under api.
func (h *Handler) Register(api gin.IRouter) {
	api.POST("/providers/:providerId/pricelists", h.UploadPriceList)
	api.GET("/ingestion/runs/:runId", h.GetRun)
	api.POST("/stale-check", h.StaleCheck)

	api.POST("/customer-configs/:configId/pricelists", h.BuildPriceList)
	api.POST("/customers/:customerId/orders", h.UploadOrder)

	api.POST("/restock/runs", h.RunRestock)

	api.POST("/brands/:brandId/synonyms/:synonymId", h.AddSynonym)
	api.DELETE("/brands/:brandId/synonyms/:synonymId", h.RemoveSynonym)
}

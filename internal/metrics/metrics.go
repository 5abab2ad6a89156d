// Package metrics exposes the prometheus instruments of the trade service.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/partstrade/trade-service/internal/telemetry"
)

var (
	// ingestionRuns tracks finished ingestion runs by terminal status.
	ingestionRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trade_ingestion_runs_total",
		Help: "Pricelist ingestion runs by terminal status",
	}, []string{"status"})

	// ingestionRows tracks rows by outcome: valid, skipped, created.
	ingestionRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trade_ingestion_rows_total",
		Help: "Pricelist rows by outcome",
	}, []string{"outcome"})

	ingestionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "trade_ingestion_duration_seconds",
		Help:    "Time taken to ingest one pricelist",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	customerPriceListRows = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "trade_customer_pricelist_rows",
		Help:    "Rows in built customer pricelists",
		Buckets: []float64{10, 100, 1000, 10000, 50000, 100000, 500000},
	})

	customerPriceListDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "trade_customer_pricelist_build_seconds",
		Help:    "Time taken to build a customer pricelist",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})

	// orderFiles tracks order files by result: processed, duplicate, failed.
	orderFiles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trade_order_files_total",
		Help: "Customer order files by result",
	}, []string{"result"})

	orderItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trade_order_items_total",
		Help: "Customer order lines by reconciliation status",
	}, []string{"status"})

	restockDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trade_restock_decisions_total",
		Help: "Restock purchases by offer source",
	}, []string{"source"})

	restockSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trade_restock_skipped_total",
		Help: "Restock candidates left unsourced by reason",
	}, []string{"reason"})

	// offerRequests tracks marketplace calls by result: ok, error, cache_hit.
	offerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trade_offer_requests_total",
		Help: "Marketplace offer lookups by result",
	}, []string{"result"})

	notificationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trade_notifications_failed_total",
		Help: "Notifications that could not be delivered",
	}, []string{"kind"})

	staleAlerts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trade_stale_pricelist_alerts_total",
		Help: "Stale pricelist alerts raised",
	})
)

// Recorder records service metrics. The zero value records to prometheus
// only.
type Recorder struct {
	// operations mirrors run durations to the OTLP meter.
	operations metric.Float64Histogram
}

// NewRecorder creates a recorder bound to the global meter provider.
func NewRecorder() *Recorder {
	r := &Recorder{}
	h, err := telemetry.Meter().Float64Histogram("trade.operation.duration",
		metric.WithDescription("Duration of ingestion and pricelist build runs"),
		metric.WithUnit("s"),
	)
	if err == nil {
		r.operations = h
	}
	return r
}

func (r *Recorder) observeOperation(op, status string, d time.Duration) {
	if r.operations == nil {
		return
	}
	r.operations.Record(context.Background(), d.Seconds(), metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("status", status),
	))
}

// RecordIngestion records one finished ingestion run.
func (r *Recorder) RecordIngestion(status string, valid, skipped, created int, duration time.Duration) {
	ingestionRuns.WithLabelValues(status).Inc()
	ingestionRows.WithLabelValues("valid").Add(float64(valid))
	ingestionRows.WithLabelValues("skipped").Add(float64(skipped))
	ingestionRows.WithLabelValues("created").Add(float64(created))
	ingestionDuration.Observe(duration.Seconds())
	r.observeOperation("ingest", status, duration)
}

// RecordCustomerPriceList records one built customer pricelist.
func (r *Recorder) RecordCustomerPriceList(rows int, duration time.Duration) {
	customerPriceListRows.Observe(float64(rows))
	customerPriceListDuration.Observe(duration.Seconds())
	r.observeOperation("build_pricelist", "ok", duration)
}

// RecordOrderFile records the outcome of one order file.
func (r *Recorder) RecordOrderFile(result string) {
	orderFiles.WithLabelValues(result).Inc()
}

// RecordOrderItem records one reconciled order line.
func (r *Recorder) RecordOrderItem(status string) {
	orderItems.WithLabelValues(status).Inc()
}

// RecordRestockDecision records one sourced restock purchase.
func (r *Recorder) RecordRestockDecision(source string) {
	restockDecisions.WithLabelValues(source).Inc()
}

// RecordRestockSkip records a candidate left unsourced.
func (r *Recorder) RecordRestockSkip(reason string) {
	restockSkipped.WithLabelValues(reason).Inc()
}

// RecordOfferRequest records one marketplace lookup.
func (r *Recorder) RecordOfferRequest(result string) {
	offerRequests.WithLabelValues(result).Inc()
}

// RecordNotificationFailure records a failed notification delivery.
func (r *Recorder) RecordNotificationFailure(kind string) {
	notificationFailures.WithLabelValues(kind).Inc()
}

// RecordStaleAlert records a raised stale pricelist alert.
func (r *Recorder) RecordStaleAlert() {
	staleAlerts.Inc()
}

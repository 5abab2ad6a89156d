package app

import (
	"bytes"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partstrade/trade-service/config"
	"github.com/partstrade/trade-service/internal/parsers/charset"
)

func testConfig() *config.Config {
	return &config.Config{
		Pricing: config.PricingConfig{
			HouseBrand:   "PARTSTRADE",
			PriceCeiling: decimal.RequireFromString("5000"),
		},
		Ingestion: config.IngestionConfig{
			PriceNoisePct: decimal.RequireFromString("0.5"),
			QtyNoisePct:   decimal.RequireFromString("1"),
			MaxConcurrent: 2,
			ReportLines:   5,
			MaxArchiveMB:  1,
			CSVCharset:    "koi8-r",
		},
	}
}

func TestExtractOptions(t *testing.T) {
	opts := ExtractOptions(testConfig())

	assert.True(t, opts.PriceCeiling.Equal(decimal.NewFromInt(5000)))
	assert.EqualValues(t, 1<<20, opts.Archive.MaxFileSize)
	assert.Equal(t, charset.EncodingKOI8R, opts.CSV.Encoding)
}

func TestIngestOptions(t *testing.T) {
	cfg := testConfig()
	opts := IngestOptions(cfg, ExtractOptions(cfg))

	assert.True(t, opts.Noise.PricePct.Equal(decimal.RequireFromString("0.5")))
	assert.True(t, opts.Noise.QtyPct.Equal(decimal.NewFromInt(1)))
	assert.EqualValues(t, 2, opts.MaxConcurrent)
	assert.Equal(t, 5, opts.ReportLines)
}

func TestNewSink(t *testing.T) {
	t.Run("log only without brokers", func(t *testing.T) {
		sink, err := NewSink(config.KafkaConfig{}, newLogger(config.LoggingConfig{}, "test", &bytes.Buffer{}))
		require.NoError(t, err)
		assert.Len(t, sink, 1)
	})

	t.Run("kafka with brokers", func(t *testing.T) {
		sink, err := NewSink(config.KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "events"},
			newLogger(config.LoggingConfig{}, "test", &bytes.Buffer{}))
		require.NoError(t, err)
		assert.Len(t, sink, 2)
	})

	t.Run("brokers without topic", func(t *testing.T) {
		_, err := NewSink(config.KafkaConfig{Brokers: []string{"localhost:9092"}},
			newLogger(config.LoggingConfig{}, "test", &bytes.Buffer{}))
		assert.Error(t, err)
	})
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(config.LoggingConfig{Level: "warn", Format: "json"}, "trade-service", &buf)

	logger.Info().Msg("hidden")
	logger.Warn().Err(errors.New("boom")).Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"service":"trade-service"`)
	assert.Contains(t, out, `"error":"boom"`)
}

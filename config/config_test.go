package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partstrade/trade-service/internal/apperr"
	"github.com/partstrade/trade-service/internal/storage"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/trade")

	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/trade", cfg.Database.URL)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, storage.StorageTypeLocal, cfg.Storage.Type)
	assert.Equal(t, "PARTSTRADE", cfg.Pricing.HouseBrand)
	assert.True(t, cfg.Pricing.PriceCeiling.Equal(decimal.RequireFromString("99999999.99")))
	assert.True(t, cfg.Ingestion.PriceNoisePct.Equal(decimal.RequireFromString("0.01")))
	assert.True(t, cfg.Ingestion.QtyNoisePct.Equal(decimal.RequireFromString("0.0001")))
	assert.True(t, cfg.Restock.PriceDeviation.Equal(decimal.RequireFromString("1.15")))
	assert.True(t, cfg.Restock.ThresholdPercent.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, 6, cfg.Restock.HistoryMonths)
	assert.False(t, cfg.Restock.RequirePriceHistory)
	assert.Equal(t, 15*time.Minute, cfg.Marketplace.CacheTTL)
	assert.Equal(t, 2.0, cfg.Marketplace.RateLimit.RequestsPerSecond)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/trade")

	t.Run("yaml file", func(t *testing.T) {
		path := writeConfig(t, `
restock:
  percentage_deviation_order_price: 1.2
  history_months: 3
  require_price_history: true
ingestion:
  max_concurrent: 8
server:
  shutdown_timeout: 3s
`)
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.True(t, cfg.Restock.PriceDeviation.Equal(decimal.RequireFromString("1.2")))
		assert.Equal(t, 3, cfg.Restock.HistoryMonths)
		assert.True(t, cfg.Restock.RequirePriceHistory)
		assert.EqualValues(t, 8, cfg.Ingestion.MaxConcurrent)
		assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	})

	t.Run("prefixed env", func(t *testing.T) {
		t.Setenv("TRADE_SERVICE_RESTOCK_THRESHOLD_PERCENT", "80")
		t.Setenv("TRADE_SERVICE_PRICING_HOUSE_BRAND", "ACME")
		cfg, err := Load(writeConfig(t, "{}\n"))
		require.NoError(t, err)
		assert.True(t, cfg.Restock.ThresholdPercent.Equal(decimal.NewFromInt(80)))
		assert.Equal(t, "ACME", cfg.Pricing.HouseBrand)
	})

	t.Run("conventional env", func(t *testing.T) {
		t.Setenv("PORT", "8081")
		t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
		cfg, err := Load(writeConfig(t, "{}\n"))
		require.NoError(t, err)
		assert.Equal(t, 8081, cfg.Server.Port)
		assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	})
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		yaml string
	}{
		{
			name: "missing database url",
			yaml: "{}\n",
		},
		{
			name: "unknown log level",
			env:  map[string]string{"DATABASE_URL": "postgres://x", "LOG_LEVEL": "verbose"},
			yaml: "{}\n",
		},
		{
			name: "s3 without bucket",
			env:  map[string]string{"DATABASE_URL": "postgres://x"},
			yaml: "storage:\n  type: s3\n  endpoint: minio:9000\n",
		},
		{
			name: "non-positive deviation",
			env:  map[string]string{"DATABASE_URL": "postgres://x"},
			yaml: "restock:\n  percentage_deviation_order_price: 0\n",
		},
		{
			name: "auto order without marketplace",
			env:  map[string]string{"DATABASE_URL": "postgres://x"},
			yaml: "restock:\n  auto_order: true\n",
		},
		{
			name: "malformed decimal",
			env:  map[string]string{"DATABASE_URL": "postgres://x"},
			yaml: "pricing:\n  price_ceiling: lots\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeConfig(t, tt.yaml))
			require.Error(t, err)
			assert.True(t, apperr.IsCode(err, apperr.CodeConfig), "got %v", err)
		})
	}
}

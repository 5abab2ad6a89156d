package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/partstrade/trade-service/internal/apperr"
	"github.com/partstrade/trade-service/internal/database"
	"github.com/partstrade/trade-service/internal/offers"
	"github.com/partstrade/trade-service/internal/restock"
	"github.com/partstrade/trade-service/internal/storage"
	"github.com/partstrade/trade-service/internal/telemetry"
)

const envPrefix = "TRADE_SERVICE"

// Config holds the application configuration
type Config struct {
	Server      ServerConfig     `mapstructure:"server"`
	Database    database.Config  `mapstructure:"database"`
	Redis       RedisConfig      `mapstructure:"redis"`
	Kafka       KafkaConfig      `mapstructure:"kafka"`
	Storage     storage.Config   `mapstructure:"storage"`
	Logging     LoggingConfig    `mapstructure:"logging"`
	Telemetry   telemetry.Config `mapstructure:"telemetry"`
	Auth        AuthConfig       `mapstructure:"auth"`
	Marketplace offers.Config    `mapstructure:"marketplace"`
	Pricing     PricingConfig    `mapstructure:"pricing"`
	Ingestion   IngestionConfig  `mapstructure:"ingestion"`
	Restock     restock.Config   `mapstructure:"restock"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"gte=1,lte=65535"`
	Host            string        `mapstructure:"host"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	MaxUploadMB     int64         `mapstructure:"max_upload_mb" validate:"gte=1"`

	// RequestsPerSecond and Burst throttle each client IP.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gte=0"`
	Burst             int     `mapstructure:"burst" validate:"gte=0"`
}

// RedisConfig holds the offer cache connection. An empty URL disables the cache.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// KafkaConfig holds the notification transport. Without brokers events
// are only logged.
type KafkaConfig struct {
	Brokers  []string `mapstructure:"brokers"`
	Topic    string   `mapstructure:"topic"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	TLS      bool     `mapstructure:"tls"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `mapstructure:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Format  string `mapstructure:"format" validate:"oneof=json console"`
	NoColor bool   `mapstructure:"no_color"`
}

// AuthConfig holds API authentication. An empty key disables auth.
type AuthConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// PricingConfig holds catalog-wide pricing constants.
type PricingConfig struct {
	HouseBrand   string          `mapstructure:"house_brand" validate:"required"`
	HousePrefix  string          `mapstructure:"house_prefix"`
	PriceCeiling decimal.Decimal `mapstructure:"price_ceiling"`
}

// IngestionConfig holds pricelist ingestion settings.
type IngestionConfig struct {
	PriceNoisePct decimal.Decimal `mapstructure:"price_noise_pct"`
	QtyNoisePct   decimal.Decimal `mapstructure:"qty_noise_pct"`
	MaxConcurrent int64           `mapstructure:"max_concurrent" validate:"gte=1"`
	ReportLines   int             `mapstructure:"report_lines" validate:"gte=1"`
	NotifyTimeout time.Duration   `mapstructure:"notify_timeout"`
	MaxArchiveMB  int64           `mapstructure:"max_archive_mb" validate:"gte=1"`

	// CSVCharset forces a CSV encoding; empty means detect.
	CSVCharset string `mapstructure:"csv_charset" validate:"omitempty,oneof=utf-8 windows-1251 koi8-r"`
}

var validate = validator.New()

// Load loads the configuration from file, .env, and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// .env is optional
	if err := loadEnvFile(); err != nil {
		log.Debug().Err(err).Msg(".env file not loaded")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVars(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, apperr.Wrap(apperr.CodeConfig, err, "error reading config file")
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		decimalHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, apperr.Wrap(apperr.CodeConfig, err, "error unmarshaling config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate runs struct tag validation and cross-field checks.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return apperr.Wrap(apperr.CodeConfig, err, "invalid configuration")
	}

	var problems []string
	if c.Database.MinConns > c.Database.MaxConns {
		problems = append(problems, "database.min_conns exceeds database.max_conns")
	}
	if c.Storage.Type == storage.StorageTypeS3 && (c.Storage.Endpoint == "" || c.Storage.Bucket == "") {
		problems = append(problems, "storage.endpoint and storage.bucket are required for s3 storage")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		problems = append(problems, "kafka.topic is required when brokers are set")
	}
	if !c.Restock.PriceDeviation.IsPositive() {
		problems = append(problems, "restock.percentage_deviation_order_price must be positive")
	}
	if !c.Restock.ThresholdPercent.IsPositive() {
		problems = append(problems, "restock.threshold_percent must be positive")
	}
	if c.Restock.HistoryMonths < 1 {
		problems = append(problems, "restock.history_months must be at least 1")
	}
	if c.Restock.AutoOrder && c.Marketplace.BaseURL == "" {
		problems = append(problems, "restock.auto_order requires marketplace.base_url")
	}
	if !c.Pricing.PriceCeiling.IsPositive() {
		problems = append(problems, "pricing.price_ceiling must be positive")
	}
	if c.Ingestion.PriceNoisePct.IsNegative() || c.Ingestion.QtyNoisePct.IsNegative() {
		problems = append(problems, "ingestion noise floors must not be negative")
	}

	if len(problems) > 0 {
		return apperr.New(apperr.CodeConfig, "invalid configuration").
			WithDetails(map[string]any{"problems": problems})
	}
	return nil
}

// decimalHook decodes strings and numbers into decimal.Decimal.
func decimalHook() mapstructure.DecodeHookFuncType {
	target := reflect.TypeOf(decimal.Decimal{})
	return func(from, to reflect.Type, data any) (any, error) {
		if to != target {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return decimal.NewFromString(strings.TrimSpace(v))
		case int:
			return decimal.NewFromInt(int64(v)), nil
		case int64:
			return decimal.NewFromInt(v), nil
		case float64:
			return decimal.NewFromFloat(v), nil
		case decimal.Decimal:
			return v, nil
		}
		return data, nil
	}
}

// loadEnvFile loads the first .env found without overriding the environment.
func loadEnvFile() error {
	for _, path := range []string{".env", "config/.env"} {
		if _, err := os.Stat(path); err == nil {
			return godotenv.Load(path)
		}
	}
	return fmt.Errorf("no .env file found")
}

// bindEnvVars binds the conventional unprefixed variables.
func bindEnvVars(v *viper.Viper) {
	v.BindEnv("database.url", envPrefix+"_DATABASE_URL", "DATABASE_URL")
	v.BindEnv("redis.url", envPrefix+"_REDIS_URL", "REDIS_URL")
	v.BindEnv("kafka.brokers", envPrefix+"_KAFKA_BROKERS", "KAFKA_BROKERS")
	v.BindEnv("server.port", envPrefix+"_PORT", "PORT")
	v.BindEnv("server.host", envPrefix+"_HOST", "HOST")
	v.BindEnv("logging.level", envPrefix+"_LOG_LEVEL", "LOG_LEVEL")
	v.BindEnv("storage.base_path", envPrefix+"_STORAGE_PATH", "STORAGE_PATH")
	v.BindEnv("auth.api_key", envPrefix+"_API_KEY", "API_KEY")
	v.BindEnv("marketplace.api_key", envPrefix+"_MARKETPLACE_API_KEY", "MARKETPLACE_API_KEY")
	v.BindEnv("telemetry.endpoint", envPrefix+"_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.max_upload_mb", 64)
	v.SetDefault("server.requests_per_second", 20)
	v.SetDefault("server.burst", 40)

	v.SetDefault("database.max_conns", 25)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", time.Hour)
	v.SetDefault("database.max_conn_idle_time", 30*time.Minute)

	v.SetDefault("kafka.topic", "trade-service.events")

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.base_path", "./data/archive")
	v.SetDefault("storage.region", "us-east-1")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.no_color", false)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "trade-service")
	v.SetDefault("telemetry.environment", "development")
	v.SetDefault("telemetry.sample_ratio", 1.0)
	v.SetDefault("telemetry.export_interval", 30*time.Second)

	v.SetDefault("marketplace.timeout", 20*time.Second)
	v.SetDefault("marketplace.cache_ttl", 15*time.Minute)
	v.SetDefault("marketplace.rate_limit.requests_per_second", 2)
	v.SetDefault("marketplace.rate_limit.burst", 1)
	v.SetDefault("marketplace.rate_limit.max_retries", 3)
	v.SetDefault("marketplace.rate_limit.initial_backoff", 200*time.Millisecond)
	v.SetDefault("marketplace.rate_limit.max_backoff", 10*time.Second)

	v.SetDefault("pricing.house_brand", "PARTSTRADE")
	v.SetDefault("pricing.house_prefix", "PT")
	v.SetDefault("pricing.price_ceiling", "99999999.99")

	v.SetDefault("ingestion.price_noise_pct", "0.01")
	v.SetDefault("ingestion.qty_noise_pct", "0.0001")
	v.SetDefault("ingestion.max_concurrent", 4)
	v.SetDefault("ingestion.report_lines", 20)
	v.SetDefault("ingestion.notify_timeout", 30*time.Second)
	v.SetDefault("ingestion.max_archive_mb", 512)

	v.SetDefault("restock.percentage_deviation_order_price", "1.15")
	v.SetDefault("restock.history_months", 6)
	v.SetDefault("restock.threshold_percent", "100")
	v.SetDefault("restock.require_price_history", false)
	v.SetDefault("restock.use_marketplace", true)
	v.SetDefault("restock.auto_order", false)
}

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/utafrali/apparel-discovery/internal/recommend"
	"github.com/utafrali/apparel-discovery/internal/scoring"
	pkgconfig "github.com/utafrali/apparel-discovery/pkg/config"
)

// Backend names accepted by the *_BACKEND settings.
const (
	BackendMemory        = "memory"
	BackendPostgres      = "postgres"
	BackendElasticsearch = "elasticsearch"
	BackendProductAPI    = "productapi"
)

// Config holds all configuration for the discovery service.
type Config struct {
	ServiceName    string `env:"SERVICE_NAME" envDefault:"discovery-service"`
	ServiceVersion string `env:"SERVICE_VERSION" envDefault:"0.1.0"`
	Environment    string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort        int           `env:"DISCOVERY_HTTP_PORT" envDefault:"8011"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	AllowedOrigins  []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	RateLimitRPS    float64       `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst  int           `env:"RATE_LIMIT_BURST" envDefault:"40"`

	// Collaborator selection
	CatalogBackend   string `env:"CATALOG_BACKEND" envDefault:"memory"`
	HistoryBackend   string `env:"HISTORY_BACKEND" envDefault:"memory"`
	SearchLogBackend string `env:"SEARCH_LOG_BACKEND" envDefault:"memory"`
	CatalogFixture   string `env:"CATALOG_FIXTURE"`

	// PostgreSQL
	DBHost            string        `env:"DB_HOST" envDefault:"localhost"`
	DBPort            int           `env:"DB_PORT" envDefault:"5432"`
	DBUser            string        `env:"DB_USER" envDefault:"ecommerce"`
	DBPassword        string        `env:"DB_PASSWORD" envDefault:"ecommerce_secret"`
	DBName            string        `env:"DB_NAME" envDefault:"discovery_db"`
	DBSSLMode         string        `env:"DB_SSLMODE" envDefault:"disable"`
	DBMaxConns        int32         `env:"DB_MAX_CONNS" envDefault:"20"`
	DBMinConns        int32         `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"30m"`
	DBMaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"5m"`
	DBSlowQueryThresh time.Duration `env:"DB_SLOW_QUERY_THRESHOLD" envDefault:"200ms"`

	// Redis catalog cache. Disabled by default: every request reads the
	// catalog afresh unless the cache is switched on.
	CacheEnabled  bool          `env:"CATALOG_CACHE_ENABLED" envDefault:"false"`
	CacheTTL      time.Duration `env:"CATALOG_CACHE_TTL" envDefault:"5m"`
	RedisHost     string        `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int           `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`

	// Elasticsearch
	ElasticsearchURL   string `env:"ELASTICSEARCH_URL" envDefault:"http://localhost:9200"`
	ElasticsearchIndex string `env:"ELASTICSEARCH_INDEX" envDefault:"apparel_products"`

	// Product service
	ProductServiceURL string        `env:"PRODUCT_SERVICE_URL" envDefault:"http://localhost:8001"`
	HTTPClientTimeout time.Duration `env:"HTTP_CLIENT_TIMEOUT" envDefault:"5s"`
	CBMaxRequests     uint32        `env:"CB_MAX_REQUESTS" envDefault:"3"`
	CBInterval        time.Duration `env:"CB_INTERVAL" envDefault:"60s"`
	CBTimeout         time.Duration `env:"CB_TIMEOUT" envDefault:"30s"`
	CBFailureRatio    float64       `env:"CB_FAILURE_RATIO" envDefault:"0.6"`
	CBMinRequests     uint32        `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// Kafka
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaGroupID string   `env:"KAFKA_GROUP_ID" envDefault:"discovery-service"`

	// Tracing
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Profiling
	PprofEnabled      bool     `env:"PPROF_ENABLED" envDefault:"false"`
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.1/32,::1/128" envSeparator:","`

	// Ranking
	SuggestionLimit int                     `env:"DISCOVERY_SUGGESTION_LIMIT" envDefault:"6"`
	Weights         scoring.Weights         `envPrefix:"DISCOVERY_"`
	Signals         recommend.SignalWeights `envPrefix:"DISCOVERY_"`
}

// Load reads configuration from environment variables. Unset weights keep
// their documented defaults.
func Load() (*Config, error) {
	cfg := newWithDefaults()
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load discovery config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFrom is Load over an explicit environment.
func LoadFrom(environ map[string]string) (*Config, error) {
	cfg := newWithDefaults()
	if err := pkgconfig.LoadFrom(cfg, environ); err != nil {
		return nil, fmt.Errorf("load discovery config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newWithDefaults() *Config {
	return &Config{
		Weights: scoring.DefaultWeights(),
		Signals: recommend.DefaultSignalWeights(),
	}
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	var errs []error

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP port: %d", c.HTTPPort))
	}
	if !oneOf(c.CatalogBackend, BackendMemory, BackendPostgres, BackendElasticsearch, BackendProductAPI) {
		errs = append(errs, fmt.Errorf("invalid CATALOG_BACKEND: %q", c.CatalogBackend))
	}
	if !oneOf(c.HistoryBackend, BackendMemory, BackendPostgres) {
		errs = append(errs, fmt.Errorf("invalid HISTORY_BACKEND: %q", c.HistoryBackend))
	}
	if !oneOf(c.SearchLogBackend, BackendMemory, BackendPostgres) {
		errs = append(errs, fmt.Errorf("invalid SEARCH_LOG_BACKEND: %q", c.SearchLogBackend))
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		errs = append(errs, fmt.Errorf("OTEL_SAMPLE_RATE must be between 0 and 1, got %v", c.OTELSampleRate))
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true"))
	}
	if c.CacheEnabled && c.CacheTTL <= 0 {
		errs = append(errs, errors.New("CATALOG_CACHE_TTL must be positive"))
	}
	if c.SuggestionLimit < 1 {
		errs = append(errs, fmt.Errorf("DISCOVERY_SUGGESTION_LIMIT must be positive, got %d", c.SuggestionLimit))
	}
	if c.RateLimitRPS < 0 || (c.RateLimitRPS > 0 && c.RateLimitBurst < 1) {
		errs = append(errs, errors.New("RATE_LIMIT_BURST must be positive when RATE_LIMIT_RPS is set"))
	}
	if c.CBFailureRatio <= 0 || c.CBFailureRatio > 1 {
		errs = append(errs, fmt.Errorf("CB_FAILURE_RATIO must be in (0, 1], got %v", c.CBFailureRatio))
	}
	if err := c.Weights.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("scoring weights: %w", err))
	}
	if c.Signals.Order < 0 || c.Signals.Wishlist < 0 || c.Signals.Review < 0 {
		errs = append(errs, errors.New("signal weights must not be negative"))
	}

	return errors.Join(errs...)
}

// UsesPostgres reports whether any collaborator is backed by PostgreSQL.
func (c *Config) UsesPostgres() bool {
	return c.CatalogBackend == BackendPostgres ||
		c.HistoryBackend == BackendPostgres ||
		c.SearchLogBackend == BackendPostgres
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}

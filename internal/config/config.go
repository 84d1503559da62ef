// Package config provides configuration management for the ingestion service.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SSL mode constants for database connections.
const (
	// SSLModeDisable disables SSL (use only for local development).
	SSLModeDisable = "disable"
	// SSLModeRequire requires SSL but does not verify certificates.
	SSLModeRequire = "require"
	// SSLModeVerifyCA verifies the server certificate against a CA.
	SSLModeVerifyCA = "verify-ca"
	// SSLModeVerifyFull verifies the server certificate and hostname.
	SSLModeVerifyFull = "verify-full"
)

// Config holds all configuration for the ingestion service.
type Config struct {
	// Database contains PostgreSQL connection settings.
	Database DatabaseConfig `mapstructure:"database"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Source contains paper source API settings.
	Source SourceConfig `mapstructure:"source"`
	// Validation contains record acceptance rules.
	Validation ValidationConfig `mapstructure:"validation"`
	// Ingestion contains pipeline settings.
	Ingestion IngestionConfig `mapstructure:"ingestion"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	// Host is the PostgreSQL server hostname.
	Host string `mapstructure:"host"`
	// Port is the PostgreSQL server port (default: 5432).
	Port int `mapstructure:"port"`
	// User is the database username.
	User string `mapstructure:"user"`
	// Password is the database password (loaded from PAPERDAYS_DATABASE_PASSWORD).
	Password string `mapstructure:"-"`
	// Name is the database name.
	Name string `mapstructure:"name"`
	// SSLMode controls SSL connection security (require, verify-ca, verify-full, disable).
	// Default is "require". Use "disable" only for local development.
	SSLMode string `mapstructure:"ssl_mode"`
	// MaxConns is the maximum number of connections in the pool.
	MaxConns int32 `mapstructure:"max_conns"`
	// MinConns is the minimum number of connections to keep open.
	MinConns int32 `mapstructure:"min_conns"`
	// MaxConnLifetime is the maximum lifetime of a connection before it's closed.
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// MaxConnIdleTime is the maximum time a connection can be idle before it's closed.
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	// HealthCheckPeriod is the interval between health checks of idle connections.
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	// ConnectTimeout is the maximum time to wait for a connection.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// MigrationPath is the path to migration files (relative or absolute).
	MigrationPath string `mapstructure:"migration_path"`
	// MigrationAutoRun enables automatic migration on startup (default: false).
	MigrationAutoRun bool `mapstructure:"migration_auto_run"`
	// StatementCacheCapacity is the size of the prepared statement cache.
	StatementCacheCapacity int `mapstructure:"statement_cache_capacity"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr, file path).
	Output string `mapstructure:"output"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables the metrics listener for the lifetime of a run.
	Enabled bool `mapstructure:"enabled"`
	// Address is the listen address for the metrics endpoint.
	Address string `mapstructure:"address"`
	// Path is the HTTP path for the metrics endpoint.
	Path string `mapstructure:"path"`
}

// SourceConfig holds paper source API configurations.
type SourceConfig struct {
	// SemanticScholar contains Semantic Scholar API settings.
	SemanticScholar SemanticScholarConfig `mapstructure:"semantic_scholar"`
}

// SemanticScholarConfig holds Semantic Scholar API settings.
type SemanticScholarConfig struct {
	// BaseURL is the Graph API base URL.
	BaseURL string `mapstructure:"base_url"`
	// DatasetsURL is the Datasets API base URL for bulk ingestion.
	DatasetsURL string `mapstructure:"datasets_url"`
	// Release is the bulk dataset release to ingest ("latest" or a date).
	Release string `mapstructure:"release"`
	// APIKey is the API key (loaded from PAPERDAYS_SOURCE_SEMANTIC_SCHOLAR_API_KEY).
	APIKey string `mapstructure:"-"`
	// Timeout is the per-request timeout.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the sustained requests per second, shared by all workers.
	// It applies when an API key is configured.
	RateLimit float64 `mapstructure:"rate_limit"`
	// UnauthenticatedRateLimit is the budget used when no API key is set;
	// the source allows roughly 100 requests per 5 minutes keyless.
	UnauthenticatedRateLimit float64 `mapstructure:"unauthenticated_rate_limit"`
	// BurstSize is the rate limiter burst.
	BurstSize int `mapstructure:"burst_size"`
	// PageSize is the search page size.
	PageSize int `mapstructure:"page_size"`
	// MaxRetries bounds retries for connection errors and 5xx responses.
	MaxRetries int `mapstructure:"max_retries"`
	// RetryDelay is the base delay for transient-error retries.
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	// RateLimitCooldown is the fixed wait applied on a 429 response.
	RateLimitCooldown time.Duration `mapstructure:"rate_limit_cooldown"`
	// MaxRateLimitWaits bounds consecutive 429 cooldowns per request.
	MaxRateLimitWaits int `mapstructure:"max_rate_limit_waits"`
}

// ValidationConfig holds record acceptance rules.
type ValidationConfig struct {
	// DefaultCitationThreshold is the citation floor for fields without an
	// explicit entry in FieldThresholds.
	DefaultCitationThreshold int `mapstructure:"default_citation_threshold"`
	// FieldThresholds maps normalized field names to citation floors.
	FieldThresholds map[string]int `mapstructure:"field_thresholds"`
	// MaxAuthors is the author count above which a record is flagged.
	MaxAuthors int `mapstructure:"max_authors"`
	// StrictAuthorLimit rejects over-limit author lists instead of warning.
	StrictAuthorLimit bool `mapstructure:"strict_author_limit"`
}

// IngestionConfig holds pipeline settings.
type IngestionConfig struct {
	// Workers is the number of concurrent ingestion workers.
	Workers int `mapstructure:"workers"`
	// BatchSize is the number of papers buffered before a batched flush.
	BatchSize int `mapstructure:"batch_size"`
	// KeepTopPerDay is the retention count per month-day partition.
	KeepTopPerDay int `mapstructure:"keep_top_per_day"`
	// RefreshAuthors refreshes stored author lists on re-ingestion.
	RefreshAuthors bool `mapstructure:"refresh_authors"`
	// DefaultWatermark is the watermark used before any run has completed,
	// in YYYY-MM-DD form.
	DefaultWatermark string `mapstructure:"default_watermark"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}
	if c.StatementCacheCapacity > 0 {
		params.Set("statement_cache_capacity", fmt.Sprintf("%d", c.StatementCacheCapacity))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("PAPERDAYS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if present
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/paperbirthdays")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Load secrets exclusively from environment variables.
	// These fields use mapstructure:"-" to prevent loading from config files.
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
func loadSecrets(cfg *Config) {
	cfg.Database.Password = os.Getenv("PAPERDAYS_DATABASE_PASSWORD")
	cfg.Source.SemanticScholar.APIKey = os.Getenv("PAPERDAYS_SOURCE_SEMANTIC_SCHOLAR_API_KEY")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "paperdays")
	v.SetDefault("database.name", "paperdays")
	// Default to "require" for production. Use PAPERDAYS_DATABASE_SSL_MODE=disable locally.
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.migration_path", "migrations")
	v.SetDefault("database.migration_auto_run", false)
	v.SetDefault("database.statement_cache_capacity", 512)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.address", "0.0.0.0:9091")
	v.SetDefault("metrics.path", "/metrics")

	// Semantic Scholar defaults. The public unauthenticated limit is
	// 1 req/sec; the budget is shared across all workers.
	v.SetDefault("source.semantic_scholar.base_url", "https://api.semanticscholar.org/graph/v1")
	v.SetDefault("source.semantic_scholar.datasets_url", "https://api.semanticscholar.org/datasets/v1")
	v.SetDefault("source.semantic_scholar.release", "latest")
	v.SetDefault("source.semantic_scholar.timeout", "30s")
	v.SetDefault("source.semantic_scholar.rate_limit", 1.0)
	v.SetDefault("source.semantic_scholar.unauthenticated_rate_limit", 0.3)
	v.SetDefault("source.semantic_scholar.burst_size", 1)
	v.SetDefault("source.semantic_scholar.page_size", 100)
	v.SetDefault("source.semantic_scholar.max_retries", 3)
	v.SetDefault("source.semantic_scholar.retry_delay", "10s")
	v.SetDefault("source.semantic_scholar.rate_limit_cooldown", "60s")
	v.SetDefault("source.semantic_scholar.max_rate_limit_waits", 10)

	// Validation defaults
	v.SetDefault("validation.default_citation_threshold", 10)
	v.SetDefault("validation.field_thresholds", map[string]int{
		"Medicine":         50,
		"Biology":          30,
		"Computer Science": 20,
		"Physics":          25,
		"Chemistry":        25,
	})
	v.SetDefault("validation.max_authors", 500)
	v.SetDefault("validation.strict_author_limit", false)

	// Ingestion defaults
	v.SetDefault("ingestion.workers", 3)
	v.SetDefault("ingestion.batch_size", 1000)
	v.SetDefault("ingestion.keep_top_per_day", 1000)
	v.SetDefault("ingestion.refresh_authors", false)
	v.SetDefault("ingestion.default_watermark", "2024-01-01")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	// Validate database config
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", c.Database.MaxConns, c.Database.MinConns)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	// Validate source config
	if c.Source.SemanticScholar.RateLimit <= 0 {
		return fmt.Errorf("source rate limit must be positive")
	}
	if c.Source.SemanticScholar.UnauthenticatedRateLimit < 0 {
		return fmt.Errorf("unauthenticated rate limit cannot be negative")
	}
	if c.Source.SemanticScholar.PageSize <= 0 || c.Source.SemanticScholar.PageSize > 100 {
		return fmt.Errorf("source page size must be in (0, 100], got %d", c.Source.SemanticScholar.PageSize)
	}
	if c.Source.SemanticScholar.MaxRetries < 0 {
		return fmt.Errorf("source max retries cannot be negative")
	}

	// Validate validation config
	if c.Validation.DefaultCitationThreshold < 0 {
		return fmt.Errorf("default citation threshold cannot be negative")
	}
	for field, threshold := range c.Validation.FieldThresholds {
		if threshold < 0 {
			return fmt.Errorf("citation threshold for %q cannot be negative", field)
		}
	}
	if c.Validation.MaxAuthors <= 0 {
		return fmt.Errorf("max authors must be positive")
	}

	// Validate ingestion config
	if c.Ingestion.Workers <= 0 {
		return fmt.Errorf("ingestion workers must be positive, got %d", c.Ingestion.Workers)
	}
	if c.Ingestion.BatchSize <= 0 {
		return fmt.Errorf("ingestion batch size must be positive, got %d", c.Ingestion.BatchSize)
	}
	if c.Ingestion.KeepTopPerDay <= 0 {
		return fmt.Errorf("keep top per day must be positive, got %d", c.Ingestion.KeepTopPerDay)
	}
	if _, err := time.Parse("2006-01-02", c.Ingestion.DefaultWatermark); err != nil {
		return fmt.Errorf("invalid default watermark %q: %w", c.Ingestion.DefaultWatermark, err)
	}

	return nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Cache     CacheConfig     `yaml:"cache"`
	Search    SearchConfig    `yaml:"search"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Cleanup   CleanupConfig   `yaml:"cleanup"`
	Mutation  MutationConfig  `yaml:"mutation"`
	Logging   LoggingConfig   `yaml:"logging"`
	Timezone  string          `yaml:"timezone" env:"TZ"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port          string   `yaml:"port" env:"PORT"`
	Mode          string   `yaml:"mode" env:"GIN_MODE"`
	SiteURL       string   `yaml:"site_url" env:"SITE_URL"`
	CORSOrigins   []string `yaml:"cors_origins" env:"CORS_ORIGINS" envSeparator:","`
	WhatsAppPhone string   `yaml:"whatsapp_phone" env:"WHATSAPP_PHONE"`
}

// DatabaseConfig contains database settings.
// DSN wins over the per-driver sections when set.
type DatabaseConfig struct {
	Driver          string         `yaml:"driver" env:"DB_DRIVER"`
	DSN             string         `yaml:"dsn" env:"DB_DSN"`
	MySQL           MySQLConfig    `yaml:"mysql"`
	Postgres        PostgresConfig `yaml:"postgres"`
	SQLitePath      string         `yaml:"sqlite_path" env:"SQLITE_PATH"`
	MaxOpenConns    int            `yaml:"max_open_conns"`
	MaxIdleConns    int            `yaml:"max_idle_conns"`
	ConnMaxLifetime int            `yaml:"conn_max_lifetime_seconds"`
	LogSQL          bool           `yaml:"log_sql" env:"DB_LOG_SQL"`
}

// MySQLConfig contains MySQL connection settings
type MySQLConfig struct {
	Host     string `yaml:"host" env:"MYSQL_HOST"`
	Port     int    `yaml:"port" env:"MYSQL_PORT"`
	User     string `yaml:"user" env:"MYSQL_USER"`
	Password string `yaml:"password" env:"MYSQL_PASSWORD"`
	Database string `yaml:"database" env:"MYSQL_DATABASE"`
}

// PostgresConfig contains PostgreSQL connection settings
type PostgresConfig struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST"`
	Port     int    `yaml:"port" env:"POSTGRES_PORT"`
	User     string `yaml:"user" env:"POSTGRES_USER"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD"`
	Database string `yaml:"database" env:"POSTGRES_DB"`
	SSLMode  string `yaml:"sslmode" env:"POSTGRES_SSLMODE"`
}

// CacheConfig selects the read-through cache backend
type CacheConfig struct {
	Backend    string      `yaml:"backend" env:"CACHE_BACKEND"` // memory, redis
	TTLSeconds int         `yaml:"ttl_seconds" env:"CACHE_TTL_SECONDS"`
	Prefix     string      `yaml:"prefix"`
	Redis      RedisConfig `yaml:"redis"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
}

// SearchConfig contains search engine settings
type SearchConfig struct {
	Enabled     bool              `yaml:"enabled" env:"SEARCH_ENABLED"`
	Meilisearch MeilisearchConfig `yaml:"meilisearch"`
}

// MeilisearchConfig contains Meilisearch connection settings
type MeilisearchConfig struct {
	Host   string `yaml:"host" env:"MEILISEARCH_HOST"`
	APIKey string `yaml:"api_key" env:"MEILISEARCH_API_KEY"`
	Index  string `yaml:"index"`
}

// AnalyticsConfig contains view-log settings
type AnalyticsConfig struct {
	TrendingWindowDays int    `yaml:"trending_window_days"`
	TrendingLimit      int    `yaml:"trending_limit"`
	ViewRetentionDays  int    `yaml:"view_retention_days"`
	IPHashKey          string `yaml:"ip_hash_key" env:"VIEW_HASH_KEY"`
}

// RateLimitConfig contains per-IP limits for public writes
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	RequestsPerHour   int  `yaml:"requests_per_hour"`
}

// SchedulerConfig contains background job settings
type SchedulerConfig struct {
	Enabled             bool   `yaml:"enabled" env:"SCHEDULER_ENABLED"`
	RetentionSpec       string `yaml:"retention_spec"`
	WarmupSpec          string `yaml:"warmup_spec"`
	SyncIntervalSeconds int    `yaml:"sync_interval_seconds"`
	SyncBatchSize       int    `yaml:"sync_batch_size"`
}

// CleanupConfig contains view-log purge safety limits
type CleanupConfig struct {
	DryRun       bool `yaml:"dry_run"`
	MaxDeletions int  `yaml:"max_deletions"`
}

// MutationConfig controls how admin writes are applied
type MutationConfig struct {
	Transactional bool `yaml:"transactional" env:"MUTATION_TRANSACTIONAL"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level       string `yaml:"level" env:"LOG_LEVEL"`
	Format      string `yaml:"format" env:"LOG_FORMAT"` // json, text
	LogRequests bool   `yaml:"log_requests"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8084",
			Mode:        "release",
			SiteURL:     "http://localhost:3000",
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Database: DatabaseConfig{
			Driver: "mysql",
			MySQL: MySQLConfig{
				Host:     "localhost",
				Port:     3306,
				User:     "catalog",
				Database: "catalog",
			},
			Postgres: PostgresConfig{
				Host:    "localhost",
				Port:    5432,
				SSLMode: "disable",
			},
			SQLitePath:      "catalog.db",
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 300,
		},
		Cache: CacheConfig{
			Backend:    "memory",
			TTLSeconds: 3600,
			Prefix:     "catalog:",
			Redis: RedisConfig{
				Addr: "localhost:6379",
			},
		},
		Search: SearchConfig{
			Enabled: false,
			Meilisearch: MeilisearchConfig{
				Host:  "http://localhost:7700",
				Index: "inmuebles",
			},
		},
		Analytics: AnalyticsConfig{
			TrendingWindowDays: 7,
			TrendingLimit:      6,
			ViewRetentionDays:  180,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 5,
			RequestsPerHour:   30,
		},
		Scheduler: SchedulerConfig{
			Enabled:             true,
			RetentionSpec:       "0 3 * * *",
			WarmupSpec:          "*/30 * * * *",
			SyncIntervalSeconds: 10,
			SyncBatchSize:       20,
		},
		Cleanup: CleanupConfig{
			DryRun:       false,
			MaxDeletions: 50000,
		},
		Logging: LoggingConfig{
			Level:       "info",
			Format:      "json",
			LogRequests: true,
		},
		Timezone: "America/Bogota",
	}
}

// LoadConfig loads configuration from a YAML file, then applies a .env file
// (if present) and environment variable overrides.
func LoadConfig(filepath string) (*Config, error) {
	// Start with default config
	config := DefaultConfig()

	if _, err := os.Stat(filepath); err == nil {
		data, err := os.ReadFile(filepath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	// Missing .env is normal outside local development
	_ = godotenv.Load()

	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks values that would otherwise fail late at startup
func (c *Config) Validate() error {
	switch strings.ToLower(c.Database.Driver) {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported cache backend %q", c.Cache.Backend)
	}
	if c.Cache.TTLSeconds <= 0 {
		return errors.New("cache.ttl_seconds must be positive")
	}
	if c.Analytics.TrendingWindowDays <= 0 {
		return errors.New("analytics.trending_window_days must be positive")
	}
	return nil
}

// GetTTL returns the cache revalidation window as a duration
func (c *CacheConfig) GetTTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// GetConnMaxLifetime returns the pooled connection lifetime as a duration
func (c *DatabaseConfig) GetConnMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetime) * time.Second
}

// GetSyncInterval returns the search-sync poll interval as a duration
func (c *SchedulerConfig) GetSyncInterval() time.Duration {
	return time.Duration(c.SyncIntervalSeconds) * time.Second
}

// GetTrendingWindow returns the trending window as a duration
func (c *AnalyticsConfig) GetTrendingWindow() time.Duration {
	return time.Duration(c.TrendingWindowDays) * 24 * time.Hour
}

// GetViewRetention returns how long raw view events are kept
func (c *AnalyticsConfig) GetViewRetention() time.Duration {
	return time.Duration(c.ViewRetentionDays) * 24 * time.Hour
}

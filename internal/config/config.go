// Package config loads and validates site builder configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"
)

// Cache backends accepted by cache.backend.
const (
	CacheMemory   = "memory"
	CachePostgres = "postgres"
	CacheRedis    = "redis"
	CacheNone     = "none"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Sheets  SheetsConfig  `mapstructure:"sheets"`
	Cache   CacheConfig   `mapstructure:"cache"`
	DB      DBConfig      `mapstructure:"db"`
	Sites   SitesConfig   `mapstructure:"sites"`
	Refresh RefreshConfig `mapstructure:"refresh"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// SheetsConfig governs how tabs are fetched from the spreadsheet endpoint.
type SheetsConfig struct {
	BaseURL        string  `mapstructure:"base_url"`
	UserAgent      string  `mapstructure:"user_agent"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	MemoTTLSeconds int     `mapstructure:"memo_ttl_seconds"`
	FilterInactive bool    `mapstructure:"filter_inactive"`
	FetchTemplates bool    `mapstructure:"fetch_templates"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// CacheConfig selects and tunes the snapshot cache backend.
type CacheConfig struct {
	Backend           string `mapstructure:"backend"`
	Table             string `mapstructure:"table"`
	StaleAfterSeconds int    `mapstructure:"stale_after_seconds"`
	RedisURL          string `mapstructure:"redis_url"`
	RedisPrefix       string `mapstructure:"redis_prefix"`
	RedisTTLSeconds   int    `mapstructure:"redis_ttl_seconds"`
}

// DBConfig controls access to Postgres.
type DBConfig struct {
	DSN                    string `mapstructure:"dsn"`
	MaxConns               int32  `mapstructure:"max_conns"`
	MinConns               int32  `mapstructure:"min_conns"`
	MaxConnLifetimeSeconds int    `mapstructure:"max_conn_lifetime_seconds"`
	SitesTable             string `mapstructure:"sites_table"`
}

// SitesConfig points at an optional YAML seed for the in-memory site registry.
type SitesConfig struct {
	SeedFile string `mapstructure:"seed_file"`
}

// RefreshConfig controls background refresh workers and the stale-site scan.
type RefreshConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Schedule    string `mapstructure:"schedule"`
	Workers     int    `mapstructure:"workers"`
	QueueDepth  int    `mapstructure:"queue_depth"`
	MaxAttempts int    `mapstructure:"max_attempts"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SITEBUILDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("sheets.base_url", "https://docs.google.com")
	v.SetDefault("sheets.user_agent", "google-sheets-site-builder/0.1")
	v.SetDefault("sheets.timeout_seconds", 15)
	v.SetDefault("sheets.memo_ttl_seconds", 300)
	v.SetDefault("sheets.filter_inactive", true)
	v.SetDefault("sheets.fetch_templates", true)
	v.SetDefault("sheets.rate_limit_rps", 5.0)
	v.SetDefault("sheets.rate_limit_burst", 10)
	v.SetDefault("cache.backend", CacheMemory)
	v.SetDefault("cache.table", "site_cache")
	v.SetDefault("cache.stale_after_seconds", 0)
	v.SetDefault("cache.redis_prefix", "sitebuilder:")
	v.SetDefault("cache.redis_ttl_seconds", 0)
	v.SetDefault("db.max_conns", 10)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.max_conn_lifetime_seconds", 1800)
	v.SetDefault("db.sites_table", "sites")
	v.SetDefault("refresh.enabled", true)
	v.SetDefault("refresh.schedule", "*/5 * * * *")
	v.SetDefault("refresh.workers", 2)
	v.SetDefault("refresh.queue_depth", 64)
	v.SetDefault("refresh.max_attempts", 3)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Sheets.TimeoutSeconds <= 0 {
		return fmt.Errorf("sheets.timeout_seconds must be > 0")
	}
	if c.Sheets.MemoTTLSeconds < 0 {
		return fmt.Errorf("sheets.memo_ttl_seconds must be >= 0")
	}
	if c.Sheets.RateLimitRPS < 0 {
		return fmt.Errorf("sheets.rate_limit_rps must be >= 0")
	}
	if err := validation.Validate(c.Cache.Backend,
		validation.Required,
		validation.In(CacheMemory, CachePostgres, CacheRedis, CacheNone),
	); err != nil {
		return fmt.Errorf("cache.backend: %w", err)
	}
	if c.Cache.StaleAfterSeconds < 0 {
		return fmt.Errorf("cache.stale_after_seconds must be >= 0")
	}
	if c.Cache.RedisTTLSeconds < 0 {
		return fmt.Errorf("cache.redis_ttl_seconds must be >= 0")
	}
	if c.Cache.Backend == CachePostgres && c.DB.DSN == "" {
		return fmt.Errorf("db.dsn must be set when cache.backend is postgres")
	}
	if c.Cache.Backend == CacheRedis && c.Cache.RedisURL == "" {
		return fmt.Errorf("cache.redis_url must be set when cache.backend is redis")
	}
	if c.Refresh.Enabled && c.Refresh.Workers <= 0 {
		return fmt.Errorf("refresh.workers must be > 0 when refresh is enabled")
	}
	if c.Refresh.Enabled && c.Refresh.QueueDepth <= 0 {
		return fmt.Errorf("refresh.queue_depth must be > 0 when refresh is enabled")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// FetchTimeout is the per-tab fetch budget.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Sheets.TimeoutSeconds) * time.Second
}

// MemoTTL is how long sheetdump reuses fetched tabs in-process. The server never memoizes.
func (c Config) MemoTTL() time.Duration {
	return time.Duration(c.Sheets.MemoTTLSeconds) * time.Second
}

// RedisTTL expires snapshots stored in Redis. Zero keeps them until replaced or invalidated.
func (c Config) RedisTTL() time.Duration {
	return time.Duration(c.Cache.RedisTTLSeconds) * time.Second
}

// StaleAfter is the cache staleness window. Zero means cached snapshots never go stale.
func (c Config) StaleAfter() time.Duration {
	return time.Duration(c.Cache.StaleAfterSeconds) * time.Second
}

// ConnLifetime is the maximum lifetime of a pooled Postgres connection.
func (c Config) ConnLifetime() time.Duration {
	return time.Duration(c.DB.MaxConnLifetimeSeconds) * time.Second
}

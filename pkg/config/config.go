// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/mcclellann/microfin/pkg/ledger"
	"github.com/mcclellann/microfin/pkg/models"
	"github.com/mcclellann/microfin/pkg/reference"
	"github.com/mcclellann/microfin/pkg/store"
	"github.com/shopspring/decimal"
)

// Config holds application configuration
type Config struct {
	Port     string
	DBDriver string
	DBConn   string
	LogLevel string

	ReferencePrefix string
	MinPrincipal    decimal.Decimal
	MaxPrincipal    decimal.Decimal
	DefaultPenalty  models.PenaltyPolicy

	RedisAddr     string
	QuoteCacheTTL time.Duration

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

const (
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 15 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultQuoteCacheTTL   = 24 * time.Hour
)

// NewConfig loads configuration from environment variables
func NewConfig() (*Config, error) {
	defaults := ledger.DefaultConfig()
	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		DBDriver:        getEnv("DB_DRIVER", store.DriverSQLite),
		DBConn:          getEnv("DB_CONN", "microfin.db"),
		LogLevel:        getEnv("LOG_LEVEL", "INFO"),
		ReferencePrefix: getEnv("REFERENCE_PREFIX", reference.DefaultPrefix),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
	}

	var err error
	if cfg.MinPrincipal, err = parseDecimal("LOAN_MIN_PRINCIPAL", defaults.MinPrincipal); err != nil {
		return nil, err
	}
	if cfg.MaxPrincipal, err = parseDecimal("LOAN_MAX_PRINCIPAL", defaults.MaxPrincipal); err != nil {
		return nil, err
	}
	if cfg.DefaultPenalty.GraceDays, err = parseInt("DEFAULT_GRACE_DAYS", defaults.DefaultPenalty.GraceDays); err != nil {
		return nil, err
	}
	if cfg.DefaultPenalty.DailyRate, err = parseDecimal("DEFAULT_DAILY_PENALTY_RATE", defaults.DefaultPenalty.DailyRate); err != nil {
		return nil, err
	}
	if cfg.QuoteCacheTTL, err = parseDuration("QUOTE_CACHE_TTL", defaultQuoteCacheTTL); err != nil {
		return nil, err
	}
	if cfg.ReadTimeout, err = parseDuration("SERVER_READ_TIMEOUT", defaultReadTimeout); err != nil {
		return nil, err
	}
	if cfg.WriteTimeout, err = parseDuration("SERVER_WRITE_TIMEOUT", defaultWriteTimeout); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = parseDuration("SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout); err != nil {
		return nil, err
	}

	if cfg.DBDriver != store.DriverSQLite && cfg.DBDriver != store.DriverPostgres {
		return nil, fmt.Errorf("DB_DRIVER must be %q or %q, got %q", store.DriverSQLite, store.DriverPostgres, cfg.DBDriver)
	}
	if !reference.ValidPrefix(cfg.ReferencePrefix) {
		return nil, fmt.Errorf("REFERENCE_PREFIX %q must be 1 to 8 characters of A-Z and 0-9", cfg.ReferencePrefix)
	}
	if !cfg.MinPrincipal.IsPositive() || cfg.MaxPrincipal.LessThan(cfg.MinPrincipal) {
		return nil, fmt.Errorf("loan principal range %s..%s is invalid", cfg.MinPrincipal, cfg.MaxPrincipal)
	}
	if cfg.DefaultPenalty.GraceDays < 0 {
		return nil, fmt.Errorf("DEFAULT_GRACE_DAYS must not be negative")
	}

	return cfg, nil
}

// Ledger returns the lending policy part of the configuration.
func (c *Config) Ledger() ledger.Config {
	return ledger.Config{
		ReferencePrefix: c.ReferencePrefix,
		MinPrincipal:    c.MinPrincipal,
		MaxPrincipal:    c.MaxPrincipal,
		DefaultPenalty:  c.DefaultPenalty,
	}
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func parseInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	return n, nil
}

func parseDecimal(key string, fallback decimal.Decimal) (decimal.Decimal, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	return d, nil
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

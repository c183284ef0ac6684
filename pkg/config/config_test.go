package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"PORT", "DB_DRIVER", "DB_CONN", "LOG_LEVEL", "REFERENCE_PREFIX",
	"LOAN_MIN_PRINCIPAL", "LOAN_MAX_PRINCIPAL", "DEFAULT_GRACE_DAYS", "DEFAULT_DAILY_PENALTY_RATE",
	"REDIS_ADDR", "QUOTE_CACHE_TTL", "SERVER_READ_TIMEOUT", "SERVER_WRITE_TIMEOUT", "SERVER_SHUTDOWN_TIMEOUT",
}

func clearEnv(t *testing.T) {
	for _, k := range configKeys {
		t.Setenv(k, "")
	}
}

func TestNewConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sqlite3", cfg.DBDriver)
	assert.Equal(t, "microfin.db", cfg.DBConn)
	assert.Equal(t, "MF", cfg.ReferencePrefix)
	assert.Equal(t, "1000", cfg.MinPrincipal.String())
	assert.Equal(t, "100000", cfg.MaxPrincipal.String())
	assert.Equal(t, 5, cfg.DefaultPenalty.GraceDays)
	assert.Equal(t, "0.001", cfg.DefaultPenalty.DailyRate.String())
	assert.Equal(t, 24*time.Hour, cfg.QuoteCacheTTL)
	assert.Empty(t, cfg.RedisAddr)

	lc := cfg.Ledger()
	assert.Equal(t, "MF", lc.ReferencePrefix)
	assert.True(t, lc.MaxPrincipal.Equal(cfg.MaxPrincipal))
}

func TestNewConfig_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_CONN", "host=localhost user=test dbname=microfin sslmode=disable")
	t.Setenv("REFERENCE_PREFIX", "MFX")
	t.Setenv("LOAN_MIN_PRINCIPAL", "500")
	t.Setenv("LOAN_MAX_PRINCIPAL", "25000.50")
	t.Setenv("DEFAULT_GRACE_DAYS", "3")
	t.Setenv("DEFAULT_DAILY_PENALTY_RATE", "0.0025")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("QUOTE_CACHE_TTL", "15m")
	t.Setenv("SERVER_READ_TIMEOUT", "3s")

	cfg, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "MFX", cfg.ReferencePrefix)
	assert.Equal(t, "500", cfg.MinPrincipal.String())
	assert.Equal(t, "25000.5", cfg.MaxPrincipal.String())
	assert.Equal(t, 3, cfg.DefaultPenalty.GraceDays)
	assert.Equal(t, "0.0025", cfg.DefaultPenalty.DailyRate.String())
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 15*time.Minute, cfg.QuoteCacheTTL)
	assert.Equal(t, 3*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.WriteTimeout)
}

func TestNewConfig_Invalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"DB_DRIVER", "mysql"},
		{"LOAN_MIN_PRINCIPAL", "lots"},
		{"LOAN_MAX_PRINCIPAL", "10"},
		{"DEFAULT_GRACE_DAYS", "-1"},
		{"DEFAULT_GRACE_DAYS", "five"},
		{"QUOTE_CACHE_TTL", "1 day"},
		{"SERVER_WRITE_TIMEOUT", "soon"},
		{"REFERENCE_PREFIX", "MICROFINANCE"},
		{"REFERENCE_PREFIX", "MF-PH"},
		{"REFERENCE_PREFIX", "mf"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			_, err := NewConfig()
			assert.Error(t, err)
		})
	}
}

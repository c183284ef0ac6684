package quote

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/mcclellann/microfin/pkg/apperr"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// countingCache wraps MemoryCache and can be told to fail.
type countingCache struct {
	*MemoryCache
	gets, sets int
	fail       bool
}

func (c *countingCache) Get(ctx context.Context, key string) (string, bool, error) {
	c.gets++
	if c.fail {
		return "", false, errors.New("connection refused")
	}
	return c.MemoryCache.Get(ctx, key)
}

func (c *countingCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.sets++
	if c.fail {
		return errors.New("connection refused")
	}
	return c.MemoryCache.Set(ctx, key, value, ttl)
}

func TestQuote(t *testing.T) {
	cache := &countingCache{MemoryCache: NewMemoryCache()}
	s := NewService(cache, time.Hour, quietLogger())
	ctx := context.Background()
	start := time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC)

	plan, err := s.Quote(ctx, decimal.NewFromInt(10000), decimal.NewFromInt(24), 6, start)
	require.NoError(t, err)
	assert.Equal(t, "1785.26", plan.MonthlyPayment.StringFixed(2))
	assert.Equal(t, "10711.56", plan.TotalPayable.StringFixed(2))
	assert.Equal(t, "711.56", plan.TotalInterest.StringFixed(2))
	require.Len(t, plan.Schedule, 6)
	assert.Equal(t, "2025-02-28", plan.Schedule[0].DueDate.Format("2006-01-02"))
	assert.Equal(t, 1, cache.sets)

	again, err := s.Quote(ctx, decimal.NewFromInt(10000), decimal.NewFromInt(24), 6, start)
	require.NoError(t, err)
	assert.True(t, plan.MonthlyPayment.Equal(again.MonthlyPayment))
	assert.Equal(t, 1, cache.sets, "second quote should come from the cache")
	assert.Equal(t, 2, cache.gets)
}

func TestQuote_CacheFailureIsNotFatal(t *testing.T) {
	cache := &countingCache{MemoryCache: NewMemoryCache(), fail: true}
	s := NewService(cache, 0, quietLogger())

	plan, err := s.Quote(context.Background(), decimal.NewFromInt(1200), decimal.Zero, 12, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "100.00", plan.MonthlyPayment.StringFixed(2))
	assert.True(t, plan.Residual.IsZero())
}

func TestQuote_Validation(t *testing.T) {
	s := NewService(NewMemoryCache(), time.Hour, quietLogger())
	ctx := context.Background()

	tests := []struct {
		name      string
		principal decimal.Decimal
		rate      decimal.Decimal
		term      int
	}{
		{"zero principal", decimal.Zero, decimal.NewFromInt(12), 6},
		{"negative rate", decimal.NewFromInt(1000), decimal.NewFromInt(-1), 6},
		{"zero term", decimal.NewFromInt(1000), decimal.NewFromInt(12), 0},
		{"term too long", decimal.NewFromInt(1000), decimal.NewFromInt(12), 19},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Quote(ctx, tt.principal, tt.rate, tt.term, time.Time{})
			assert.True(t, apperr.IsValidation(err))
		})
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache()
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	v, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	now = now.Add(2 * time.Minute)
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, _ = c.Get(ctx, "missing")
	assert.False(t, ok)
}

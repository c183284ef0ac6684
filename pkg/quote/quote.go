// Package quote prices prospective loans without recording anything.
package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mcclellann/microfin/pkg/amortization"
	"github.com/mcclellann/microfin/pkg/apperr"
	"github.com/mcclellann/microfin/pkg/ledger"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const DefaultTTL = 24 * time.Hour

type Service struct {
	cache Cache
	ttl   time.Duration
	log   *logrus.Logger
	now   func() time.Time
}

func NewService(cache Cache, ttl time.Duration, log *logrus.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{cache: cache, ttl: ttl, log: log, now: time.Now}
}

func cacheKey(principal, annualRatePercent decimal.Decimal, term int, start time.Time) string {
	return fmt.Sprintf("quote:%s:%s:%d:%s",
		principal.StringFixed(2), annualRatePercent.String(), term, start.Format("2006-01-02"))
}

func validate(principal, annualRatePercent decimal.Decimal, term int) error {
	if !principal.IsPositive() {
		return apperr.ValidationError("principal", "must be positive")
	}
	if annualRatePercent.IsNegative() || annualRatePercent.GreaterThan(decimal.NewFromInt(100)) {
		return apperr.ValidationError("annual_rate_percent", "must be between 0 and 100")
	}
	if term < ledger.MinTermMonths || term > ledger.MaxTermMonths {
		return apperr.ValidationError("term_months", "must be between %d and %d", ledger.MinTermMonths, ledger.MaxTermMonths)
	}
	return nil
}

// Quote returns the level payment, totals and schedule for a loan starting on
// start (today when zero). Cache errors are logged and otherwise ignored.
func (s *Service) Quote(ctx context.Context, principal, annualRatePercent decimal.Decimal, term int, start time.Time) (*amortization.Plan, error) {
	if err := validate(principal, annualRatePercent, term); err != nil {
		return nil, err
	}
	if start.IsZero() {
		start = s.now()
	}
	y, m, d := start.Date()
	start = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	key := cacheKey(principal, annualRatePercent, term, start)
	if cached, ok, err := s.cache.Get(ctx, key); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("Quote cache read failed")
	} else if ok {
		var plan amortization.Plan
		if err := json.Unmarshal([]byte(cached), &plan); err == nil {
			return &plan, nil
		}
		s.log.WithField("key", key).Warn("Discarding unreadable cached quote")
	}

	plan, err := amortization.NewPlan(principal, annualRatePercent, term, start)
	if err != nil {
		return nil, apperr.ValidationError("", "%v", err)
	}

	if b, err := json.Marshal(plan); err != nil {
		s.log.WithError(err).Warn("Failed to encode quote for caching")
	} else if err := s.cache.Set(ctx, key, string(b), s.ttl); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("Quote cache write failed")
	}

	s.log.WithFields(logrus.Fields{
		"principal":       principal.StringFixed(2),
		"term_months":     term,
		"monthly_payment": plan.MonthlyPayment.StringFixed(2),
	}).Debug("Quote computed")
	return plan, nil
}

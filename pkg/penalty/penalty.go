// Package penalty estimates late-payment penalties on installments.
package penalty

import (
	"time"

	"github.com/mcclellann/microfin/pkg/models"
	"github.com/shopspring/decimal"
)

// calendarDay drops the clock so that lateness is counted in whole days.
func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysLate is the number of penalty-bearing days: days past due minus the
// grace period, never negative.
func DaysLate(dueDate, asOf time.Time, graceDays int) int {
	elapsed := int(calendarDay(asOf).Sub(calendarDay(dueDate)).Hours() / 24)
	late := elapsed - graceDays
	if late < 0 {
		return 0
	}
	return late
}

// Estimate returns the penalty on inst as of asOf. The daily rate applies to
// the unpaid part of the amount due only; penalties already applied are not
// charged again.
func Estimate(inst models.Installment, policy models.PenaltyPolicy, asOf time.Time) decimal.Decimal {
	days := DaysLate(inst.DueDate, asOf, policy.GraceDays)
	if days == 0 {
		return decimal.Zero
	}

	unpaid := inst.AmountDue.Sub(inst.AmountPaid)
	if !unpaid.IsPositive() {
		return decimal.Zero
	}
	return unpaid.Mul(policy.DailyRate).Mul(decimal.NewFromInt(int64(days))).Round(2)
}

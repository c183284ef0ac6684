package penalty

import (
	"testing"
	"time"

	"github.com/mcclellann/microfin/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

var policy = models.PenaltyPolicy{GraceDays: 5, DailyRate: decimal.RequireFromString("0.001")}

func TestEstimate_LateUnpaidInstallment(t *testing.T) {
	asOf := time.Date(2025, time.June, 21, 14, 30, 0, 0, time.UTC)
	inst := models.Installment{
		DueDate:   asOf.AddDate(0, 0, -20),
		AmountDue: decimal.NewFromInt(1000),
	}

	assert.Equal(t, 15, DaysLate(inst.DueDate, asOf, policy.GraceDays))
	assert.True(t, Estimate(inst, policy, asOf).Equal(decimal.RequireFromString("15.00")))
}

func TestEstimate_ZeroWithinGrace(t *testing.T) {
	due := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	inst := models.Installment{DueDate: due, AmountDue: decimal.NewFromInt(1000)}

	for days := -10; days <= policy.GraceDays; days++ {
		got := Estimate(inst, policy, due.AddDate(0, 0, days))
		assert.True(t, got.IsZero(), "expected no penalty %d days after due, got %s", days, got)
	}
}

func TestEstimate_IncreasesBeyondGrace(t *testing.T) {
	due := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	inst := models.Installment{DueDate: due, AmountDue: decimal.NewFromInt(1000)}

	prev := decimal.Zero
	for days := policy.GraceDays + 1; days <= 120; days++ {
		got := Estimate(inst, policy, due.AddDate(0, 0, days))
		assert.True(t, got.GreaterThan(prev), "penalty must grow: day %d gave %s after %s", days, got, prev)
		prev = got
	}
}

func TestEstimate_OnlyUnpaidPortion(t *testing.T) {
	asOf := time.Date(2025, time.July, 31, 0, 0, 0, 0, time.UTC)
	inst := models.Installment{
		DueDate:        asOf.AddDate(0, 0, -15),
		AmountDue:      decimal.NewFromInt(1000),
		AmountPaid:     decimal.NewFromInt(600),
		PenaltyApplied: decimal.NewFromInt(50),
	}

	// 400 unpaid * 0.001 * 10 days; the 50 already applied is not charged again.
	assert.True(t, Estimate(inst, policy, asOf).Equal(decimal.RequireFromString("4.00")))

	inst.AmountPaid = decimal.NewFromInt(1000)
	assert.True(t, Estimate(inst, policy, asOf).IsZero())
}

func TestEstimate_RoundsHalfAwayFromZero(t *testing.T) {
	asOf := time.Date(2025, time.January, 11, 0, 0, 0, 0, time.UTC)
	inst := models.Installment{
		DueDate:   time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		AmountDue: decimal.RequireFromString("12.5"),
	}
	p := models.PenaltyPolicy{GraceDays: 0, DailyRate: decimal.RequireFromString("0.001")}

	// 12.5 * 0.001 * 10 = 0.125
	assert.True(t, Estimate(inst, p, asOf).Equal(decimal.RequireFromString("0.13")))
}

func TestDaysLate_IgnoresTimeOfDay(t *testing.T) {
	due := time.Date(2025, time.March, 1, 23, 59, 0, 0, time.UTC)
	asOf := time.Date(2025, time.March, 3, 0, 1, 0, 0, time.UTC)
	assert.Equal(t, 2, DaysLate(due, asOf, 0))
	assert.Equal(t, 0, DaysLate(due, asOf, 2))
}

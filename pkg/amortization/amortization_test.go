package amortization

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestEMI(t *testing.T) {
	tests := []struct {
		name      string
		principal string
		rate      string
		term      int
		want      string
	}{
		{"24 percent over 6 months", "10000", "24", 6, "1785.26"},
		{"12 percent over 12 months", "5000", "12", 12, "444.24"},
		{"zero rate divides evenly", "1200", "0", 12, "100"},
		{"zero rate single month", "2500", "0", 1, "2500"},
		{"single month with interest", "1000", "12", 1, "1010"},
		{"half cent rounds away from zero", "1", "0", 8, "0.13"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EMI(decimal.RequireFromString(tt.principal), decimal.RequireFromString(tt.rate), tt.term)
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "expected %s, got %s", tt.want, got)
		})
	}
}

func TestEMI_InvalidInput(t *testing.T) {
	_, err := EMI(decimal.NewFromInt(1000), decimal.NewFromInt(10), 0)
	assert.Error(t, err)

	_, err = EMI(decimal.NewFromInt(-1), decimal.NewFromInt(10), 6)
	assert.Error(t, err)

	_, err = EMI(decimal.NewFromInt(1000), decimal.NewFromInt(-3), 6)
	assert.Error(t, err)
}

func TestEMI_ReconcilesWithExactTotal(t *testing.T) {
	halfCent := decimal.RequireFromString("0.005")
	for _, principal := range []int64{1000, 7350, 10000, 99999} {
		for _, rate := range []string{"6", "18.5", "24", "36"} {
			for term := 1; term <= 18; term++ {
				p := decimal.NewFromInt(principal)
				r := decimal.RequireFromString(rate)

				emi, err := EMI(p, r, term)
				require.NoError(t, err)
				exact := exactPayment(p, r, term)
				assert.True(t, emi.Sub(exact).Abs().LessThanOrEqual(halfCent),
					"principal=%d rate=%s term=%d emi=%s exact=%s", principal, rate, term, emi, exact)

				residual, err := Residual(p, r, term)
				require.NoError(t, err)
				assert.True(t, residual.Abs().LessThanOrEqual(halfCent.Mul(decimal.NewFromInt(int64(term))).Add(decimal.RequireFromString("0.01"))))
			}
		}
	}
}

func TestEMI_ZeroRateEqualsPrincipal(t *testing.T) {
	p := decimal.NewFromInt(9000)
	emi, err := EMI(p, decimal.Zero, 9)
	require.NoError(t, err)
	assert.True(t, emi.Mul(decimal.NewFromInt(9)).Equal(p))

	residual, err := Residual(p, decimal.Zero, 9)
	require.NoError(t, err)
	assert.True(t, residual.IsZero())
}

func TestAddMonthsClamped(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		n     int
		want  time.Time
	}{
		{"mid month", date(2025, time.March, 15), 1, date(2025, time.April, 15)},
		{"jan 31 into leap february", date(2024, time.January, 31), 1, date(2024, time.February, 29)},
		{"jan 31 into common february", date(2025, time.January, 31), 1, date(2025, time.February, 28)},
		{"march 31 into april", date(2025, time.March, 31), 1, date(2025, time.April, 30)},
		{"crosses year end", date(2025, time.November, 30), 3, date(2026, time.February, 28)},
		{"zero months", date(2025, time.May, 31), 0, date(2025, time.May, 31)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AddMonthsClamped(tt.start, tt.n))
		})
	}
}

func TestBuildSchedule(t *testing.T) {
	amount := decimal.RequireFromString("1785.26")
	entries, err := BuildSchedule(date(2024, time.January, 31), 6, amount)
	require.NoError(t, err)
	require.Len(t, entries, 6)

	want := []time.Time{
		date(2024, time.February, 29),
		date(2024, time.March, 31),
		date(2024, time.April, 30),
		date(2024, time.May, 31),
		date(2024, time.June, 30),
		date(2024, time.July, 31),
	}
	for i, e := range entries {
		assert.Equal(t, i+1, e.Sequence)
		assert.Equal(t, want[i], e.DueDate)
		assert.True(t, e.AmountDue.Equal(amount))
	}
}

func TestBuildSchedule_StrictlyIncreasing(t *testing.T) {
	starts := []time.Time{
		date(2025, time.January, 1),
		date(2025, time.January, 29),
		date(2025, time.January, 31),
		date(2024, time.August, 31),
		date(2023, time.December, 30),
	}
	for _, start := range starts {
		for term := 1; term <= 18; term++ {
			entries, err := BuildSchedule(start, term, decimal.NewFromInt(100))
			require.NoError(t, err)
			require.Len(t, entries, term)

			prev := start
			for _, e := range entries {
				assert.True(t, e.DueDate.After(prev), "start=%s term=%d", start, term)
				py, pm, _ := prev.Date()
				ey, em, _ := e.DueDate.Date()
				assert.Equal(t, 1, (ey-py)*12+int(em-pm), "due dates must be one calendar month apart")
				prev = e.DueDate
			}
			assert.Equal(t, MaturityDate(start, term), entries[term-1].DueDate)
		}
	}
}

func TestBuildSchedule_Invalid(t *testing.T) {
	_, err := BuildSchedule(date(2025, time.June, 1), 0, decimal.NewFromInt(10))
	assert.Error(t, err)

	_, err = BuildSchedule(date(2025, time.June, 1), 3, decimal.Zero)
	assert.Error(t, err)
}

func TestNewPlan(t *testing.T) {
	plan, err := NewPlan(decimal.NewFromInt(10000), decimal.NewFromInt(24), 6, date(2025, time.March, 10))
	require.NoError(t, err)

	assert.True(t, plan.MonthlyPayment.Equal(decimal.RequireFromString("1785.26")))
	assert.True(t, plan.TotalPayable.Equal(decimal.RequireFromString("10711.56")))
	assert.True(t, plan.TotalInterest.Equal(decimal.RequireFromString("711.56")))
	assert.True(t, plan.Residual.Equal(decimal.RequireFromString("0.01")))
	assert.Equal(t, date(2025, time.September, 10), plan.MaturityDate)
	assert.Len(t, plan.Schedule, 6)
}

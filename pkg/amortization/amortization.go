// Package amortization computes level monthly payments and the dated
// installment schedule that repays them.
package amortization

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	monthsPerYear = decimal.NewFromInt(12)
	hundred       = decimal.NewFromInt(100)
)

// Entry is one row of a repayment schedule.
type Entry struct {
	Sequence  int             `json:"sequence"`
	DueDate   time.Time       `json:"due_date"`
	AmountDue decimal.Decimal `json:"amount_due"`
}

// MonthlyRate converts a nominal annual percentage (24 = 24%) into the periodic rate.
func MonthlyRate(annualRatePercent decimal.Decimal) decimal.Decimal {
	return annualRatePercent.Div(monthsPerYear).Div(hundred)
}

// exactPayment is the unrounded level payment.
func exactPayment(principal, annualRatePercent decimal.Decimal, termMonths int) decimal.Decimal {
	n := decimal.NewFromInt(int64(termMonths))
	r := MonthlyRate(annualRatePercent)
	if r.IsZero() {
		return principal.Div(n)
	}

	onePlusR := decimal.NewFromInt(1).Add(r)
	factor := decimal.NewFromInt(1)
	for i := 0; i < termMonths; i++ {
		factor = factor.Mul(onePlusR)
	}
	return principal.Mul(r).Mul(factor).Div(factor.Sub(decimal.NewFromInt(1)))
}

func validate(principal, annualRatePercent decimal.Decimal, termMonths int) error {
	if termMonths < 1 {
		return fmt.Errorf("term must be at least 1 month, got %d", termMonths)
	}
	if principal.IsNegative() {
		return fmt.Errorf("principal must not be negative, got %s", principal)
	}
	if annualRatePercent.IsNegative() {
		return fmt.Errorf("annual rate must not be negative, got %s", annualRatePercent)
	}
	return nil
}

// EMI returns the level monthly payment for principal at annualRatePercent over
// termMonths, rounded to cents half away from zero.
//
//	r       = annualRatePercent / 12 / 100
//	payment = P * r * (1+r)^n / ((1+r)^n - 1)    (P / n when r = 0)
func EMI(principal, annualRatePercent decimal.Decimal, termMonths int) (decimal.Decimal, error) {
	if err := validate(principal, annualRatePercent, termMonths); err != nil {
		return decimal.Zero, err
	}
	return exactPayment(principal, annualRatePercent, termMonths).Round(2), nil
}

// Residual is the difference between termMonths equal rounded payments and the
// exact amortized total. Positive means the borrower pays slightly more than
// the exact amortization. Installments do not absorb it.
func Residual(principal, annualRatePercent decimal.Decimal, termMonths int) (decimal.Decimal, error) {
	if err := validate(principal, annualRatePercent, termMonths); err != nil {
		return decimal.Zero, err
	}
	n := decimal.NewFromInt(int64(termMonths))
	exact := exactPayment(principal, annualRatePercent, termMonths)
	return exact.Round(2).Mul(n).Sub(exact.Mul(n)).Round(2), nil
}

// AddMonthsClamped adds n calendar months to t. When the day of month does not
// exist in the target month it is clamped to that month's last day, so
// Jan 31 + 1 month is Feb 28 (or 29).
func AddMonthsClamped(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := daysIn(first.Year(), first.Month(), t.Location())
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// MaturityDate is the due date of the last installment.
func MaturityDate(start time.Time, termMonths int) time.Time {
	return AddMonthsClamped(start, termMonths)
}

// BuildSchedule lays out termMonths installments of amount, due one calendar
// month apart starting one month after start. Each date is derived from start
// rather than from the previous entry, so month-end clamping does not drift.
func BuildSchedule(start time.Time, termMonths int, amount decimal.Decimal) ([]Entry, error) {
	if termMonths < 1 {
		return nil, fmt.Errorf("term must be at least 1 month, got %d", termMonths)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("installment amount must be positive, got %s", amount)
	}

	entries := make([]Entry, 0, termMonths)
	for i := 1; i <= termMonths; i++ {
		entries = append(entries, Entry{
			Sequence:  i,
			DueDate:   AddMonthsClamped(start, i),
			AmountDue: amount,
		})
	}
	return entries, nil
}

// Plan summarizes a prospective loan.
type Plan struct {
	MonthlyPayment decimal.Decimal `json:"monthly_payment"`
	TotalPayable   decimal.Decimal `json:"total_payable"`
	TotalInterest  decimal.Decimal `json:"total_interest"`
	Residual       decimal.Decimal `json:"residual"`
	MaturityDate   time.Time       `json:"maturity_date"`
	Schedule       []Entry         `json:"schedule"`
}

// NewPlan computes the payment, totals and schedule for a loan starting at start.
func NewPlan(principal, annualRatePercent decimal.Decimal, termMonths int, start time.Time) (*Plan, error) {
	payment, err := EMI(principal, annualRatePercent, termMonths)
	if err != nil {
		return nil, err
	}
	schedule, err := BuildSchedule(start, termMonths, payment)
	if err != nil {
		return nil, err
	}
	residual, err := Residual(principal, annualRatePercent, termMonths)
	if err != nil {
		return nil, err
	}

	total := payment.Mul(decimal.NewFromInt(int64(termMonths)))
	return &Plan{
		MonthlyPayment: payment,
		TotalPayable:   total,
		TotalInterest:  total.Sub(principal),
		Residual:       residual,
		MaturityDate:   MaturityDate(start, termMonths),
		Schedule:       schedule,
	}, nil
}

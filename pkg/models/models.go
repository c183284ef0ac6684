package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PenaltyPolicy controls late-payment penalties for a loan's installments.
type PenaltyPolicy struct {
	GraceDays int             `json:"grace_days"`
	DailyRate decimal.Decimal `json:"daily_rate"` // fraction of the unpaid amount per day late
}

// Guarantor is static reference data attached 1:1 to a loan.
type Guarantor struct {
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
	Address      string `json:"address"`
	Phone        string `json:"phone"`
}

type Loan struct {
	ID              uuid.UUID       `json:"id"`
	Reference       string          `json:"reference"`
	BorrowerID      uuid.UUID       `json:"borrower_id"`
	Principal       decimal.Decimal `json:"principal"`
	AnnualRate      decimal.Decimal `json:"annual_rate"` // nominal, as a fraction (0.24 = 24%)
	TermMonths      int             `json:"term_months"`
	MonthlyPayment  decimal.Decimal `json:"monthly_payment"`
	ApplicationDate time.Time       `json:"application_date"`
	MaturityDate    time.Time       `json:"maturity_date"`
	Status          Status          `json:"status"`
	TotalDisbursed  decimal.Decimal `json:"total_disbursed"`
	TotalPaid       decimal.Decimal `json:"total_paid"`
	TotalPenalties  decimal.Decimal `json:"total_penalties"`
	Outstanding     decimal.Decimal `json:"outstanding"`
	Penalty         PenaltyPolicy   `json:"penalty_policy"`
	Remarks         string          `json:"remarks,omitempty"`
	Guarantor       *Guarantor      `json:"guarantor,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type Installment struct {
	ID             uuid.UUID       `json:"id"`
	LoanID         uuid.UUID       `json:"loan_id"`
	Sequence       int             `json:"sequence"`
	DueDate        time.Time       `json:"due_date"`
	AmountDue      decimal.Decimal `json:"amount_due"`
	AmountPaid     decimal.Decimal `json:"amount_paid"`
	PenaltyApplied decimal.Decimal `json:"penalty_applied"`
	Note           string          `json:"note,omitempty"`
}

// Balance is what is still owed on the installment: due + penalty - paid, floored at zero.
func (i *Installment) Balance() decimal.Decimal {
	b := i.AmountDue.Add(i.PenaltyApplied).Sub(i.AmountPaid)
	if b.IsNegative() {
		return decimal.Zero
	}
	return b
}

// Settled reports whether nothing remains owed on the installment.
func (i *Installment) Settled() bool {
	return i.AmountPaid.GreaterThanOrEqual(i.AmountDue.Add(i.PenaltyApplied))
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusApproved PaymentStatus = "approved"
	PaymentStatusRejected PaymentStatus = "rejected"
)

type Payment struct {
	ID              uuid.UUID       `json:"id"`
	LoanID          uuid.UUID       `json:"loan_id"`
	BorrowerID      uuid.UUID       `json:"borrower_id"`
	InstallmentID   *uuid.UUID      `json:"installment_id,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	PenaltyEstimate decimal.Decimal `json:"penalty_estimate"`
	Status          PaymentStatus   `json:"status"`
	SubmittedAt     time.Time       `json:"submitted_at"`
	ReceiptRef      string          `json:"receipt_ref,omitempty"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	DecidedAt       *time.Time      `json:"decided_at,omitempty"`
}

// BorrowerProfile is the subset of borrower data the engine depends on.
type BorrowerProfile struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Address     *string   `json:"address,omitempty"`
	CivilStatus *string   `json:"civil_status,omitempty"`
}

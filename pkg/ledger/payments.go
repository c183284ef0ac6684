package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcclellann/microfin/pkg/apperr"
	"github.com/mcclellann/microfin/pkg/models"
	"github.com/mcclellann/microfin/pkg/penalty"
	"github.com/mcclellann/microfin/pkg/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// overpayTolerance absorbs the rounding residual on the final installment.
var overpayTolerance = decimal.RequireFromString("0.01")

// PaymentRequest is a borrower's payment against a disbursed loan. Without an
// InstallmentID the oldest unpaid installment is used.
type PaymentRequest struct {
	LoanID        uuid.UUID       `json:"loan_id"`
	BorrowerID    uuid.UUID       `json:"borrower_id"`
	InstallmentID *uuid.UUID      `json:"installment_id,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	ReceiptRef    string          `json:"receipt_ref,omitempty"`
}

func approvedTotal(payments []*models.Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	return total
}

// covered reports whether the installment is paid off. Approved payments are
// posted to AmountPaid, so the larger of the two is what has been received.
func covered(inst *models.Installment, approved decimal.Decimal) bool {
	received := decimal.Max(inst.AmountPaid, approved)
	return received.GreaterThanOrEqual(inst.AmountDue.Add(inst.PenaltyApplied))
}

// resolveInstallment picks the installment a payment applies to.
func resolveInstallment(ctx context.Context, repo store.Repository, loan *models.Loan, req PaymentRequest) (*models.Installment, error) {
	if req.InstallmentID != nil {
		inst, err := repo.GetInstallment(ctx, *req.InstallmentID)
		if err != nil {
			return nil, err
		}
		if inst.LoanID != loan.ID {
			return nil, apperr.NotFoundError("installment not found")
		}
		approved := models.PaymentStatusApproved
		payments, err := repo.ListPayments(ctx, store.PaymentFilter{InstallmentID: &inst.ID, Status: &approved})
		if err != nil {
			return nil, err
		}
		if covered(inst, approvedTotal(payments)) {
			return nil, apperr.ConflictError("installment %d of loan %s is already fully paid", inst.Sequence, loan.Reference)
		}
		return inst, nil
	}

	installments, err := repo.ListInstallments(ctx, loan.ID)
	if err != nil {
		return nil, err
	}
	for _, inst := range installments {
		if !inst.Settled() {
			return inst, nil
		}
	}
	return nil, apperr.ConflictError("loan %s has no unpaid installments", loan.Reference)
}

// SubmitPayment records a pending payment for staff approval. Balances are
// not touched until the payment is approved.
func (l *Ledger) SubmitPayment(ctx context.Context, req PaymentRequest) (*models.Payment, error) {
	if !req.Amount.IsPositive() {
		return nil, apperr.ValidationError("amount", "must be positive")
	}
	if err := validateCents("amount", req.Amount); err != nil {
		return nil, err
	}

	var (
		loan    *models.Loan
		payment *models.Payment
	)
	err := l.storage.InTx(ctx, func(repo store.Repository) error {
		var err error
		loan, err = ownedLoan(ctx, repo, req.LoanID, req.BorrowerID)
		if err != nil {
			return err
		}
		if loan.Status != models.StatusDisbursed {
			return apperr.ConflictError("loan %s is %s and cannot receive payments", loan.Reference, loan.Status)
		}

		inst, err := resolveInstallment(ctx, repo, loan, req)
		if err != nil {
			return err
		}

		pending := models.PaymentStatusPending
		existing, err := repo.ListPayments(ctx, store.PaymentFilter{
			InstallmentID: &inst.ID,
			BorrowerID:    &req.BorrowerID,
			Status:        &pending,
		})
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return apperr.ConflictError("a pending payment already exists for this installment")
		}

		approved := models.PaymentStatusApproved
		prior, err := repo.ListPayments(ctx, store.PaymentFilter{
			InstallmentID: &inst.ID,
			BorrowerID:    &req.BorrowerID,
			Status:        &approved,
		})
		if err != nil {
			return err
		}
		if approvedTotal(prior).GreaterThanOrEqual(inst.AmountDue.Add(inst.PenaltyApplied)) {
			return apperr.ConflictError("approved payments already cover installment %d", inst.Sequence)
		}

		now := l.now().UTC()
		payment = &models.Payment{
			ID:              uuid.New(),
			LoanID:          loan.ID,
			BorrowerID:      req.BorrowerID,
			InstallmentID:   &inst.ID,
			Amount:          req.Amount,
			PenaltyEstimate: penalty.Estimate(*inst, loan.Penalty, now),
			Status:          models.PaymentStatusPending,
			SubmittedAt:     now,
			ReceiptRef:      req.ReceiptRef,
		}
		return repo.InsertPayment(ctx, payment)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to submit payment: %w", err)
	}

	l.log.WithFields(logrus.Fields{
		"reference":        loan.Reference,
		"payment_id":       payment.ID,
		"amount":           payment.Amount.StringFixed(2),
		"penalty_estimate": payment.PenaltyEstimate.StringFixed(2),
	}).Info("Payment submitted")

	loanSnapshot, paymentSnapshot := *loan, *payment
	l.dispatch("payment_submitted", func(ctx context.Context) error {
		return l.notifier.PaymentSubmitted(ctx, loanSnapshot, paymentSnapshot)
	})
	return payment, nil
}

// ApprovePayment posts a pending payment to its installment. penaltyApplied is
// the penalty staff decided to charge; nil accepts the submission estimate.
// The loan closes itself once every installment is settled.
func (l *Ledger) ApprovePayment(ctx context.Context, paymentID uuid.UUID, penaltyApplied *decimal.Decimal) (*models.Payment, error) {
	if penaltyApplied != nil {
		if penaltyApplied.IsNegative() {
			return nil, apperr.ValidationError("penalty_applied", "must not be negative")
		}
		if err := validateCents("penalty_applied", *penaltyApplied); err != nil {
			return nil, err
		}
	}

	var payment *models.Payment
	err := l.storage.InTx(ctx, func(repo store.Repository) error {
		var err error
		payment, err = repo.GetPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if payment.Status != models.PaymentStatusPending {
			return apperr.ConflictError("payment is already %s", payment.Status)
		}
		if payment.InstallmentID == nil {
			return apperr.ConflictError("payment is not attached to an installment")
		}

		loan, err := repo.GetLoan(ctx, payment.LoanID)
		if err != nil {
			return err
		}
		if loan.Status != models.StatusDisbursed && loan.Status != models.StatusRestructured {
			return apperr.ConflictError("loan %s is %s and cannot take payments", loan.Reference, loan.Status)
		}
		inst, err := repo.GetInstallment(ctx, *payment.InstallmentID)
		if err != nil {
			return err
		}

		charge := payment.PenaltyEstimate
		if penaltyApplied != nil {
			charge = *penaltyApplied
		}
		inst.PenaltyApplied = inst.PenaltyApplied.Add(charge)
		if payment.Amount.GreaterThan(inst.Balance().Add(overpayTolerance)) {
			return apperr.ConflictError("payment of %s exceeds the %s remaining on installment %d",
				payment.Amount.StringFixed(2), inst.Balance().StringFixed(2), inst.Sequence)
		}
		inst.AmountPaid = inst.AmountPaid.Add(payment.Amount)
		if err := repo.UpdateInstallment(ctx, inst); err != nil {
			return err
		}

		decided := l.now().UTC()
		payment.Status = models.PaymentStatusApproved
		payment.DecidedAt = &decided
		if err := repo.UpdatePayment(ctx, payment); err != nil {
			return err
		}

		installments, err := refreshTotals(ctx, repo, loan)
		if err != nil {
			return err
		}
		if loan.Status == models.StatusDisbursed && unsettled(installments) == 0 {
			loan.Status = models.StatusClosed
			l.log.WithField("reference", loan.Reference).Info("Loan fully repaid, closing")
		}
		loan.UpdatedAt = decided
		return repo.UpdateLoan(ctx, loan)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to approve payment: %w", err)
	}

	l.log.WithFields(logrus.Fields{
		"payment_id": payment.ID,
		"amount":     payment.Amount.StringFixed(2),
	}).Info("Payment approved")
	return payment, nil
}

// RejectPayment declines a pending payment. The reason is kept for the borrower.
func (l *Ledger) RejectPayment(ctx context.Context, paymentID uuid.UUID, reason string) (*models.Payment, error) {
	if reason == "" {
		return nil, apperr.ValidationError("reason", "is required")
	}

	var payment *models.Payment
	err := l.storage.InTx(ctx, func(repo store.Repository) error {
		var err error
		payment, err = repo.GetPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if payment.Status != models.PaymentStatusPending {
			return apperr.ConflictError("payment is already %s", payment.Status)
		}
		decided := l.now().UTC()
		payment.Status = models.PaymentStatusRejected
		payment.RejectionReason = reason
		payment.DecidedAt = &decided
		return repo.UpdatePayment(ctx, payment)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reject payment: %w", err)
	}

	l.log.WithFields(logrus.Fields{
		"payment_id": payment.ID,
		"reason":     reason,
	}).Info("Payment rejected")
	return payment, nil
}

package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/microfin/pkg/amortization"
	"github.com/mcclellann/microfin/pkg/apperr"
	"github.com/mcclellann/microfin/pkg/models"
	"github.com/mcclellann/microfin/pkg/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Transition moves a loan to target if the transition table allows it.
func (l *Ledger) Transition(ctx context.Context, loanID uuid.UUID, target models.Status, remarks string) (*models.Loan, error) {
	if !target.Valid() {
		return nil, apperr.ValidationError("status", "unknown status %q", target)
	}

	var loan *models.Loan
	err := l.storage.InTx(ctx, func(repo store.Repository) error {
		var err error
		loan, err = repo.GetLoan(ctx, loanID)
		if err != nil {
			return err
		}
		if target == models.StatusCancelled && !loan.Status.Cancellable() {
			return apperr.ConflictError("loan %s cannot be cancelled once %s", loan.Reference, loan.Status)
		}
		if !loan.Status.CanTransitionTo(target) {
			return apperr.ConflictError("loan %s cannot move from %s to %s (allowed: %s)",
				loan.Reference, loan.Status, target, allowed(loan.Status))
		}
		// A restructured loan going back to disbursed becomes active again and
		// must not collide with a newer application from the same borrower.
		if target.Active() && !loan.Status.Active() {
			other, err := repo.FindActiveLoan(ctx, loan.BorrowerID)
			switch {
			case err == nil:
				return apperr.ConflictError("borrower already has an active loan %s (%s)", other.Reference, other.Status)
			case !apperr.IsNotFound(err):
				return err
			}
		}

		installments, err := refreshTotals(ctx, repo, loan)
		if err != nil {
			return err
		}
		switch target {
		case models.StatusDisbursed:
			loan.TotalDisbursed = loan.Principal
		case models.StatusClosed:
			if loan.Outstanding.IsPositive() {
				return apperr.ConflictError("loan %s still has %s outstanding across %d installments",
					loan.Reference, loan.Outstanding.StringFixed(2), unsettled(installments))
			}
		}

		from := loan.Status
		loan.Status = target
		if remarks != "" {
			loan.Remarks = remarks
		}
		loan.UpdatedAt = l.now().UTC()
		if err := repo.UpdateLoan(ctx, loan); err != nil {
			return err
		}

		l.log.WithFields(logrus.Fields{
			"reference": loan.Reference,
			"from":      from,
			"to":        target,
		}).Info("Loan status changed")
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to change loan status: %w", err)
	}
	return loan, nil
}

func allowed(s models.Status) string {
	next := s.NextStatuses()
	if len(next) == 0 {
		return "none"
	}
	names := make([]string, len(next))
	for i, n := range next {
		names[i] = string(n)
	}
	return strings.Join(names, ", ")
}

func unsettled(installments []*models.Installment) int {
	n := 0
	for _, inst := range installments {
		if !inst.Settled() {
			n++
		}
	}
	return n
}

// CancelLoan withdraws a borrower's own application. Only loans that are
// still new or under review can be cancelled.
func (l *Ledger) CancelLoan(ctx context.Context, loanID, borrowerID uuid.UUID) (*models.Loan, error) {
	var loan *models.Loan
	err := l.storage.InTx(ctx, func(repo store.Repository) error {
		var err error
		loan, err = ownedLoan(ctx, repo, loanID, borrowerID)
		if err != nil {
			return err
		}
		if !loan.Status.Cancellable() {
			return apperr.ConflictError("loan %s cannot be cancelled once %s", loan.Reference, loan.Status)
		}
		loan.Status = models.StatusCancelled
		loan.UpdatedAt = l.now().UTC()
		return repo.UpdateLoan(ctx, loan)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to cancel loan: %w", err)
	}
	l.log.WithField("reference", loan.Reference).Info("Loan cancelled")
	return loan, nil
}

// LoanUpdate carries the editable fields of a loan. Nil fields are left alone.
// Principal, AnnualRate and TermMonths change the level payment and so
// rebuild the whole schedule.
type LoanUpdate struct {
	Principal       *decimal.Decimal      `json:"principal,omitempty"`
	AnnualRate      *decimal.Decimal      `json:"annual_rate,omitempty"`
	TermMonths      *int                  `json:"term_months,omitempty"`
	ApplicationDate *time.Time            `json:"application_date,omitempty"`
	Penalty         *models.PenaltyPolicy `json:"penalty_policy,omitempty"`
	Remarks         *string               `json:"remarks,omitempty"`
	Guarantor       *models.Guarantor     `json:"guarantor,omitempty"`
}

func (u LoanUpdate) structural() bool {
	return u.Principal != nil || u.AnnualRate != nil || u.TermMonths != nil
}

func (u LoanUpdate) empty() bool {
	return !u.structural() && u.ApplicationDate == nil && u.Penalty == nil && u.Remarks == nil && u.Guarantor == nil
}

func (l *Ledger) validateUpdate(u LoanUpdate) error {
	if u.empty() {
		return apperr.ValidationError("", "no fields to update")
	}
	if u.Principal != nil {
		if err := l.validatePrincipal(*u.Principal); err != nil {
			return err
		}
	}
	if u.AnnualRate != nil {
		if err := validateRate(*u.AnnualRate); err != nil {
			return err
		}
	}
	if u.TermMonths != nil {
		if err := validateTerm(*u.TermMonths); err != nil {
			return err
		}
	}
	if u.Penalty != nil {
		if err := validatePenalty(*u.Penalty); err != nil {
			return err
		}
	}
	return nil
}

// UpdateLoan edits a loan that has not reached a terminal state. Structural
// edits delete and rebuild the schedule, which is refused once any payment
// on the loan has been approved. Pending payments against the old schedule
// are rejected since their installments no longer exist.
func (l *Ledger) UpdateLoan(ctx context.Context, loanID uuid.UUID, u LoanUpdate) (*models.Loan, error) {
	if err := l.validateUpdate(u); err != nil {
		return nil, err
	}

	var loan *models.Loan
	err := l.storage.InTx(ctx, func(repo store.Repository) error {
		var err error
		loan, err = repo.GetLoan(ctx, loanID)
		if err != nil {
			return err
		}
		if loan.Status.Terminal() {
			return apperr.ConflictError("loan %s is %s and can no longer be edited", loan.Reference, loan.Status)
		}

		if u.ApplicationDate != nil {
			loan.ApplicationDate = dateOnly(*u.ApplicationDate)
			loan.MaturityDate = amortization.MaturityDate(loan.ApplicationDate, loan.TermMonths)
		}
		if u.Penalty != nil {
			loan.Penalty = *u.Penalty
		}
		if u.Remarks != nil {
			loan.Remarks = *u.Remarks
		}
		if u.Guarantor != nil {
			loan.Guarantor = u.Guarantor
		}

		if u.structural() {
			if err := l.regenerateSchedule(ctx, repo, loan, u); err != nil {
				return err
			}
		}

		loan.UpdatedAt = l.now().UTC()
		return repo.UpdateLoan(ctx, loan)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update loan: %w", err)
	}
	return loan, nil
}

func (l *Ledger) regenerateSchedule(ctx context.Context, repo store.Repository, loan *models.Loan, u LoanUpdate) error {
	approved := models.PaymentStatusApproved
	approvedPayments, err := repo.ListPayments(ctx, store.PaymentFilter{LoanID: &loan.ID, Status: &approved})
	if err != nil {
		return err
	}
	if len(approvedPayments) > 0 {
		return apperr.ConflictError("loan %s has %d approved payments; principal, rate and term can no longer change",
			loan.Reference, len(approvedPayments))
	}

	pending := models.PaymentStatusPending
	pendingPayments, err := repo.ListPayments(ctx, store.PaymentFilter{LoanID: &loan.ID, Status: &pending})
	if err != nil {
		return err
	}
	all, err := repo.ListPayments(ctx, store.PaymentFilter{LoanID: &loan.ID})
	if err != nil {
		return err
	}
	decided := l.now().UTC()
	for _, p := range all {
		if p.InstallmentID == nil {
			continue
		}
		p.InstallmentID = nil
		if p.Status == models.PaymentStatusPending {
			p.Status = models.PaymentStatusRejected
			p.RejectionReason = "schedule regenerated"
			p.DecidedAt = &decided
		}
		if err := repo.UpdatePayment(ctx, p); err != nil {
			return err
		}
	}

	if u.Principal != nil {
		loan.Principal = *u.Principal
	}
	if u.AnnualRate != nil {
		loan.AnnualRate = *u.AnnualRate
	}
	if u.TermMonths != nil {
		loan.TermMonths = *u.TermMonths
	}
	if loan.Status == models.StatusDisbursed || loan.Status == models.StatusRestructured {
		loan.TotalDisbursed = loan.Principal
	}

	installments, err := newSchedule(loan)
	if err != nil {
		return err
	}
	if err := repo.DeleteInstallments(ctx, loan.ID); err != nil {
		return err
	}
	if err := repo.InsertInstallments(ctx, installments); err != nil {
		return err
	}
	Aggregate(installments).applyTo(loan)

	l.log.WithFields(logrus.Fields{
		"reference":        loan.Reference,
		"term_months":      loan.TermMonths,
		"monthly_payment":  loan.MonthlyPayment.StringFixed(2),
		"pending_rejected": len(pendingPayments),
	}).Info("Loan schedule regenerated")
	return nil
}

// Package notify tells downstream collaborators (documents, messaging) about
// loan events. Delivery is their concern; callers treat it as fire-and-forget.
package notify

import (
	"context"

	"github.com/mcclellann/microfin/pkg/models"
	"github.com/sirupsen/logrus"
)

//go:generate mockgen -destination=mocks/mock_notifier.go -package=mocks -source=notify.go Notifier
type Notifier interface {
	LoanCreated(ctx context.Context, loan models.Loan) error
	PaymentSubmitted(ctx context.Context, loan models.Loan, payment models.Payment) error
}

// LogNotifier records events in the application log.
type LogNotifier struct {
	log *logrus.Logger
}

func NewLogNotifier(log *logrus.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) LoanCreated(ctx context.Context, loan models.Loan) error {
	n.log.WithFields(logrus.Fields{
		"event":       "loan_created",
		"reference":   loan.Reference,
		"borrower_id": loan.BorrowerID,
		"principal":   loan.Principal.StringFixed(2),
		"term_months": loan.TermMonths,
	}).Info("Loan application recorded")
	return nil
}

func (n *LogNotifier) PaymentSubmitted(ctx context.Context, loan models.Loan, payment models.Payment) error {
	n.log.WithFields(logrus.Fields{
		"event":            "payment_submitted",
		"reference":        loan.Reference,
		"payment_id":       payment.ID,
		"amount":           payment.Amount.StringFixed(2),
		"penalty_estimate": payment.PenaltyEstimate.StringFixed(2),
	}).Info("Payment submitted for approval")
	return nil
}

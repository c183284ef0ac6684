package ledger

import (
	"context"

	"github.com/mcclellann/microfin/pkg/models"
	"github.com/mcclellann/microfin/pkg/store"
	"github.com/shopspring/decimal"
)

// Totals are the loan-level figures derived from its installments.
type Totals struct {
	TotalPaid      decimal.Decimal `json:"total_paid"`
	TotalPenalties decimal.Decimal `json:"total_penalties"`
	Outstanding    decimal.Decimal `json:"outstanding"`
}

// Aggregate sums an installment set:
//
//	totalPaid      = sum(amountPaid)
//	totalPenalties = sum(penaltyApplied)
//	outstanding    = sum(max(0, amountDue + penaltyApplied - amountPaid))
func Aggregate(installments []*models.Installment) Totals {
	t := Totals{TotalPaid: decimal.Zero, TotalPenalties: decimal.Zero, Outstanding: decimal.Zero}
	for _, inst := range installments {
		t.TotalPaid = t.TotalPaid.Add(inst.AmountPaid)
		t.TotalPenalties = t.TotalPenalties.Add(inst.PenaltyApplied)
		t.Outstanding = t.Outstanding.Add(inst.Balance())
	}
	return t
}

func (t Totals) applyTo(loan *models.Loan) {
	loan.TotalPaid = t.TotalPaid
	loan.TotalPenalties = t.TotalPenalties
	loan.Outstanding = t.Outstanding
}

// Reconciles reports whether the loan's stored totals match its installments.
func Reconciles(loan *models.Loan, installments []*models.Installment) bool {
	t := Aggregate(installments)
	return loan.TotalPaid.Equal(t.TotalPaid) &&
		loan.TotalPenalties.Equal(t.TotalPenalties) &&
		loan.Outstanding.Equal(t.Outstanding)
}

// refreshTotals recomputes the loan's totals from the installments visible to
// repo. Called inside the transaction that mutated them.
func refreshTotals(ctx context.Context, repo store.Repository, loan *models.Loan) ([]*models.Installment, error) {
	installments, err := repo.ListInstallments(ctx, loan.ID)
	if err != nil {
		return nil, err
	}
	Aggregate(installments).applyTo(loan)
	return installments, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcclellann/microfin/pkg/apperr"
	"github.com/mcclellann/microfin/pkg/models"
)

const installmentColumns = `id, loan_id, sequence, due_date, amount_due, amount_paid, penalty_applied, note`

func (q *queries) InsertInstallments(ctx context.Context, installments []*models.Installment) error {
	for _, inst := range installments {
		_, err := q.exec(ctx,
			`INSERT INTO installments (`+installmentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			inst.ID, inst.LoanID, inst.Sequence, inst.DueDate, inst.AmountDue, inst.AmountPaid, inst.PenaltyApplied, inst.Note,
		)
		if err != nil {
			return fmt.Errorf("failed to create installment %d: %w", inst.Sequence, err)
		}
	}
	return nil
}

// ListInstallments returns the loan's schedule ordered by due date.
func (q *queries) ListInstallments(ctx context.Context, loanID uuid.UUID) ([]*models.Installment, error) {
	rows, err := q.query(ctx,
		`SELECT `+installmentColumns+` FROM installments WHERE loan_id = ? ORDER BY due_date ASC, sequence ASC`+q.forUpdate(),
		loanID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get installments for loan %s: %w", loanID, err)
	}
	defer rows.Close()

	var installments []*models.Installment
	for rows.Next() {
		inst, err := scanInstallment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan installment row: %w", err)
		}
		installments = append(installments, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration for installments: %w", err)
	}
	return installments, nil
}

func (q *queries) GetInstallment(ctx context.Context, id uuid.UUID) (*models.Installment, error) {
	row := q.queryRow(ctx, `SELECT `+installmentColumns+` FROM installments WHERE id = ?`+q.forUpdate(), id)
	inst, err := scanInstallment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFoundError("installment not found")
		}
		return nil, fmt.Errorf("failed to get installment: %w", err)
	}
	return inst, nil
}

// UpdateInstallment writes the mutable parts of an installment: what was paid,
// penalties applied, and the note.
func (q *queries) UpdateInstallment(ctx context.Context, inst *models.Installment) error {
	result, err := q.exec(ctx,
		`UPDATE installments SET amount_paid = ?, penalty_applied = ?, note = ? WHERE id = ?`,
		inst.AmountPaid, inst.PenaltyApplied, inst.Note, inst.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update installment: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperr.NotFoundError("installment not found")
	}
	return nil
}

func (q *queries) DeleteInstallments(ctx context.Context, loanID uuid.UUID) error {
	if _, err := q.exec(ctx, `DELETE FROM installments WHERE loan_id = ?`, loanID); err != nil {
		return fmt.Errorf("failed to delete installments for loan %s: %w", loanID, err)
	}
	return nil
}

func scanInstallment(row rowScanner) (*models.Installment, error) {
	var inst models.Installment
	err := row.Scan(&inst.ID, &inst.LoanID, &inst.Sequence, &inst.DueDate, &inst.AmountDue, &inst.AmountPaid, &inst.PenaltyApplied, &inst.Note)
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

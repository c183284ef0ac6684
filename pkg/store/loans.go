package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mcclellann/microfin/pkg/apperr"
	"github.com/mcclellann/microfin/pkg/models"
	"github.com/mcclellann/microfin/pkg/reference"
)

const loanColumns = `id, reference, borrower_id, principal, annual_rate, term_months, monthly_payment,
	application_date, maturity_date, status, total_disbursed, total_paid, total_penalties, outstanding,
	grace_days, daily_penalty_rate, remarks, guarantor, created_at, updated_at`

// NextReference bumps the per-year counter with a single upsert. On
// PostgreSQL the upsert holds the counter row lock until the surrounding
// transaction ends, so concurrent creations in the same year queue behind it.
func (q *queries) NextReference(ctx context.Context, prefix string, year int) (string, error) {
	var seq int
	err := q.queryRow(ctx,
		`INSERT INTO reference_counters (year, last_seq) VALUES (?, 1)
		ON CONFLICT (year) DO UPDATE SET last_seq = reference_counters.last_seq + 1
		RETURNING last_seq`, year,
	).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("failed to allocate reference for %d: %w", year, err)
	}
	return reference.Format(prefix, year, seq), nil
}

func (q *queries) InsertLoan(ctx context.Context, loan *models.Loan) error {
	guarantor, err := encodeGuarantor(loan.Guarantor)
	if err != nil {
		return err
	}
	_, err = q.exec(ctx,
		`INSERT INTO loans (`+loanColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		loan.ID, loan.Reference, loan.BorrowerID, loan.Principal, loan.AnnualRate, loan.TermMonths, loan.MonthlyPayment,
		loan.ApplicationDate, loan.MaturityDate, loan.Status, loan.TotalDisbursed, loan.TotalPaid, loan.TotalPenalties, loan.Outstanding,
		loan.Penalty.GraceDays, loan.Penalty.DailyRate, loan.Remarks, guarantor, loan.CreatedAt, loan.UpdatedAt,
	)
	if err != nil {
		return loanWriteError("create", err)
	}
	return nil
}

func (q *queries) GetLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	row := q.queryRow(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = ?`+q.forUpdate(), id)
	loan, err := scanLoan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFoundError("loan not found")
		}
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	return loan, nil
}

func (q *queries) GetLoanByReference(ctx context.Context, ref string) (*models.Loan, error) {
	loan, err := scanLoan(q.queryRow(ctx, `SELECT `+loanColumns+` FROM loans WHERE reference = ?`, ref))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFoundError("loan %s not found", ref)
		}
		return nil, fmt.Errorf("failed to get loan %s: %w", ref, err)
	}
	return loan, nil
}

func (q *queries) FindActiveLoan(ctx context.Context, borrowerID uuid.UUID) (*models.Loan, error) {
	row := q.queryRow(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE borrower_id = ? AND status IN (`+activeStatusList()+`)`+q.forUpdate(),
		borrowerID,
	)
	loan, err := scanLoan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFoundError("no active loan")
		}
		return nil, fmt.Errorf("failed to find active loan: %w", err)
	}
	return loan, nil
}

func (q *queries) UpdateLoan(ctx context.Context, loan *models.Loan) error {
	guarantor, err := encodeGuarantor(loan.Guarantor)
	if err != nil {
		return err
	}
	result, err := q.exec(ctx,
		`UPDATE loans SET principal = ?, annual_rate = ?, term_months = ?, monthly_payment = ?,
			application_date = ?, maturity_date = ?, status = ?, total_disbursed = ?, total_paid = ?,
			total_penalties = ?, outstanding = ?, grace_days = ?, daily_penalty_rate = ?, remarks = ?,
			guarantor = ?, updated_at = ?
		WHERE id = ?`,
		loan.Principal, loan.AnnualRate, loan.TermMonths, loan.MonthlyPayment,
		loan.ApplicationDate, loan.MaturityDate, loan.Status, loan.TotalDisbursed, loan.TotalPaid,
		loan.TotalPenalties, loan.Outstanding, loan.Penalty.GraceDays, loan.Penalty.DailyRate, loan.Remarks,
		guarantor, loan.UpdatedAt, loan.ID,
	)
	if err != nil {
		return loanWriteError("update", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperr.NotFoundError("loan not found")
	}
	return nil
}

func loanWriteError(op string, err error) error {
	if desc, ok := uniqueViolation(err); ok {
		if strings.Contains(desc, "reference") {
			return &apperr.Error{Kind: apperr.Conflict, Message: "loan reference already issued", Err: err}
		}
		return &apperr.Error{Kind: apperr.Conflict, Message: "borrower already has an active loan", Err: err}
	}
	return fmt.Errorf("failed to %s loan: %w", op, err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLoan(row rowScanner) (*models.Loan, error) {
	var loan models.Loan
	var guarantor sql.NullString
	err := row.Scan(
		&loan.ID, &loan.Reference, &loan.BorrowerID, &loan.Principal, &loan.AnnualRate, &loan.TermMonths, &loan.MonthlyPayment,
		&loan.ApplicationDate, &loan.MaturityDate, &loan.Status, &loan.TotalDisbursed, &loan.TotalPaid, &loan.TotalPenalties, &loan.Outstanding,
		&loan.Penalty.GraceDays, &loan.Penalty.DailyRate, &loan.Remarks, &guarantor, &loan.CreatedAt, &loan.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if guarantor.Valid && guarantor.String != "" {
		loan.Guarantor = &models.Guarantor{}
		if err := json.Unmarshal([]byte(guarantor.String), loan.Guarantor); err != nil {
			return nil, fmt.Errorf("failed to decode guarantor: %w", err)
		}
	}
	return &loan, nil
}

func encodeGuarantor(g *models.Guarantor) (sql.NullString, error) {
	if g == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(g)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode guarantor: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mcclellann/microfin/pkg/apperr"
	"github.com/mcclellann/microfin/pkg/models"
)

const paymentColumns = `id, loan_id, borrower_id, installment_id, amount, penalty_estimate, status,
	submitted_at, receipt_ref, rejection_reason, decided_at`

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func nullTime(p *models.Payment) sql.NullTime {
	if p.DecidedAt == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *p.DecidedAt, Valid: true}
}

// InsertPayment stores a new payment. A second pending payment for the same
// installment and borrower violates idx_payments_one_pending and is reported
// as a conflict.
func (q *queries) InsertPayment(ctx context.Context, p *models.Payment) error {
	_, err := q.exec(ctx,
		`INSERT INTO payments (`+paymentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.LoanID, p.BorrowerID, nullUUID(p.InstallmentID), p.Amount, p.PenaltyEstimate, p.Status,
		p.SubmittedAt, p.ReceiptRef, p.RejectionReason, nullTime(p),
	)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return &apperr.Error{Kind: apperr.Conflict, Message: "a pending payment already exists for this installment", Err: err}
		}
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (q *queries) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	row := q.queryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`+q.forUpdate(), id)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFoundError("payment not found")
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return p, nil
}

func (q *queries) UpdatePayment(ctx context.Context, p *models.Payment) error {
	result, err := q.exec(ctx,
		`UPDATE payments SET installment_id = ?, penalty_estimate = ?, status = ?, rejection_reason = ?, decided_at = ?
		WHERE id = ?`,
		nullUUID(p.InstallmentID), p.PenaltyEstimate, p.Status, p.RejectionReason, nullTime(p), p.ID,
	)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return &apperr.Error{Kind: apperr.Conflict, Message: "a pending payment already exists for this installment", Err: err}
		}
		return fmt.Errorf("failed to update payment: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperr.NotFoundError("payment not found")
	}
	return nil
}

func (q *queries) ListPayments(ctx context.Context, f PaymentFilter) ([]*models.Payment, error) {
	var conds []string
	var args []any
	if f.LoanID != nil {
		conds = append(conds, "loan_id = ?")
		args = append(args, *f.LoanID)
	}
	if f.InstallmentID != nil {
		conds = append(conds, "installment_id = ?")
		args = append(args, *f.InstallmentID)
	}
	if f.BorrowerID != nil {
		conds = append(conds, "borrower_id = ?")
		args = append(args, *f.BorrowerID)
	}
	if f.Status != nil {
		conds = append(conds, "status = ?")
		args = append(args, *f.Status)
	}

	query := `SELECT ` + paymentColumns + ` FROM payments`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY submitted_at ASC"

	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment row: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration for payments: %w", err)
	}
	return payments, nil
}

func scanPayment(row rowScanner) (*models.Payment, error) {
	var p models.Payment
	var installmentID uuid.NullUUID
	var decidedAt sql.NullTime
	err := row.Scan(&p.ID, &p.LoanID, &p.BorrowerID, &installmentID, &p.Amount, &p.PenaltyEstimate, &p.Status,
		&p.SubmittedAt, &p.ReceiptRef, &p.RejectionReason, &decidedAt)
	if err != nil {
		return nil, err
	}
	if installmentID.Valid {
		id := installmentID.UUID
		p.InstallmentID = &id
	}
	if decidedAt.Valid {
		t := decidedAt.Time
		p.DecidedAt = &t
	}
	return &p, nil
}

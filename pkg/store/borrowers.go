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

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// GetBorrowerProfile reads the profile fields the loan engine depends on.
func (q *queries) GetBorrowerProfile(ctx context.Context, id uuid.UUID) (*models.BorrowerProfile, error) {
	var p models.BorrowerProfile
	var address, civilStatus sql.NullString
	err := q.queryRow(ctx, `SELECT id, name, address, civil_status FROM borrowers WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &address, &civilStatus)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFoundError("borrower not found")
		}
		return nil, fmt.Errorf("failed to get borrower: %w", err)
	}
	if address.Valid {
		p.Address = &address.String
	}
	if civilStatus.Valid {
		p.CivilStatus = &civilStatus.String
	}
	return &p, nil
}

func (q *queries) UpsertBorrowerProfile(ctx context.Context, p *models.BorrowerProfile) error {
	_, err := q.exec(ctx,
		`INSERT INTO borrowers (id, name, address, civil_status) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, address = excluded.address, civil_status = excluded.civil_status`,
		p.ID, p.Name, nullString(p.Address), nullString(p.CivilStatus),
	)
	if err != nil {
		return fmt.Errorf("failed to save borrower: %w", err)
	}
	return nil
}

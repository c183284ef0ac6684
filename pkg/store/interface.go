package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/mcclellann/microfin/pkg/models"
)

// PaymentFilter narrows ListPayments. Nil fields match everything.
type PaymentFilter struct {
	LoanID        *uuid.UUID
	InstallmentID *uuid.UUID
	BorrowerID    *uuid.UUID
	Status        *models.PaymentStatus
}

// Repository defines the row-level operations on loans, installments,
// payments and borrower profiles. Lookups of missing rows return an
// apperr NotFound error; storage-enforced uniqueness surfaces as Conflict.
type Repository interface {
	// NextReference increments the counter for year and returns the formatted
	// reference. Inside InTx the counter row stays locked until commit.
	NextReference(ctx context.Context, prefix string, year int) (string, error)

	InsertLoan(ctx context.Context, loan *models.Loan) error
	GetLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error)
	GetLoanByReference(ctx context.Context, ref string) (*models.Loan, error)
	UpdateLoan(ctx context.Context, loan *models.Loan) error
	FindActiveLoan(ctx context.Context, borrowerID uuid.UUID) (*models.Loan, error)

	InsertInstallments(ctx context.Context, installments []*models.Installment) error
	ListInstallments(ctx context.Context, loanID uuid.UUID) ([]*models.Installment, error)
	GetInstallment(ctx context.Context, id uuid.UUID) (*models.Installment, error)
	UpdateInstallment(ctx context.Context, inst *models.Installment) error
	DeleteInstallments(ctx context.Context, loanID uuid.UUID) error

	InsertPayment(ctx context.Context, payment *models.Payment) error
	GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	UpdatePayment(ctx context.Context, payment *models.Payment) error
	ListPayments(ctx context.Context, filter PaymentFilter) ([]*models.Payment, error)

	GetBorrowerProfile(ctx context.Context, id uuid.UUID) (*models.BorrowerProfile, error)
	UpsertBorrowerProfile(ctx context.Context, profile *models.BorrowerProfile) error
}

// Storage is a Repository that can also run a unit of work atomically.
type Storage interface {
	Repository

	// InTx runs fn in one database transaction. The transaction commits when
	// fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(repo Repository) error) error
	Ping(ctx context.Context) error
	Close() error
}

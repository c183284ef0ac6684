package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/microfin/pkg/amortization"
	"github.com/mcclellann/microfin/pkg/apperr"
	"github.com/mcclellann/microfin/pkg/models"
	"github.com/mcclellann/microfin/pkg/notify"
	"github.com/mcclellann/microfin/pkg/reference"
	"github.com/mcclellann/microfin/pkg/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	MinTermMonths = 1
	MaxTermMonths = 18

	notifyTimeout = 10 * time.Second
)

var hundred = decimal.NewFromInt(100)

// Config holds the lending policy the ledger enforces.
type Config struct {
	ReferencePrefix string
	MinPrincipal    decimal.Decimal
	MaxPrincipal    decimal.Decimal
	DefaultPenalty  models.PenaltyPolicy
}

func DefaultConfig() Config {
	return Config{
		ReferencePrefix: reference.DefaultPrefix,
		MinPrincipal:    decimal.NewFromInt(1000),
		MaxPrincipal:    decimal.NewFromInt(100000),
		DefaultPenalty:  models.PenaltyPolicy{GraceDays: 5, DailyRate: decimal.RequireFromString("0.001")},
	}
}

// BorrowerProfiles is the borrower profile service the ledger consults
// before accepting an application.
type BorrowerProfiles interface {
	GetBorrowerProfile(ctx context.Context, id uuid.UUID) (*models.BorrowerProfile, error)
}

// Ledger handles the business logic for loans, schedules and payments.
type Ledger struct {
	storage  store.Storage
	profiles BorrowerProfiles
	notifier notify.Notifier
	log      *logrus.Logger
	cfg      Config
	now      func() time.Time

	notifications sync.WaitGroup
}

type Option func(*Ledger)

func WithNotifier(n notify.Notifier) Option {
	return func(l *Ledger) { l.notifier = n }
}

func WithBorrowerProfiles(p BorrowerProfiles) Option {
	return func(l *Ledger) { l.profiles = p }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// NewLedger creates a Ledger over s. Borrower profiles are read from s unless
// WithBorrowerProfiles says otherwise; notifications go to the log by default.
func NewLedger(s store.Storage, cfg Config, log *logrus.Logger, opts ...Option) *Ledger {
	if cfg.ReferencePrefix == "" {
		cfg.ReferencePrefix = reference.DefaultPrefix
	}
	l := &Ledger{
		storage:  s,
		profiles: s,
		notifier: notify.NewLogNotifier(log),
		log:      log,
		cfg:      cfg,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// LoanApplication is a borrower's request for a new loan.
type LoanApplication struct {
	BorrowerID      uuid.UUID             `json:"borrower_id"`
	Principal       decimal.Decimal       `json:"principal"`
	AnnualRate      decimal.Decimal       `json:"annual_rate"`
	TermMonths      int                   `json:"term_months"`
	ApplicationDate *time.Time            `json:"application_date,omitempty"`
	Penalty         *models.PenaltyPolicy `json:"penalty_policy,omitempty"`
	Remarks         string                `json:"remarks,omitempty"`
	Guarantor       *models.Guarantor     `json:"guarantor,omitempty"`
}

func (l *Ledger) validatePrincipal(p decimal.Decimal) error {
	if p.LessThan(l.cfg.MinPrincipal) || p.GreaterThan(l.cfg.MaxPrincipal) {
		return apperr.ValidationError("principal", "must be between %s and %s", l.cfg.MinPrincipal.StringFixed(2), l.cfg.MaxPrincipal.StringFixed(2))
	}
	return validateCents("principal", p)
}

// validateCents rejects amounts finer than a cent.
func validateCents(field string, v decimal.Decimal) error {
	if !v.Equal(v.Round(2)) {
		return apperr.ValidationError(field, "must not have more than two decimal places")
	}
	return nil
}

func validateTerm(term int) error {
	if term < MinTermMonths || term > MaxTermMonths {
		return apperr.ValidationError("term_months", "must be between %d and %d", MinTermMonths, MaxTermMonths)
	}
	return nil
}

func validateRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return apperr.ValidationError("annual_rate", "must be a fraction between 0 and 1")
	}
	return nil
}

func validatePenalty(p models.PenaltyPolicy) error {
	if p.GraceDays < 0 {
		return apperr.ValidationError("penalty_policy.grace_days", "must not be negative")
	}
	if p.DailyRate.IsNegative() || p.DailyRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return apperr.ValidationError("penalty_policy.daily_rate", "must be a fraction between 0 and 1")
	}
	return nil
}

func (l *Ledger) validateApplication(app LoanApplication) error {
	if app.BorrowerID == uuid.Nil {
		return apperr.ValidationError("borrower_id", "is required")
	}
	if err := l.validatePrincipal(app.Principal); err != nil {
		return err
	}
	if err := validateRate(app.AnnualRate); err != nil {
		return err
	}
	if err := validateTerm(app.TermMonths); err != nil {
		return err
	}
	if app.Penalty != nil {
		if err := validatePenalty(*app.Penalty); err != nil {
			return err
		}
	}
	return nil
}

// checkProfile enforces the profile service precondition: the borrower must
// exist and have an address and civil status on file.
func (l *Ledger) checkProfile(ctx context.Context, borrowerID uuid.UUID) error {
	profile, err := l.profiles.GetBorrowerProfile(ctx, borrowerID)
	if err != nil {
		return err
	}
	if profile.Address == nil || *profile.Address == "" {
		return apperr.ValidationError("borrower.address", "must be on file before applying")
	}
	if profile.CivilStatus == nil || *profile.CivilStatus == "" {
		return apperr.ValidationError("borrower.civil_status", "must be on file before applying")
	}
	return nil
}

// newSchedule computes the level payment and installment rows for loan.
func newSchedule(loan *models.Loan) ([]*models.Installment, error) {
	payment, err := amortization.EMI(loan.Principal, loan.AnnualRate.Mul(hundred), loan.TermMonths)
	if err != nil {
		return nil, apperr.ValidationError("principal", "%v", err)
	}
	entries, err := amortization.BuildSchedule(loan.ApplicationDate, loan.TermMonths, payment)
	if err != nil {
		return nil, apperr.ValidationError("term_months", "%v", err)
	}

	loan.MonthlyPayment = payment
	loan.MaturityDate = amortization.MaturityDate(loan.ApplicationDate, loan.TermMonths)

	installments := make([]*models.Installment, 0, len(entries))
	for _, e := range entries {
		installments = append(installments, &models.Installment{
			ID:             uuid.New(),
			LoanID:         loan.ID,
			Sequence:       e.Sequence,
			DueDate:        e.DueDate,
			AmountDue:      e.AmountDue,
			AmountPaid:     decimal.Zero,
			PenaltyApplied: decimal.Zero,
		})
	}
	return installments, nil
}

// CreateLoan records a new application together with its full schedule and a
// freshly allocated reference, all in one transaction.
func (l *Ledger) CreateLoan(ctx context.Context, app LoanApplication) (*models.Loan, error) {
	if err := l.validateApplication(app); err != nil {
		return nil, err
	}
	if err := l.checkProfile(ctx, app.BorrowerID); err != nil {
		return nil, err
	}

	now := l.now().UTC()
	appDate := dateOnly(now)
	if app.ApplicationDate != nil {
		appDate = dateOnly(*app.ApplicationDate)
	}
	policy := l.cfg.DefaultPenalty
	if app.Penalty != nil {
		policy = *app.Penalty
	}

	loan := &models.Loan{
		ID:              uuid.New(),
		BorrowerID:      app.BorrowerID,
		Principal:       app.Principal,
		AnnualRate:      app.AnnualRate,
		TermMonths:      app.TermMonths,
		ApplicationDate: appDate,
		Status:          models.StatusNewApplication,
		TotalDisbursed:  decimal.Zero,
		Penalty:         policy,
		Remarks:         app.Remarks,
		Guarantor:       app.Guarantor,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	installments, err := newSchedule(loan)
	if err != nil {
		return nil, err
	}
	Aggregate(installments).applyTo(loan)

	err = l.storage.InTx(ctx, func(repo store.Repository) error {
		existing, err := repo.FindActiveLoan(ctx, app.BorrowerID)
		switch {
		case err == nil:
			return apperr.ConflictError("borrower already has an active loan %s (%s)", existing.Reference, existing.Status)
		case !apperr.IsNotFound(err):
			return err
		}

		ref, err := repo.NextReference(ctx, l.cfg.ReferencePrefix, now.Year())
		if err != nil {
			return err
		}
		loan.Reference = ref

		if err := repo.InsertLoan(ctx, loan); err != nil {
			return err
		}
		return repo.InsertInstallments(ctx, installments)
	})
	if err != nil {
		loan.Reference = ""
		return nil, fmt.Errorf("failed to create loan: %w", err)
	}

	l.log.WithFields(logrus.Fields{
		"reference":       loan.Reference,
		"borrower_id":     loan.BorrowerID,
		"monthly_payment": loan.MonthlyPayment.StringFixed(2),
	}).Info("Loan created")

	created := *loan
	l.dispatch("loan_created", func(ctx context.Context) error {
		return l.notifier.LoanCreated(ctx, created)
	})
	return loan, nil
}

// dispatch runs a notification outside the request. Failures are logged and
// never reach the caller, whose transaction has already committed.
func (l *Ledger) dispatch(event string, fn func(ctx context.Context) error) {
	l.notifications.Add(1)
	go func() {
		defer l.notifications.Done()
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			l.log.WithError(err).WithField("event", event).Warn("Notification failed")
		}
	}()
}

// WaitNotifications blocks until dispatched notifications have finished.
func (l *Ledger) WaitNotifications() {
	l.notifications.Wait()
}

// GetLoan retrieves a loan by its ID.
func (l *Ledger) GetLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	return l.storage.GetLoan(ctx, id)
}

// GetSchedule returns the loan's installments in due-date order.
func (l *Ledger) GetSchedule(ctx context.Context, loanID uuid.UUID) ([]*models.Installment, error) {
	if _, err := l.storage.GetLoan(ctx, loanID); err != nil {
		return nil, err
	}
	return l.storage.ListInstallments(ctx, loanID)
}

// FindLoanByReference looks a loan up by its reference code. Malformed codes
// are a validation error rather than a miss.
func (l *Ledger) FindLoanByReference(ctx context.Context, ref string) (*models.Loan, error) {
	code, err := reference.Parse(ref)
	if err != nil {
		return nil, apperr.ValidationError("reference", "%v", err)
	}
	return l.storage.GetLoanByReference(ctx, code.String())
}

// ownedLoan loads a loan and hides it from anyone but its borrower.
func ownedLoan(ctx context.Context, repo store.Repository, loanID, borrowerID uuid.UUID) (*models.Loan, error) {
	loan, err := repo.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan.BorrowerID != borrowerID {
		return nil, apperr.NotFoundError("loan not found")
	}
	return loan, nil
}

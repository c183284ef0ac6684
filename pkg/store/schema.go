package store

import (
	"fmt"
	"strings"

	"github.com/mcclellann/microfin/pkg/models"
)

// activeStatusList renders models.ActiveStatuses as an SQL IN list.
func activeStatusList() string {
	quoted := make([]string, 0, len(models.ActiveStatuses))
	for _, s := range models.ActiveStatuses {
		quoted = append(quoted, "'"+string(s)+"'")
	}
	return strings.Join(quoted, ", ")
}

// SQLite keeps money in TEXT columns so no precision is lost to REAL affinity.
func sqliteSchema() string {
	return fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS reference_counters (
		year INTEGER PRIMARY KEY,
		last_seq INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS borrowers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		address TEXT,
		civil_status TEXT
	);
	CREATE TABLE IF NOT EXISTS loans (
		id TEXT PRIMARY KEY,
		reference TEXT NOT NULL UNIQUE,
		borrower_id TEXT NOT NULL,
		principal TEXT NOT NULL,
		annual_rate TEXT NOT NULL,
		term_months INTEGER NOT NULL CHECK (term_months BETWEEN 1 AND 18),
		monthly_payment TEXT NOT NULL,
		application_date DATETIME NOT NULL,
		maturity_date DATETIME NOT NULL,
		status TEXT NOT NULL,
		total_disbursed TEXT NOT NULL DEFAULT '0',
		total_paid TEXT NOT NULL DEFAULT '0',
		total_penalties TEXT NOT NULL DEFAULT '0',
		outstanding TEXT NOT NULL DEFAULT '0',
		grace_days INTEGER NOT NULL DEFAULT 0,
		daily_penalty_rate TEXT NOT NULL DEFAULT '0',
		remarks TEXT NOT NULL DEFAULT '',
		guarantor TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_loans_one_active
		ON loans(borrower_id) WHERE status IN (%[1]s);
	CREATE TABLE IF NOT EXISTS installments (
		id TEXT PRIMARY KEY,
		loan_id TEXT NOT NULL,
		sequence INTEGER NOT NULL,
		due_date DATETIME NOT NULL,
		amount_due TEXT NOT NULL,
		amount_paid TEXT NOT NULL DEFAULT '0',
		penalty_applied TEXT NOT NULL DEFAULT '0',
		note TEXT NOT NULL DEFAULT '',
		UNIQUE (loan_id, sequence),
		FOREIGN KEY(loan_id) REFERENCES loans(id)
	);
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		loan_id TEXT NOT NULL,
		borrower_id TEXT NOT NULL,
		installment_id TEXT,
		amount TEXT NOT NULL,
		penalty_estimate TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL,
		submitted_at DATETIME NOT NULL,
		receipt_ref TEXT NOT NULL DEFAULT '',
		rejection_reason TEXT NOT NULL DEFAULT '',
		decided_at DATETIME,
		FOREIGN KEY(loan_id) REFERENCES loans(id),
		FOREIGN KEY(installment_id) REFERENCES installments(id)
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_one_pending
		ON payments(installment_id, borrower_id) WHERE status = 'pending';
	CREATE INDEX IF NOT EXISTS idx_payments_loan ON payments(loan_id);
	`, activeStatusList())
}

func postgresSchema() string {
	return fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS reference_counters (
		year INTEGER PRIMARY KEY,
		last_seq INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS borrowers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		address TEXT,
		civil_status TEXT
	);
	CREATE TABLE IF NOT EXISTS loans (
		id TEXT PRIMARY KEY,
		reference TEXT NOT NULL UNIQUE,
		borrower_id TEXT NOT NULL,
		principal NUMERIC(18,2) NOT NULL,
		annual_rate NUMERIC(9,6) NOT NULL,
		term_months INTEGER NOT NULL CHECK (term_months BETWEEN 1 AND 18),
		monthly_payment NUMERIC(18,2) NOT NULL,
		application_date TIMESTAMPTZ NOT NULL,
		maturity_date TIMESTAMPTZ NOT NULL,
		status TEXT NOT NULL,
		total_disbursed NUMERIC(18,2) NOT NULL DEFAULT 0,
		total_paid NUMERIC(18,2) NOT NULL DEFAULT 0,
		total_penalties NUMERIC(18,2) NOT NULL DEFAULT 0,
		outstanding NUMERIC(18,2) NOT NULL DEFAULT 0,
		grace_days INTEGER NOT NULL DEFAULT 0,
		daily_penalty_rate NUMERIC(9,6) NOT NULL DEFAULT 0,
		remarks TEXT NOT NULL DEFAULT '',
		guarantor TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_loans_one_active
		ON loans(borrower_id) WHERE status IN (%[1]s);
	CREATE TABLE IF NOT EXISTS installments (
		id TEXT PRIMARY KEY,
		loan_id TEXT NOT NULL REFERENCES loans(id),
		sequence INTEGER NOT NULL,
		due_date TIMESTAMPTZ NOT NULL,
		amount_due NUMERIC(18,2) NOT NULL,
		amount_paid NUMERIC(18,2) NOT NULL DEFAULT 0,
		penalty_applied NUMERIC(18,2) NOT NULL DEFAULT 0,
		note TEXT NOT NULL DEFAULT '',
		UNIQUE (loan_id, sequence)
	);
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		loan_id TEXT NOT NULL REFERENCES loans(id),
		borrower_id TEXT NOT NULL,
		installment_id TEXT REFERENCES installments(id),
		amount NUMERIC(18,2) NOT NULL,
		penalty_estimate NUMERIC(18,2) NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		submitted_at TIMESTAMPTZ NOT NULL,
		receipt_ref TEXT NOT NULL DEFAULT '',
		rejection_reason TEXT NOT NULL DEFAULT '',
		decided_at TIMESTAMPTZ
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_one_pending
		ON payments(installment_id, borrower_id) WHERE status = 'pending';
	CREATE INDEX IF NOT EXISTS idx_payments_loan ON payments(loan_id);
	`, activeStatusList())
}

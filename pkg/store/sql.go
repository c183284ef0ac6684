package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// SQLStore implements Storage on SQLite or PostgreSQL.
//
// Row locking differs by driver. PostgreSQL transactions lock the rows they
// mutate (the reference counter upsert and SELECT ... FOR UPDATE on loans,
// installments and payments). SQLite has no row locks, so the store opens
// every transaction with BEGIN IMMEDIATE, which takes the database write lock
// up front and serializes writers.
type SQLStore struct {
	*queries
	db     *sql.DB
	driver string
	log    *logrus.Logger
}

var _ Storage = (*SQLStore)(nil)

// NewSQLStore opens the database, verifies the connection and applies the schema.
func NewSQLStore(driver, dataSourceName string, log *logrus.Logger) (*SQLStore, error) {
	dsn := dataSourceName
	switch driver {
	case DriverSQLite:
		dsn = sqliteDSN(dataSourceName)
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	s := &SQLStore{
		queries: &queries{db: db, driver: driver},
		db:      db,
		driver:  driver,
		log:     log,
	}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	log.WithField("driver", driver).Info("Database connection established and schema initialized.")
	return s, nil
}

// sqliteDSN adds the connection options every pooled connection needs. They
// are DSN parameters rather than PRAGMA statements because a PRAGMA only
// reaches whichever connection happened to run it.
func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=on&_journal_mode=WAL&_busy_timeout=10000&_txlock=immediate"
}

func (s *SQLStore) initSchema() error {
	schema := sqliteSchema()
	if s.driver == DriverPostgres {
		schema = postgresSchema()
	}
	_, err := s.db.Exec(schema)
	return err
}

// InTx runs fn inside a transaction. Errors from fn are returned unchanged so
// callers can still classify them.
func (s *SQLStore) InTx(ctx context.Context, fn func(repo Repository) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&queries{db: tx, driver: s.driver, locking: true}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries runs statements against either the pool or an open transaction.
// Statements are written with ? placeholders and rebound for PostgreSQL.
type queries struct {
	db      dbtx
	driver  string
	locking bool
}

func (q *queries) rebind(query string) string {
	if q.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// forUpdate returns the row-lock clause for reads inside a transaction.
func (q *queries) forUpdate() string {
	if q.locking && q.driver == DriverPostgres {
		return " FOR UPDATE"
	}
	return ""
}

func (q *queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return q.db.ExecContext(ctx, q.rebind(query), args...)
}

func (q *queries) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return q.db.QueryContext(ctx, q.rebind(query), args...)
}

func (q *queries) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return q.db.QueryRowContext(ctx, q.rebind(query), args...)
}

// uniqueViolation reports whether err is a unique-constraint failure and
// returns the driver's description of the violated constraint.
func uniqueViolation(err error) (string, bool) {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return sqliteErr.Error(), true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return pqErr.Constraint + " " + pqErr.Detail, true
	}
	return "", false
}

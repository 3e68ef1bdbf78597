package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested aggregate does not exist.
var ErrNotFound = errors.New("not found")

// DBTX is the subset of database/sql shared by *sql.DB and *sql.Tx. Repos are
// written against it so a whole unit of work can run inside one transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// InitDB opens (or creates) a SQLite database at the given path and ensures
// all required tables exist. Pass ":memory:" for an in-memory database.
func InitDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS loans (
			id TEXT PRIMARY KEY,
			borrower_name TEXT NOT NULL,
			wallet_id TEXT NOT NULL,
			total_amount REAL NOT NULL,
			status TEXT NOT NULL,
			outstanding_balance REAL NOT NULL DEFAULT 0,
			next_payment_due DATETIME,
			disbursed_at DATETIME,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_loans_status ON loans(status)`,

		`CREATE TABLE IF NOT EXISTS monetary_transactions (
			id TEXT PRIMARY KEY,
			loan_id TEXT,
			wallet_id TEXT NOT NULL,
			type TEXT NOT NULL,
			amount REAL NOT NULL,
			status TEXT NOT NULL,
			apply_seq INTEGER NOT NULL,
			processed_at DATETIME NOT NULL,
			created_at DATETIME NOT NULL,
			metadata TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_txns_loan ON monetary_transactions(loan_id)`,
		`CREATE INDEX IF NOT EXISTS idx_txns_status ON monetary_transactions(status)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_txns_apply_seq ON monetary_transactions(apply_seq)`,

		`CREATE TABLE IF NOT EXISTS repayment_installments (
			id TEXT PRIMARY KEY,
			loan_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			due_date DATETIME NOT NULL,
			amount REAL NOT NULL,
			status TEXT NOT NULL,
			actual_amount REAL NOT NULL DEFAULT 0,
			paid_at DATETIME,
			payment_type TEXT NOT NULL DEFAULT '',
			days_early INTEGER NOT NULL DEFAULT 0,
			days_late INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY (loan_id) REFERENCES loans(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_installments_loan ON repayment_installments(loan_id, due_date)`,

		`CREATE TABLE IF NOT EXISTS late_fees (
			id TEXT PRIMARY KEY,
			installment_id TEXT NOT NULL,
			loan_id TEXT NOT NULL,
			fee_amount REAL NOT NULL,
			status TEXT NOT NULL,
			assessed_at DATETIME NOT NULL,
			settled_at DATETIME,
			FOREIGN KEY (installment_id) REFERENCES repayment_installments(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_late_fees_installment ON late_fees(installment_id)`,
		`CREATE INDEX IF NOT EXISTS idx_late_fees_loan ON late_fees(loan_id, status)`,

		`CREATE TABLE IF NOT EXISTS pending_payments (
			id TEXT PRIMARY KEY,
			loan_id TEXT NOT NULL,
			reference TEXT NOT NULL,
			full_name TEXT NOT NULL,
			amount REAL NOT NULL,
			status TEXT NOT NULL,
			FOREIGN KEY (loan_id) REFERENCES loans(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pending_payments_status ON pending_payments(status)`,

		`CREATE TABLE IF NOT EXISTS reconciliation_runs (
			id TEXT PRIMARY KEY,
			file_hash TEXT UNIQUE NOT NULL,
			detected_format TEXT NOT NULL,
			row_count INTEGER NOT NULL,
			match_count INTEGER NOT NULL,
			ingested_at DATETIME NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:60], err)
		}
	}

	return nil
}

// --- shared helpers ---

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

func parseNullableTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

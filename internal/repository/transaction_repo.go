package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pinjamly/ledger/internal/domain"
)

type TransactionRepo struct {
	db DBTX
}

func NewTransactionRepo(db DBTX) *TransactionRepo {
	return &TransactionRepo{db: db}
}

// WithTx returns a copy of the repo bound to the given transaction.
func (r *TransactionRepo) WithTx(tx *sql.Tx) *TransactionRepo {
	return &TransactionRepo{db: tx}
}

// Insert stores a transaction, assigning the next apply_seq. The sequence is
// the application order of repayments; processed_at alone is not trusted to
// order correctly under clock skew or backfills.
func (r *TransactionRepo) Insert(ctx context.Context, txn *domain.MonetaryTransaction) error {
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO monetary_transactions
		(id, loan_id, wallet_id, type, amount, status, apply_seq, processed_at, created_at, metadata)
		VALUES (?,?,?,?,?,?,
			(SELECT COALESCE(MAX(apply_seq), 0) + 1 FROM monetary_transactions),
			?,?,?)
		RETURNING apply_seq`,
		txn.ID, nullableString(txn.LoanID), txn.WalletID, string(txn.Type),
		txn.Amount, string(txn.Status),
		txn.ProcessedAt.Format(time.RFC3339), txn.CreatedAt.Format(time.RFC3339),
		txn.Metadata,
	)
	if err := row.Scan(&txn.ApplySeq); err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (r *TransactionRepo) GetByID(ctx context.Context, id string) (*domain.MonetaryTransaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, loan_id, wallet_id, type, amount, status, apply_seq,
		        processed_at, created_at, metadata
		 FROM monetary_transactions WHERE id = ?`, id)
	txn, err := scanTransactionRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	return txn, err
}

// UpdateStatus transitions a PENDING transaction. Approved and rejected rows
// are inert; attempting to touch one is an error.
func (r *TransactionRepo) UpdateStatus(ctx context.Context, id string, status domain.TransactionStatus) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE monetary_transactions SET status = ? WHERE id = ? AND status = 'PENDING'",
		string(status), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("transaction %s is not pending", id)
	}
	return nil
}

// ListApprovedRepayments returns a loan's approved repayments in application
// order: processed_at ascending, apply_seq breaking ties.
func (r *TransactionRepo) ListApprovedRepayments(ctx context.Context, loanID string) ([]domain.MonetaryTransaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, loan_id, wallet_id, type, amount, status, apply_seq,
		        processed_at, created_at, metadata
		 FROM monetary_transactions
		 WHERE loan_id = ? AND type = 'REPAYMENT' AND status = 'APPROVED'
		 ORDER BY processed_at, apply_seq`, loanID)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var txns []domain.MonetaryTransaction
	for rows.Next() {
		txn, err := scanTransactionRows(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		txns = append(txns, *txn)
	}
	return txns, rows.Err()
}

// --- helpers ---

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func scanTransactionRow(row *sql.Row) (*domain.MonetaryTransaction, error) {
	var txn domain.MonetaryTransaction
	var loanID sql.NullString
	var typ, status, processedAt, createdAt string

	err := row.Scan(&txn.ID, &loanID, &txn.WalletID, &typ, &txn.Amount,
		&status, &txn.ApplySeq, &processedAt, &createdAt, &txn.Metadata)
	if err != nil {
		return nil, err
	}
	fillTransaction(&txn, loanID, typ, status, processedAt, createdAt)
	return &txn, nil
}

func scanTransactionRows(rows *sql.Rows) (*domain.MonetaryTransaction, error) {
	var txn domain.MonetaryTransaction
	var loanID sql.NullString
	var typ, status, processedAt, createdAt string

	err := rows.Scan(&txn.ID, &loanID, &txn.WalletID, &typ, &txn.Amount,
		&status, &txn.ApplySeq, &processedAt, &createdAt, &txn.Metadata)
	if err != nil {
		return nil, err
	}
	fillTransaction(&txn, loanID, typ, status, processedAt, createdAt)
	return &txn, nil
}

func fillTransaction(txn *domain.MonetaryTransaction, loanID sql.NullString, typ, status, processedAt, createdAt string) {
	if loanID.Valid {
		txn.LoanID = loanID.String
	}
	txn.Type = domain.TransactionType(typ)
	txn.Status = domain.TransactionStatus(status)
	txn.ProcessedAt, _ = time.Parse(time.RFC3339, processedAt)
	txn.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
}

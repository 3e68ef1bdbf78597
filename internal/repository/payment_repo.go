package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pinjamly/ledger/internal/domain"
)

type PendingPaymentRepo struct {
	db DBTX
}

func NewPendingPaymentRepo(db DBTX) *PendingPaymentRepo {
	return &PendingPaymentRepo{db: db}
}

// WithTx returns a copy of the repo bound to the given transaction.
func (r *PendingPaymentRepo) WithTx(tx *sql.Tx) *PendingPaymentRepo {
	return &PendingPaymentRepo{db: tx}
}

func (r *PendingPaymentRepo) Insert(ctx context.Context, p *domain.PendingPayment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO pending_payments
		(id, loan_id, reference, full_name, amount, status)
		VALUES (?,?,?,?,?,?)`,
		p.ID, p.LoanID, p.Reference, p.FullName, p.Amount, string(p.Status),
	)
	if err != nil {
		return fmt.Errorf("insert pending payment: %w", err)
	}
	return nil
}

func (r *PendingPaymentRepo) GetByID(ctx context.Context, id string) (*domain.PendingPayment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, loan_id, reference, full_name, amount, status
		 FROM pending_payments WHERE id = ?`, id)

	var p domain.PendingPayment
	var status string
	err := row.Scan(&p.ID, &p.LoanID, &p.Reference, &p.FullName, &p.Amount, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("pending payment %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	p.Status = domain.PendingPaymentStatus(status)
	return &p, nil
}

// ListAwaiting returns the open payment pool in insertion order.
func (r *PendingPaymentRepo) ListAwaiting(ctx context.Context) ([]domain.PendingPayment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, loan_id, reference, full_name, amount, status
		 FROM pending_payments WHERE status = 'AWAITING' ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var payments []domain.PendingPayment
	for rows.Next() {
		var p domain.PendingPayment
		var status string
		if err := rows.Scan(&p.ID, &p.LoanID, &p.Reference, &p.FullName, &p.Amount, &status); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		p.Status = domain.PendingPaymentStatus(status)
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *PendingPaymentRepo) UpdateStatus(ctx context.Context, id string, status domain.PendingPaymentStatus) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE pending_payments SET status = ? WHERE id = ?", string(status), id)
	return err
}

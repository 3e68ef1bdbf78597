package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pinjamly/ledger/internal/domain"
)

type LateFeeRepo struct {
	db DBTX
}

func NewLateFeeRepo(db DBTX) *LateFeeRepo {
	return &LateFeeRepo{db: db}
}

// WithTx returns a copy of the repo bound to the given transaction.
func (r *LateFeeRepo) WithTx(tx *sql.Tx) *LateFeeRepo {
	return &LateFeeRepo{db: tx}
}

func (r *LateFeeRepo) Insert(ctx context.Context, fee *domain.LateFee) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO late_fees
		(id, installment_id, loan_id, fee_amount, status, assessed_at, settled_at)
		VALUES (?,?,?,?,?,?,?)`,
		fee.ID, fee.InstallmentID, fee.LoanID, fee.FeeAmount,
		string(fee.Status), fee.AssessedAt.Format(time.RFC3339),
		formatNullableTime(fee.SettledAt),
	)
	if err != nil {
		return fmt.Errorf("insert late fee: %w", err)
	}
	return nil
}

// ListByInstallment returns an installment's fees oldest first.
func (r *LateFeeRepo) ListByInstallment(ctx context.Context, installmentID string) ([]domain.LateFee, error) {
	return r.list(ctx,
		`SELECT id, installment_id, loan_id, fee_amount, status, assessed_at, settled_at
		 FROM late_fees WHERE installment_id = ? ORDER BY assessed_at, id`, installmentID)
}

func (r *LateFeeRepo) ListByLoan(ctx context.Context, loanID string) ([]domain.LateFee, error) {
	return r.list(ctx,
		`SELECT id, installment_id, loan_id, fee_amount, status, assessed_at, settled_at
		 FROM late_fees WHERE loan_id = ? ORDER BY assessed_at, id`, loanID)
}

// SumActiveByLoan returns the total ACTIVE fee amount still owed on a loan.
func (r *LateFeeRepo) SumActiveByLoan(ctx context.Context, loanID string) (float64, error) {
	var sum float64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(fee_amount), 0) FROM late_fees
		 WHERE loan_id = ? AND status = 'ACTIVE'`, loanID).Scan(&sum)
	return sum, err
}

func (r *LateFeeRepo) MarkPaid(ctx context.Context, id string, settledAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE late_fees SET status = 'PAID', settled_at = ? WHERE id = ? AND status = 'ACTIVE'",
		settledAt.Format(time.RFC3339), id)
	return err
}

func (r *LateFeeRepo) Waive(ctx context.Context, id string, settledAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE late_fees SET status = 'WAIVED', settled_at = ? WHERE id = ? AND status = 'ACTIVE'",
		settledAt.Format(time.RFC3339), id)
	return err
}

func (r *LateFeeRepo) list(ctx context.Context, query string, args ...any) ([]domain.LateFee, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var fees []domain.LateFee
	for rows.Next() {
		var fee domain.LateFee
		var status, assessedAt string
		var settledAt sql.NullString
		err := rows.Scan(&fee.ID, &fee.InstallmentID, &fee.LoanID,
			&fee.FeeAmount, &status, &assessedAt, &settledAt)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		fee.Status = domain.LateFeeStatus(status)
		fee.AssessedAt, _ = time.Parse(time.RFC3339, assessedAt)
		fee.SettledAt = parseNullableTime(settledAt)
		fees = append(fees, fee)
	}
	return fees, rows.Err()
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pinjamly/ledger/internal/domain"
)

type LoanRepo struct {
	db DBTX
}

func NewLoanRepo(db DBTX) *LoanRepo {
	return &LoanRepo{db: db}
}

// WithTx returns a copy of the repo bound to the given transaction.
func (r *LoanRepo) WithTx(tx *sql.Tx) *LoanRepo {
	return &LoanRepo{db: tx}
}

func (r *LoanRepo) Insert(ctx context.Context, loan *domain.Loan) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO loans
		(id, borrower_name, wallet_id, total_amount, status, outstanding_balance,
		 next_payment_due, disbursed_at, created_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		loan.ID, loan.BorrowerName, loan.WalletID, loan.TotalAmount,
		string(loan.Status), loan.OutstandingBalance,
		formatNullableTime(loan.NextPaymentDue), formatNullableTime(loan.DisbursedAt),
		loan.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert loan: %w", err)
	}
	return nil
}

func (r *LoanRepo) GetByID(ctx context.Context, id string) (*domain.Loan, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, borrower_name, wallet_id, total_amount, status,
		        outstanding_balance, next_payment_due, disbursed_at, created_at
		 FROM loans WHERE id = ?`, id)
	loan, err := scanLoan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("loan %s: %w", id, ErrNotFound)
	}
	return loan, err
}

func (r *LoanRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM loans").Scan(&count)
	return count, err
}

// UpdateDerivedFields persists the recomputed balance cache and next-due date.
func (r *LoanRepo) UpdateDerivedFields(ctx context.Context, id string, outstanding float64, nextDue *time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE loans SET outstanding_balance = ?, next_payment_due = ? WHERE id = ?",
		outstanding, formatNullableTime(nextDue), id,
	)
	return err
}

func (r *LoanRepo) UpdateStatus(ctx context.Context, id string, status domain.LoanStatus) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE loans SET status = ? WHERE id = ?", string(status), id)
	return err
}

// PortfolioStats holds aggregate loan statistics for the dashboard.
type PortfolioStats struct {
	Total            int     `json:"total"`
	Active           int     `json:"active"`
	PendingDischarge int     `json:"pending_discharge"`
	Discharged       int     `json:"discharged"`
	TotalPrincipal   float64 `json:"total_principal"`
	TotalOutstanding float64 `json:"total_outstanding"`
}

func (r *LoanRepo) GetPortfolioStats(ctx context.Context) (*PortfolioStats, error) {
	s := &PortfolioStats{}
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status='ACTIVE' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status='PENDING_DISCHARGE' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status='DISCHARGED' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(total_amount), 0),
			COALESCE(SUM(outstanding_balance), 0)
		FROM loans
	`).Scan(&s.Total, &s.Active, &s.PendingDischarge, &s.Discharged,
		&s.TotalPrincipal, &s.TotalOutstanding)
	return s, err
}

func scanLoan(row *sql.Row) (*domain.Loan, error) {
	var loan domain.Loan
	var status, createdAt string
	var nextDue, disbursedAt sql.NullString

	err := row.Scan(
		&loan.ID, &loan.BorrowerName, &loan.WalletID, &loan.TotalAmount,
		&status, &loan.OutstandingBalance, &nextDue, &disbursedAt, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	loan.Status = domain.LoanStatus(status)
	loan.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	loan.NextPaymentDue = parseNullableTime(nextDue)
	loan.DisbursedAt = parseNullableTime(disbursedAt)

	return &loan, nil
}

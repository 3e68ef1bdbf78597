package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pinjamly/ledger/internal/domain"
)

type InstallmentRepo struct {
	db DBTX
}

func NewInstallmentRepo(db DBTX) *InstallmentRepo {
	return &InstallmentRepo{db: db}
}

// WithTx returns a copy of the repo bound to the given transaction.
func (r *InstallmentRepo) WithTx(tx *sql.Tx) *InstallmentRepo {
	return &InstallmentRepo{db: tx}
}

func (r *InstallmentRepo) Insert(ctx context.Context, inst *domain.RepaymentInstallment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO repayment_installments
		(id, loan_id, seq, due_date, amount, status, actual_amount, paid_at,
		 payment_type, days_early, days_late)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		inst.ID, inst.LoanID, inst.Seq, inst.DueDate.Format(time.RFC3339),
		inst.Amount, string(inst.Status), inst.ActualAmount,
		formatNullableTime(inst.PaidAt), string(inst.PaymentType),
		inst.DaysEarly, inst.DaysLate,
	)
	if err != nil {
		return fmt.Errorf("insert installment: %w", err)
	}
	return nil
}

// ListByLoan returns a loan's installments ordered by due date ascending,
// schedule sequence breaking ties. This is the settlement order.
func (r *InstallmentRepo) ListByLoan(ctx context.Context, loanID string) ([]domain.RepaymentInstallment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, loan_id, seq, due_date, amount, status, actual_amount,
		        paid_at, payment_type, days_early, days_late
		 FROM repayment_installments
		 WHERE loan_id = ?
		 ORDER BY due_date, seq`, loanID)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var insts []domain.RepaymentInstallment
	for rows.Next() {
		inst, err := scanInstallment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		insts = append(insts, *inst)
	}
	return insts, rows.Err()
}

// UpdateSettlement overwrites the derived repayment fields of one installment.
func (r *InstallmentRepo) UpdateSettlement(ctx context.Context, inst *domain.RepaymentInstallment) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE repayment_installments
		 SET status = ?, actual_amount = ?, paid_at = ?, payment_type = ?,
		     days_early = ?, days_late = ?
		 WHERE id = ?`,
		string(inst.Status), inst.ActualAmount, formatNullableTime(inst.PaidAt),
		string(inst.PaymentType), inst.DaysEarly, inst.DaysLate, inst.ID,
	)
	if err != nil {
		return fmt.Errorf("update installment %s: %w", inst.ID, err)
	}
	return nil
}

func scanInstallment(rows *sql.Rows) (*domain.RepaymentInstallment, error) {
	var inst domain.RepaymentInstallment
	var dueDate, status, paymentType string
	var paidAt sql.NullString

	err := rows.Scan(&inst.ID, &inst.LoanID, &inst.Seq, &dueDate, &inst.Amount,
		&status, &inst.ActualAmount, &paidAt, &paymentType,
		&inst.DaysEarly, &inst.DaysLate)
	if err != nil {
		return nil, err
	}

	inst.DueDate, _ = time.Parse(time.RFC3339, dueDate)
	inst.Status = domain.InstallmentStatus(status)
	inst.PaymentType = domain.PaymentType(paymentType)
	inst.PaidAt = parseNullableTime(paidAt)

	return &inst, nil
}

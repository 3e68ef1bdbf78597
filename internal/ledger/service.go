package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/pinjamly/ledger/internal/domain"
	"github.com/pinjamly/ledger/internal/repository"
)

// Adjudicator owns late fee lifecycle decisions. The ledger only reports that
// an installment cleared with a given amount of funds left over; creating,
// waiving and pricing fees happens on the other side of this interface. The
// DBTX argument is the recomputation's own transaction so fee updates commit
// or roll back together with the installment rows.
type Adjudicator interface {
	HandleInstallmentCleared(ctx context.Context, db repository.DBTX, installmentID string, amountAvailable float64, paidDate time.Time) (domain.LateFeeSettlement, error)
}

// Service recomputes a loan's derived ledger state from its approved
// repayment history. The transaction history is the source of truth; the
// installment statuses, outstanding balance and next-due date it writes are
// caches of what the history implies.
type Service struct {
	db           *sql.DB
	loans        *repository.LoanRepo
	installments *repository.InstallmentRepo
	txns         *repository.TransactionRepo
	fees         *repository.LateFeeRepo
	adjudicator  Adjudicator

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(db *sql.DB, adjudicator Adjudicator) *Service {
	return &Service{
		db:           db,
		loans:        repository.NewLoanRepo(db),
		installments: repository.NewInstallmentRepo(db),
		txns:         repository.NewTransactionRepo(db),
		fees:         repository.NewLateFeeRepo(db),
		adjudicator:  adjudicator,
		locks:        make(map[string]*sync.Mutex),
	}
}

// lockFor serializes recomputations per loan. The remaining-balance walk is
// not safe under concurrent divergent writes against the same loan.
func (s *Service) lockFor(loanID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[loanID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[loanID] = l
	}
	return l
}

// Recompute rebuilds installment statuses, the outstanding balance and the
// next payment due date for one loan inside a single transaction. Either all
// three land together or the loan keeps its prior state.
func (s *Service) Recompute(ctx context.Context, loanID string) error {
	return s.RecomputeWith(ctx, loanID, nil)
}

// RecomputeWith runs write, then the recomputation, in one transaction. The
// triggering write (a new repayment, a status transition) commits together
// with the derived state it invalidates, so no reader ever sees one without
// the other; if either side fails, neither lands.
func (s *Service) RecomputeWith(ctx context.Context, loanID string, write func(tx *sql.Tx) error) error {
	lock := s.lockFor(loanID)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if write != nil {
		if err := write(tx); err != nil {
			return err
		}
	}

	if err := s.recomputeTx(ctx, tx, loanID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Service) recomputeTx(ctx context.Context, tx *sql.Tx, loanID string) error {
	loans := s.loans.WithTx(tx)
	installments := s.installments.WithTx(tx)
	txns := s.txns.WithTx(tx)
	fees := s.fees.WithTx(tx)

	loan, err := loans.GetByID(ctx, loanID)
	if err != nil {
		return fmt.Errorf("load loan: %w", err)
	}

	insts, err := installments.ListByLoan(ctx, loanID)
	if err != nil {
		return fmt.Errorf("load installments: %w", err)
	}

	payments, err := txns.ListApprovedRepayments(ctx, loanID)
	if err != nil {
		return fmt.Errorf("load repayments: %w", err)
	}

	// Step 1: installment statuses. Fee settlement failures for a single
	// installment must not lose the payment, so they are logged and the walk
	// carries on; the fee attribution can be retried on a later recompute.
	settle := func(inst *domain.RepaymentInstallment, available float64, paidDate time.Time) (domain.LateFeeSettlement, error) {
		res, err := s.adjudicator.HandleInstallmentCleared(ctx, tx, inst.ID, available, paidDate)
		if err != nil {
			log.Printf("[ledger] WARNING: late fee settlement failed for installment %s: %v", inst.ID, err)
			return domain.LateFeeSettlement{}, err
		}
		return res, nil
	}

	updated := replayInstallments(insts, payments, settle)
	for i := range updated {
		if !installmentChanged(&insts[i], &updated[i]) {
			continue
		}
		if err := installments.UpdateSettlement(ctx, &updated[i]); err != nil {
			return fmt.Errorf("persist installment: %w", err)
		}
	}

	// Step 2: outstanding balance. Runs after fee settlement so the active
	// fee sum reflects fees just marked paid.
	var totalPaid float64
	for _, p := range payments {
		if p.Amount < 0 {
			totalPaid -= p.Amount
		} else {
			totalPaid += p.Amount
		}
	}

	activeFees, err := fees.SumActiveByLoan(ctx, loanID)
	if err != nil {
		return fmt.Errorf("sum active fees: %w", err)
	}
	outstanding := outstandingBalance(loan.TotalAmount, activeFees, totalPaid)

	// Step 3: next payment due.
	loanFees, err := fees.ListByLoan(ctx, loanID)
	if err != nil {
		return fmt.Errorf("load fees: %w", err)
	}
	feesByInstallment := make(map[string]float64)
	for _, f := range loanFees {
		if f.Status == domain.FeeActive {
			feesByInstallment[f.InstallmentID] += f.FeeAmount
		}
	}
	nextDue := nextUnsettledDueDate(updated, feesByInstallment, totalPaid)

	if err := loans.UpdateDerivedFields(ctx, loanID, outstanding, nextDue); err != nil {
		return fmt.Errorf("persist loan fields: %w", err)
	}

	// The only loan state transition owned by the ledger: a fully repaid
	// active loan moves to PENDING_DISCHARGE for the discharge workflow.
	if outstanding == 0 && loan.Status == domain.LoanActive {
		if err := loans.UpdateStatus(ctx, loanID, domain.LoanPendingDischarge); err != nil {
			return fmt.Errorf("persist loan status: %w", err)
		}
		log.Printf("[ledger] loan %s fully repaid, moved to PENDING_DISCHARGE", loanID)
	}

	return nil
}

func installmentChanged(a, b *domain.RepaymentInstallment) bool {
	if a.Status != b.Status || a.ActualAmount != b.ActualAmount ||
		a.PaymentType != b.PaymentType || a.DaysEarly != b.DaysEarly ||
		a.DaysLate != b.DaysLate {
		return true
	}
	switch {
	case a.PaidAt == nil && b.PaidAt == nil:
		return false
	case a.PaidAt == nil || b.PaidAt == nil:
		return true
	default:
		return !a.PaidAt.Equal(*b.PaidAt)
	}
}

package ingestion

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/pinjamly/ledger/internal/domain"
	"github.com/pinjamly/ledger/internal/ledger"
	"github.com/pinjamly/ledger/internal/matcher"
	"github.com/pinjamly/ledger/internal/repository"
)

// Service runs the statement reconciliation pipeline: parse the upload,
// match rows against the open payment pool, record the run. Approved matches
// come back through ApproveMatch, which is where they turn into ledger
// transactions.
type Service struct {
	payments  *repository.PendingPaymentRepo
	txns      *repository.TransactionRepo
	runs      *repository.RunRepo
	ledgerSvc *ledger.Service

	pass1 float64
	pass2 float64
}

func NewService(
	payments *repository.PendingPaymentRepo,
	txns *repository.TransactionRepo,
	runs *repository.RunRepo,
	ledgerSvc *ledger.Service,
) *Service {
	return &Service{
		payments:  payments,
		txns:      txns,
		runs:      runs,
		ledgerSvc: ledgerSvc,
		pass1:     envFloat("MATCH_PASS1_THRESHOLD", matcher.Pass1Threshold),
		pass2:     envFloat("MATCH_PASS2_THRESHOLD", matcher.Pass2Threshold),
	}
}

func envFloat(name string, def float64) float64 {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[ingestion] invalid %s=%q, using default %.0f", name, v, def)
		return def
	}
	return f
}

// ReconcileStatement ingests one bank export and returns the full report.
// A statement that was already processed (same file hash) is not matched
// again; the report says so instead.
func (s *Service) ReconcileStatement(ctx context.Context, data []byte) (*domain.ReconciliationReport, error) {
	hash := fmt.Sprintf("%x", sha256.Sum256(data))

	if prev, err := s.runs.GetByHash(ctx, hash); err == nil {
		return &domain.ReconciliationReport{
			Transactions:          []domain.RawTransaction{},
			Matches:               []domain.TransactionMatch{},
			UnmatchedTransactions: []domain.RawTransaction{},
			UnmatchedPayments:     []domain.PendingPayment{},
			DetectedBankFormat:    prev.DetectedFormat,
			Errors: []string{fmt.Sprintf(
				"statement already ingested at %s (%d rows, %d matches)",
				prev.IngestedAt.Format(time.RFC3339), prev.RowCount, prev.MatchCount)},
			Warnings: []string{},
		}, nil
	}

	parsed := ParseStatement(data)

	pending, err := s.payments.ListAwaiting(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pending payments: %w", err)
	}

	report := matcher.MatchWithThresholds(parsed.Transactions, pending, s.pass1, s.pass2)
	report.DetectedBankFormat = parsed.Format
	report.Errors = parsed.Errors
	report.Warnings = parsed.Warnings

	run := &repository.ReconciliationRun{
		ID:             fmt.Sprintf("RUN-%s", uuid.NewString()),
		FileHash:       hash,
		DetectedFormat: parsed.Format,
		RowCount:       len(parsed.Transactions),
		MatchCount:     len(report.Matches),
		IngestedAt:     time.Now().UTC(),
	}
	if err := s.runs.Insert(ctx, run); err != nil {
		return nil, fmt.Errorf("record run: %w", err)
	}

	log.Printf("[ingestion] %s: format=%q rows=%d matched=%d unmatched_rows=%d unmatched_payments=%d",
		run.ID, parsed.Format, len(parsed.Transactions), len(report.Matches),
		len(report.UnmatchedTransactions), len(report.UnmatchedPayments))

	return report, nil
}

// ApproveMatch converts an externally approved match into an APPROVED
// repayment transaction on the payment's loan and recomputes that loan's
// ledger state. The pending payment leaves the matching pool.
func (s *Service) ApproveMatch(ctx context.Context, paymentID string, amount float64, reference string) (*domain.MonetaryTransaction, error) {
	payment, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("load payment: %w", err)
	}
	if payment.Status != domain.PaymentAwaiting {
		return nil, fmt.Errorf("pending payment %s is %s, not AWAITING", paymentID, payment.Status)
	}

	now := time.Now().UTC()
	txn := &domain.MonetaryTransaction{
		ID:          fmt.Sprintf("TXN-%s", uuid.NewString()),
		LoanID:      payment.LoanID,
		WalletID:    "",
		Type:        domain.TypeRepayment,
		Amount:      amount,
		Status:      domain.StatusApproved,
		ProcessedAt: now,
		CreatedAt:   now,
		Metadata:    fmt.Sprintf(`{"source":"bank_statement","reference":%q,"pending_payment_id":%q}`, reference, paymentID),
	}
	// Repayment insert, payment transition and recompute land in one
	// transaction; a failed recompute must not consume the payment.
	err = s.ledgerSvc.RecomputeWith(ctx, payment.LoanID, func(tx *sql.Tx) error {
		if err := s.txns.WithTx(tx).Insert(ctx, txn); err != nil {
			return fmt.Errorf("insert repayment: %w", err)
		}
		if err := s.payments.WithTx(tx).UpdateStatus(ctx, paymentID, domain.PaymentMatched); err != nil {
			return fmt.Errorf("mark payment matched: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("approve payment %s: %w", paymentID, err)
	}

	log.Printf("[ingestion] approved match for payment %s -> repayment %s on loan %s (%.2f)",
		paymentID, txn.ID, payment.LoanID, amount)

	return txn, nil
}

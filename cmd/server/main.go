package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/pinjamly/ledger/internal/api"
	"github.com/pinjamly/ledger/internal/domain"
	"github.com/pinjamly/ledger/internal/ingestion"
	"github.com/pinjamly/ledger/internal/latefee"
	"github.com/pinjamly/ledger/internal/ledger"
	"github.com/pinjamly/ledger/internal/repository"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "pinjamly.db"
	}

	log.Printf("Initializing database at %s", dbPath)
	db, err := repository.InitDB(dbPath)
	if err != nil {
		log.Fatalf("Failed to init DB: %v", err)
	}
	defer db.Close()

	// Create repositories.
	loanRepo := repository.NewLoanRepo(db)
	instRepo := repository.NewInstallmentRepo(db)
	feeRepo := repository.NewLateFeeRepo(db)
	txnRepo := repository.NewTransactionRepo(db)
	paymentRepo := repository.NewPendingPaymentRepo(db)
	runRepo := repository.NewRunRepo(db)

	// Create services.
	ledgerSvc := ledger.NewService(db, latefee.NewService())
	ingestionSvc := ingestion.NewService(paymentRepo, txnRepo, runRepo, ledgerSvc)

	// Seed loans if DB is empty.
	ctx := context.Background()
	count, err := loanRepo.Count(ctx)
	if err != nil {
		log.Fatalf("Failed to count loans: %v", err)
	}
	if count == 0 {
		log.Println("Database is empty, seeding loans from testdata...")
		if err := seedLoans(ctx, loanRepo, instRepo, feeRepo, paymentRepo); err != nil {
			log.Printf("WARNING: Failed to seed loans: %v", err)
		}
	} else {
		log.Printf("Database already has %d loans, skipping seed", count)
	}

	// Create router.
	router := api.NewRouter(loanRepo, instRepo, feeRepo, txnRepo, paymentRepo, ledgerSvc, ingestionSvc)

	log.Printf("Pinjamly Loan Ledger & Reconciliation Service")
	log.Printf("Listening on http://localhost:%s", port)
	log.Printf("API base: http://localhost:%s/api/v1", port)
	log.Printf("")
	log.Printf("Endpoints:")
	log.Printf("  POST   /api/v1/statements/reconcile")
	log.Printf("  POST   /api/v1/reconciliation/approve")
	log.Printf("  GET    /api/v1/loans/{id}")
	log.Printf("  POST   /api/v1/loans/{id}/repayments")
	log.Printf("  POST   /api/v1/loans/{id}/recompute")
	log.Printf("  GET    /api/v1/pending-payments")
	log.Printf("  GET    /api/v1/dashboard")

	if err := http.ListenAndServe(":"+port, router); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// seedFile mirrors testdata/seed.json.
type seedFile struct {
	Loans           []domain.Loan                 `json:"loans"`
	Installments    []domain.RepaymentInstallment `json:"installments"`
	LateFees        []domain.LateFee              `json:"late_fees"`
	PendingPayments []domain.PendingPayment       `json:"pending_payments"`
}

func seedLoans(
	ctx context.Context,
	loanRepo *repository.LoanRepo,
	instRepo *repository.InstallmentRepo,
	feeRepo *repository.LateFeeRepo,
	paymentRepo *repository.PendingPaymentRepo,
) error {
	// Try multiple possible locations for testdata.
	candidates := []string{
		"testdata/seed.json",
		filepath.Join(".", "testdata", "seed.json"),
	}

	// Also try to find relative to the executable.
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		candidates = append(candidates,
			filepath.Join(dir, "testdata", "seed.json"),
			filepath.Join(dir, "..", "..", "testdata", "seed.json"),
		)
	}

	var data []byte
	var loadErr error
	for _, path := range candidates {
		data, loadErr = os.ReadFile(path)
		if loadErr == nil {
			log.Printf("Loaded seed data from %s", path)
			break
		}
	}
	if loadErr != nil {
		return fmt.Errorf("could not find seed.json in any candidate path: %w", loadErr)
	}

	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("unmarshal seed data: %w", err)
	}

	for i := range seed.Loans {
		if err := loanRepo.Insert(ctx, &seed.Loans[i]); err != nil {
			return fmt.Errorf("seed loan %s: %w", seed.Loans[i].ID, err)
		}
	}
	for i := range seed.Installments {
		if err := instRepo.Insert(ctx, &seed.Installments[i]); err != nil {
			return fmt.Errorf("seed installment %s: %w", seed.Installments[i].ID, err)
		}
	}
	for i := range seed.LateFees {
		if err := feeRepo.Insert(ctx, &seed.LateFees[i]); err != nil {
			return fmt.Errorf("seed late fee %s: %w", seed.LateFees[i].ID, err)
		}
	}
	for i := range seed.PendingPayments {
		if err := paymentRepo.Insert(ctx, &seed.PendingPayments[i]); err != nil {
			return fmt.Errorf("seed pending payment %s: %w", seed.PendingPayments[i].ID, err)
		}
	}

	log.Printf("Seeded %d loans, %d installments, %d late fees, %d pending payments",
		len(seed.Loans), len(seed.Installments), len(seed.LateFees), len(seed.PendingPayments))
	return nil
}

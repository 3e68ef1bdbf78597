package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pinjamly/ledger/internal/ingestion"
	"github.com/pinjamly/ledger/internal/ledger"
	"github.com/pinjamly/ledger/internal/repository"
)

// NewRouter creates the Chi router with all API routes mounted.
func NewRouter(
	loanRepo *repository.LoanRepo,
	instRepo *repository.InstallmentRepo,
	feeRepo *repository.LateFeeRepo,
	txnRepo *repository.TransactionRepo,
	paymentRepo *repository.PendingPaymentRepo,
	ledgerSvc *ledger.Service,
	ingestionSvc *ingestion.Service,
) http.Handler {
	h := &Handlers{
		loanRepo:     loanRepo,
		instRepo:     instRepo,
		feeRepo:      feeRepo,
		txnRepo:      txnRepo,
		paymentRepo:  paymentRepo,
		ledgerSvc:    ledgerSvc,
		ingestionSvc: ingestionSvc,
	}

	r := chi.NewRouter()

	// Middleware.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SetHeader("Content-Type", "application/json"))

	r.Route("/api/v1", func(r chi.Router) {
		// Statement reconciliation.
		r.Post("/statements/reconcile", h.ReconcileStatement)
		r.Post("/reconciliation/approve", h.ApproveMatch)

		// Loans.
		r.Get("/loans/{id}", h.GetLoan)
		r.Post("/loans/{id}/repayments", h.SubmitRepayment)
		r.Post("/loans/{id}/recompute", h.RecomputeLoan)

		// Pending payments.
		r.Get("/pending-payments", h.ListPendingPayments)

		// Dashboard.
		r.Get("/dashboard", h.GetDashboard)
	})

	return r
}

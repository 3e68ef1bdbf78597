package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pinjamly/ledger/internal/domain"
	"github.com/pinjamly/ledger/internal/ingestion"
	"github.com/pinjamly/ledger/internal/ledger"
	"github.com/pinjamly/ledger/internal/repository"
)

// Handlers groups all HTTP handler methods and their dependencies.
type Handlers struct {
	loanRepo     *repository.LoanRepo
	instRepo     *repository.InstallmentRepo
	feeRepo      *repository.LateFeeRepo
	txnRepo      *repository.TransactionRepo
	paymentRepo  *repository.PendingPaymentRepo
	ledgerSvc    *ledger.Service
	ingestionSvc *ingestion.Service
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// --- ReconcileStatement ---

func (h *Handlers) ReconcileStatement(w http.ResponseWriter, r *http.Request) {
	// Accept multipart form.
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required: "+err.Error())
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "read file: "+err.Error())
		return
	}

	report, err := h.ingestionSvc.ReconcileStatement(r.Context(), data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// --- ApproveMatch ---

type approveMatchRequest struct {
	PaymentID string  `json:"payment_id"`
	Amount    float64 `json:"amount"`
	Reference string  `json:"reference"`
}

func (h *Handlers) ApproveMatch(w http.ResponseWriter, r *http.Request) {
	var req approveMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	if req.PaymentID == "" || req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "payment_id and a positive amount are required")
		return
	}

	txn, err := h.ingestionSvc.ApproveMatch(r.Context(), req.PaymentID, req.Amount, req.Reference)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"transaction": txn})
}

// --- GetLoan ---

func (h *Handlers) GetLoan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	loan, err := h.loanRepo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "loan not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	installments, err := h.instRepo.ListByLoan(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	fees, err := h.feeRepo.ListByLoan(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"loan":         loan,
		"installments": installments,
		"late_fees":    fees,
	})
}

// --- SubmitRepayment ---

type repaymentRequest struct {
	Amount      float64 `json:"amount"`
	ProcessedAt string  `json:"processed_at,omitempty"`
}

// SubmitRepayment records a wallet-balance repayment. The transaction is
// approved on the spot and the loan's ledger state recomputed atomically with
// it visible.
func (h *Handlers) SubmitRepayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req repaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "a positive amount is required")
		return
	}

	loan, err := h.loanRepo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "loan not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	processedAt := time.Now().UTC()
	if req.ProcessedAt != "" {
		t, err := time.Parse(time.RFC3339, req.ProcessedAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "processed_at must be RFC3339")
			return
		}
		processedAt = t
	}

	txn := &domain.MonetaryTransaction{
		ID:          fmt.Sprintf("TXN-%s", uuid.NewString()),
		LoanID:      loan.ID,
		WalletID:    loan.WalletID,
		Type:        domain.TypeRepayment,
		Amount:      req.Amount,
		Status:      domain.StatusApproved,
		ProcessedAt: processedAt,
		CreatedAt:   time.Now().UTC(),
		Metadata:    `{"source":"wallet_balance"}`,
	}
	// The insert and the recompute commit together; a reader never sees the
	// new repayment next to a stale balance.
	err = h.ledgerSvc.RecomputeWith(r.Context(), loan.ID, func(tx *sql.Tx) error {
		return h.txnRepo.WithTx(tx).Insert(r.Context(), txn)
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	updated, err := h.loanRepo.GetByID(r.Context(), loan.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"transaction": txn,
		"loan":        updated,
	})
}

// --- RecomputeLoan ---

func (h *Handlers) RecomputeLoan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.ledgerSvc.Recompute(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "loan not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	loan, err := h.loanRepo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"loan": loan})
}

// --- ListPendingPayments ---

func (h *Handlers) ListPendingPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.paymentRepo.ListAwaiting(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"pending_payments": payments,
		"total":            len(payments),
	})
}

// --- GetDashboard ---

func (h *Handlers) GetDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.loanRepo.GetPortfolioStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	payments, err := h.paymentRepo.ListAwaiting(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var awaitingAmount float64
	for _, p := range payments {
		awaitingAmount += p.Amount
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"loans": stats,
		"pending_payments": map[string]any{
			"awaiting":        len(payments),
			"awaiting_amount": awaitingAmount,
		},
	})
}

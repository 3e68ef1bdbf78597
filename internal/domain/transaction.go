package domain

import "time"

type TransactionType string

const (
	TypeDeposit      TransactionType = "DEPOSIT"
	TypeWithdrawal   TransactionType = "WITHDRAWAL"
	TypeDisbursement TransactionType = "DISBURSEMENT"
	TypeRepayment    TransactionType = "REPAYMENT"
)

type TransactionStatus string

const (
	StatusPending  TransactionStatus = "PENDING"
	StatusApproved TransactionStatus = "APPROVED"
	StatusRejected TransactionStatus = "REJECTED"
)

// MonetaryTransaction is one entry in the append-only ledger. Amount is
// signed: negative means money leaving the wallet. Once a transaction is
// APPROVED or REJECTED it is inert: amount, type and loan binding never
// change again.
//
// ApplySeq is a monotonic sequence assigned on insert. Repayments are applied
// in (processed_at, apply_seq) order so that replay stays stable under clock
// skew and bulk backfills.
type MonetaryTransaction struct {
	ID          string            `json:"id"`
	LoanID      string            `json:"loan_id,omitempty"`
	WalletID    string            `json:"wallet_id"`
	Type        TransactionType   `json:"type"`
	Amount      float64           `json:"amount"`
	Status      TransactionStatus `json:"status"`
	ApplySeq    int64             `json:"apply_seq"`
	ProcessedAt time.Time         `json:"processed_at"`
	CreatedAt   time.Time         `json:"created_at"`
	Metadata    string            `json:"metadata,omitempty"`
}

package domain

import "time"

type LoanStatus string

const (
	LoanActive           LoanStatus = "ACTIVE"
	LoanPendingDischarge LoanStatus = "PENDING_DISCHARGE"
	LoanDischarged       LoanStatus = "DISCHARGED"
	LoanDefaulted        LoanStatus = "DEFAULTED"
)

// Loan is the aggregate the ledger core reconstructs state for.
// OutstandingBalance and NextPaymentDue are refreshed caches derived from the
// approved transaction history and are never written by anything else.
type Loan struct {
	ID                 string     `json:"id"`
	BorrowerName       string     `json:"borrower_name"`
	WalletID           string     `json:"wallet_id"`
	TotalAmount        float64    `json:"total_amount"`
	Status             LoanStatus `json:"status"`
	OutstandingBalance float64    `json:"outstanding_balance"`
	NextPaymentDue     *time.Time `json:"next_payment_due,omitempty"`
	DisbursedAt        *time.Time `json:"disbursed_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

package domain

import "time"

type InstallmentStatus string

const (
	InstallmentPending   InstallmentStatus = "PENDING"
	InstallmentPartial   InstallmentStatus = "PARTIAL"
	InstallmentCompleted InstallmentStatus = "COMPLETED"
	InstallmentCancelled InstallmentStatus = "CANCELLED"
)

type PaymentType string

const (
	PaymentEarly   PaymentType = "EARLY"
	PaymentLate    PaymentType = "LATE"
	PaymentOnTime  PaymentType = "ON_TIME"
	PaymentPartial PaymentType = "PARTIAL"
)

// RepaymentInstallment is one scheduled obligation of a loan. Rows are seeded
// at disbursement and after that mutated only by ledger recomputation.
// Installments settle strictly in due-date order: a later installment is never
// COMPLETED while an earlier one is still PENDING or PARTIAL.
type RepaymentInstallment struct {
	ID           string            `json:"id"`
	LoanID       string            `json:"loan_id"`
	Seq          int               `json:"seq"`
	DueDate      time.Time         `json:"due_date"`
	Amount       float64           `json:"amount"`
	Status       InstallmentStatus `json:"status"`
	ActualAmount float64           `json:"actual_amount"`
	PaidAt       *time.Time        `json:"paid_at,omitempty"`
	PaymentType  PaymentType       `json:"payment_type,omitempty"`
	DaysEarly    int               `json:"days_early"`
	DaysLate     int               `json:"days_late"`
}

type LateFeeStatus string

const (
	FeeActive LateFeeStatus = "ACTIVE"
	FeeWaived LateFeeStatus = "WAIVED"
	FeePaid   LateFeeStatus = "PAID"
)

// LateFee is a charge attached to one installment for a missed due date.
// Fees are created and waived by the adjudicator; ledger recomputation only
// ever marks them PAID. An ACTIVE fee counts into the installment's total due
// before it can complete.
type LateFee struct {
	ID            string        `json:"id"`
	InstallmentID string        `json:"installment_id"`
	LoanID        string        `json:"loan_id"`
	FeeAmount     float64       `json:"fee_amount"`
	Status        LateFeeStatus `json:"status"`
	AssessedAt    time.Time     `json:"assessed_at"`
	SettledAt     *time.Time    `json:"settled_at,omitempty"`
}

// LateFeeSettlement is the adjudicator's answer for one cleared installment.
type LateFeeSettlement struct {
	LateFeesPaid   float64 `json:"late_fees_paid"`
	LateFeesWaived float64 `json:"late_fees_waived"`
	TotalLateFees  float64 `json:"total_late_fees"`
}

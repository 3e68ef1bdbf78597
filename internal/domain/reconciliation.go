package domain

import (
	"bytes"
	"encoding/json"
)

// RowData is an ordered header→value view of one raw statement row. It keeps
// the file's column order, which a plain map would lose.
type RowData struct {
	keys   []string
	values map[string]string
}

func NewRowData() *RowData {
	return &RowData{values: make(map[string]string)}
}

func (r *RowData) Set(key, value string) {
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

func (r *RowData) Get(key string) string {
	return r.values[key]
}

// Keys returns the column names in file order.
func (r *RowData) Keys() []string {
	return r.keys
}

// MarshalJSON emits the row as a flat object preserving column order.
func (r *RowData) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// RawTransaction is one normalized row extracted from a bank statement.
type RawTransaction struct {
	ReferenceCode   string   `json:"reference_code"`
	BeneficiaryName string   `json:"beneficiary_name"`
	Amount          float64  `json:"amount"`
	RawRowData      *RowData `json:"raw_row_data,omitempty"`
}

type PendingPaymentStatus string

const (
	PaymentAwaiting PendingPaymentStatus = "AWAITING"
	PaymentMatched  PendingPaymentStatus = "MATCHED"
	PaymentExpired  PendingPaymentStatus = "EXPIRED"
)

// PendingPayment is an expected incoming payment awaiting a bank transfer.
type PendingPayment struct {
	ID        string               `json:"id"`
	LoanID    string               `json:"loan_id"`
	Reference string               `json:"reference"`
	FullName  string               `json:"full_name"`
	Amount    float64              `json:"amount"`
	Status    PendingPaymentStatus `json:"status"`
}

// TransactionMatch pairs one statement row with one pending payment. Matching
// is strictly 1:1.
type TransactionMatch struct {
	Transaction RawTransaction `json:"transaction"`
	Payment     PendingPayment `json:"payment"`
	Score       float64        `json:"score"`
	Reasons     []string       `json:"reasons"`
}

type ReportSummary struct {
	TotalRows         int `json:"total_rows"`
	Matched           int `json:"matched"`
	UnmatchedRows     int `json:"unmatched_rows"`
	UnmatchedPayments int `json:"unmatched_payments"`
}

// ReconciliationReport is the full outcome of one statement reconciliation.
// It is always produced, even for a wholly unparseable file; parse failures
// surface in Errors rather than aborting the run.
type ReconciliationReport struct {
	Transactions          []RawTransaction   `json:"transactions"`
	Matches               []TransactionMatch `json:"matches"`
	UnmatchedTransactions []RawTransaction   `json:"unmatched_transactions"`
	UnmatchedPayments     []PendingPayment   `json:"unmatched_payments"`
	Errors                []string           `json:"errors"`
	Warnings              []string           `json:"warnings"`
	DetectedBankFormat    string             `json:"detected_bank_format"`
	Summary               ReportSummary      `json:"summary"`
}

package ingestion

import (
	"strings"

	"github.com/pinjamly/ledger/internal/money"
)

// BankFormat describes how to read one bank's export: candidate header names
// per field, a detector predicate over the header row, and the bank's amount
// notation. Formats are checked in registry order; the generic catch-all sits
// last and matches anything.
type BankFormat struct {
	Name            string
	ReferenceCols   []string
	BeneficiaryCols []string
	AmountCols      []string
	ParseAmount     func(string) (float64, error)
	Detect          func(headers []string) bool
}

// formats is the registry, in fixed priority order.
var formats = []BankFormat{
	{
		// The platform's canonical export: two description columns where the
		// reference lives in whichever is populated, and "RM 2,000.00" style
		// amounts split across cash_in/cash_out.
		Name:            "Standardized Format",
		ReferenceCols:   []string{"description_1", "description_2"},
		BeneficiaryCols: []string{"beneficiary", "beneficiary_name", "recipient"},
		AmountCols:      []string{"cash_in", "credit", "amount"},
		ParseAmount:     money.Parse,
		Detect: func(headers []string) bool {
			return hasHeader(headers, "description_1") && hasHeader(headers, "description_2")
		},
	},
	{
		Name:            "Debit Credit Format",
		ReferenceCols:   []string{"reference", "reference_no", "transaction_details", "description"},
		BeneficiaryCols: []string{"beneficiary", "payer", "customer_name"},
		AmountCols:      []string{"credit", "credit_amount"},
		ParseAmount:     money.Parse,
		Detect: func(headers []string) bool {
			return (hasHeader(headers, "debit") || hasHeader(headers, "debit_amount")) &&
				(hasHeader(headers, "credit") || hasHeader(headers, "credit_amount"))
		},
	},
	{
		Name:            "Generic",
		ReferenceCols:   []string{"reference", "reference_code", "ref", "description", "details", "narrative"},
		BeneficiaryCols: []string{"beneficiary", "beneficiary_name", "name", "payer", "customer"},
		AmountCols:      []string{"amount", "credit", "cash_in", "transaction_amount", "value"},
		ParseAmount:     money.Parse,
		Detect:          func([]string) bool { return true },
	},
}

func detectFormat(headers []string) *BankFormat {
	for i := range formats {
		if formats[i].Detect(headers) {
			return &formats[i]
		}
	}
	return &formats[len(formats)-1]
}

func hasHeader(headers []string, name string) bool {
	for _, h := range headers {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return true
		}
	}
	return false
}

// resolvedColumns holds per-field column indexes for one statement, -1 when
// unresolved. The standardized format resolves its reference from a primary
// and a fallback description column instead of a single reference column.
type resolvedColumns struct {
	reference   int
	refPrimary  int
	refFallback int
	beneficiary int
	amount      int
}

func resolveFormatColumns(format *BankFormat, headers []string) resolvedColumns {
	cols := resolvedColumns{
		reference:   resolveColumn(headers, format.ReferenceCols),
		refPrimary:  -1,
		refFallback: -1,
		beneficiary: resolveColumn(headers, format.BeneficiaryCols),
		amount:      resolveColumn(headers, format.AmountCols),
	}

	if format.Name == "Standardized Format" {
		cols.refPrimary = resolveColumn(headers, []string{"description_1"})
		cols.refFallback = resolveColumn(headers, []string{"description_2"})
	}

	return cols
}

// resolveColumn finds the header index for a field. All candidates are tried
// for an exact case-insensitive match first; only then substring matching in
// either direction. First hit wins.
func resolveColumn(headers []string, candidates []string) int {
	for _, cand := range candidates {
		for i, h := range headers {
			if strings.EqualFold(strings.TrimSpace(h), cand) {
				return i
			}
		}
	}
	for _, cand := range candidates {
		lc := strings.ToLower(cand)
		for i, h := range headers {
			lh := strings.ToLower(strings.TrimSpace(h))
			if lh == "" {
				continue
			}
			if strings.Contains(lh, lc) || strings.Contains(lc, lh) {
				return i
			}
		}
	}
	return -1
}

// resolveReference extracts the reference for one row. The standardized
// format takes the first non-empty of its two description columns, beating
// whatever the generic candidate list resolved to.
func resolveReference(cols resolvedColumns, fields []string) string {
	if cols.refPrimary >= 0 {
		if v := fieldAt(fields, cols.refPrimary); v != "" {
			return v
		}
		if v := fieldAt(fields, cols.refFallback); v != "" {
			return v
		}
		return ""
	}
	return fieldAt(fields, cols.reference)
}

func fieldAt(fields []string, idx int) string {
	if idx < 0 || idx >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[idx])
}

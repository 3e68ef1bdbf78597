package matcher

import (
	"fmt"
	"math"
	"strings"

	"github.com/pinjamly/ledger/internal/domain"
)

// Score rates how well a statement row fits a pending payment. Rules are
// cumulative; the reasons list records every rule that fired.
//
//	reference equal (case-insensitive)      +50
//	reference substring (either direction)  +30
//	amount exact                            +40
//	amount within tolerance                 +35  (tolerance = max(0.01, 0.1% of expected))
//	amount within 1.00                      +10
//	name token overlap >= 2                 +20
//	name token overlap >= 1                 +10
//	reference contains the loan id          +15
func Score(tx *domain.RawTransaction, payment *domain.PendingPayment) (float64, []string) {
	var score float64
	var reasons []string

	txRef := strings.TrimSpace(tx.ReferenceCode)
	payRef := strings.TrimSpace(payment.Reference)

	if txRef != "" && payRef != "" {
		switch {
		case strings.EqualFold(txRef, payRef):
			score += 50
			reasons = append(reasons, "reference exact match")
		case containsFold(txRef, payRef) || containsFold(payRef, txRef):
			score += 30
			reasons = append(reasons, "reference partial match")
		}
	}

	diff := math.Abs(tx.Amount - payment.Amount)
	tolerance := math.Max(0.01, math.Abs(payment.Amount)*0.001)
	switch {
	case diff == 0:
		score += 40
		reasons = append(reasons, "amount exact match")
	case diff <= tolerance:
		score += 35
		reasons = append(reasons, "amount within tolerance")
	case diff <= 1.00:
		score += 10
		reasons = append(reasons, fmt.Sprintf("amount close (diff %.2f)", diff))
	}

	overlap := nameOverlap(tx.BeneficiaryName, payment.FullName)
	switch {
	case overlap >= 2:
		score += 20
		reasons = append(reasons, "beneficiary name match")
	case overlap >= 1:
		score += 10
		reasons = append(reasons, "beneficiary name partial match")
	}

	if payment.LoanID != "" && strings.Contains(txRef, payment.LoanID) {
		score += 15
		reasons = append(reasons, "reference contains loan id")
	}

	return score, reasons
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// nameOverlap counts matching token pairs between the two names. Tokens
// shorter than 3 runes are ignored; an exact token match counts 1, a
// substring overlap counts 0.5.
func nameOverlap(a, b string) float64 {
	aTokens := nameTokens(a)
	bTokens := nameTokens(b)

	var total float64
	for _, at := range aTokens {
		for _, bt := range bTokens {
			switch {
			case at == bt:
				total += 1
			case strings.Contains(at, bt) || strings.Contains(bt, at):
				total += 0.5
			}
		}
	}
	return total
}

func nameTokens(name string) []string {
	var tokens []string
	for _, t := range strings.Fields(strings.ToLower(name)) {
		if len([]rune(t)) > 2 {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

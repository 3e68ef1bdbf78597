package matcher

import (
	"sort"

	"github.com/pinjamly/ledger/internal/domain"
)

// Pass thresholds. Pass 1 claims only confident pairs; pass 2 sweeps what is
// left with a lower bar.
const (
	Pass1Threshold = 60
	Pass2Threshold = 40
)

// Match pairs statement rows with pending payments 1:1 using a two-pass
// greedy assignment. Rows are visited in file order and each claims its best
// still-unclaimed payment immediately, so the outcome is deterministic and
// each match is explainable in isolation. This deliberately trades global
// optimality for explainability: a later row never steals a payment an
// earlier row already claimed, even if it scores higher.
func Match(txs []domain.RawTransaction, payments []domain.PendingPayment) *domain.ReconciliationReport {
	return MatchWithThresholds(txs, payments, Pass1Threshold, Pass2Threshold)
}

// MatchWithThresholds is Match with the pass thresholds supplied by the
// caller instead of the defaults.
func MatchWithThresholds(txs []domain.RawTransaction, payments []domain.PendingPayment, pass1, pass2 float64) *domain.ReconciliationReport {
	report := &domain.ReconciliationReport{
		Transactions:          txs,
		Matches:               []domain.TransactionMatch{},
		UnmatchedTransactions: []domain.RawTransaction{},
		UnmatchedPayments:     []domain.PendingPayment{},
	}

	claimedTx := make([]bool, len(txs))
	claimedPay := make([]bool, len(payments))

	for _, threshold := range []float64{pass1, pass2} {
		runPass(txs, payments, claimedTx, claimedPay, threshold, report)
	}

	for i := range txs {
		if !claimedTx[i] {
			report.UnmatchedTransactions = append(report.UnmatchedTransactions, txs[i])
		}
	}
	for i := range payments {
		if !claimedPay[i] {
			report.UnmatchedPayments = append(report.UnmatchedPayments, payments[i])
		}
	}

	// Claim order above is the contract; this sort is for display only.
	sort.SliceStable(report.Matches, func(i, j int) bool {
		return report.Matches[i].Score > report.Matches[j].Score
	})

	report.Summary = domain.ReportSummary{
		TotalRows:         len(txs),
		Matched:           len(report.Matches),
		UnmatchedRows:     len(report.UnmatchedTransactions),
		UnmatchedPayments: len(report.UnmatchedPayments),
	}

	return report
}

// runPass visits unclaimed rows in order and claims the best unclaimed
// payment scoring at or above the threshold. On a score tie the earlier
// payment in list order wins.
func runPass(txs []domain.RawTransaction, payments []domain.PendingPayment, claimedTx, claimedPay []bool, threshold float64, report *domain.ReconciliationReport) {
	for i := range txs {
		if claimedTx[i] {
			continue
		}

		best := -1
		var bestScore float64
		var bestReasons []string

		for j := range payments {
			if claimedPay[j] {
				continue
			}
			score, reasons := Score(&txs[i], &payments[j])
			if score > bestScore {
				best = j
				bestScore = score
				bestReasons = reasons
			}
		}

		if best < 0 || bestScore < threshold {
			continue
		}

		claimedTx[i] = true
		claimedPay[best] = true
		report.Matches = append(report.Matches, domain.TransactionMatch{
			Transaction: txs[i],
			Payment:     payments[best],
			Score:       bestScore,
			Reasons:     bestReasons,
		})
	}
}

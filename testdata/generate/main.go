package main

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pinjamly/ledger/internal/domain"
)

var borrowers = []string{
	"Ali Bin Abu", "John Tan", "Siti Aminah", "Lee Wei Ling", "Muhammad Faiz",
	"Nurul Huda", "Raj Kumar", "Chong Mei Fen", "Ahmad Danial", "Priya Nair",
	"Tan Ah Kow", "Farah Izzati", "David Lim", "Aisyah Rahman", "Gopal Krishnan",
}

func main() {
	rng := rand.New(rand.NewSource(42))
	baseDir := findTestdataDir()

	startDate := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	seed := seedFile{}

	for i := 0; i < len(borrowers); i++ {
		loanID := fmt.Sprintf("LN-%04d", i+1)
		walletID := fmt.Sprintf("WLT-%04d", i+1)

		// 3 to 12 monthly installments of 200-800 each.
		months := 3 + rng.Intn(10)
		installmentAmount := float64(200 + rng.Intn(7)*100)
		total := installmentAmount * float64(months)

		disbursedAt := startDate.AddDate(0, 0, rng.Intn(60))
		loan := domain.Loan{
			ID:                 loanID,
			BorrowerName:       borrowers[i],
			WalletID:           walletID,
			TotalAmount:        total,
			Status:             domain.LoanActive,
			OutstandingBalance: total,
			DisbursedAt:        &disbursedAt,
			CreatedAt:          disbursedAt,
		}
		seed.Loans = append(seed.Loans, loan)

		for m := 0; m < months; m++ {
			due := disbursedAt.AddDate(0, m+1, 0)
			seq := m + 1
			inst := domain.RepaymentInstallment{
				ID:      fmt.Sprintf("%s-INST-%02d", loanID, seq),
				LoanID:  loanID,
				Seq:     seq,
				DueDate: due,
				Amount:  installmentAmount,
				Status:  domain.InstallmentPending,
			}
			seed.Installments = append(seed.Installments, inst)

			// Roughly one in six past-due installments carries a late fee.
			if rng.Float64() < 0.17 {
				fee := domain.LateFee{
					ID:            fmt.Sprintf("%s-FEE-%02d", loanID, seq),
					InstallmentID: inst.ID,
					LoanID:        loanID,
					FeeAmount:     math.Round(installmentAmount*0.05*100) / 100,
					Status:        domain.FeeActive,
					AssessedAt:    due.AddDate(0, 0, 3),
				}
				seed.LateFees = append(seed.LateFees, fee)
			}
		}

		// Every loan expects its next installment as an incoming payment.
		seed.PendingPayments = append(seed.PendingPayments, domain.PendingPayment{
			ID:        fmt.Sprintf("PP-%04d", i+1),
			LoanID:    loanID,
			Reference: fmt.Sprintf("PAY%03d", i+1),
			FullName:  borrowers[i],
			Amount:    installmentAmount,
			Status:    domain.PaymentAwaiting,
		})
	}

	writeJSONFile(filepath.Join(baseDir, "seed.json"), seed)
	fmt.Printf("Generated %d loans, %d installments, %d late fees, %d pending payments -> seed.json\n",
		len(seed.Loans), len(seed.Installments), len(seed.LateFees), len(seed.PendingPayments))

	generateStatementCSV(rng, seed, baseDir)

	fmt.Println("Test data generation complete.")
}

type seedFile struct {
	Loans           []domain.Loan                 `json:"loans"`
	Installments    []domain.RepaymentInstallment `json:"installments"`
	LateFees        []domain.LateFee              `json:"late_fees"`
	PendingPayments []domain.PendingPayment       `json:"pending_payments"`
}

// generateStatementCSV writes a bank export in the canonical multi-description
// format covering most of the expected payments, plus some noise rows.
func generateStatementCSV(rng *rand.Rand, seed seedFile, baseDir string) {
	filePath := filepath.Join(baseDir, "statement_sample.csv")
	f, err := os.Create(filePath)
	if err != nil {
		panic(err)
	}
	defer f.Close()

	var b strings.Builder
	b.WriteString("transaction_date,description_1,description_2,beneficiary,account,cash_in,cash_out\n")

	count := 0
	for i, p := range seed.PendingPayments {
		// 20% of expected payments never arrive.
		if rng.Float64() < 0.20 {
			continue
		}

		date := time.Date(2024, 3, 1+rng.Intn(28), 0, 0, 0, 0, time.UTC)
		amount := p.Amount

		// 10% arrive with a small discrepancy.
		if rng.Float64() < 0.10 {
			amount = math.Round((amount+rng.Float64()*2-1)*100) / 100
		}

		ref := p.Reference
		desc2 := ""
		// Some banks put the reference in the second description column.
		if i%4 == 3 {
			ref, desc2 = "", p.Reference
		}

		fmt.Fprintf(&b, "%s,%s,%s,%s,%06d,\"RM %s\",\n",
			date.Format("2006-01-02"), ref, desc2, p.FullName, 100000+i,
			formatThousands(amount))
		count++
	}

	// Noise: an unrelated transfer and a blank separator row.
	b.WriteString("2024-03-15,INTERBANK GIRO,,Utility Payment Sdn Bhd,999999,,\"RM 150.00\"\n")
	b.WriteString(",,,,,,\n")

	if _, err := f.WriteString(b.String()); err != nil {
		panic(err)
	}

	fmt.Printf("Generated %d statement rows -> statement_sample.csv\n", count)
}

func formatThousands(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	dot := strings.Index(s, ".")
	for i := dot - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return s
}

func writeJSONFile(path string, v any) {
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		panic(err)
	}
}

func findTestdataDir() string {
	// Look for the testdata directory relative to common locations.
	candidates := []string{
		"testdata",
		"./testdata",
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			return c
		}
	}
	// Fallback.
	return "testdata"
}

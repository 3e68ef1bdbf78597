package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pinjamly/ledger/internal/domain"
)

var (
	t1 = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	t2 = time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)
	t3 = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
)

func schedule(amounts ...float64) []domain.RepaymentInstallment {
	dues := []time.Time{t1, t2, t3, t1.AddDate(0, 3, 0), t1.AddDate(0, 4, 0)}
	insts := make([]domain.RepaymentInstallment, len(amounts))
	for i, a := range amounts {
		insts[i] = domain.RepaymentInstallment{
			ID:      string(rune('A' + i)),
			LoanID:  "LN-0001",
			Seq:     i + 1,
			DueDate: dues[i],
			Amount:  a,
			Status:  domain.InstallmentPending,
		}
	}
	return insts
}

func repayment(amount float64, processedAt time.Time, seq int64) domain.MonetaryTransaction {
	return domain.MonetaryTransaction{
		ID:          "TXN-" + processedAt.Format("20060102"),
		LoanID:      "LN-0001",
		Type:        domain.TypeRepayment,
		Amount:      -amount,
		Status:      domain.StatusApproved,
		ApplySeq:    seq,
		ProcessedAt: processedAt,
	}
}

func noFees(*domain.RepaymentInstallment, float64, time.Time) (domain.LateFeeSettlement, error) {
	return domain.LateFeeSettlement{}, nil
}

func TestReplayInstallments_PartialCoverage(t *testing.T) {
	// 1200 over three installments of 400, one repayment of 700.
	insts := schedule(400, 400, 400)
	payments := []domain.MonetaryTransaction{repayment(700, t2, 1)}

	out := replayInstallments(insts, payments, noFees)

	require.Len(t, out, 3)
	assert.Equal(t, domain.InstallmentCompleted, out[0].Status)
	assert.Equal(t, 400.0, out[0].ActualAmount)
	require.NotNil(t, out[0].PaidAt)
	assert.True(t, out[0].PaidAt.Equal(t2))

	assert.Equal(t, domain.InstallmentPartial, out[1].Status)
	assert.Equal(t, 300.0, out[1].ActualAmount)
	assert.Equal(t, domain.PaymentPartial, out[1].PaymentType)
	assert.Nil(t, out[1].PaidAt)

	assert.Equal(t, domain.InstallmentPending, out[2].Status)
	assert.Zero(t, out[2].ActualAmount)
}

func TestReplayInstallments_PaymentTypeAndDayCounters(t *testing.T) {
	tests := []struct {
		name          string
		paidAt        time.Time
		wantType      domain.PaymentType
		wantDaysEarly int
		wantDaysLate  int
	}{
		{"on time", t1, domain.PaymentOnTime, 0, 0},
		{"hours early counts as on time", t1.Add(-12 * time.Hour), domain.PaymentOnTime, 0, 0},
		{"early", t1.AddDate(0, 0, -5), domain.PaymentEarly, 5, 0},
		{"late", t1.AddDate(0, 0, 5), domain.PaymentLate, 0, 5},
		{"part of a day late counts as a day", t1.Add(6 * time.Hour), domain.PaymentLate, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			insts := schedule(400)
			payments := []domain.MonetaryTransaction{repayment(400, tt.paidAt, 1)}

			out := replayInstallments(insts, payments, noFees)

			require.Equal(t, domain.InstallmentCompleted, out[0].Status)
			assert.Equal(t, tt.wantType, out[0].PaymentType)
			assert.Equal(t, tt.wantDaysEarly, out[0].DaysEarly)
			assert.Equal(t, tt.wantDaysLate, out[0].DaysLate)
		})
	}
}

func TestReplayInstallments_LateFeesAbsorbFunds(t *testing.T) {
	insts := schedule(400, 400)
	payments := []domain.MonetaryTransaction{repayment(470, t2, 1)}

	settle := func(inst *domain.RepaymentInstallment, available float64, _ time.Time) (domain.LateFeeSettlement, error) {
		assert.Equal(t, "A", inst.ID)
		assert.InDelta(t, 70, available, 0.001)
		return domain.LateFeeSettlement{LateFeesPaid: 50, TotalLateFees: 50}, nil
	}

	out := replayInstallments(insts, payments, settle)

	assert.Equal(t, domain.InstallmentCompleted, out[0].Status)
	assert.Equal(t, 450.0, out[0].ActualAmount)

	// 470 - 400 principal - 50 fee leaves 20 for the next installment.
	assert.Equal(t, domain.InstallmentPartial, out[1].Status)
	assert.Equal(t, 20.0, out[1].ActualAmount)
}

func TestReplayInstallments_SettlementFailureKeepsPayment(t *testing.T) {
	insts := schedule(400, 400)
	payments := []domain.MonetaryTransaction{repayment(800, t2, 1)}

	settle := func(inst *domain.RepaymentInstallment, _ float64, _ time.Time) (domain.LateFeeSettlement, error) {
		if inst.ID == "A" {
			return domain.LateFeeSettlement{}, errors.New("adjudicator unavailable")
		}
		return domain.LateFeeSettlement{}, nil
	}

	out := replayInstallments(insts, payments, settle)

	// The failing installment still completes with zero fees attributed, and
	// the walk reaches the second installment.
	assert.Equal(t, domain.InstallmentCompleted, out[0].Status)
	assert.Equal(t, 400.0, out[0].ActualAmount)
	assert.Equal(t, domain.InstallmentCompleted, out[1].Status)
}

func TestReplayInstallments_Idempotent(t *testing.T) {
	insts := schedule(400, 400, 400)
	payments := []domain.MonetaryTransaction{
		repayment(400, t1, 1),
		repayment(300, t2, 2),
	}

	first := replayInstallments(insts, payments, noFees)

	settleCalls := 0
	second := replayInstallments(first, payments, func(inst *domain.RepaymentInstallment, available float64, paidDate time.Time) (domain.LateFeeSettlement, error) {
		settleCalls++
		return domain.LateFeeSettlement{}, nil
	})

	assert.Equal(t, first, second)
	assert.Zero(t, settleCalls, "completed installments must not re-settle fees")
}

func TestReplayInstallments_NeverSkipsAnEarlierInstallment(t *testing.T) {
	// However the funds land, no later installment may be COMPLETED while an
	// earlier one is PENDING or PARTIAL.
	amounts := [][]float64{
		{400, 400, 400},
		{100, 500, 250},
		{250, 250, 250, 250, 250},
	}
	paids := []float64{0, 99.99, 100, 350, 600, 850, 1200, 5000}

	for _, sched := range amounts {
		for _, paid := range paids {
			insts := schedule(sched...)
			var payments []domain.MonetaryTransaction
			if paid > 0 {
				payments = append(payments, repayment(paid, t2, 1))
			}

			out := replayInstallments(insts, payments, noFees)

			seenOpen := false
			for _, inst := range out {
				if inst.Status == domain.InstallmentCompleted {
					assert.False(t, seenOpen, "completed installment after an open one (paid=%.2f)", paid)
				} else {
					seenOpen = true
				}
			}
		}
	}
}

func TestReplayInstallments_ResetWhenHistoryShrinks(t *testing.T) {
	insts := schedule(400, 400)
	paid := replayInstallments(insts, []domain.MonetaryTransaction{repayment(800, t2, 1)}, noFees)
	require.Equal(t, domain.InstallmentCompleted, paid[1].Status)

	// Replaying with no approved repayments clears everything back to PENDING.
	out := replayInstallments(paid, nil, noFees)
	for _, inst := range out {
		assert.Equal(t, domain.InstallmentPending, inst.Status)
		assert.Zero(t, inst.ActualAmount)
		assert.Nil(t, inst.PaidAt)
		assert.Empty(t, string(inst.PaymentType))
	}
}

func TestReplayInstallments_CancelledSkipped(t *testing.T) {
	insts := schedule(400, 400)
	insts[0].Status = domain.InstallmentCancelled

	out := replayInstallments(insts, []domain.MonetaryTransaction{repayment(400, t1, 1)}, noFees)

	assert.Equal(t, domain.InstallmentCancelled, out[0].Status)
	assert.Equal(t, domain.InstallmentCompleted, out[1].Status)
}

func TestOutstandingBalance(t *testing.T) {
	tests := []struct {
		name       string
		total      float64
		activeFees float64
		totalPaid  float64
		want       float64
	}{
		{"nothing paid", 1200, 0, 0, 1200},
		{"partially paid", 1200, 0, 700, 500},
		{"fees add to owed", 1200, 35.50, 700, 535.50},
		{"overpaid floors at zero", 1200, 0, 1300, 0},
		{"rounding", 100, 0, 33.333, 66.67},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, outstandingBalance(tt.total, tt.activeFees, tt.totalPaid))
		})
	}
}

func TestNextUnsettledDueDate(t *testing.T) {
	insts := schedule(400, 400, 400)

	t.Run("nothing paid", func(t *testing.T) {
		got := nextUnsettledDueDate(insts, nil, 0)
		require.NotNil(t, got)
		assert.True(t, got.Equal(t1))
	})

	t.Run("first covered", func(t *testing.T) {
		got := nextUnsettledDueDate(insts, nil, 700)
		require.NotNil(t, got)
		assert.True(t, got.Equal(t2))
	})

	t.Run("active fee delays coverage", func(t *testing.T) {
		// 400 pays the principal but not the 25 fee on installment A.
		got := nextUnsettledDueDate(insts, map[string]float64{"A": 25}, 400)
		require.NotNil(t, got)
		assert.True(t, got.Equal(t1))
	})

	t.Run("settled fee still counts against funds", func(t *testing.T) {
		// Installment A completed absorbing a 100 fee, so the fee is PAID
		// rather than ACTIVE. 800 paid leaves only 300 for B.
		replayed := schedule(400, 400, 400)
		replayed[0].Status = domain.InstallmentCompleted
		replayed[0].ActualAmount = 500
		got := nextUnsettledDueDate(replayed, nil, 800)
		require.NotNil(t, got)
		assert.True(t, got.Equal(t2))
	})

	t.Run("all covered", func(t *testing.T) {
		assert.Nil(t, nextUnsettledDueDate(insts, nil, 1200))
	})
}

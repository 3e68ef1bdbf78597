package ledger

import (
	"math"
	"time"

	"github.com/pinjamly/ledger/internal/domain"
	"github.com/pinjamly/ledger/internal/money"
)

// settleFunc settles late fees for an installment on its first transition
// into COMPLETED. amountAvailable is what remains of the paid funds after the
// installment principal. A failed settlement is swallowed by the replay: the
// installment still completes, with zero fees attributed.
type settleFunc func(inst *domain.RepaymentInstallment, amountAvailable float64, paidDate time.Time) (domain.LateFeeSettlement, error)

// replayInstallments walks the schedule in due-date order against the total
// of approved repayments and returns the derived installment states. It is a
// pure function over its inputs apart from the settle callback.
//
// Rules, per installment with remaining funds r:
//   - r <= 0: reset to PENDING, derived fields cleared.
//   - r >= amount: COMPLETED. Fee settlement runs only on the first
//     transition; an already COMPLETED installment is left untouched so fees
//     are never charged twice. r drops by amount plus fees absorbed.
//   - 0 < r < amount: PARTIAL with actualAmount = r, then the walk stops.
//     Later installments keep their prior state.
//
// CANCELLED installments take no funds and are skipped.
func replayInstallments(insts []domain.RepaymentInstallment, payments []domain.MonetaryTransaction, settle settleFunc) []domain.RepaymentInstallment {
	out := make([]domain.RepaymentInstallment, len(insts))
	copy(out, insts)

	var totalPaid float64
	for _, p := range payments {
		totalPaid += math.Abs(p.Amount)
	}
	totalPaid = money.Round2(totalPaid)

	var paidDate time.Time
	if len(payments) > 0 {
		paidDate = payments[len(payments)-1].ProcessedAt
	}

	remaining := totalPaid
	for i := range out {
		inst := &out[i]
		if inst.Status == domain.InstallmentCancelled {
			continue
		}

		switch {
		case remaining <= 0:
			resetInstallment(inst)

		case remaining >= inst.Amount:
			if inst.Status != domain.InstallmentCompleted {
				completeInstallment(inst, remaining-inst.Amount, paidDate, settle)
			}
			feesAbsorbed := math.Max(0, inst.ActualAmount-inst.Amount)
			remaining = money.Round2(remaining - inst.Amount - feesAbsorbed)

		default: // 0 < remaining < amount
			inst.Status = domain.InstallmentPartial
			inst.ActualAmount = money.Round2(remaining)
			inst.PaidAt = nil
			inst.PaymentType = domain.PaymentPartial
			inst.DaysEarly = 0
			inst.DaysLate = 0
			return out
		}
	}

	return out
}

func resetInstallment(inst *domain.RepaymentInstallment) {
	inst.Status = domain.InstallmentPending
	inst.ActualAmount = 0
	inst.PaidAt = nil
	inst.PaymentType = ""
	inst.DaysEarly = 0
	inst.DaysLate = 0
}

func completeInstallment(inst *domain.RepaymentInstallment, available float64, paidDate time.Time, settle settleFunc) {
	var settlement domain.LateFeeSettlement
	if settle != nil {
		res, err := settle(inst, available, paidDate)
		if err == nil {
			settlement = res
		}
	}

	days := daysBetween(inst.DueDate, paidDate)
	inst.DaysEarly = 0
	inst.DaysLate = 0
	switch {
	case days > 0:
		inst.PaymentType = domain.PaymentLate
		inst.DaysLate = days
	case days < 0:
		inst.PaymentType = domain.PaymentEarly
		inst.DaysEarly = -days
	default:
		inst.PaymentType = domain.PaymentOnTime
	}

	paid := paidDate
	inst.PaidAt = &paid
	inst.ActualAmount = money.Round2(inst.Amount + settlement.LateFeesPaid)
	inst.Status = domain.InstallmentCompleted
}

// daysBetween is the signed whole-day delta from due to paid, rounded up, so
// any part of a day past the due date already counts as one day late.
func daysBetween(due, paid time.Time) int {
	return int(math.Ceil(paid.Sub(due).Hours() / 24))
}

// nextUnsettledDueDate replays the schedule with each installment's own
// active late fees added to its amount due and returns the due date of the
// first installment the funds do not fully cover, or nil when everything is
// covered. insts must be the replayed states: fees a COMPLETED installment
// settled are no longer ACTIVE but did absorb funds, and show up here through
// its actualAmount.
func nextUnsettledDueDate(insts []domain.RepaymentInstallment, activeFees map[string]float64, totalPaid float64) *time.Time {
	remaining := money.Round2(totalPaid)
	for i := range insts {
		inst := &insts[i]
		if inst.Status == domain.InstallmentCancelled {
			continue
		}
		due := money.Round2(inst.Amount + activeFees[inst.ID])
		if inst.Status == domain.InstallmentCompleted {
			due = money.Round2(due + math.Max(0, inst.ActualAmount-inst.Amount))
		}
		if remaining < due {
			d := inst.DueDate
			return &d
		}
		remaining = money.Round2(remaining - due)
	}
	return nil
}

// outstandingBalance is total owed (principal plus active late fees) minus
// total paid, floored at zero.
func outstandingBalance(totalAmount, activeFees, totalPaid float64) float64 {
	return math.Max(0, money.Round2(totalAmount+activeFees-totalPaid))
}

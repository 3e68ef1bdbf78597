package latefee

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/pinjamly/ledger/internal/domain"
	"github.com/pinjamly/ledger/internal/money"
	"github.com/pinjamly/ledger/internal/repository"
)

// Service is the default late fee adjudicator. It settles the fees attached
// to a cleared installment out of the funds left after principal, oldest fee
// first. Fees it cannot cover stay ACTIVE for a later recompute. It never
// creates or waives fees on its own; those decisions arrive from outside.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// HandleInstallmentCleared marks coverable ACTIVE fees as PAID using the
// caller's transaction and reports the fee totals for the installment.
func (s *Service) HandleInstallmentCleared(ctx context.Context, db repository.DBTX, installmentID string, amountAvailable float64, paidDate time.Time) (domain.LateFeeSettlement, error) {
	repo := repository.NewLateFeeRepo(db)

	fees, err := repo.ListByInstallment(ctx, installmentID)
	if err != nil {
		return domain.LateFeeSettlement{}, fmt.Errorf("list fees: %w", err)
	}

	var res domain.LateFeeSettlement
	available := amountAvailable

	for _, fee := range fees {
		res.TotalLateFees += fee.FeeAmount

		switch fee.Status {
		case domain.FeeWaived:
			res.LateFeesWaived += fee.FeeAmount
		case domain.FeePaid:
			res.LateFeesPaid += fee.FeeAmount
		case domain.FeeActive:
			if available < fee.FeeAmount {
				log.Printf("[latefee] fee %s (%.2f) on installment %s left active, only %.2f available",
					fee.ID, fee.FeeAmount, installmentID, available)
				continue
			}
			if err := repo.MarkPaid(ctx, fee.ID, paidDate); err != nil {
				return domain.LateFeeSettlement{}, fmt.Errorf("mark fee %s paid: %w", fee.ID, err)
			}
			res.LateFeesPaid += fee.FeeAmount
			available = money.Round2(available - fee.FeeAmount)
		}
	}

	res.LateFeesPaid = money.Round2(res.LateFeesPaid)
	res.LateFeesWaived = money.Round2(res.LateFeesWaived)
	res.TotalLateFees = money.Round2(res.TotalLateFees)
	return res, nil
}

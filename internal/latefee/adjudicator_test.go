package latefee_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pinjamly/ledger/internal/domain"
	"github.com/pinjamly/ledger/internal/latefee"
	"github.com/pinjamly/ledger/internal/repository"
)

var assessedAt = time.Date(2024, 2, 4, 0, 0, 0, 0, time.UTC)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := repository.InitDB(":memory:")
	require.NoError(t, err)
	// Every pooled connection to ":memory:" is its own database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, repository.NewLoanRepo(db).Insert(ctx, &domain.Loan{
		ID: "LN-0001", BorrowerName: "Ali Bin Abu", WalletID: "WLT-0001",
		TotalAmount: 400, Status: domain.LoanActive, OutstandingBalance: 400,
		CreatedAt: assessedAt.AddDate(0, -1, 0),
	}))
	require.NoError(t, repository.NewInstallmentRepo(db).Insert(ctx, &domain.RepaymentInstallment{
		ID: "I1", LoanID: "LN-0001", Seq: 1,
		DueDate: assessedAt.AddDate(0, 0, -3), Amount: 400,
		Status: domain.InstallmentPending,
	}))
	return db
}

func addFee(t *testing.T, db *sql.DB, id string, amount float64, at time.Time) {
	t.Helper()
	require.NoError(t, repository.NewLateFeeRepo(db).Insert(context.Background(), &domain.LateFee{
		ID: id, InstallmentID: "I1", LoanID: "LN-0001",
		FeeAmount: amount, Status: domain.FeeActive, AssessedAt: at,
	}))
}

func TestHandleInstallmentCleared_PaysFeesOldestFirst(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	addFee(t, db, "F1", 30, assessedAt)
	addFee(t, db, "F2", 50, assessedAt.AddDate(0, 0, 5))

	paidDate := assessedAt.AddDate(0, 0, 10)
	res, err := latefee.NewService().HandleInstallmentCleared(ctx, db, "I1", 40, paidDate)
	require.NoError(t, err)

	// 40 covers the older 30 fee but not the 50 one.
	assert.Equal(t, 30.0, res.LateFeesPaid)
	assert.Zero(t, res.LateFeesWaived)
	assert.Equal(t, 80.0, res.TotalLateFees)

	fees, err := repository.NewLateFeeRepo(db).ListByInstallment(ctx, "I1")
	require.NoError(t, err)
	require.Len(t, fees, 2)
	assert.Equal(t, domain.FeePaid, fees[0].Status)
	require.NotNil(t, fees[0].SettledAt)
	assert.True(t, fees[0].SettledAt.Equal(paidDate))
	assert.Equal(t, domain.FeeActive, fees[1].Status)
}

func TestHandleInstallmentCleared_WaivedFeeCountedNotPaid(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	addFee(t, db, "F1", 50, assessedAt)

	feeRepo := repository.NewLateFeeRepo(db)
	waivedAt := assessedAt.AddDate(0, 0, 2)
	require.NoError(t, feeRepo.Waive(ctx, "F1", waivedAt))

	res, err := latefee.NewService().HandleInstallmentCleared(ctx, db, "I1", 100, assessedAt.AddDate(0, 0, 10))
	require.NoError(t, err)

	// A waived fee reports as waived and never consumes available funds.
	assert.Zero(t, res.LateFeesPaid)
	assert.Equal(t, 50.0, res.LateFeesWaived)
	assert.Equal(t, 50.0, res.TotalLateFees)

	fees, err := feeRepo.ListByInstallment(ctx, "I1")
	require.NoError(t, err)
	require.Len(t, fees, 1)
	assert.Equal(t, domain.FeeWaived, fees[0].Status)
	require.NotNil(t, fees[0].SettledAt)
	assert.True(t, fees[0].SettledAt.Equal(waivedAt))
}

func TestHandleInstallmentCleared_NoFees(t *testing.T) {
	db := setupDB(t)

	res, err := latefee.NewService().HandleInstallmentCleared(context.Background(), db, "I1", 100, assessedAt)
	require.NoError(t, err)
	assert.Equal(t, domain.LateFeeSettlement{}, res)
}

//go:build integration

package projection_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zayar/simplecashflow/internal/ledger"
	"github.com/zayar/simplecashflow/internal/projection"
	"github.com/zayar/simplecashflow/internal/testutil"
)

func postCashSale(t *testing.T, f *testutil.Fixture, date time.Time, amount int64) *ledger.JournalEntry {
	t.Helper()
	entry, err := f.Ledger.PostJournalEntry(context.Background(), f.Pool, &ledger.PostRequest{
		TenantID:    f.Company.ID,
		Date:        date,
		Description: "Cash sale",
		Lines: []ledger.LineInput{
			{AccountID: f.Company.CashAccountID, Debit: decimal.NewFromInt(amount)},
			{AccountID: f.Company.SalesAccountID, Credit: decimal.NewFromInt(amount)},
		},
	})
	require.NoError(t, err)
	return entry
}

func TestWorkerAppliesEntriesOnce(t *testing.T) {
	f := testutil.SetupCompany(t)
	ctx := context.Background()
	worker := projection.NewWorker(f.Pool, f.Ledger, projection.DefaultWorkerConfig())

	day := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	postCashSale(t, f, day, 1000)

	applied, err := worker.Tick(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, applied, 1)

	var debit, credit decimal.Decimal
	require.NoError(t, f.Pool.QueryRow(ctx, `
		SELECT debit_total, credit_total FROM account_balances
		WHERE tenant_id = $1 AND day = $2 AND account_id = $3
	`, f.Company.ID, day, f.Company.CashAccountID).Scan(&debit, &credit))
	assert.True(t, debit.Equal(decimal.NewFromInt(1000)))
	assert.True(t, credit.IsZero())

	var income decimal.Decimal
	require.NoError(t, f.Pool.QueryRow(ctx, `
		SELECT total_income FROM daily_summaries WHERE tenant_id = $1 AND day = $2
	`, f.Company.ID, day).Scan(&income))
	assert.True(t, income.Equal(decimal.NewFromInt(1000)))

	// A second tick finds nothing new; duplicate delivery is absorbed.
	applied, err = worker.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, applied)

	require.NoError(t, f.Pool.QueryRow(ctx, `
		SELECT debit_total, credit_total FROM account_balances
		WHERE tenant_id = $1 AND day = $2 AND account_id = $3
	`, f.Company.ID, day, f.Company.CashAccountID).Scan(&debit, &credit))
	assert.True(t, debit.Equal(decimal.NewFromInt(1000)))
}

func TestRebuildMatchesLiveProjections(t *testing.T) {
	f := testutil.SetupCompany(t)
	ctx := context.Background()
	worker := projection.NewWorker(f.Pool, f.Ledger, projection.DefaultWorkerConfig())

	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	postCashSale(t, f, time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), 300)
	postCashSale(t, f, time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), 200)
	postCashSale(t, f, time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC), 700)

	_, err := worker.Tick(ctx)
	require.NoError(t, err)

	var liveIncome decimal.Decimal
	require.NoError(t, f.Pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(total_income), 0) FROM daily_summaries
		WHERE tenant_id = $1 AND day >= $2 AND day <= $3
	`, f.Company.ID, from, to).Scan(&liveIncome))

	require.NoError(t, worker.Rebuild(ctx, f.Company.ID, from, to))

	var rebuiltIncome decimal.Decimal
	require.NoError(t, f.Pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(total_income), 0) FROM daily_summaries
		WHERE tenant_id = $1 AND day >= $2 AND day <= $3
	`, f.Company.ID, from, to).Scan(&rebuiltIncome))

	assert.True(t, liveIncome.Equal(rebuiltIncome), "live %s rebuilt %s", liveIncome, rebuiltIncome)
	assert.True(t, rebuiltIncome.Equal(decimal.NewFromInt(1200)))

	// The live worker does not double-apply after a rebuild.
	applied, err := worker.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, applied)
}

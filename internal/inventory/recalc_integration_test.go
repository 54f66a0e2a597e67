//go:build integration

package inventory_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zayar/simplecashflow/internal/database"
	"github.com/zayar/simplecashflow/internal/inventory"
	"github.com/zayar/simplecashflow/internal/ledger"
	"github.com/zayar/simplecashflow/internal/testutil"
)

func day(y int, m time.Month, dd int) time.Time {
	return time.Date(y, m, dd, 0, 0, 0, 0, time.UTC)
}

func applyMove(t *testing.T, f *testutil.Fixture, m *inventory.StockMove) *inventory.MoveResult {
	t.Helper()
	var result *inventory.MoveResult
	err := database.WithTx(context.Background(), f.Pool, func(tx pgx.Tx) error {
		var err error
		result, err = f.Inventory.ApplyMove(context.Background(), tx, m)
		return err
	})
	require.NoError(t, err)
	return result
}

func TestBackdatedReceiptRevaluesSale(t *testing.T) {
	f := testutil.SetupCompany(t)
	ctx := context.Background()

	item, err := f.Inventory.CreateItem(ctx, f.Company.ID, &inventory.CreateItemRequest{
		Name:           "Widget",
		Type:           inventory.ItemTypeGoods,
		SellingPrice:   "300",
		TrackInventory: true,
	})
	require.NoError(t, err)
	locationID := *f.Company.DefaultLocationID

	// Jan 10: receive 10 @ 100.
	applyMove(t, f, &inventory.StockMove{
		TenantID: f.Company.ID, Date: day(2025, 1, 10), LocationID: locationID, ItemID: item.ID,
		Direction: inventory.DirectionIn, Quantity: decimal.NewFromInt(10),
		UnitCostApplied: decimal.NewFromInt(100),
		ReferenceType:   inventory.RefPurchaseBill, ReferenceID: "bill-1",
	})

	// Jan 15: sell 5; the OUT is valued at the running average of 100
	// and tied to a COGS journal entry.
	entry, err := f.Ledger.PostJournalEntry(ctx, f.Pool, &ledger.PostRequest{
		TenantID:    f.Company.ID,
		Date:        day(2025, 1, 15),
		Description: "COGS for sale",
		Lines: []ledger.LineInput{
			{AccountID: f.Company.CogsAccountID, Debit: decimal.NewFromInt(500)},
			{AccountID: f.Company.InventoryAccountID, Credit: decimal.NewFromInt(500)},
		},
	})
	require.NoError(t, err)

	outMove := &inventory.StockMove{
		TenantID: f.Company.ID, Date: day(2025, 1, 15), LocationID: locationID, ItemID: item.ID,
		Direction: inventory.DirectionOut, Quantity: decimal.NewFromInt(5),
		ReferenceType: inventory.RefInvoice, ReferenceID: "inv-1",
		JournalEntryID: &entry.ID,
	}
	result := applyMove(t, f, outMove)
	assert.True(t, result.Move.UnitCostApplied.Equal(decimal.NewFromInt(100)))
	assert.False(t, result.NeedsRecalc)

	// Jan 12, backdated: receive 10 @ 200.
	backdated := applyMove(t, f, &inventory.StockMove{
		TenantID: f.Company.ID, Date: day(2025, 1, 12), LocationID: locationID, ItemID: item.ID,
		Direction: inventory.DirectionIn, Quantity: decimal.NewFromInt(10),
		UnitCostApplied: decimal.NewFromInt(200),
		ReferenceType:   inventory.RefPurchaseBill, ReferenceID: "bill-2",
	})
	require.True(t, backdated.NeedsRecalc)

	require.NoError(t, f.Inventory.RunRecalcForward(ctx, f.Company.ID, backdated.RecalcFrom))

	// The Jan 15 OUT is revalued to the blended average of 150.
	var unitCost, totalCost decimal.Decimal
	err = f.Pool.QueryRow(ctx, `
		SELECT unit_cost_applied, total_cost_applied FROM stock_moves WHERE id = $1
	`, result.Move.ID).Scan(&unitCost, &totalCost)
	require.NoError(t, err)
	assert.True(t, unitCost.Equal(decimal.NewFromInt(150)), "unit cost %s", unitCost)
	assert.True(t, totalCost.Equal(decimal.NewFromInt(750)), "total cost %s", totalCost)

	// A compensating Dr COGS / Cr Inventory of 250 is posted, caused by
	// the original entry.
	var adjCount int
	err = f.Pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM journal_lines jl
		JOIN journal_entries je ON je.id = jl.entry_id
		WHERE jl.tenant_id = $1 AND je.description = 'Inventory valuation adjustment'
		  AND jl.account_id = $2 AND jl.debit = 250
	`, f.Company.ID, f.Company.CogsAccountID).Scan(&adjCount)
	require.NoError(t, err)
	assert.Equal(t, 1, adjCount)

	// A second recalc with no new moves is net-zero.
	require.NoError(t, f.Inventory.RunRecalcForward(ctx, f.Company.ID, backdated.RecalcFrom))
	err = f.Pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM journal_entries
		WHERE tenant_id = $1 AND description = 'Inventory valuation adjustment'
	`, f.Company.ID).Scan(&adjCount)
	require.NoError(t, err)
	assert.Equal(t, 1, adjCount)

	balance, err := f.Inventory.GetStockBalance(ctx, f.Company.ID, locationID, item.ID)
	require.NoError(t, err)
	assert.True(t, balance.QtyOnHand.Equal(decimal.NewFromInt(15)))
	assert.True(t, balance.InventoryValue.Equal(decimal.NewFromInt(2250)))
}

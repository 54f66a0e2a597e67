package inventory

import (
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zayar/simplecashflow/internal/apierror"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(y int, m time.Month, dd int) time.Time {
	return time.Date(y, m, dd, 0, 0, 0, 0, time.UTC)
}

func TestIsVoidLike(t *testing.T) {
	assert.True(t, IsVoidLike(RefInvoiceVoid))
	assert.True(t, IsVoidLike(RefCreditNoteVoid))
	assert.True(t, IsVoidLike(RefPurchaseBillVoid))
	assert.False(t, IsVoidLike(RefInvoice))
	assert.False(t, IsVoidLike(RefPurchaseBill))
	assert.False(t, IsVoidLike(RefAdjustment))
}

func TestApplyInOut(t *testing.T) {
	state := BalanceState{Qty: decimal.Zero, Value: decimal.Zero}

	state = state.ApplyIn(d("10"), d("1000")) // 10 @ 100
	assert.True(t, state.Qty.Equal(d("10")))
	assert.True(t, state.Value.Equal(d("1000")))
	assert.True(t, state.Avg().Equal(d("100")))

	unitCost, totalCost, state := state.ApplyOut(d("4"))
	assert.True(t, unitCost.Equal(d("100")))
	assert.True(t, totalCost.Equal(d("400")))
	assert.True(t, state.Qty.Equal(d("6")))
	assert.True(t, state.Value.Equal(d("600")))
	// Average is unchanged while stock remains.
	assert.True(t, state.Avg().Equal(d("100")))

	_, _, state = state.ApplyOut(d("6"))
	assert.True(t, state.Qty.IsZero())
	assert.True(t, state.Value.IsZero())
	assert.True(t, state.Avg().IsZero())
}

func TestApplyInMovesAverage(t *testing.T) {
	state := BalanceState{}
	state = state.ApplyIn(d("10"), d("1000")) // 10 @ 100
	state = state.ApplyIn(d("10"), d("2000")) // 10 @ 200
	assert.True(t, state.Avg().Equal(d("150")))
}

func TestReplayMovesBackdatedReceipt(t *testing.T) {
	// On Jan 10 receive 10 @ 100. On Jan 15 sell 5 at the then-average
	// of 100. A backdated Jan 12 receipt of 10 @ 200 revalues the sale
	// to the blended average of 150.
	entryID := "je-out"
	moves := []*StockMove{
		{ID: "m1", Date: day(2025, 1, 10), Direction: DirectionIn, Quantity: d("10"),
			UnitCostApplied: d("100"), TotalCostApplied: d("1000"), ReferenceType: RefPurchaseBill},
		{ID: "m3", Date: day(2025, 1, 12), Direction: DirectionIn, Quantity: d("10"),
			UnitCostApplied: d("200"), TotalCostApplied: d("2000"), ReferenceType: RefPurchaseBill},
		{ID: "m2", Date: day(2025, 1, 15), Direction: DirectionOut, Quantity: d("5"),
			UnitCostApplied: d("100"), TotalCostApplied: d("500"), ReferenceType: RefInvoice,
			JournalEntryID: &entryID},
	}

	final, changes, err := ReplayMoves(BalanceState{}, moves)
	require.NoError(t, err)

	require.Len(t, changes, 1)
	ch := changes[0]
	assert.Equal(t, "m2", ch.MoveID)
	assert.True(t, ch.DesiredUnitCost.Equal(d("150")))
	assert.True(t, ch.DesiredTotal.Equal(d("750")))
	assert.True(t, ch.StoredTotal.Equal(d("500")))
	assert.True(t, ch.Delta().Equal(d("250")))
	require.NotNil(t, ch.JournalEntryID)
	assert.Equal(t, entryID, *ch.JournalEntryID)

	assert.True(t, final.Qty.Equal(d("15")))
	assert.True(t, final.Value.Equal(d("2250")))
	assert.True(t, final.Avg().Equal(d("150")))
}

func TestReplayMovesStable(t *testing.T) {
	// A second replay over already-revalued moves reports no changes.
	moves := []*StockMove{
		{ID: "m1", Date: day(2025, 1, 10), Direction: DirectionIn, Quantity: d("10"),
			UnitCostApplied: d("100"), TotalCostApplied: d("1000"), ReferenceType: RefPurchaseBill},
		{ID: "m3", Date: day(2025, 1, 12), Direction: DirectionIn, Quantity: d("10"),
			UnitCostApplied: d("200"), TotalCostApplied: d("2000"), ReferenceType: RefPurchaseBill},
		{ID: "m2", Date: day(2025, 1, 15), Direction: DirectionOut, Quantity: d("5"),
			UnitCostApplied: d("150"), TotalCostApplied: d("750"), ReferenceType: RefInvoice},
	}
	_, changes, err := ReplayMoves(BalanceState{}, moves)
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestReplayMovesVoidLikePreservesCost(t *testing.T) {
	moves := []*StockMove{
		{ID: "m1", Date: day(2025, 1, 10), Direction: DirectionIn, Quantity: d("10"),
			UnitCostApplied: d("100"), TotalCostApplied: d("1000"), ReferenceType: RefPurchaseBill},
		{ID: "m2", Date: day(2025, 1, 11), Direction: DirectionOut, Quantity: d("5"),
			UnitCostApplied: d("100"), TotalCostApplied: d("500"), ReferenceType: RefInvoice},
		// Void restores at the historical cost, even after a later
		// receipt would have shifted the average.
		{ID: "m3", Date: day(2025, 1, 12), Direction: DirectionIn, Quantity: d("10"),
			UnitCostApplied: d("300"), TotalCostApplied: d("3000"), ReferenceType: RefPurchaseBill},
		{ID: "m4", Date: day(2025, 1, 13), Direction: DirectionIn, Quantity: d("5"),
			UnitCostApplied: d("100"), TotalCostApplied: d("500"), ReferenceType: RefInvoiceVoid},
	}
	final, changes, err := ReplayMoves(BalanceState{}, moves)
	require.NoError(t, err)
	assert.Empty(t, changes)
	assert.True(t, final.Qty.Equal(d("20")))
	assert.True(t, final.Value.Equal(d("4000")))
}

func TestReplayMovesNegativeStock(t *testing.T) {
	moves := []*StockMove{
		{ID: "m1", Date: day(2025, 1, 10), Direction: DirectionIn, Quantity: d("2"),
			UnitCostApplied: d("100"), TotalCostApplied: d("200"), ReferenceType: RefPurchaseBill},
		{ID: "m2", Date: day(2025, 1, 11), Direction: DirectionOut, Quantity: d("5"),
			ReferenceType: RefInvoice},
	}
	_, _, err := ReplayMoves(BalanceState{}, moves)
	assert.True(t, apierror.IsKind(err, apierror.KindIntegrity))
}

func TestReplayMovesOrderInsensitiveOutcome(t *testing.T) {
	// T7: the ending state depends only on (date, id) order, which the
	// caller supplies, not on original insertion order.
	a := []*StockMove{
		{ID: "a", Date: day(2025, 2, 1), Direction: DirectionIn, Quantity: d("4"),
			UnitCostApplied: d("25"), TotalCostApplied: d("100"), ReferenceType: RefPurchaseBill},
		{ID: "b", Date: day(2025, 2, 2), Direction: DirectionIn, Quantity: d("6"),
			UnitCostApplied: d("50"), TotalCostApplied: d("300"), ReferenceType: RefPurchaseBill},
		{ID: "c", Date: day(2025, 2, 3), Direction: DirectionOut, Quantity: d("5"),
			UnitCostApplied: d("40"), TotalCostApplied: d("200"), ReferenceType: RefInvoice},
	}
	finalA, _, err := ReplayMoves(BalanceState{}, a)
	require.NoError(t, err)

	// The same moves inserted in another order, then put back into
	// (date, id) order before replay.
	copies := []StockMove{*a[2], *a[0], *a[1]}
	b := []*StockMove{&copies[0], &copies[1], &copies[2]}
	sort.Slice(b, func(i, j int) bool {
		if !b[i].Date.Equal(b[j].Date) {
			return b[i].Date.Before(b[j].Date)
		}
		return b[i].ID < b[j].ID
	})
	finalB, _, err := ReplayMoves(BalanceState{}, b)
	require.NoError(t, err)

	assert.True(t, finalA.Qty.Equal(finalB.Qty))
	assert.True(t, finalA.Value.Equal(finalB.Value))
	assert.True(t, finalA.Qty.Equal(d("5")))
	assert.True(t, finalA.Value.Equal(d("200")))
}

func TestSnapshotInvariant(t *testing.T) {
	state := BalanceState{Qty: d("3"), Value: d("100")}
	b := state.Snapshot(1, "loc", "item")
	// inventoryValue = round2(value); avg carries full precision.
	assert.True(t, b.InventoryValue.Equal(d("100")))
	assert.True(t, b.QtyOnHand.Equal(d("3")))
	assert.True(t, b.AvgUnitCost.Mul(b.QtyOnHand).Round(0).Equal(d("100")))
}

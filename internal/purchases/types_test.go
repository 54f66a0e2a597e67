package purchases

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zayar/simplecashflow/internal/apierror"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputeBillLine(t *testing.T) {
	line, err := ComputeBillLine(BillLineInput{
		ItemID:   "item",
		Quantity: "10",
		UnitCost: "12.50",
		TaxRate:  "0.05",
	}, "expense-1", false)
	require.NoError(t, err)
	assert.True(t, line.LineTotal.Equal(d("125")))
	assert.True(t, line.TaxAmount.Equal(d("6.25")))
	assert.Equal(t, "expense-1", line.ExpenseAccountID)
	assert.False(t, line.TrackInventory)
}

func TestComputeBillLineValidation(t *testing.T) {
	_, err := ComputeBillLine(BillLineInput{Quantity: "0", UnitCost: "1"}, "e", false)
	assert.True(t, apierror.IsKind(err, apierror.KindValidation))

	_, err = ComputeBillLine(BillLineInput{Quantity: "1", UnitCost: "-1"}, "e", false)
	assert.True(t, apierror.IsKind(err, apierror.KindValidation))

	_, err = ComputeBillLine(BillLineInput{Quantity: "1", UnitCost: "1", TaxRate: "2"}, "e", false)
	assert.True(t, apierror.IsKind(err, apierror.KindValidation))
}

func TestSumBillTotalsSplitsInventoryAndExpense(t *testing.T) {
	lines := []ComputedBillLine{
		{LineTotal: d("500"), TaxAmount: d("25"), TrackInventory: true},
		{LineTotal: d("200"), TaxAmount: d("10"), ExpenseAccountID: "rent"},
		{LineTotal: d("100"), TaxAmount: decimal.Zero, ExpenseAccountID: "rent"},
		{LineTotal: d("300"), TaxAmount: decimal.Zero, TrackInventory: true},
	}
	totals := SumBillTotals(lines)
	assert.True(t, totals.Subtotal.Equal(d("1100")))
	assert.True(t, totals.Tax.Equal(d("35")))
	assert.True(t, totals.Total.Equal(d("1135")))
	assert.True(t, totals.InventoryAmount.Equal(d("800")))
	assert.True(t, totals.ByExpenseAccount["rent"].Equal(d("300")))
}

func TestDeriveBillStatus(t *testing.T) {
	total := d("500")
	assert.Equal(t, StatusPosted, DeriveBillStatus(decimal.Zero, total))
	assert.Equal(t, StatusPartial, DeriveBillStatus(d("100"), total))
	assert.Equal(t, StatusPaid, DeriveBillStatus(d("500"), total))
}

func TestBillRemaining(t *testing.T) {
	b := &PurchaseBill{Total: d("500"), AmountPaid: d("120")}
	assert.True(t, b.Remaining().Equal(d("380")))
}

package sales

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zayar/simplecashflow/internal/apierror"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestDeriveStatus(t *testing.T) {
	total := d("1000")
	assert.Equal(t, StatusPosted, DeriveStatus(decimal.Zero, total))
	assert.Equal(t, StatusPartial, DeriveStatus(d("400"), total))
	assert.Equal(t, StatusPaid, DeriveStatus(d("1000"), total))
	assert.Equal(t, StatusPaid, DeriveStatus(d("1200"), total))
}

func TestComputeLine(t *testing.T) {
	line, err := ComputeLine(LineInput{
		ItemID:         "item",
		Quantity:       "3",
		UnitPrice:      "100",
		DiscountAmount: "50",
		TaxRate:        "0.05",
	}, "income-1")
	require.NoError(t, err)
	assert.True(t, line.LineTotal.Equal(d("250")))
	assert.True(t, line.TaxAmount.Equal(d("12.5")))
	assert.Equal(t, "income-1", line.IncomeAccountID)
}

func TestComputeLineValidation(t *testing.T) {
	_, err := ComputeLine(LineInput{Quantity: "0", UnitPrice: "10"}, "a")
	assert.True(t, apierror.IsKind(err, apierror.KindValidation))

	_, err = ComputeLine(LineInput{Quantity: "1", UnitPrice: "-1"}, "a")
	assert.True(t, apierror.IsKind(err, apierror.KindValidation))

	// Discount larger than the line subtotal.
	_, err = ComputeLine(LineInput{Quantity: "1", UnitPrice: "10", DiscountAmount: "11"}, "a")
	assert.True(t, apierror.IsKind(err, apierror.KindValidation))

	// Tax rate outside [0, 1].
	_, err = ComputeLine(LineInput{Quantity: "1", UnitPrice: "10", TaxRate: "1.5"}, "a")
	assert.True(t, apierror.IsKind(err, apierror.KindValidation))

	_, err = ComputeLine(LineInput{Quantity: "1", UnitPrice: "10", TaxRate: "-0.1"}, "a")
	assert.True(t, apierror.IsKind(err, apierror.KindValidation))
}

func TestSumTotalsBucketsByIncomeAccount(t *testing.T) {
	lines := []ComputedLine{
		{LineTotal: d("100"), TaxAmount: d("5"), IncomeAccountID: "sales"},
		{LineTotal: d("200"), TaxAmount: d("10"), IncomeAccountID: "services"},
		{LineTotal: d("50"), TaxAmount: decimal.Zero, IncomeAccountID: "sales"},
	}
	totals := SumTotals(lines)
	assert.True(t, totals.Subtotal.Equal(d("350")))
	assert.True(t, totals.Tax.Equal(d("15")))
	assert.True(t, totals.Total.Equal(d("365")))
	assert.True(t, totals.ByIncomeAccount["sales"].Equal(d("150")))
	assert.True(t, totals.ByIncomeAccount["services"].Equal(d("200")))
}

func TestRecomputeFromStoredMatchesCreate(t *testing.T) {
	in := LineInput{ItemID: "i", Quantity: "2", UnitPrice: "499.99", DiscountAmount: "0.49", TaxRate: "0.07"}
	computed, err := ComputeLine(in, "income")
	require.NoError(t, err)
	created := SumTotals([]ComputedLine{computed})

	stored := []InvoiceLine{{
		ItemID:          computed.ItemID,
		Quantity:        computed.Quantity,
		UnitPrice:       computed.UnitPrice,
		DiscountAmount:  computed.DiscountAmount,
		TaxRate:         computed.TaxRate,
		TaxAmount:       computed.TaxAmount,
		LineTotal:       computed.LineTotal,
		IncomeAccountID: computed.IncomeAccountID,
	}}
	recomputed := RecomputeFromStored(stored)

	assert.True(t, recomputed.Subtotal.Equal(created.Subtotal))
	assert.True(t, recomputed.Tax.Equal(created.Tax))
	assert.True(t, recomputed.Total.Equal(created.Total))
}

func TestConvertToBaseBalances(t *testing.T) {
	totals := Totals{
		Tax: d("7.77"),
		ByIncomeAccount: map[string]decimal.Decimal{
			"a": d("33.33"),
			"b": d("66.67"),
		},
	}
	base := convertToBase(totals, d("1.234567"))

	// The base total is the sum of its rounded components, so postings
	// built from the buckets always balance against it.
	sum := decimal.Zero
	for _, v := range base.ByIncomeAccount {
		sum = sum.Add(v)
	}
	assert.True(t, base.Subtotal.Equal(sum))
	assert.True(t, base.Total.Equal(base.Subtotal.Add(base.Tax)))
}

func TestInvoiceRemaining(t *testing.T) {
	inv := &Invoice{Total: d("1000"), AmountPaid: d("400")}
	assert.True(t, inv.Remaining().Equal(d("600")))
}

package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zayar/simplecashflow/internal/apierror"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestNormalBalanceFor(t *testing.T) {
	assert.Equal(t, NormalDebit, NormalBalanceFor(AccountTypeAsset))
	assert.Equal(t, NormalDebit, NormalBalanceFor(AccountTypeExpense))
	assert.Equal(t, NormalCredit, NormalBalanceFor(AccountTypeLiability))
	assert.Equal(t, NormalCredit, NormalBalanceFor(AccountTypeEquity))
	assert.Equal(t, NormalCredit, NormalBalanceFor(AccountTypeIncome))
}

func TestValidAccountType(t *testing.T) {
	assert.True(t, ValidAccountType(AccountTypeAsset))
	assert.False(t, ValidAccountType(AccountType("REVENUE")))
	assert.False(t, ValidAccountType(AccountType("")))
}

func TestValidateLines(t *testing.T) {
	t.Run("balanced", func(t *testing.T) {
		debit, credit, err := ValidateLines([]LineInput{
			{AccountID: "a", Debit: d("100")},
			{AccountID: "b", Credit: d("60")},
			{AccountID: "c", Credit: d("40")},
		})
		require.NoError(t, err)
		assert.True(t, debit.Equal(d("100")))
		assert.True(t, credit.Equal(d("100")))
	})

	t.Run("imbalance", func(t *testing.T) {
		_, _, err := ValidateLines([]LineInput{
			{AccountID: "a", Debit: d("100")},
			{AccountID: "b", Credit: d("99")},
		})
		assert.True(t, apierror.IsKind(err, apierror.KindImbalance))
	})

	t.Run("too few lines", func(t *testing.T) {
		_, _, err := ValidateLines([]LineInput{{AccountID: "a", Debit: d("1")}})
		assert.True(t, apierror.IsKind(err, apierror.KindValidation))
	})

	t.Run("both sides set", func(t *testing.T) {
		_, _, err := ValidateLines([]LineInput{
			{AccountID: "a", Debit: d("1"), Credit: d("1")},
			{AccountID: "b", Credit: d("1")},
		})
		assert.True(t, apierror.IsKind(err, apierror.KindValidation))
	})

	t.Run("neither side set", func(t *testing.T) {
		_, _, err := ValidateLines([]LineInput{
			{AccountID: "a"},
			{AccountID: "b", Credit: d("1")},
		})
		assert.True(t, apierror.IsKind(err, apierror.KindValidation))
	})

	t.Run("negative amount", func(t *testing.T) {
		_, _, err := ValidateLines([]LineInput{
			{AccountID: "a", Debit: d("-5")},
			{AccountID: "b", Credit: d("-5")},
		})
		assert.True(t, apierror.IsKind(err, apierror.KindValidation))
	})

	t.Run("zero total", func(t *testing.T) {
		_, _, err := ValidateLines([]LineInput{
			{AccountID: "a", Debit: decimal.Zero},
			{AccountID: "b", Credit: decimal.Zero},
		})
		assert.Error(t, err)
	})

	t.Run("missing account id", func(t *testing.T) {
		_, _, err := ValidateLines([]LineInput{
			{Debit: d("1")},
			{AccountID: "b", Credit: d("1")},
		})
		assert.True(t, apierror.IsKind(err, apierror.KindValidation))
	})
}

func TestAssertOpenAgainst(t *testing.T) {
	closed := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)

	assert.NoError(t, AssertOpenAgainst(nil, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.NoError(t, AssertOpenAgainst(&closed, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)))

	err := AssertOpenAgainst(&closed, closed)
	assert.True(t, apierror.IsKind(err, apierror.KindPeriodClosed))

	err = AssertOpenAgainst(&closed, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))
	assert.True(t, apierror.IsKind(err, apierror.KindPeriodClosed))

	// Same calendar day with a later wall-clock time is still closed.
	err = AssertOpenAgainst(&closed, time.Date(2025, 1, 31, 23, 59, 0, 0, time.UTC))
	assert.True(t, apierror.IsKind(err, apierror.KindPeriodClosed))
}

func TestReversalOf(t *testing.T) {
	entry := &JournalEntry{
		ID:       "e1",
		TenantID: 7,
		Lines: []JournalLine{
			{AccountID: "bank", Debit: d("400")},
			{AccountID: "ar", Credit: d("400")},
		},
	}
	rev := ReversalOf(entry, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), "reverse payment", "corr-1")

	require.Len(t, rev.Lines, 2)
	assert.Equal(t, "bank", rev.Lines[0].AccountID)
	assert.True(t, rev.Lines[0].Credit.Equal(d("400")))
	assert.True(t, rev.Lines[0].Debit.IsZero())
	assert.Equal(t, "ar", rev.Lines[1].AccountID)
	assert.True(t, rev.Lines[1].Debit.Equal(d("400")))
	require.NotNil(t, rev.CausationID)
	assert.Equal(t, "e1", *rev.CausationID)
	assert.Equal(t, int64(7), rev.TenantID)
	assert.True(t, rev.SkipAccountValidation)
}

func TestJournalEntryTotals(t *testing.T) {
	je := &JournalEntry{Lines: []JournalLine{
		{Debit: d("10.50")},
		{Credit: d("10.50")},
	}}
	assert.True(t, je.TotalDebits().Equal(d("10.50")))
	assert.True(t, je.TotalCredits().Equal(d("10.50")))
	assert.True(t, je.IsBalanced())

	je.Lines = append(je.Lines, JournalLine{Debit: d("0.01")})
	assert.False(t, je.IsBalanced())
}

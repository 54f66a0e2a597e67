package money

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundMoneyHalfEven(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1.005", "1"},
		{"1.015", "1.02"},
		{"1.025", "1.02"},
		{"2.675", "2.68"},
		{"-1.005", "-1"},
		{"100", "100"},
	}
	for _, tt := range tests {
		d := decimal.RequireFromString(tt.in)
		assert.Equal(t, tt.want, RoundMoney(d).String(), "round %s", tt.in)
	}
}

func TestParse(t *testing.T) {
	d, err := Parse("12.34")
	require.NoError(t, err)
	assert.Equal(t, "12.34", d.String())

	d, err = Parse(7)
	require.NoError(t, err)
	assert.Equal(t, "7", d.String())

	d, err = Parse(int64(42))
	require.NoError(t, err)
	assert.Equal(t, "42", d.String())

	d, err = Parse(1.5)
	require.NoError(t, err)
	assert.Equal(t, "1.5", d.String())

	d, err = Parse(nil)
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	_, err = Parse("not-a-number")
	assert.Error(t, err)

	_, err = Parse(math.NaN())
	assert.Error(t, err)

	_, err = Parse(math.Inf(1))
	assert.Error(t, err)

	_, err = Parse(struct{}{})
	assert.Error(t, err)
}

func TestParseRate(t *testing.T) {
	r, err := ParseRate("0.0550")
	require.NoError(t, err)
	assert.Equal(t, "0.055", r.String())

	_, err = ParseRate("1.01")
	assert.Error(t, err)

	_, err = ParseRate("-0.1")
	assert.Error(t, err)

	r, err = ParseRate(nil)
	require.NoError(t, err)
	assert.True(t, r.IsZero())
}

func TestDateOnly(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	in := time.Date(2025, 1, 15, 23, 30, 0, 0, loc)
	out := DateOnly(in)
	assert.Equal(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), out)
	assert.Equal(t, time.UTC, out.Location())
}

func TestValidCurrency(t *testing.T) {
	assert.True(t, ValidCurrency("MMK"))
	assert.True(t, ValidCurrency("USD"))
	assert.False(t, ValidCurrency("mmk"))
	assert.False(t, ValidCurrency("MM"))
	assert.False(t, ValidCurrency("MMKT"))
	assert.False(t, ValidCurrency("12K"))
}

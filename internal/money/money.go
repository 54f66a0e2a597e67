// Package money provides fixed-scale decimal arithmetic for monetary
// values, tax rates and FX rates. Stored money carries two fractional
// digits, tax rates four, FX rates six. Intermediate arithmetic keeps
// full precision; rounding happens only at field assignment, half-even.
package money

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// MoneyScale is the stored scale for monetary amounts.
	MoneyScale int32 = 2
	// RateScale is the stored scale for tax rates.
	RateScale int32 = 4
	// FXScale is the stored scale for exchange rates.
	FXScale int32 = 6
)

// RoundMoney rounds to two fractional digits, half-even.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(MoneyScale)
}

// RoundRate rounds a tax rate to four fractional digits, half-even.
func RoundRate(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(RateScale)
}

// RoundFX rounds an exchange rate to six fractional digits, half-even.
func RoundFX(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(FXScale)
}

// Parse accepts integer, string or floating input and returns a decimal.
// Non-finite floats are rejected.
func Parse(v interface{}) (decimal.Decimal, error) {
	switch x := v.(type) {
	case nil:
		return decimal.Zero, nil
	case decimal.Decimal:
		return x, nil
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case int64:
		return decimal.NewFromInt(x), nil
	case string:
		d, err := decimal.NewFromString(x)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid decimal %q: %w", x, err)
		}
		return d, nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return decimal.Zero, fmt.Errorf("non-finite number")
		}
		return decimal.NewFromFloat(x), nil
	default:
		return decimal.Zero, fmt.Errorf("unsupported numeric type %T", v)
	}
}

// ParseRate parses a tax rate and validates it lies in [0, 1].
func ParseRate(v interface{}) (decimal.Decimal, error) {
	d, err := Parse(v)
	if err != nil {
		return decimal.Zero, err
	}
	if d.LessThan(decimal.Zero) || d.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("tax rate %s out of range [0,1]", d)
	}
	return RoundRate(d), nil
}

// DateOnly normalises a timestamp to UTC midnight of its calendar day.
func DateOnly(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// ValidCurrency reports whether code looks like an ISO 4217 currency code.
func ValidCurrency(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

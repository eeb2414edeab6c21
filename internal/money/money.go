package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// Places is the precision monetary amounts are stored and compared at.
	Places = 2
	// RatePlaces is the precision unit rates and percentages are stored at.
	RatePlaces = 6
)

var (
	// Hundred is the percentage base.
	Hundred = decimal.NewFromInt(100)
	// Cent is the smallest representable amount.
	Cent = decimal.New(1, -Places)
)

// Round rounds an amount to Places, half away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// RoundRate rounds a unit rate or a percentage to RatePlaces.
func RoundRate(d decimal.Decimal) decimal.Decimal {
	return d.Round(RatePlaces)
}

// Clamp bounds d to [lo, hi].
func Clamp(d, lo, hi decimal.Decimal) decimal.Decimal {
	if d.LessThan(lo) {
		return lo
	}
	if d.GreaterThan(hi) {
		return hi
	}
	return d
}

// Diff returns |a-b|.
func Diff(a, b decimal.Decimal) decimal.Decimal {
	return a.Sub(b).Abs()
}

// Tolerance returns a tolerance expressed in cents, e.g. Tolerance(2) == 0.02.
func Tolerance(cents int64) decimal.Decimal {
	return decimal.New(cents, -Places)
}

// Parse converts a user supplied amount. Empty input is rejected.
func Parse(value string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return decimal.Zero, fmt.Errorf("money: empty amount")
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("money: parse %q: %w", value, err)
	}
	return d, nil
}

// Sum adds all values.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

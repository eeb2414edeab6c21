package bundle

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-bundles/internal/money"
)

// DiscountKind classifies how much of a line a discount absorbs.
type DiscountKind string

const (
	DiscountNone    DiscountKind = "none"
	DiscountPartial DiscountKind = "partial"
	DiscountFull    DiscountKind = "100%"
)

// fullPercentThreshold snaps percentages that are 100 up to float noise.
var fullPercentThreshold = decimal.RequireFromString("99.9")

// LineRates is the rate pair a persisted line carries: the applied rate and
// the undiscounted list rate.
type LineRates struct {
	FinalRate decimal.Decimal
	ListRate  decimal.Decimal
	Kind      DiscountKind
}

// ToLineRates spreads a line discount over its quantity.
func ToLineRates(originalRate, discountAmount, qty decimal.Decimal) LineRates {
	if !discountAmount.IsPositive() || !qty.IsPositive() {
		return LineRates{FinalRate: originalRate, ListRate: originalRate, Kind: DiscountNone}
	}
	perUnit := discountAmount.Div(qty)
	final := originalRate.Sub(perUnit)
	if final.IsNegative() {
		final = decimal.Zero
	}
	kind := DiscountPartial
	if perUnit.GreaterThanOrEqual(originalRate) {
		kind = DiscountFull
	}
	return LineRates{
		FinalRate: money.RoundRate(final),
		ListRate:  originalRate,
		Kind:      kind,
	}
}

// DiscountPercentage expresses a discount amount as a percentage of the
// line's original total, capped at 100. Values from 99.9 upward are 100.
func DiscountPercentage(discountAmount, originalRate, qty decimal.Decimal) decimal.Decimal {
	base := originalRate.Mul(qty)
	if !base.IsPositive() || !discountAmount.IsPositive() {
		return decimal.Zero
	}
	pct := discountAmount.Div(base).Mul(money.Hundred)
	if pct.GreaterThanOrEqual(fullPercentThreshold) {
		return money.Hundred
	}
	return money.RoundRate(pct)
}

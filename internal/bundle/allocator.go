package bundle

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-bundles/internal/money"
)

// Policy selects what happens to the part of the required discount that
// per-item clamping and rounding leave unallocated.
type Policy string

const (
	// PolicyClamp clamps each item and leaves any residual visible in the
	// reconciliation summary.
	PolicyClamp Policy = "clamp"
	// PolicyRedistribute clamps each item and then pushes the residual onto
	// the remaining items, last first, without exceeding any item's total.
	PolicyRedistribute Policy = "redistribute"
)

// ParsePolicy maps a configuration value onto a Policy. Empty selects PolicyClamp.
func ParsePolicy(value string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(value))) {
	case "", PolicyClamp:
		return PolicyClamp, nil
	case PolicyRedistribute:
		return PolicyRedistribute, nil
	default:
		return "", fmt.Errorf("unknown allocation policy %q", value)
	}
}

// Totals holds the aggregate values an allocation is computed against.
type Totals struct {
	Original decimal.Decimal
	Target   decimal.Decimal
}

// Required is the aggregate discount needed to bring Original down to Target.
func (t Totals) Required() decimal.Decimal {
	return t.Original.Sub(t.Target)
}

// Allocate sums the constituents' regular totals and derives the target
// total for bundleQty bundles. Constituent quantities are expected to be
// already scaled to the full order quantity.
func Allocate(constituents []Constituent, bundleQty int, bundlePrice decimal.Decimal) Totals {
	original := decimal.Zero
	for _, c := range constituents {
		original = original.Add(c.Total())
	}
	return Totals{
		Original: original,
		Target:   bundlePrice.Mul(decimal.NewFromInt(int64(bundleQty))),
	}
}

// ProportionalDiscount returns the item's share of the required discount,
// weighted by its share of the original total, clamped to [0, item total]
// and rounded to cents. A zero original total yields no discount.
func ProportionalDiscount(c Constituent, totals Totals) decimal.Decimal {
	if !totals.Original.IsPositive() {
		return decimal.Zero
	}
	itemTotal := c.Total()
	share := itemTotal.Mul(totals.Required()).Div(totals.Original)
	share = money.Clamp(share, decimal.Zero, itemTotal)
	return money.Round(share)
}

// Discounts computes the discount of every constituent under the policy.
func Discounts(constituents []Constituent, totals Totals, policy Policy) []decimal.Decimal {
	out := make([]decimal.Decimal, len(constituents))
	for i, c := range constituents {
		out[i] = ProportionalDiscount(c, totals)
	}
	if policy != PolicyRedistribute {
		return out
	}
	redistribute(constituents, totals, out)
	return out
}

// redistribute settles the difference between the rounded aggregate target
// and the sum of per-item discounts, walking from the last item backwards.
func redistribute(constituents []Constituent, totals Totals, discounts []decimal.Decimal) {
	want := money.Round(money.Clamp(totals.Required(), decimal.Zero, totals.Original))
	residual := want.Sub(money.Sum(discounts...))
	for i := len(discounts) - 1; i >= 0 && !residual.IsZero(); i-- {
		if residual.IsPositive() {
			headroom := money.Round(constituents[i].Total()).Sub(discounts[i])
			if !headroom.IsPositive() {
				continue
			}
			step := decimal.Min(headroom, residual)
			discounts[i] = discounts[i].Add(step)
			residual = residual.Sub(step)
			continue
		}
		if !discounts[i].IsPositive() {
			continue
		}
		step := decimal.Min(discounts[i], residual.Neg())
		discounts[i] = discounts[i].Sub(step)
		residual = residual.Add(step)
	}
}

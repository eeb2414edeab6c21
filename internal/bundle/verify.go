package bundle

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-bundles/internal/money"
)

// ReconcileTolerance is the largest gap between expected and actual bundle
// totals still reported as a match.
var ReconcileTolerance = money.Tolerance(1)

// RoleTotals aggregates the lines of one role.
type RoleTotals struct {
	Count    int             `json:"count"`
	Original decimal.Decimal `json:"original"`
	Discount decimal.Decimal `json:"discount"`
	Final    decimal.Decimal `json:"final"`
}

// Summary is a diagnostic reconciliation of assembled lines against the
// bundle price.
type Summary struct {
	Main                 RoleTotals      `json:"main"`
	Child                RoleTotals      `json:"child"`
	ExpectedTotal        decimal.Decimal `json:"expectedTotal"`
	ActualTotal          decimal.Decimal `json:"actualTotal"`
	TotalDiscount        decimal.Decimal `json:"totalDiscount"`
	Difference           decimal.Decimal `json:"difference"`
	MatchWithinTolerance bool            `json:"matchWithinTolerance"`
}

// Verify recomputes per-role totals from lines and compares the net total to
// bundlePrice x bundleQty. It only reports.
func Verify(lines []Line, bundleQty int, bundlePrice decimal.Decimal) Summary {
	main := totalsFor(lines, RoleMain)
	child := totalsFor(lines, RoleChild)
	expected := bundlePrice.Mul(decimal.NewFromInt(int64(bundleQty)))
	actual := main.Final.Add(child.Final)
	diff := money.Diff(actual, expected)
	return Summary{
		Main:                 main,
		Child:                child,
		ExpectedTotal:        expected,
		ActualTotal:          actual,
		TotalDiscount:        main.Discount.Add(child.Discount),
		Difference:           diff,
		MatchWithinTolerance: diff.LessThan(ReconcileTolerance),
	}
}

func totalsFor(lines []Line, role Role) RoleTotals {
	matched := lo.Filter(lines, func(l Line, _ int) bool { return l.Role == role })
	original := lo.Reduce(matched, func(acc decimal.Decimal, l Line, _ int) decimal.Decimal {
		return acc.Add(l.OriginalTotal())
	}, decimal.Zero)
	discount := lo.Reduce(matched, func(acc decimal.Decimal, l Line, _ int) decimal.Decimal {
		return acc.Add(l.DiscountAmount)
	}, decimal.Zero)
	return RoleTotals{
		Count:    len(matched),
		Original: original,
		Discount: discount,
		Final:    original.Sub(discount),
	}
}

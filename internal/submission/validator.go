package submission

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-bundles/internal/money"
	"github.com/noah-isme/toko-bundles/internal/obs"
)

// Tolerance is the largest accepted gap for child-group and order totals.
var Tolerance = money.Tolerance(2)

// Catalog supplies bundle prices by bundle code.
type Catalog interface {
	BundlePrice(ctx context.Context, code string) (decimal.Decimal, error)
}

// Skip reasons recorded when a child group cannot be checked.
const (
	SkipLookup   = "lookup"
	SkipInternal = "internal"
)

// SkippedGroup records a child group whose total was not enforced.
type SkippedGroup struct {
	Bundle string `json:"bundle"`
	Reason string `json:"reason"`
	Error  string `json:"error"`
}

// TotalMismatch is the diagnostic recorded when the recorded grand total
// diverges from the recomputed one.
type TotalMismatch struct {
	Expected   decimal.Decimal `json:"expected"`
	Recorded   decimal.Decimal `json:"recorded"`
	Difference decimal.Decimal `json:"difference"`
}

// Report describes what a validation run checked.
type Report struct {
	Exempt        bool           `json:"exempt"`
	GroupsChecked int            `json:"groupsChecked"`
	Skipped       []SkippedGroup `json:"skipped,omitempty"`
	TotalMismatch *TotalMismatch `json:"totalMismatch,omitempty"`
}

var nopLogger = zerolog.Nop()

// Validator enforces the bundle pricing contract on an assembled order.
type Validator struct {
	Catalog Catalog
	// FailClosed turns catalog lookup failures into fatal violations.
	FailClosed bool
	Logger     *zerolog.Logger
}

// Validate runs Check and keeps only the verdict.
func (v *Validator) Validate(ctx context.Context, order Order) error {
	_, err := v.Check(ctx, order)
	return err
}

// Check validates order and returns a report of what was checked. A non-nil
// error is always a *ValidationError and must abort finalization.
func (v *Validator) Check(ctx context.Context, order Order) (Report, error) {
	logger := v.logger().With().Str("order_id", order.ID).Logger()

	tagged := lo.Filter(order.Lines, func(l Line, _ int) bool {
		return l.Kind == KindBundleParent || l.Kind == KindBundleChild
	})
	if len(tagged) == 0 {
		obs.IncCounterVec(obs.BundleValidationTotal, "exempt")
		return Report{Exempt: true}, nil
	}

	var report Report
	if err := checkParents(order.Lines); err != nil {
		obs.IncCounterVec(obs.BundleValidationTotal, "rejected")
		logger.Warn().Err(err).Msg("bundle parent line rejected")
		return report, err
	}

	groups := lo.GroupBy(
		lo.Filter(order.Lines, func(l Line, _ int) bool { return l.Kind == KindBundleChild }),
		func(l Line) string { return l.Bundle },
	)
	codes := lo.Keys(groups)
	sort.Strings(codes)
	for _, code := range codes {
		skipped, err := v.checkGroup(ctx, order, code, groups[code])
		if err != nil {
			obs.IncCounterVec(obs.BundleValidationTotal, "rejected")
			logger.Warn().Err(err).Str("bundle", code).Msg("bundle child group rejected")
			return report, err
		}
		if skipped != nil {
			report.Skipped = append(report.Skipped, *skipped)
			obs.IncCounterVec(obs.BundleValidationSkippedGroups, skipped.Reason)
			logger.Warn().Str("bundle", code).Str("reason", skipped.Reason).Str("error", skipped.Error).
				Msg("bundle child group check skipped")
			continue
		}
		report.GroupsChecked++
	}

	if mismatch := checkOrderTotal(order); mismatch != nil {
		report.TotalMismatch = mismatch
		obs.IncCounter(obs.OrderTotalMismatch)
		logger.Warn().
			Str("expected", mismatch.Expected.String()).
			Str("recorded", mismatch.Recorded.String()).
			Str("difference", mismatch.Difference.String()).
			Msg("order grand total diverges from recomputed total")
	}

	obs.IncCounterVec(obs.BundleValidationTotal, "passed")
	logger.Info().Int("groups", report.GroupsChecked).Int("skipped", len(report.Skipped)).Msg("bundle validation passed")
	return report, nil
}

func checkParents(lines []Line) error {
	for _, l := range lines {
		if l.Kind != KindBundleParent {
			continue
		}
		if !l.DiscountPercentage.Equal(money.Hundred) || !l.Amount.IsZero() {
			return &ValidationError{
				Violation:  ViolationParent,
				ItemCode:   l.ItemCode,
				Bundle:     l.Bundle,
				Percentage: l.DiscountPercentage,
				Expected:   decimal.Zero,
				Actual:     l.Amount,
			}
		}
	}
	return nil
}

// checkGroup enforces one child group. Panics are recovered into a skip so a
// single malformed group cannot fail the order.
func (v *Validator) checkGroup(ctx context.Context, order Order, code string, children []Line) (skipped *SkippedGroup, err error) {
	defer func() {
		if r := recover(); r != nil {
			skipped = &SkippedGroup{Bundle: code, Reason: SkipInternal, Error: fmt.Sprint(r)}
			err = nil
		}
	}()

	if v.Catalog == nil {
		return v.lookupFailed(code, fmt.Errorf("no catalog configured"))
	}
	price, lookupErr := v.Catalog.BundlePrice(ctx, code)
	if lookupErr != nil {
		return v.lookupFailed(code, lookupErr)
	}

	expected := price.Mul(groupQty(order.Lines, code))
	actual := money.Sum(lo.Map(children, func(l Line, _ int) decimal.Decimal { return l.Amount })...)
	if money.Diff(actual, expected).GreaterThan(Tolerance) {
		return nil, &ValidationError{
			Violation: ViolationChildGroup,
			Bundle:    code,
			Expected:  expected,
			Actual:    actual,
		}
	}
	return nil, nil
}

func (v *Validator) lookupFailed(code string, err error) (*SkippedGroup, error) {
	if v.FailClosed {
		return nil, &ValidationError{Violation: ViolationCatalogLookup, Bundle: code, Err: err}
	}
	return &SkippedGroup{Bundle: code, Reason: SkipLookup, Error: err.Error()}, nil
}

// groupQty is the number of bundle instances a child group represents: the
// summed quantity of its parent lines, or 1 when no parent carries the code.
func groupQty(lines []Line, code string) decimal.Decimal {
	parents := lo.Filter(lines, func(l Line, _ int) bool {
		return l.Kind == KindBundleParent && l.Bundle == code
	})
	qty := money.Sum(lo.Map(parents, func(l Line, _ int) decimal.Decimal { return l.Qty })...)
	if !qty.IsPositive() {
		return decimal.NewFromInt(1)
	}
	return qty
}

func checkOrderTotal(order Order) *TotalMismatch {
	amounts := lo.FilterMap(order.Lines, func(l Line, _ int) (decimal.Decimal, bool) {
		return l.Amount, l.Kind != KindBundleParent
	})
	expected := money.Sum(amounts...).Add(order.TaxTotal)
	diff := money.Diff(expected, order.GrandTotal)
	if diff.LessThanOrEqual(Tolerance) {
		return nil
	}
	return &TotalMismatch{Expected: expected, Recorded: order.GrandTotal, Difference: diff}
}

func (v *Validator) logger() *zerolog.Logger {
	if v == nil || v.Logger == nil {
		return &nopLogger
	}
	return v.Logger
}

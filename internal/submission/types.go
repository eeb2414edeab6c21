package submission

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// LineKind tags how an order line participates in bundle pricing.
type LineKind string

const (
	KindPlain        LineKind = "plain"
	KindBundleParent LineKind = "bundle_parent"
	KindBundleChild  LineKind = "bundle_child"
)

// Valid reports whether k is a known kind.
func (k LineKind) Valid() bool {
	switch k {
	case KindPlain, KindBundleParent, KindBundleChild:
		return true
	}
	return false
}

// Line is the persisted view of an order line the validator reads.
type Line struct {
	ItemCode           string
	Qty                decimal.Decimal
	Rate               decimal.Decimal
	PriceListRate      decimal.Decimal
	DiscountPercentage decimal.Decimal
	Amount             decimal.Decimal
	Kind               LineKind
	// Bundle is the bundle code for parent and child lines.
	Bundle string
}

// Order is the line set and recorded totals of an order about to be finalized.
type Order struct {
	ID         string
	Lines      []Line
	TaxTotal   decimal.Decimal
	GrandTotal decimal.Decimal
}

// Violation names the contract rule a ValidationError reports.
type Violation string

const (
	ViolationParent        Violation = "parent"
	ViolationChildGroup    Violation = "child_group_total"
	ViolationCatalogLookup Violation = "catalog_lookup"
)

// ErrContractViolation matches every ValidationError via errors.Is.
var ErrContractViolation = errors.New("bundle pricing contract violated")

// ValidationError is a fatal bundle contract failure that must abort the commit.
type ValidationError struct {
	Violation Violation
	ItemCode  string
	Bundle    string
	// Percentage is the offending parent line's discount percentage.
	Percentage decimal.Decimal
	Expected   decimal.Decimal
	Actual     decimal.Decimal
	Err        error
}

func (e *ValidationError) Error() string {
	switch e.Violation {
	case ViolationParent:
		return fmt.Sprintf("bundle parent line %s must be fully discounted with zero amount (discount %s%%, amount %s)",
			e.ItemCode, e.Percentage.String(), e.Actual.String())
	case ViolationChildGroup:
		return fmt.Sprintf("bundle %s items total %s, expected %s",
			e.Bundle, e.Actual.StringFixed(2), e.Expected.StringFixed(2))
	case ViolationCatalogLookup:
		return fmt.Sprintf("bundle %s could not be loaded for validation: %v", e.Bundle, e.Err)
	default:
		return ErrContractViolation.Error()
	}
}

// Is lets callers match any validation failure with ErrContractViolation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrContractViolation
}

func (e *ValidationError) Unwrap() error { return e.Err }

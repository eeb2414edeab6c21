package bundle

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Role distinguishes the container line of a bundle from its contents.
type Role string

const (
	// RoleMain is the sellable container item; always discounted to zero.
	RoleMain Role = "main"
	// RoleChild is a constituent carrying its share of the bundle discount.
	RoleChild Role = "child"
)

const (
	// FallbackItemCode is emitted as the only child when a bundle has no constituents.
	FallbackItemCode = "BUNDLE-FALLBACK"
	// FallbackUOM is the unit of measure of the fallback child.
	FallbackUOM = "Nos"
)

var (
	// ErrInvalidQuantity is returned when the bundle quantity is not positive.
	ErrInvalidQuantity = errors.New("bundle quantity must be positive")
	// ErrInvalidPrice is returned when the bundle price is not positive.
	ErrInvalidPrice = errors.New("bundle price must be positive")
	// ErrMissingContainer is returned when the bundle has no container item configured.
	ErrMissingContainer = errors.New("bundle has no container item")
)

// Constituent is one item inside a bundle priced at its regular rate.
type Constituent struct {
	ItemCode    string          `json:"itemCode"`
	RegularRate decimal.Decimal `json:"regularRate"`
	Qty         decimal.Decimal `json:"qty"`
	UOM         string          `json:"uom"`
}

// Total is the undiscounted value of the constituent.
func (c Constituent) Total() decimal.Decimal {
	return c.RegularRate.Mul(c.Qty)
}

// Definition describes a sellable bundle as provided by the catalog.
type Definition struct {
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	ContainerItem string          `json:"containerItem"`
	ContainerUOM  string          `json:"containerUom,omitempty"`
	Price         decimal.Decimal `json:"price"`
	Constituents  []Constituent   `json:"constituents"`
}

// Line is one descriptor emitted by the assembler for a bundle instance.
type Line struct {
	ItemCode       string          `json:"itemCode"`
	UOM            string          `json:"uom,omitempty"`
	Qty            decimal.Decimal `json:"qty"`
	OriginalRate   decimal.Decimal `json:"originalRate"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	Role           Role            `json:"role"`
}

// OriginalTotal is rate times quantity before discount.
func (l Line) OriginalTotal() decimal.Decimal {
	return l.OriginalRate.Mul(l.Qty)
}

// FinalAmount is the net amount after the discount.
func (l Line) FinalAmount() decimal.Decimal {
	return l.OriginalTotal().Sub(l.DiscountAmount)
}

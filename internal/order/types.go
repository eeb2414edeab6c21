package order

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-bundles/internal/money"
	"github.com/noah-isme/toko-bundles/internal/submission"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
)

var (
	// ErrNotFound is returned when the order does not exist.
	ErrNotFound = errors.New("order: not found")
	// ErrNotDraft is returned when a mutation targets a finalized order.
	ErrNotDraft = errors.New("order: order is not a draft")
	// ErrStoreUnavailable indicates the store dependency is not configured.
	ErrStoreUnavailable = errors.New("order: store unavailable")
)

// Line is a persisted order line.
type Line struct {
	Position           int                 `json:"position"`
	ItemCode           string              `json:"itemCode"`
	UOM                string              `json:"uom"`
	Qty                decimal.Decimal     `json:"qty"`
	Rate               decimal.Decimal     `json:"rate"`
	PriceListRate      decimal.Decimal     `json:"priceListRate"`
	DiscountPercentage decimal.Decimal     `json:"discountPercentage"`
	DiscountAmount     decimal.Decimal     `json:"discountAmount"`
	Amount             decimal.Decimal     `json:"amount"`
	Kind               submission.LineKind `json:"kind"`
	BundleCode         string              `json:"bundleCode,omitempty"`
}

// Order is a sales order with its lines.
type Order struct {
	ID          uuid.UUID       `json:"id"`
	Customer    string          `json:"customer"`
	Status      Status          `json:"status"`
	Currency    string          `json:"currency"`
	TaxTotal    decimal.Decimal `json:"taxTotal"`
	GrandTotal  decimal.Decimal `json:"grandTotal"`
	Lines       []Line          `json:"lines"`
	CreatedAt   time.Time       `json:"createdAt"`
	SubmittedAt *time.Time      `json:"submittedAt,omitempty"`
}

// IsDraft reports whether the order still accepts changes.
func (o Order) IsDraft() bool {
	return o.Status == StatusDraft
}

// Append adds lines after the existing ones, numbering them, and recomputes
// the grand total.
func (o *Order) Append(lines ...Line) {
	for _, l := range lines {
		l.Position = len(o.Lines)
		o.Lines = append(o.Lines, l)
	}
	o.Recompute()
}

// Recompute sets GrandTotal to the sum of billable line amounts plus tax.
// Parent lines carry no amount of their own.
func (o *Order) Recompute() {
	o.GrandTotal = money.Round(GrandTotal(o.Lines, o.TaxTotal))
}

// GrandTotal sums every non-parent line amount and the tax total.
func GrandTotal(lines []Line, tax decimal.Decimal) decimal.Decimal {
	amounts := lo.FilterMap(lines, func(l Line, _ int) (decimal.Decimal, bool) {
		return l.Amount, l.Kind != submission.KindBundleParent
	})
	return money.Sum(amounts...).Add(tax)
}

// Submission is the view of the order the bundle validator checks.
func (o Order) Submission() submission.Order {
	return submission.Order{
		ID: o.ID.String(),
		Lines: lo.Map(o.Lines, func(l Line, _ int) submission.Line {
			return submission.Line{
				ItemCode:           l.ItemCode,
				Qty:                l.Qty,
				Rate:               l.Rate,
				PriceListRate:      l.PriceListRate,
				DiscountPercentage: l.DiscountPercentage,
				Amount:             l.Amount,
				Kind:               l.Kind,
				Bundle:             l.BundleCode,
			}
		}),
		TaxTotal:   o.TaxTotal,
		GrandTotal: o.GrandTotal,
	}
}

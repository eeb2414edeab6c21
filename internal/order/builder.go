package order

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-bundles/internal/bundle"
	"github.com/noah-isme/toko-bundles/internal/money"
	"github.com/noah-isme/toko-bundles/internal/submission"
)

// BundleLines converts assembled bundle lines into persisted order lines.
// The container line becomes the bundle parent and every constituent a child
// tagged with the bundle code.
func BundleLines(def bundle.Definition, assembled []bundle.Line) []Line {
	out := make([]Line, 0, len(assembled))
	for _, l := range assembled {
		rates := bundle.ToLineRates(l.OriginalRate, l.DiscountAmount, l.Qty)
		kind := submission.KindBundleChild
		if l.Role == bundle.RoleMain {
			kind = submission.KindBundleParent
		}
		out = append(out, Line{
			ItemCode:           l.ItemCode,
			UOM:                l.UOM,
			Qty:                l.Qty,
			Rate:               rates.FinalRate,
			PriceListRate:      rates.ListRate,
			DiscountPercentage: bundle.DiscountPercentage(l.DiscountAmount, l.OriginalRate, l.Qty),
			DiscountAmount:     money.Round(l.DiscountAmount),
			Amount:             money.Round(l.FinalAmount()),
			Kind:               kind,
			BundleCode:         def.Code,
		})
	}
	return out
}

// PlainLine builds an undiscounted line for an item sold on its own.
func PlainLine(itemCode, uom string, qty, rate decimal.Decimal) Line {
	return Line{
		ItemCode:           strings.TrimSpace(itemCode),
		UOM:                strings.TrimSpace(uom),
		Qty:                qty,
		Rate:               rate,
		PriceListRate:      rate,
		DiscountPercentage: decimal.Zero,
		DiscountAmount:     decimal.Zero,
		Amount:             money.Round(rate.Mul(qty)),
		Kind:               submission.KindPlain,
	}
}

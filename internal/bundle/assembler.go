package bundle

import (
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var nopLogger = zerolog.Nop()

// Assembler expands a bundle definition into line descriptors.
type Assembler struct {
	Policy Policy
	Logger *zerolog.Logger
}

// Assemble expands one bundle instance with the default clamp policy.
func Assemble(def Definition, bundleQty int) ([]Line, error) {
	return Assembler{}.Assemble(def, bundleQty)
}

// Assemble returns the main line followed by one child per constituent. A
// bundle without constituents yields a single undiscounted fallback child so
// the order always shows purchasable content.
func (a Assembler) Assemble(def Definition, bundleQty int) ([]Line, error) {
	if bundleQty <= 0 {
		return nil, ErrInvalidQuantity
	}
	if !def.Price.IsPositive() {
		return nil, ErrInvalidPrice
	}
	if strings.TrimSpace(def.ContainerItem) == "" {
		return nil, ErrMissingContainer
	}
	qty := decimal.NewFromInt(int64(bundleQty))
	logger := a.logger().With().Str("bundle", def.Code).Int("qty", bundleQty).Logger()

	main := Line{
		ItemCode:       def.ContainerItem,
		UOM:            def.ContainerUOM,
		Qty:            qty,
		OriginalRate:   def.Price,
		DiscountAmount: def.Price.Mul(qty),
		Role:           RoleMain,
	}
	lines := make([]Line, 0, len(def.Constituents)+1)
	lines = append(lines, main)

	if len(def.Constituents) == 0 {
		logger.Debug().Msg("bundle has no constituents, emitting fallback child")
		return append(lines, Line{
			ItemCode:       FallbackItemCode,
			UOM:            FallbackUOM,
			Qty:            qty,
			OriginalRate:   def.Price,
			DiscountAmount: decimal.Zero,
			Role:           RoleChild,
		}), nil
	}

	scaled := make([]Constituent, len(def.Constituents))
	for i, c := range def.Constituents {
		c.Qty = c.Qty.Mul(qty)
		scaled[i] = c
	}
	totals := Allocate(scaled, bundleQty, def.Price)
	discounts := Discounts(scaled, totals, a.policy())
	logger.Debug().
		Str("original_total", totals.Original.String()).
		Str("target_total", totals.Target.String()).
		Str("required_discount", totals.Required().String()).
		Msg("allocating bundle discount")

	for i, c := range scaled {
		lines = append(lines, Line{
			ItemCode:       c.ItemCode,
			UOM:            c.UOM,
			Qty:            c.Qty,
			OriginalRate:   c.RegularRate,
			DiscountAmount: discounts[i],
			Role:           RoleChild,
		})
	}
	return lines, nil
}

func (a Assembler) policy() Policy {
	if a.Policy == "" {
		return PolicyClamp
	}
	return a.Policy
}

func (a Assembler) logger() *zerolog.Logger {
	if a.Logger == nil {
		return &nopLogger
	}
	return a.Logger
}

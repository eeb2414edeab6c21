package bundle_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-bundles/internal/bundle"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func breakfastBundle() bundle.Definition {
	return bundle.Definition{
		Code:          "BREAKFAST",
		ContainerItem: "BREAKFAST-BOX",
		ContainerUOM:  "Box",
		Price:         d("120"),
		Constituents: []bundle.Constituent{
			{ItemCode: "COFFEE", RegularRate: d("100"), Qty: d("1"), UOM: "Cup"},
			{ItemCode: "CROISSANT", RegularRate: d("50"), Qty: d("1"), UOM: "Nos"},
		},
	}
}

func TestAssembleProportionalChildren(t *testing.T) {
	lines, err := bundle.Assemble(breakfastBundle(), 1)
	require.NoError(t, err)
	require.Len(t, lines, 3)

	main := lines[0]
	require.Equal(t, bundle.RoleMain, main.Role)
	require.Equal(t, "BREAKFAST-BOX", main.ItemCode)
	require.True(t, main.FinalAmount().IsZero())

	require.Equal(t, "COFFEE", lines[1].ItemCode)
	require.True(t, lines[1].DiscountAmount.Equal(d("20")))
	require.True(t, lines[1].FinalAmount().Equal(d("80")))
	require.Equal(t, "CROISSANT", lines[2].ItemCode)
	require.True(t, lines[2].DiscountAmount.Equal(d("10")))
	require.True(t, lines[2].FinalAmount().Equal(d("40")))

	summary := bundle.Verify(lines, 1, d("120"))
	require.True(t, summary.ActualTotal.Equal(d("120")))
	require.True(t, summary.MatchWithinTolerance)
	require.Equal(t, 1, summary.Main.Count)
	require.Equal(t, 2, summary.Child.Count)
}

func TestAssembleScalesQuantities(t *testing.T) {
	lines, err := bundle.Assemble(breakfastBundle(), 3)
	require.NoError(t, err)
	require.True(t, lines[0].Qty.Equal(d("3")))
	require.True(t, lines[0].DiscountAmount.Equal(d("360")))
	require.True(t, lines[1].Qty.Equal(d("3")))
	require.True(t, lines[1].DiscountAmount.Equal(d("60")))
	require.True(t, lines[2].DiscountAmount.Equal(d("30")))

	summary := bundle.Verify(lines, 3, d("120"))
	require.True(t, summary.ExpectedTotal.Equal(d("360")))
	require.True(t, summary.MatchWithinTolerance)
}

func TestAssembleFallbackChild(t *testing.T) {
	def := bundle.Definition{Code: "MYSTERY", ContainerItem: "MYSTERY-BOX", Price: d("25")}
	lines, err := bundle.Assemble(def, 2)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	child := lines[1]
	require.Equal(t, bundle.RoleChild, child.Role)
	require.Equal(t, bundle.FallbackItemCode, child.ItemCode)
	require.Equal(t, bundle.FallbackUOM, child.UOM)
	require.True(t, child.OriginalRate.Equal(d("25")))
	require.True(t, child.Qty.Equal(d("2")))
	require.True(t, child.DiscountAmount.IsZero())
	require.True(t, child.FinalAmount().Equal(d("50")))
	require.True(t, lines[0].FinalAmount().IsZero())
}

func TestAssembleIsDeterministic(t *testing.T) {
	first, err := bundle.Assemble(breakfastBundle(), 2)
	require.NoError(t, err)
	second, err := bundle.Assemble(breakfastBundle(), 2)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestAssembleRejectsInvalidInput(t *testing.T) {
	def := breakfastBundle()
	_, err := bundle.Assemble(def, 0)
	require.ErrorIs(t, err, bundle.ErrInvalidQuantity)

	def.Price = decimal.Zero
	_, err = bundle.Assemble(def, 1)
	require.ErrorIs(t, err, bundle.ErrInvalidPrice)

	def = breakfastBundle()
	def.ContainerItem = " "
	_, err = bundle.Assemble(def, 1)
	require.ErrorIs(t, err, bundle.ErrMissingContainer)
}

func TestAssemblerPolicyClosesRoundingGap(t *testing.T) {
	def := bundle.Definition{
		Code:          "TRIO",
		ContainerItem: "TRIO-PACK",
		Price:         d("20"),
		Constituents: []bundle.Constituent{
			{ItemCode: "A", RegularRate: d("10"), Qty: d("1")},
			{ItemCode: "B", RegularRate: d("10"), Qty: d("1")},
			{ItemCode: "C", RegularRate: d("10"), Qty: d("1")},
		},
	}

	clamped, err := bundle.Assemble(def, 1)
	require.NoError(t, err)
	summary := bundle.Verify(clamped, 1, def.Price)
	require.True(t, summary.ActualTotal.Equal(d("20.01")))
	require.False(t, summary.MatchWithinTolerance)

	spread, err := bundle.Assembler{Policy: bundle.PolicyRedistribute}.Assemble(def, 1)
	require.NoError(t, err)
	summary = bundle.Verify(spread, 1, def.Price)
	require.True(t, summary.ActualTotal.Equal(d("20")))
	require.True(t, summary.MatchWithinTolerance)
}

func TestAssembleDiscountInvariants(t *testing.T) {
	def := bundle.Definition{
		Code:          "MIXED",
		ContainerItem: "MIXED-BOX",
		Price:         d("9.99"),
		Constituents: []bundle.Constituent{
			{ItemCode: "CHEAP", RegularRate: d("0.10"), Qty: d("1")},
			{ItemCode: "MID", RegularRate: d("4.35"), Qty: d("3")},
			{ItemCode: "FREE", RegularRate: d("0"), Qty: d("1")},
		},
	}
	for _, policy := range []bundle.Policy{bundle.PolicyClamp, bundle.PolicyRedistribute} {
		lines, err := bundle.Assembler{Policy: policy}.Assemble(def, 2)
		require.NoError(t, err)
		for _, line := range lines {
			require.False(t, line.DiscountAmount.IsNegative(), line.ItemCode)
			require.True(t, line.DiscountAmount.LessThanOrEqual(line.OriginalTotal()), line.ItemCode)
		}
	}
}

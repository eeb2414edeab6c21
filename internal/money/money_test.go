package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestRoundHalfAwayFromZero(t *testing.T) {
	require.True(t, Round(decimal.RequireFromString("2.345")).Equal(decimal.RequireFromString("2.35")))
	require.True(t, Round(decimal.RequireFromString("-2.345")).Equal(decimal.RequireFromString("-2.35")))
	require.True(t, Round(decimal.RequireFromString("2.344")).Equal(decimal.RequireFromString("2.34")))
}

func TestClamp(t *testing.T) {
	lo, hi := decimal.Zero, decimal.NewFromInt(10)
	require.True(t, Clamp(decimal.NewFromInt(-1), lo, hi).Equal(lo))
	require.True(t, Clamp(decimal.NewFromInt(11), lo, hi).Equal(hi))
	require.True(t, Clamp(decimal.NewFromInt(4), lo, hi).Equal(decimal.NewFromInt(4)))
}

func TestTolerance(t *testing.T) {
	require.Equal(t, "0.02", Tolerance(2).String())
	require.True(t, Diff(decimal.RequireFromString("119.99"), decimal.NewFromInt(120)).LessThanOrEqual(Tolerance(2)))
}

func TestParse(t *testing.T) {
	d, err := Parse(" 12.50 ")
	require.NoError(t, err)
	require.True(t, d.Equal(decimal.RequireFromString("12.5")))

	_, err = Parse("")
	require.Error(t, err)
	_, err = Parse("abc")
	require.Error(t, err)
}

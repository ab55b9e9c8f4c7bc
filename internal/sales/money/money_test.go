package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestLineTotal(t *testing.T) {
	total := LineTotal(LineInput{Qty: 3, UnitPrice: d("19.99"), Discount: d("2.50"), Tax: d("1.20")})
	require.Equal(t, "58.67", total.StringFixed(2))
}

func TestComputeTotals(t *testing.T) {
	lines := []LineInput{{Qty: 10, UnitPrice: d("10")}}
	totals := Compute(lines, d("10"), d("5"), d("2"))

	require.Equal(t, "100.00", totals.Subtotal.StringFixed(2))
	require.Equal(t, "10.00", totals.TaxAmount.StringFixed(2))
	require.Equal(t, "107.00", totals.GrandTotal.StringFixed(2))
}

func TestComputeInvariantHolds(t *testing.T) {
	lines := []LineInput{
		{Qty: 2, UnitPrice: d("3.33")},
		{Qty: 1, UnitPrice: d("0.99"), Discount: d("0.10")},
	}
	totals := Compute(lines, d("7.5"), d("1.00"), d("4.95"))

	sum := totals.Subtotal.Add(totals.TaxAmount).Sub(totals.Discount).Add(totals.Shipping).Round(2)
	require.True(t, totals.GrandTotal.Equal(sum))
}

func TestComputeZeroLines(t *testing.T) {
	totals := Compute(nil, d("10"), decimal.Zero, decimal.Zero)
	require.True(t, totals.GrandTotal.IsZero())
}

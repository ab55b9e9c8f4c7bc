// Package money computes document totals. All monetary arithmetic happens
// here, server-side, in decimal; clients never supply computed fields.
package money

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// LineInput is one sellable line before computation.
type LineInput struct {
	Qty       float64
	UnitPrice decimal.Decimal
	Discount  decimal.Decimal
	Tax       decimal.Decimal
}

// LineTotal is price·qty − discount + tax, rounded to cents.
func LineTotal(in LineInput) decimal.Decimal {
	qty := decimal.NewFromFloat(in.Qty)
	return in.UnitPrice.Mul(qty).Sub(in.Discount).Add(in.Tax).Round(2)
}

// Totals are the computed document amounts.
type Totals struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	TaxRate    decimal.Decimal `json:"tax_rate"`
	TaxAmount  decimal.Decimal `json:"tax_amount"`
	Discount   decimal.Decimal `json:"discount"`
	Shipping   decimal.Decimal `json:"shipping"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}

// Compute sums the line totals and derives the document amounts. taxRate is
// a percentage of the subtotal. The invariant enforced here is
// grand_total = subtotal + tax_amount - discount + shipping.
func Compute(lines []LineInput, taxRate, discount, shipping decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(LineTotal(l))
	}
	taxAmount := subtotal.Mul(taxRate).Div(hundred).Round(2)
	grand := subtotal.Add(taxAmount).Sub(discount).Add(shipping).Round(2)
	return Totals{
		Subtotal:   subtotal,
		TaxRate:    taxRate,
		TaxAmount:  taxAmount,
		Discount:   discount,
		Shipping:   shipping,
		GrandTotal: grand,
	}
}

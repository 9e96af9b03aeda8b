package orders

import "github.com/shopspring/decimal"

// TaxRate is the flat VAT applied to every order.
var TaxRate = decimal.RequireFromString("0.15")

type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

func (it OrderItem) LineTotal() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// ComputeTotals derives the order amounts from its line items, rounded to cents.
func ComputeTotals(items []OrderItem) Totals {
	sub := decimal.Zero
	for _, it := range items {
		sub = sub.Add(it.LineTotal())
	}
	sub = sub.Round(2)
	tax := sub.Mul(TaxRate).Round(2)
	return Totals{Subtotal: sub, Tax: tax, Total: sub.Add(tax)}
}

// Package billing computes invoice totals from order lines and the
// active rate settings. All arithmetic is exact decimal; rounding is
// left to the presentation layer.
package billing

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Line is a single billable order line.
type Line struct {
	Name      string
	Quantity  int32
	UnitPrice decimal.Decimal
}

// Totals carries the full breakdown of an invoice.
type Totals struct {
	Subtotal      decimal.Decimal
	Discount      decimal.Decimal
	ServiceCharge decimal.Decimal
	Tax           decimal.Decimal
	Total         decimal.Decimal
}

// Rates are percentages in [0, 100].
type Rates struct {
	Tax           decimal.Decimal
	ServiceCharge decimal.Decimal
	Discount      decimal.Decimal
}

// LineTotal returns quantity times unit price for one line.
func LineTotal(l Line) decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt32(l.Quantity))
}

// Compute derives invoice totals from the given lines and rates.
// Discount and service charge both apply to the subtotal; tax applies
// to the subtotal minus discount plus service charge.
func Compute(lines []Line, rates Rates) Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(LineTotal(l))
	}

	discount := subtotal.Mul(rates.Discount).Div(hundred)
	service := subtotal.Mul(rates.ServiceCharge).Div(hundred)
	taxable := subtotal.Sub(discount).Add(service)
	tax := taxable.Mul(rates.Tax).Div(hundred)

	return Totals{
		Subtotal:      subtotal,
		Discount:      discount,
		ServiceCharge: service,
		Tax:           tax,
		Total:         taxable.Add(tax),
	}
}

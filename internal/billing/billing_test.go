package billing

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestComputeBreakdown(t *testing.T) {
	lines := []Line{
		{Name: "Steak", Quantity: 2, UnitPrice: dec("10.00")},
		{Name: "Juice", Quantity: 1, UnitPrice: dec("5.50")},
	}
	rates := Rates{Tax: dec("10"), ServiceCharge: dec("5"), Discount: dec("0")}

	got := Compute(lines, rates)

	checks := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"subtotal", got.Subtotal, "25.50"},
		{"discount", got.Discount, "0"},
		{"service", got.ServiceCharge, "1.275"},
		{"tax", got.Tax, "2.6775"},
		{"total", got.Total, "29.4525"},
	}
	for _, c := range checks {
		if !c.got.Equal(dec(c.want)) {
			t.Errorf("%s = %s, want %s", c.name, c.got, c.want)
		}
	}
}

func TestComputeWithDiscount(t *testing.T) {
	lines := []Line{{Name: "Pasta", Quantity: 1, UnitPrice: dec("100.00")}}
	rates := Rates{Tax: dec("10"), ServiceCharge: dec("10"), Discount: dec("20")}

	got := Compute(lines, rates)

	// subtotal 100, discount 20, service 10 (on subtotal, not the
	// discounted amount), taxable 90, tax 9, total 99
	if !got.Discount.Equal(dec("20")) {
		t.Errorf("discount = %s, want 20", got.Discount)
	}
	if !got.ServiceCharge.Equal(dec("10")) {
		t.Errorf("service = %s, want 10", got.ServiceCharge)
	}
	if !got.Tax.Equal(dec("9")) {
		t.Errorf("tax = %s, want 9", got.Tax)
	}
	if !got.Total.Equal(dec("99")) {
		t.Errorf("total = %s, want 99", got.Total)
	}
}

func TestComputeEmpty(t *testing.T) {
	got := Compute(nil, Rates{Tax: dec("10"), ServiceCharge: dec("5"), Discount: dec("5")})
	if !got.Total.IsZero() || !got.Subtotal.IsZero() {
		t.Errorf("empty lines should total zero, got %+v", got)
	}
}

// Same inputs always produce the same breakdown regardless of call order.
func TestComputeDeterministic(t *testing.T) {
	lines := []Line{
		{Name: "A", Quantity: 3, UnitPrice: dec("7.35")},
		{Name: "B", Quantity: 2, UnitPrice: dec("0.99")},
	}
	rates := Rates{Tax: dec("8.25"), ServiceCharge: dec("12.5"), Discount: dec("3")}

	first := Compute(lines, rates)
	for i := 0; i < 50; i++ {
		again := Compute(lines, rates)
		if !again.Total.Equal(first.Total) || !again.Tax.Equal(first.Tax) {
			t.Fatalf("run %d diverged: %+v vs %+v", i, again, first)
		}
	}
}

func TestLineTotal(t *testing.T) {
	if got := LineTotal(Line{Quantity: 4, UnitPrice: dec("2.25")}); !got.Equal(dec("9.00")) {
		t.Errorf("LineTotal = %s, want 9.00", got)
	}
}

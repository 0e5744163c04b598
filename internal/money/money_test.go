package money

import (
	"testing"

	"github.com/shopspring/decimal"

	"garmentpos/backend/internal/domain"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestTotalsBasicGST(t *testing.T) {
	calc := NewCalculator(dec("5"))
	lines := []domain.LineItem{
		{Quantity: 2, UnitPrice: dec("100"), Discount: decimal.Zero},
	}

	totals := calc.Totals(lines, domain.InvoiceAdjustments{})
	if !totals.Subtotal.Equal(dec("200")) {
		t.Fatalf("expected subtotal 200, got %s", totals.Subtotal)
	}
	if !totals.Tax.Equal(dec("10")) {
		t.Fatalf("expected tax 10, got %s", totals.Tax)
	}
	if !totals.InvoiceTotal.Equal(dec("210")) {
		t.Fatalf("expected invoice total 210, got %s", totals.InvoiceTotal)
	}
}

func TestLineTotalClampsOversizedDiscount(t *testing.T) {
	calc := NewCalculator(dec("5"))

	total := calc.LineTotal(1, dec("50"), dec("80"))
	if !total.Equal(decimal.Zero) {
		t.Fatalf("expected clamped line total 0, got %s", total)
	}

	lines := []domain.LineItem{
		{Quantity: 1, UnitPrice: dec("50"), Discount: dec("80")},
	}
	totals := calc.Totals(lines, domain.InvoiceAdjustments{})
	if !totals.Discount.Equal(dec("50")) {
		t.Fatalf("expected cart discount clamped to 50, got %s", totals.Discount)
	}
	if !totals.Tax.Equal(decimal.Zero) {
		t.Fatalf("expected zero tax on fully discounted cart, got %s", totals.Tax)
	}
}

func TestTaxAppliesToPostDiscountSubtotal(t *testing.T) {
	calc := NewCalculator(dec("5"))
	lines := []domain.LineItem{
		{Quantity: 2, UnitPrice: dec("100"), Discount: dec("40")},
	}

	totals := calc.Totals(lines, domain.InvoiceAdjustments{})
	if !totals.Tax.Equal(dec("8")) {
		t.Fatalf("expected tax on 160 base = 8, got %s", totals.Tax)
	}
	if !totals.InvoiceTotal.Equal(dec("168")) {
		t.Fatalf("expected invoice total 168, got %s", totals.InvoiceTotal)
	}
}

func TestAdjustmentFieldsCommute(t *testing.T) {
	calc := NewCalculator(dec("5"))
	lines := []domain.LineItem{
		{Quantity: 3, UnitPrice: dec("99.99")},
	}

	a := calc.Totals(lines, domain.InvoiceAdjustments{Savings: dec("15"), ExtraLess: dec("-2.50")})
	b := calc.Totals(lines, domain.InvoiceAdjustments{ExtraLess: dec("-2.50"), Savings: dec("15")})
	if !a.InvoiceTotal.Equal(b.InvoiceTotal) {
		t.Fatalf("adjustment order changed the total: %s vs %s", a.InvoiceTotal, b.InvoiceTotal)
	}
}

func TestChangeGiven(t *testing.T) {
	cases := []struct {
		tendered string
		total    string
		want     string
	}{
		{"250", "210", "40"},
		{"210", "210", "0"},
		{"100", "210", "0"},
		{"0", "0", "0"},
	}
	for _, tc := range cases {
		got := ChangeGiven(dec(tc.tendered), dec(tc.total))
		if !got.Equal(dec(tc.want)) {
			t.Fatalf("change for tender %s vs total %s: expected %s, got %s", tc.tendered, tc.total, tc.want, got)
		}
	}
}

func TestReconcileSumsAllChannels(t *testing.T) {
	payment := domain.PaymentDetails{
		CashAmount: dec("100"),
		CardAmount: dec("80"),
		UPIAmount:  dec("50"),
	}
	reconciled := Reconcile(payment, dec("210"))
	if !reconciled.ChangeGiven.Equal(dec("20")) {
		t.Fatalf("expected change 20, got %s", reconciled.ChangeGiven)
	}
	if !reconciled.CashAmount.Equal(dec("100")) {
		t.Fatalf("reconcile must not mutate tendered channels")
	}
}

func TestRoundDisplayHalfUp(t *testing.T) {
	if got := RoundDisplay(dec("10.005")); !got.Equal(dec("10.01")) {
		t.Fatalf("expected 10.005 to round to 10.01, got %s", got)
	}
	if got := RoundDisplay(dec("10.004")); !got.Equal(dec("10.00")) {
		t.Fatalf("expected 10.004 to round to 10.00, got %s", got)
	}
}

func TestNoIntermediateRoundingDrift(t *testing.T) {
	calc := NewCalculator(dec("5"))
	lines := []domain.LineItem{
		{Quantity: 3, UnitPrice: dec("33.33")},
	}

	first := calc.Totals(lines, domain.InvoiceAdjustments{})
	for i := 0; i < 100; i++ {
		again := calc.Totals(lines, domain.InvoiceAdjustments{})
		if !again.InvoiceTotal.Equal(first.InvoiceTotal) {
			t.Fatalf("recomputation drifted at iteration %d: %s vs %s", i, again.InvoiceTotal, first.InvoiceTotal)
		}
	}
}

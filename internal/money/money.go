package money

import (
	"github.com/shopspring/decimal"

	"garmentpos/backend/internal/domain"
)

// Calculator performs all monetary arithmetic for the invoice engine. It is
// stateless apart from the configured GST rate and every method is a pure
// function of its inputs. Intermediate results are kept at full precision;
// rounding happens only via RoundDisplay at display/persistence boundaries.
type Calculator struct {
	taxRatePercent decimal.Decimal
}

func NewCalculator(taxRatePercent decimal.Decimal) Calculator {
	if taxRatePercent.IsNegative() {
		taxRatePercent = decimal.Zero
	}
	return Calculator{taxRatePercent: taxRatePercent}
}

func (c Calculator) TaxRatePercent() decimal.Decimal {
	return c.taxRatePercent
}

// LineTotal computes quantity*unitPrice - discount for a single line. A
// discount larger than the pre-discount amount is clamped so a line can
// never go negative.
func (c Calculator) LineTotal(quantity int, unitPrice, discount decimal.Decimal) decimal.Decimal {
	gross := unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
	if discount.GreaterThan(gross) {
		discount = gross
	}
	return gross.Sub(discount)
}

// CartSubtotal sums quantity*unitPrice over all lines, before discounts.
func (c Calculator) CartSubtotal(lines []domain.LineItem) decimal.Decimal {
	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return subtotal
}

// CartDiscount sums the per-line discounts, each clamped the same way
// LineTotal clamps them.
func (c Calculator) CartDiscount(lines []domain.LineItem) decimal.Decimal {
	discount := decimal.Zero
	for _, line := range lines {
		gross := line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		lineDiscount := line.Discount
		if lineDiscount.GreaterThan(gross) {
			lineDiscount = gross
		}
		discount = discount.Add(lineDiscount)
	}
	return discount
}

// CartTax applies the configured GST rate to the post-discount subtotal.
func (c Calculator) CartTax(subtotal, discount decimal.Decimal) decimal.Decimal {
	base := subtotal.Sub(discount)
	if base.IsNegative() {
		return decimal.Zero
	}
	return base.Mul(c.taxRatePercent).Div(decimal.NewFromInt(100))
}

// Totals derives the full set of invoice totals from the cart lines and the
// invoice-level adjustments:
//
//	invoiceTotal = subtotal - discount + tax - savings + extraLess
func (c Calculator) Totals(lines []domain.LineItem, adjustments domain.InvoiceAdjustments) domain.InvoiceTotals {
	subtotal := c.CartSubtotal(lines)
	discount := c.CartDiscount(lines)
	tax := c.CartTax(subtotal, discount)
	total := subtotal.Sub(discount).Add(tax).Sub(adjustments.Savings).Add(adjustments.ExtraLess)

	return domain.InvoiceTotals{
		Subtotal:     subtotal,
		Discount:     discount,
		Tax:          tax,
		InvoiceTotal: total,
	}
}

// ChangeGiven returns max(0, tendered - invoiceTotal).
func ChangeGiven(tendered, invoiceTotal decimal.Decimal) decimal.Decimal {
	change := tendered.Sub(invoiceTotal)
	if change.IsNegative() {
		return decimal.Zero
	}
	return change
}

// Reconcile recomputes ChangeGiven for a payment breakdown against the
// invoice total, leaving the tendered channels untouched.
func Reconcile(payment domain.PaymentDetails, invoiceTotal decimal.Decimal) domain.PaymentDetails {
	payment.ChangeGiven = ChangeGiven(payment.Tendered(), invoiceTotal)
	return payment
}

// RoundDisplay rounds to 2 decimal places, half up. Only used when a value
// leaves the engine (responses, persistence, receipts) so repeated
// recomputation never accumulates rounding drift.
func RoundDisplay(value decimal.Decimal) decimal.Decimal {
	return value.Round(2)
}

// RoundRecord applies display rounding to every monetary field of a sale
// record before it is handed to the persistence collaborator.
func RoundRecord(sale domain.SaleRecord) domain.SaleRecord {
	for i := range sale.Items {
		sale.Items[i].UnitPrice = RoundDisplay(sale.Items[i].UnitPrice)
		sale.Items[i].Discount = RoundDisplay(sale.Items[i].Discount)
		sale.Items[i].Total = RoundDisplay(sale.Items[i].Total)
	}
	sale.Subtotal = RoundDisplay(sale.Subtotal)
	sale.Discount = RoundDisplay(sale.Discount)
	sale.Tax = RoundDisplay(sale.Tax)
	sale.Savings = RoundDisplay(sale.Savings)
	sale.ExtraLess = RoundDisplay(sale.ExtraLess)
	sale.Total = RoundDisplay(sale.Total)
	sale.Payment.CashAmount = RoundDisplay(sale.Payment.CashAmount)
	sale.Payment.CardAmount = RoundDisplay(sale.Payment.CardAmount)
	sale.Payment.UPIAmount = RoundDisplay(sale.Payment.UPIAmount)
	sale.Payment.BankTransferAmount = RoundDisplay(sale.Payment.BankTransferAmount)
	sale.Payment.ChangeGiven = RoundDisplay(sale.Payment.ChangeGiven)
	return sale
}

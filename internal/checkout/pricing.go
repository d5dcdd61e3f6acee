package checkout

import (
	"github.com/shopspring/decimal"

	"retail-pos-system/internal/core/domain"
)

// DefaultTaxRate is applied when the deployment does not configure checkout.tax_rate.
var DefaultTaxRate = decimal.RequireFromString("0.08")

// Calculator derives checkout totals. It holds no state besides the tax rate.
type Calculator struct {
	taxRate decimal.Decimal
}

// NewCalculator falls back to DefaultTaxRate for a negative rate.
func NewCalculator(taxRate decimal.Decimal) *Calculator {
	if taxRate.IsNegative() {
		taxRate = DefaultTaxRate
	}
	return &Calculator{taxRate: taxRate}
}

func (c *Calculator) TaxRate() decimal.Decimal { return c.taxRate }

// Subtotal is the sum of price x quantity over all lines.
func Subtotal(lines []domain.CartLine) decimal.Decimal {
	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.LineTotal())
	}
	return subtotal
}

// Compute recomputes totals from scratch:
// promotions are summed first and clamped to the subtotal, then credits fill the rest
// of the pre-tax amount, then tax is charged on what is left.
func (c *Calculator) Compute(lines []domain.CartLine, applied []domain.Promotion, useCredits bool, customer *domain.Customer) domain.Totals {
	subtotal := Subtotal(lines)

	discount := decimal.Zero
	for _, promo := range applied {
		discount = discount.Add(promo.Amount(subtotal))
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}

	if useCredits && customer != nil && customer.CreditBalance.IsPositive() {
		creditUsed := decimal.Min(customer.CreditBalance, subtotal.Sub(discount))
		discount = discount.Add(creditUsed)
	}

	taxable := subtotal.Sub(discount)
	tax := taxable.Mul(c.taxRate)

	return domain.Totals{
		Subtotal: subtotal,
		Discount: discount,
		Tax:      tax,
		Total:    taxable.Add(tax),
	}
}

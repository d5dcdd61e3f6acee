package receipt

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"retail-pos-system/internal/core/domain"
)

const invoiceDateLayout = "2006-01-02 15:04:05"

func dollars(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

// Invoice renders the plain-text invoice handed to the customer.
func Invoice(r domain.Receipt) string {
	customer := "Guest"
	if !r.IsGuest() {
		customer = r.CustomerName
		if customer == "" {
			customer = r.Sale.CustomerID
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Sale ID: %s\n", r.SaleID)
	fmt.Fprintf(&b, "Customer: %s\n", customer)
	fmt.Fprintf(&b, "Date: %s\n", r.Sale.CreatedAt.Format(invoiceDateLayout))
	b.WriteString("\nItems:\n")
	for _, l := range r.Sale.Lines {
		fmt.Fprintf(&b, "- %s x%d @ %s\n", l.Name, l.Quantity, dollars(l.Price))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Subtotal: %s\n", dollars(r.Sale.Subtotal))
	fmt.Fprintf(&b, "Discount: -%s\n", dollars(r.Sale.Discount))
	fmt.Fprintf(&b, "Tax: %s\n", dollars(r.Sale.Tax))
	fmt.Fprintf(&b, "Total: %s\n", dollars(r.Sale.Total))
	if !r.IsGuest() {
		fmt.Fprintf(&b, "\nPoints earned: %d\n", r.PointsEarned)
		fmt.Fprintf(&b, "Credit balance: %s\n", dollars(r.NewCreditBalance))
	}
	return b.String()
}

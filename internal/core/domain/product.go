package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Product is a catalog snapshot. The checkout engine never mutates it.
type Product struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	Category string
}

// Validate rejects products that cannot be placed in a cart.
func (p Product) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidProduct)
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("%w: price of %s is negative", ErrInvalidProduct, p.ID)
	}
	return nil
}

// CartLine is a product snapshot with the quantity being bought.
type CartLine struct {
	Product
	Quantity int
}

// LineTotal is price times quantity.
func (l CartLine) LineTotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

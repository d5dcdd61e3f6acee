package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DiscountType is our own type for discount kinds to avoid "magic strings".
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

var hundred = decimal.NewFromInt(100)

// Promotion is read-only reference data from the promotion catalog.
// Exactly one binding applies: ProductID, Category or ApplicableToAll.
type Promotion struct {
	ID              string
	Name            string
	DiscountType    DiscountType
	DiscountValue   decimal.Decimal
	ProductID       string
	Category        string
	ApplicableToAll bool
}

// Validate checks the discount range and the binding.
func (p Promotion) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidPromotion)
	}
	switch p.DiscountType {
	case DiscountPercentage:
		if p.DiscountValue.IsNegative() || p.DiscountValue.GreaterThan(hundred) {
			return fmt.Errorf("%w: %s percentage must be 0-100", ErrInvalidPromotion, p.ID)
		}
	case DiscountFixed:
		if p.DiscountValue.IsNegative() {
			return fmt.Errorf("%w: %s fixed discount cannot be negative", ErrInvalidPromotion, p.ID)
		}
	default:
		return fmt.Errorf("%w: %s has unknown discount type %q", ErrInvalidPromotion, p.ID, p.DiscountType)
	}
	if !p.ApplicableToAll && p.ProductID == "" && p.Category == "" {
		return fmt.Errorf("%w: %s is not bound to a product, a category or the whole cart", ErrInvalidPromotion, p.ID)
	}
	return nil
}

// Matches reports whether the promotion is bound to the given product.
func (p Promotion) Matches(product Product) bool {
	if p.ApplicableToAll {
		return true
	}
	if p.ProductID != "" && p.ProductID == product.ID {
		return true
	}
	return p.Category != "" && p.Category == product.Category
}

// Amount is the discount this promotion contributes for a subtotal.
func (p Promotion) Amount(subtotal decimal.Decimal) decimal.Decimal {
	switch p.DiscountType {
	case DiscountPercentage:
		return subtotal.Mul(p.DiscountValue).Div(hundred)
	case DiscountFixed:
		return p.DiscountValue
	default:
		return decimal.Zero
	}
}

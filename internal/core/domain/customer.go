package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Customer is borrowed from the customer store for the duration of a checkout.
type Customer struct {
	ID            string
	Name          string
	LoyaltyPoints int64
	CreditBalance decimal.Decimal
}

func (c Customer) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidCustomer)
	}
	if c.LoyaltyPoints < 0 {
		return fmt.Errorf("%w: %s has negative loyalty points", ErrInvalidCustomer, c.ID)
	}
	if c.CreditBalance.IsNegative() {
		return fmt.Errorf("%w: %s has a negative credit balance", ErrInvalidCustomer, c.ID)
	}
	return nil
}

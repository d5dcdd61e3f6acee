package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrProductNotFound     = fmt.Errorf("product %w", ErrNotFound)
	ErrCustomerNotFound    = fmt.Errorf("customer %w", ErrNotFound)
	ErrSessionNotFound     = fmt.Errorf("checkout session %w", ErrNotFound)
	ErrSaleNotFound        = fmt.Errorf("sale %w", ErrNotFound)
	ErrInvalidQuantity     = errors.New("quantity must be at least 1")
	ErrLineOutOfRange      = errors.New("cart line index out of range")
	ErrEmptyCart           = errors.New("cart is empty")
	ErrPromotionNotApplied = errors.New("promotion is not applied to this cart")
	ErrInvalidProduct      = errors.New("invalid product")
	ErrInvalidPromotion    = errors.New("invalid promotion")
	ErrInvalidCustomer     = errors.New("invalid customer")
	ErrPersistence         = errors.New("sales storage is unavailable")
	ErrBrokerUnavailable   = errors.New("kafka broker is unavailable")
)

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Totals is derived state. It is recomputed from scratch, never stored on its own.
type Totals struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// SaleLine is one product at the price it was sold for.
type SaleLine struct {
	ProductID string
	Name      string
	Quantity  int
	Price     decimal.Decimal
}

// SaleRecord is what gets handed to the sales store. An empty CustomerID is a guest sale.
type SaleRecord struct {
	IdempotencyKey uuid.UUID
	CustomerID     string
	Lines          []SaleLine
	Subtotal       decimal.Decimal
	Tax            decimal.Decimal
	Discount       decimal.Decimal
	Total          decimal.Decimal
	PromotionIDs   []string
	CreditsUsed    decimal.Decimal
	CreatedAt      time.Time
}

// Receipt is the immutable outcome of a settled checkout.
type Receipt struct {
	SaleID       string
	Sale         SaleRecord
	CustomerName string
	PointsEarned int64
	// RemainingCredit is the balance left after redemption, before points are added.
	RemainingCredit decimal.Decimal
	// NewCreditBalance is what the customer store was asked to persist.
	NewCreditBalance decimal.Decimal
}

// IsGuest reports whether the sale had no customer attached.
func (r Receipt) IsGuest() bool {
	return r.Sale.CustomerID == ""
}

// SessionSnapshot is a read-only copy of a checkout session handed to callers.
type SessionSnapshot struct {
	ID                string
	Lines             []CartLine
	AppliedPromotions []Promotion
	Customer          *Customer
	UseCredits        bool
	Totals            Totals
}

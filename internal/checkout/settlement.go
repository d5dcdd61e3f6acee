package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"retail-pos-system/internal/core/domain"
	"retail-pos-system/internal/core/ports"
)

var pointsDivisor = decimal.NewFromInt(10)

// Settlement turns a priced cart into a persisted sale and updates the customer's stored balance.
// It does not own the session; resetting the cart is the caller's job.
type Settlement struct {
	sales   ports.SaleRepository
	credits ports.CustomerCreditUpdater
	now     func() time.Time
}

func NewSettlement(sales ports.SaleRepository, credits ports.CustomerCreditUpdater) *Settlement {
	return &Settlement{
		sales:   sales,
		credits: credits,
		now:     time.Now,
	}
}

// PointsEarned is floor(total / 10).
func PointsEarned(total decimal.Decimal) int64 {
	if !total.IsPositive() {
		return 0
	}
	return total.Div(pointsDivisor).Floor().IntPart()
}

// Checkout persists the sale and, for a known customer, overwrites the stored balance with
// remaining credit plus earned points. Both quantities share one field in the customer store.
func (s *Settlement) Checkout(
	ctx context.Context,
	idempotencyKey uuid.UUID,
	lines []domain.CartLine,
	customer *domain.Customer,
	totals domain.Totals,
	applied []domain.Promotion,
	useCredits bool,
) (*domain.Receipt, error) {
	if len(lines) == 0 {
		return nil, domain.ErrEmptyCart
	}

	creditsUsed := decimal.Zero
	if useCredits && customer != nil {
		creditsUsed = decimal.Min(customer.CreditBalance, totals.Discount)
	}

	sale := domain.SaleRecord{
		IdempotencyKey: idempotencyKey,
		Lines:          make([]domain.SaleLine, 0, len(lines)),
		Subtotal:       totals.Subtotal,
		Tax:            totals.Tax,
		Discount:       totals.Discount,
		Total:          totals.Total,
		PromotionIDs:   make([]string, 0, len(applied)),
		CreditsUsed:    creditsUsed,
		CreatedAt:      s.now(),
	}
	if customer != nil {
		sale.CustomerID = customer.ID
	}
	for _, line := range lines {
		sale.Lines = append(sale.Lines, domain.SaleLine{
			ProductID: line.ID,
			Name:      line.Name,
			Quantity:  line.Quantity,
			Price:     line.Price,
		})
	}
	for _, promo := range applied {
		sale.PromotionIDs = append(sale.PromotionIDs, promo.ID)
	}

	saleID, err := s.sales.CreateSale(ctx, sale)
	if err != nil {
		return nil, fmt.Errorf("%w: create sale: %w", domain.ErrPersistence, err)
	}

	receipt := &domain.Receipt{
		SaleID: saleID,
		Sale:   sale,
	}
	if customer == nil {
		return receipt, nil
	}

	points := PointsEarned(totals.Total)
	remaining := customer.CreditBalance
	if useCredits {
		remaining = decimal.Max(decimal.Zero, customer.CreditBalance.Sub(creditsUsed))
	}
	newBalance := remaining.Add(decimal.NewFromInt(points))

	if err := s.credits.SetCustomerCredit(ctx, customer.ID, newBalance); err != nil {
		return nil, fmt.Errorf("%w: update credit of customer %s: %w", domain.ErrPersistence, customer.ID, err)
	}

	receipt.CustomerName = customer.Name
	receipt.PointsEarned = points
	receipt.RemainingCredit = remaining
	receipt.NewCreditBalance = newBalance
	return receipt, nil
}

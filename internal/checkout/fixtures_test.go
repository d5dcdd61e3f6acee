package checkout

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"retail-pos-system/internal/core/domain"
)

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func product(id, category, price string) domain.Product {
	return domain.Product{ID: id, Name: "Product " + id, Price: money(price), Category: category}
}

func percentOff(id string, value string) domain.Promotion {
	return domain.Promotion{ID: id, Name: id, DiscountType: domain.DiscountPercentage, DiscountValue: money(value)}
}

func fixedOff(id string, value string) domain.Promotion {
	return domain.Promotion{ID: id, Name: id, DiscountType: domain.DiscountFixed, DiscountValue: money(value)}
}

func promotionIDs(promos []domain.Promotion) []string {
	ids := make([]string, 0, len(promos))
	for _, p := range promos {
		ids = append(ids, p.ID)
	}
	return ids
}

// Mock - implementation of the sales store
type MockSaleRepository struct {
	mock.Mock
}

func (m *MockSaleRepository) CreateSale(ctx context.Context, sale domain.SaleRecord) (string, error) {
	args := m.Called(ctx, sale)
	return args.String(0), args.Error(1)
}

// Mock - implementation of the customer credit store
type MockCreditUpdater struct {
	mock.Mock
}

func (m *MockCreditUpdater) SetCustomerCredit(ctx context.Context, customerID string, newBalance decimal.Decimal) error {
	args := m.Called(ctx, customerID, newBalance)
	return args.Error(0)
}

func assertMoney(t assertT, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	if !money(want).Equal(got) {
		t.Errorf("expected %s, got %s %v", want, got.String(), msgAndArgs)
	}
}

type assertT interface {
	Helper()
	Errorf(format string, args ...interface{})
}

package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"retail-pos-system/internal/core/domain"
)

// ProductCatalog is an "outgoing port". It defines WHAT we need from product storage, but not HOW.
type ProductCatalog interface {
	// LookupProduct fails with domain.ErrProductNotFound when the id is unknown.
	LookupProduct(ctx context.Context, id string) (domain.Product, error)
}

// CustomerDirectory resolves customers by id.
type CustomerDirectory interface {
	// LookupCustomer fails with domain.ErrCustomerNotFound when the id is unknown.
	LookupCustomer(ctx context.Context, id string) (domain.Customer, error)
}

// PromotionCatalog returns a read-only snapshot of every promotion.
type PromotionCatalog interface {
	ListPromotions(ctx context.Context) ([]domain.Promotion, error)
}

// SaleRepository persists settled sales. CreateSale must be idempotent on SaleRecord.IdempotencyKey
// and return the id of the already stored sale on a repeated key.
type SaleRepository interface {
	CreateSale(ctx context.Context, sale domain.SaleRecord) (string, error)
}

// CustomerCreditUpdater overwrites a customer's stored balance (last write wins).
type CustomerCreditUpdater interface {
	SetCustomerCredit(ctx context.Context, customerID string, newBalance decimal.Decimal) error
}

// MessageBroker is another outgoing port for sending messages.
type MessageBroker interface {
	PublishSaleCompleted(ctx context.Context, receipt domain.Receipt) error
}

// ReceiptJournal keeps settled receipts for invoice reprints.
type ReceiptJournal interface {
	Append(ctx context.Context, receipt domain.Receipt) error
	Get(ctx context.Context, saleID string) (domain.Receipt, error)
}

// RateLimiterRepository answers whether another request fits into the window for key.
type RateLimiterRepository interface {
	IsAllowed(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// CheckoutService is an "incoming port" that defines how the outside world drives checkout sessions.
// Every method returns the session state after the operation; on error the session is unchanged.
type CheckoutService interface {
	OpenSession(ctx context.Context) (domain.SessionSnapshot, error)
	Session(ctx context.Context, sessionID string) (domain.SessionSnapshot, error)
	CancelSession(ctx context.Context, sessionID string) error
	AddProduct(ctx context.Context, sessionID, productID string) (domain.SessionSnapshot, []domain.Promotion, error)
	RemoveLine(ctx context.Context, sessionID string, index int) (domain.SessionSnapshot, error)
	SetQuantity(ctx context.Context, sessionID string, index, quantity int) (domain.SessionSnapshot, error)
	RemovePromotion(ctx context.Context, sessionID, promotionID string) (domain.SessionSnapshot, error)
	AttachCustomer(ctx context.Context, sessionID, customerID string) (domain.SessionSnapshot, error)
	DetachCustomer(ctx context.Context, sessionID string) (domain.SessionSnapshot, error)
	SetUseCredits(ctx context.Context, sessionID string, useCredits bool) (domain.SessionSnapshot, error)
	Checkout(ctx context.Context, sessionID string) (*domain.Receipt, error)
	Invoice(ctx context.Context, saleID string) (string, error)
}

package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"retail-pos-system/internal/core/domain"
)

func newTestSession(t *testing.T, catalog ...domain.Promotion) *Session {
	t.Helper()
	s, err := NewSession("session-1", catalog, NewCalculator(DefaultTaxRate))
	require.NoError(t, err)
	return s
}

func TestNewSession_RejectsInvalidCatalog(t *testing.T) {
	broken := domain.Promotion{ID: "x", DiscountType: "bogo", DiscountValue: money("1"), ApplicableToAll: true}

	_, err := NewSession("s", []domain.Promotion{broken}, nil)

	assert.ErrorIs(t, err, domain.ErrInvalidPromotion)
}

func TestSession_AddProduct_DiscoversOnlyNewPromotions(t *testing.T) {
	fruit := percentOff("fruit", "10")
	fruit.Category = "fruit"
	s := newTestSession(t, fruit)

	first, err := s.AddProduct(product("p1", "fruit", "10"))
	require.NoError(t, err)
	second, err := s.AddProduct(product("p1", "fruit", "10"))
	require.NoError(t, err)

	assert.Equal(t, []string{"fruit"}, promotionIDs(first))
	assert.Empty(t, second)

	snap := s.Snapshot()
	require.Len(t, snap.Lines, 1)
	assert.Equal(t, 2, snap.Lines[0].Quantity)
	assert.Equal(t, []string{"fruit"}, promotionIDs(snap.AppliedPromotions))
	assertMoney(t, "20", snap.Totals.Subtotal)
	assertMoney(t, "2", snap.Totals.Discount)
}

func TestSession_AddProduct_InvalidProductChangesNothing(t *testing.T) {
	s := newTestSession(t)

	_, err := s.AddProduct(domain.Product{ID: "  "})

	assert.ErrorIs(t, err, domain.ErrInvalidProduct)
	assert.True(t, s.IsEmpty())
}

func TestSession_DiscoveryReconciliationAsymmetry(t *testing.T) {
	x := fixedOff("X", "1")
	x.ProductID = "P"
	s := newTestSession(t, x)

	_, err := s.AddProduct(product("P", "snacks", "5"))
	require.NoError(t, err)
	_, err = s.AddProduct(product("Q", "drinks", "3"))
	require.NoError(t, err)
	require.Equal(t, []string{"X"}, promotionIDs(s.Snapshot().AppliedPromotions))

	// removing Q, which never qualified for X, keeps X
	require.NoError(t, s.RemoveLine(1))
	assert.Equal(t, []string{"X"}, promotionIDs(s.Snapshot().AppliedPromotions))

	// removing P, the only qualifying line, drops X
	require.NoError(t, s.RemoveLine(0))
	assert.Empty(t, s.Snapshot().AppliedPromotions)
}

func TestSession_ApplicableToAllSurvivesEmptyCart(t *testing.T) {
	all := percentOff("all", "5")
	all.ApplicableToAll = true
	s := newTestSession(t, all)

	_, err := s.AddProduct(product("p1", "fruit", "10"))
	require.NoError(t, err)
	require.NoError(t, s.RemoveLine(0))

	snap := s.Snapshot()
	assert.Equal(t, []string{"all"}, promotionIDs(snap.AppliedPromotions))
	assertMoney(t, "0", snap.Totals.Discount)
	assertMoney(t, "0", snap.Totals.Total)
}

func TestSession_SetQuantity_RecomputesAndRejectsBelowOne(t *testing.T) {
	s := newTestSession(t)
	_, err := s.AddProduct(product("p1", "fruit", "2.50"))
	require.NoError(t, err)

	require.NoError(t, s.SetQuantity(0, 4))
	assertMoney(t, "10", s.Totals().Subtotal)

	err = s.SetQuantity(0, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	assert.Equal(t, 4, s.Snapshot().Lines[0].Quantity)
	assertMoney(t, "10", s.Totals().Subtotal)
}

func TestSession_RemoveLine_OutOfRangeChangesNothing(t *testing.T) {
	s := newTestSession(t)
	_, err := s.AddProduct(product("p1", "fruit", "1"))
	require.NoError(t, err)

	before := s.Snapshot()
	err = s.RemoveLine(3)

	assert.ErrorIs(t, err, domain.ErrLineOutOfRange)
	assert.Equal(t, before, s.Snapshot())
}

func TestSession_RemovePromotion_OverrideUntilNextAdd(t *testing.T) {
	fruit := fixedOff("fruit", "1")
	fruit.Category = "fruit"
	s := newTestSession(t, fruit)

	_, err := s.AddProduct(product("p1", "fruit", "10"))
	require.NoError(t, err)
	require.NoError(t, s.RemovePromotion("fruit"))
	assert.Empty(t, s.Snapshot().AppliedPromotions)
	assertMoney(t, "0", s.Totals().Discount)

	// quantity changes only filter, so the override holds
	require.NoError(t, s.SetQuantity(0, 2))
	assert.Empty(t, s.Snapshot().AppliedPromotions)

	// adding the triggering product again re-discovers it
	found, err := s.AddProduct(product("p1", "fruit", "10"))
	require.NoError(t, err)
	assert.Equal(t, []string{"fruit"}, promotionIDs(found))
}

func TestSession_RemovePromotion_NotApplied(t *testing.T) {
	s := newTestSession(t)

	err := s.RemovePromotion("nope")

	assert.ErrorIs(t, err, domain.ErrPromotionNotApplied)
}

func TestSession_Customer_CreditsAndDetach(t *testing.T) {
	s := newTestSession(t)
	_, err := s.AddProduct(product("p1", "fruit", "50"))
	require.NoError(t, err)

	require.NoError(t, s.AttachCustomer(domain.Customer{ID: "c1", Name: "Ada", CreditBalance: money("20")}))
	s.SetUseCredits(true)
	assertMoney(t, "20", s.Totals().Discount)

	s.DetachCustomer()
	snap := s.Snapshot()
	assert.Nil(t, snap.Customer)
	assert.False(t, snap.UseCredits)
	assertMoney(t, "0", snap.Totals.Discount)
}

func TestSession_AttachCustomer_Invalid(t *testing.T) {
	s := newTestSession(t)

	err := s.AttachCustomer(domain.Customer{ID: "c1", CreditBalance: money("-1")})

	assert.ErrorIs(t, err, domain.ErrInvalidCustomer)
	assert.Nil(t, s.Snapshot().Customer)
}

func TestSession_Checkout_ResetsOnSuccess(t *testing.T) {
	sales := new(MockSaleRepository)
	credits := new(MockCreditUpdater)
	settlement := NewSettlement(sales, credits)
	ctx := context.Background()

	all := percentOff("all", "10")
	all.ApplicableToAll = true
	s := newTestSession(t, all)
	_, err := s.AddProduct(product("p1", "fruit", "10"))
	require.NoError(t, err)

	sales.On("CreateSale", ctx, mock.MatchedBy(func(r domain.SaleRecord) bool {
		return assert.ObjectsAreEqual([]string{"all"}, r.PromotionIDs)
	})).Return("sale-1", nil)

	receipt, err := s.Checkout(ctx, settlement)

	require.NoError(t, err)
	assert.Equal(t, "sale-1", receipt.SaleID)
	snap := s.Snapshot()
	assert.Empty(t, snap.Lines)
	assert.Empty(t, snap.AppliedPromotions)
	assert.Nil(t, snap.Customer)
	assertMoney(t, "0", snap.Totals.Total)
}

func TestSession_Checkout_FailureKeepsStateAndKey(t *testing.T) {
	sales := new(MockSaleRepository)
	credits := new(MockCreditUpdater)
	settlement := NewSettlement(sales, credits)
	ctx := context.Background()

	s := newTestSession(t)
	_, err := s.AddProduct(product("p1", "fruit", "10"))
	require.NoError(t, err)

	var keys []uuid.UUID
	sales.On("CreateSale", ctx, mock.Anything).Run(func(args mock.Arguments) {
		keys = append(keys, args.Get(1).(domain.SaleRecord).IdempotencyKey)
	}).Return("", errors.New("db down")).Twice()

	before := s.Snapshot()
	_, err = s.Checkout(ctx, settlement)
	assert.ErrorIs(t, err, domain.ErrPersistence)
	_, err = s.Checkout(ctx, settlement)
	assert.ErrorIs(t, err, domain.ErrPersistence)

	assert.Equal(t, before, s.Snapshot())
	require.Len(t, keys, 2)
	assert.Equal(t, keys[0], keys[1], "retries reuse the idempotency key")
}

func TestSession_Checkout_EmptyCart(t *testing.T) {
	sales := new(MockSaleRepository)
	s := newTestSession(t)

	_, err := s.Checkout(context.Background(), NewSettlement(sales, new(MockCreditUpdater)))

	assert.ErrorIs(t, err, domain.ErrEmptyCart)
	sales.AssertNotCalled(t, "CreateSale", mock.Anything, mock.Anything)
}

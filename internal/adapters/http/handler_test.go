package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"retail-pos-system/internal/auth"
	"retail-pos-system/internal/core/domain"
)

// Mock - implementation of the checkout service
type MockCheckoutService struct {
	mock.Mock
}

func (m *MockCheckoutService) OpenSession(ctx context.Context) (domain.SessionSnapshot, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.SessionSnapshot), args.Error(1)
}

func (m *MockCheckoutService) Session(ctx context.Context, sessionID string) (domain.SessionSnapshot, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(domain.SessionSnapshot), args.Error(1)
}

func (m *MockCheckoutService) CancelSession(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}

func (m *MockCheckoutService) AddProduct(ctx context.Context, sessionID, productID string) (domain.SessionSnapshot, []domain.Promotion, error) {
	args := m.Called(ctx, sessionID, productID)
	promos, _ := args.Get(1).([]domain.Promotion)
	return args.Get(0).(domain.SessionSnapshot), promos, args.Error(2)
}

func (m *MockCheckoutService) RemoveLine(ctx context.Context, sessionID string, index int) (domain.SessionSnapshot, error) {
	args := m.Called(ctx, sessionID, index)
	return args.Get(0).(domain.SessionSnapshot), args.Error(1)
}

func (m *MockCheckoutService) SetQuantity(ctx context.Context, sessionID string, index, quantity int) (domain.SessionSnapshot, error) {
	args := m.Called(ctx, sessionID, index, quantity)
	return args.Get(0).(domain.SessionSnapshot), args.Error(1)
}

func (m *MockCheckoutService) RemovePromotion(ctx context.Context, sessionID, promotionID string) (domain.SessionSnapshot, error) {
	args := m.Called(ctx, sessionID, promotionID)
	return args.Get(0).(domain.SessionSnapshot), args.Error(1)
}

func (m *MockCheckoutService) AttachCustomer(ctx context.Context, sessionID, customerID string) (domain.SessionSnapshot, error) {
	args := m.Called(ctx, sessionID, customerID)
	return args.Get(0).(domain.SessionSnapshot), args.Error(1)
}

func (m *MockCheckoutService) DetachCustomer(ctx context.Context, sessionID string) (domain.SessionSnapshot, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(domain.SessionSnapshot), args.Error(1)
}

func (m *MockCheckoutService) SetUseCredits(ctx context.Context, sessionID string, useCredits bool) (domain.SessionSnapshot, error) {
	args := m.Called(ctx, sessionID, useCredits)
	return args.Get(0).(domain.SessionSnapshot), args.Error(1)
}

func (m *MockCheckoutService) Checkout(ctx context.Context, sessionID string) (*domain.Receipt, error) {
	args := m.Called(ctx, sessionID)
	r, _ := args.Get(0).(*domain.Receipt)
	return r, args.Error(1)
}

func (m *MockCheckoutService) Invoice(ctx context.Context, saleID string) (string, error) {
	args := m.Called(ctx, saleID)
	return args.String(0), args.Error(1)
}

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newRouter(svc *MockCheckoutService) http.Handler {
	r := chi.NewRouter()
	NewCheckoutHandler(svc, discardLogger()).Routes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

var sampleSnapshot = domain.SessionSnapshot{
	ID: "s1",
	Lines: []domain.CartLine{{
		Product:  domain.Product{ID: "p1", Name: "Apple", Price: decimal.RequireFromString("2.5"), Category: "fruit"},
		Quantity: 2,
	}},
	Totals: domain.Totals{
		Subtotal: decimal.RequireFromString("5"),
		Discount: decimal.Zero,
		Tax:      decimal.RequireFromString("0.4"),
		Total:    decimal.RequireFromString("5.4"),
	},
}

func TestCheckoutHandler_AddItem(t *testing.T) {
	// --- Arrange ---
	svc := new(MockCheckoutService)
	promo := domain.Promotion{ID: "P10", Name: "Fruit", DiscountType: domain.DiscountPercentage, DiscountValue: decimal.RequireFromString("10"), Category: "fruit"}
	svc.On("AddProduct", mock.Anything, "s1", "p1").Return(sampleSnapshot, []domain.Promotion{promo}, nil)

	// --- Act ---
	rec := do(t, newRouter(svc), http.MethodPost, "/sessions/s1/items", `{"product_id":"p1"}`)

	// --- Assert ---
	require.Equal(t, http.StatusOK, rec.Code)
	var body sessionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "s1", body.ID)
	require.Len(t, body.Lines, 1)
	assert.True(t, decimal.RequireFromString("5").Equal(body.Lines[0].LineTotal))
	assert.True(t, decimal.RequireFromString("5.4").Equal(body.Totals.Total))
	require.Len(t, body.DiscoveredPromotions, 1)
	assert.Equal(t, "P10", body.DiscoveredPromotions[0].ID)
	svc.AssertExpectations(t)
}

func TestCheckoutHandler_AddItem_MissingProduct(t *testing.T) {
	svc := new(MockCheckoutService)

	rec := do(t, newRouter(svc), http.MethodPost, "/sessions/s1/items", `{}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "AddProduct", mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckoutHandler_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"unknown product", fmt.Errorf("%w: x", domain.ErrProductNotFound), http.StatusNotFound},
		{"unknown session", domain.ErrSessionNotFound, http.StatusNotFound},
		{"invalid quantity", domain.ErrInvalidQuantity, http.StatusBadRequest},
		{"line out of range", domain.ErrLineOutOfRange, http.StatusBadRequest},
		{"empty cart", domain.ErrEmptyCart, http.StatusConflict},
		{"promotion not applied", domain.ErrPromotionNotApplied, http.StatusConflict},
		{"storage down", fmt.Errorf("%w: create sale: boom", domain.ErrPersistence), http.StatusServiceUnavailable},
		{"anything else", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := new(MockCheckoutService)
			svc.On("SetQuantity", mock.Anything, "s1", 0, 3).Return(domain.SessionSnapshot{}, tc.err)

			rec := do(t, newRouter(svc), http.MethodPut, "/sessions/s1/items/0", `{"quantity":3}`)

			assert.Equal(t, tc.status, rec.Code)
			var body ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.NotEmpty(t, body.Error)
			if tc.status >= 500 {
				assert.NotContains(t, body.Error, "boom")
			}
		})
	}
}

func TestCheckoutHandler_RemoveItem_BadIndex(t *testing.T) {
	svc := new(MockCheckoutService)

	rec := do(t, newRouter(svc), http.MethodDelete, "/sessions/s1/items/first", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckoutHandler_SetCredits_RequiresFlag(t *testing.T) {
	svc := new(MockCheckoutService)
	svc.On("SetUseCredits", mock.Anything, "s1", false).Return(sampleSnapshot, nil)
	router := newRouter(svc)

	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodPut, "/sessions/s1/credits", `{}`).Code)
	assert.Equal(t, http.StatusOK, do(t, router, http.MethodPut, "/sessions/s1/credits", `{"use_credits":false}`).Code)
	svc.AssertExpectations(t)
}

func TestCheckoutHandler_Checkout(t *testing.T) {
	// --- Arrange ---
	svc := new(MockCheckoutService)
	rcpt := &domain.Receipt{
		SaleID: "17",
		Sale: domain.SaleRecord{
			Total:     decimal.RequireFromString("5.4"),
			CreatedAt: time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC),
		},
	}
	svc.On("Checkout", mock.Anything, "s1").Return(rcpt, nil)

	// --- Act ---
	rec := do(t, newRouter(svc), http.MethodPost, "/sessions/s1/checkout", "")

	// --- Assert ---
	require.Equal(t, http.StatusCreated, rec.Code)
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "17", body["sale_id"])
	assert.Equal(t, "5.4", body["total"])
}

func TestCheckoutHandler_Invoice(t *testing.T) {
	svc := new(MockCheckoutService)
	svc.On("Invoice", mock.Anything, "17").Return("Sale ID: 17\n", nil)

	rec := do(t, newRouter(svc), http.MethodGet, "/receipts/17/invoice", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "Sale ID: 17\n", rec.Body.String())
}

func TestCheckoutHandler_CancelSession(t *testing.T) {
	svc := new(MockCheckoutService)
	svc.On("CancelSession", mock.Anything, "s1").Return(nil)

	rec := do(t, newRouter(svc), http.MethodDelete, "/sessions/s1", "")

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func signed(t *testing.T, key []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "till-7",
		"roles": []string{auth.RoleTerminal},
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	s, err := token.SignedString(key)
	require.NoError(t, err)
	return s
}

func TestJWTMiddleware(t *testing.T) {
	secret := []byte("s3cret")
	var seen string
	h := JWTMiddleware(secret, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = auth.Subject(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/s1", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/sessions/s1", nil)
	req.Header.Set("Authorization", "Bearer "+signed(t, secret))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "till-7", seen)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/sessions/s1", nil)
	req.Header.Set("Authorization", "Bearer "+signed(t, []byte("other")))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

type MockLimiter struct {
	mock.Mock
}

func (m *MockLimiter) IsAllowed(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func TestRateLimiterMiddleware(t *testing.T) {
	limiter := new(MockLimiter)
	limiter.On("IsAllowed", mock.Anything, "ip:10.0.0.1", 2, time.Minute).Return(true, nil).Once()
	limiter.On("IsAllowed", mock.Anything, "ip:10.0.0.1", 2, time.Minute).Return(false, nil).Once()
	limiter.On("IsAllowed", mock.Anything, "ip:10.0.0.2", 2, time.Minute).Return(false, fmt.Errorf("redis down"))
	mw := NewRateLimiterMiddleware(limiter, 2, time.Minute, discardLogger())
	h := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }))

	call := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1:5000"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:5000"))
	assert.Equal(t, http.StatusOK, call("10.0.0.2:5000"), "limiter failures fail open")
}

func TestRateLimiterMiddleware_BareRemoteAddr(t *testing.T) {
	// Arrange
	limiter := new(MockLimiter)
	limiter.On("IsAllowed", mock.Anything, "ip:10.0.0.3", 1, time.Minute).Return(false, nil).Once()
	mw := NewRateLimiterMiddleware(limiter, 1, time.Minute, discardLogger())
	h := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }))
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "10.0.0.3"
	rec := httptest.NewRecorder()

	// Act
	h.ServeHTTP(rec, req)

	// Assert
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	limiter.AssertExpectations(t)
}

func TestRateLimiterMiddleware_AfterJWTLimitsBySubject(t *testing.T) {
	// Arrange
	secret := []byte("s3cret")
	limiter := new(MockLimiter)
	limiter.On("IsAllowed", mock.Anything, "sub:till-7", 5, time.Minute).Return(false, nil).Once()
	mw := NewRateLimiterMiddleware(limiter, 5, time.Minute, discardLogger())
	h := JWTMiddleware(secret, discardLogger())(mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
	req.RemoteAddr = "10.0.0.4:5000"
	req.Header.Set("Authorization", "Bearer "+signed(t, secret))
	rec := httptest.NewRecorder()

	// Act
	h.ServeHTTP(rec, req)

	// Assert
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	limiter.AssertExpectations(t)
}

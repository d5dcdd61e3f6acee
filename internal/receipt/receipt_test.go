package receipt

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retail-pos-system/internal/core/domain"
)

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleReceipt(customerID string) domain.Receipt {
	r := domain.Receipt{
		SaleID: "42",
		Sale: domain.SaleRecord{
			IdempotencyKey: uuid.MustParse("6f1c7e0a-4a4b-4f0e-9a55-0c1b2d3e4f50"),
			CustomerID:     customerID,
			Lines: []domain.SaleLine{
				{ProductID: "p1", Name: "Apple", Quantity: 3, Price: money("0.5")},
				{ProductID: "p2", Name: "Bread", Quantity: 1, Price: money("2.25")},
			},
			Subtotal:     money("3.75"),
			Discount:     money("0.375"),
			Tax:          money("0.27"),
			Total:        money("3.645"),
			PromotionIDs: []string{"P10"},
			CreditsUsed:  decimal.Zero,
			CreatedAt:    time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		},
	}
	if customerID != "" {
		r.CustomerName = "Ada"
		r.PointsEarned = 0
		r.RemainingCredit = money("5")
		r.NewCreditBalance = money("5")
	}
	return r
}

func TestEncodeDecode_RoundTripsReceipt(t *testing.T) {
	// Arrange
	original := sampleReceipt("c1")

	// Act
	payload, err := Encode(original)
	require.NoError(t, err)
	decoded, err := Decode(payload)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, original.SaleID, decoded.SaleID)
	assert.Equal(t, original.Sale.IdempotencyKey, decoded.Sale.IdempotencyKey)
	assert.Equal(t, "c1", decoded.Sale.CustomerID)
	assert.Equal(t, "Ada", decoded.CustomerName)
	assert.True(t, original.Sale.CreatedAt.Equal(decoded.Sale.CreatedAt))
	require.Len(t, decoded.Sale.Lines, 2)
	assert.True(t, money("2.25").Equal(decoded.Sale.Lines[1].Price))
	assert.True(t, money("3.645").Equal(decoded.Sale.Total))
	assert.True(t, money("5").Equal(decoded.NewCreditBalance))
	assert.Equal(t, []string{"P10"}, decoded.Sale.PromotionIDs)
}

func TestEncode_GuestOmitsCustomer(t *testing.T) {
	payload, err := Encode(sampleReceipt(""))

	require.NoError(t, err)
	assert.NotContains(t, string(payload), "customer_id")
	assert.Contains(t, string(payload), `"total":"3.645"`)
}

func TestDecode_RejectsBrokenPayloads(t *testing.T) {
	_, err := Decode([]byte(`{"sale_id":`))
	assert.Error(t, err)

	_, err = Decode([]byte(`{"sale_id":"1","idempotency_key":"nope","created_at":"2026-01-01T00:00:00Z"}`))
	assert.ErrorContains(t, err, "idempotency key")
}

func TestInvoice_Guest(t *testing.T) {
	text := Invoice(sampleReceipt(""))

	expected := "Sale ID: 42\n" +
		"Customer: Guest\n" +
		"Date: 2026-03-14 09:26:53\n" +
		"\nItems:\n" +
		"- Apple x3 @ $0.50\n" +
		"- Bread x1 @ $2.25\n" +
		"\n" +
		"Subtotal: $3.75\n" +
		"Discount: -$0.38\n" +
		"Tax: $0.27\n" +
		"Total: $3.65\n"
	assert.Equal(t, expected, text)
}

func TestInvoice_CustomerShowsLoyalty(t *testing.T) {
	text := Invoice(sampleReceipt("c1"))

	assert.Contains(t, text, "Customer: Ada\n")
	assert.Contains(t, text, "Points earned: 0\n")
	assert.Contains(t, text, "Credit balance: $5.00\n")
}

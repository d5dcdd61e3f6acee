package pebble

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retail-pos-system/internal/core/domain"
)

func newReceipt(id string) domain.Receipt {
	return domain.Receipt{
		SaleID: id,
		Sale: domain.SaleRecord{
			IdempotencyKey: uuid.New(),
			Lines:          []domain.SaleLine{{ProductID: "p1", Name: "Apple", Quantity: 1, Price: decimal.RequireFromString("1.5")}},
			Total:          decimal.RequireFromString("1.62"),
			CreatedAt:      time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		},
	}
}

func TestJournal_AppendGetList(t *testing.T) {
	// Arrange
	ctx := context.Background()
	j, err := NewJournal(t.TempDir())
	require.NoError(t, err)
	defer j.Close()

	// Act
	require.NoError(t, j.Append(ctx, newReceipt("1")))
	require.NoError(t, j.Append(ctx, newReceipt("2")))
	got, err := j.Get(ctx, "2")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "2", got.SaleID)
	assert.True(t, decimal.RequireFromString("1.62").Equal(got.Sale.Total))

	all, err := j.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	one, err := j.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, one, 1)
}

func TestJournal_MissingAndDeleted(t *testing.T) {
	ctx := context.Background()
	j, err := NewJournal(t.TempDir())
	require.NoError(t, err)
	defer j.Close()

	_, err = j.Get(ctx, "404")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, j.Append(ctx, newReceipt("9")))
	require.NoError(t, j.Delete(ctx, "9"))
	_, err = j.Get(ctx, "9")
	assert.ErrorIs(t, err, domain.ErrSaleNotFound)
}

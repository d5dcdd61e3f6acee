package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"retail-pos-system/internal/audit"
	"retail-pos-system/internal/core/domain"
	"retail-pos-system/internal/receipt"
)

type MockStore struct{ mock.Mock }

func (m *MockStore) RecordSale(ctx context.Context, r domain.Receipt, verdict audit.Result) error {
	return m.Called(ctx, r, verdict).Error(0)
}

type MockDLQ struct{ mock.Mock }

func (m *MockDLQ) Send(ctx context.Context, original *kgo.Record, errorType, errorString string) {
	m.Called(ctx, original, errorType, errorString)
}

type fixedVerdict audit.Result

func (v fixedVerdict) Audit(context.Context, domain.Receipt) audit.Result { return audit.Result(v) }

func saleRecord(t *testing.T) *kgo.Record {
	t.Helper()
	payload, err := receipt.Encode(domain.Receipt{
		SaleID: "42",
		Sale: domain.SaleRecord{
			IdempotencyKey: uuid.New(),
			Total:          decimal.RequireFromString("10.80"),
			CreatedAt:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		},
	})
	require.NoError(t, err)
	return &kgo.Record{Topic: "sales.completed", Key: []byte("42"), Value: payload}
}

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestProcessRecord_StoresAuditedSale(t *testing.T) {
	// Arrange
	record := saleRecord(t)
	verdict := audit.Result{Flagged: true, Reason: "discount ratio"}
	store, dlq := new(MockStore), new(MockDLQ)
	store.On("RecordSale", mock.Anything, mock.MatchedBy(func(r domain.Receipt) bool { return r.SaleID == "42" }), verdict).Return(nil)

	// Act
	processRecord(context.Background(), record, fixedVerdict(verdict), store, dlq, discardLogger())

	// Assert
	store.AssertExpectations(t)
	dlq.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessRecord_InsertFailureGoesToDLQ(t *testing.T) {
	// Arrange
	record := saleRecord(t)
	store, dlq := new(MockStore), new(MockDLQ)
	store.On("RecordSale", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("clickhouse: connection refused"))
	dlq.On("Send", mock.Anything, record, "insert_error", "clickhouse: connection refused").Once()

	// Act
	processRecord(context.Background(), record, fixedVerdict{}, store, dlq, discardLogger())

	// Assert
	dlq.AssertExpectations(t)
}

func TestProcessRecord_UndecodablePayloadGoesToDLQ(t *testing.T) {
	// Arrange
	record := &kgo.Record{Topic: "sales.completed", Value: []byte("{")}
	store, dlq := new(MockStore), new(MockDLQ)
	dlq.On("Send", mock.Anything, record, "unmarshal_error", mock.Anything).Once()

	// Act
	processRecord(context.Background(), record, fixedVerdict{}, store, dlq, discardLogger())

	// Assert
	dlq.AssertExpectations(t)
	store.AssertNotCalled(t, "RecordSale", mock.Anything, mock.Anything, mock.Anything)
}

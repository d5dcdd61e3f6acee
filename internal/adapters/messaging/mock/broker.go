package mock

import (
	"context"
	"log/slog"

	"retail-pos-system/internal/core/domain"
)

// Broker - stub for MessageBroker, used when no Kafka cluster is configured.
type Broker struct {
	logger *slog.Logger
}

func NewBroker(logger *slog.Logger) *Broker {
	return &Broker{logger: logger}
}

func (b *Broker) Close() {}

func (b *Broker) PublishSaleCompleted(ctx context.Context, r domain.Receipt) error {
	// Пока просто логируем сообщение вместо отправки в Kafka
	b.logger.Info("[MOCK] sale completed",
		"sale_id", r.SaleID,
		"total", r.Sale.Total.StringFixed(2),
		"customer_id", r.Sale.CustomerID,
	)
	return nil
}

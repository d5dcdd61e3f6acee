package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"retail-pos-system/internal/core/domain"
	"retail-pos-system/internal/receipt"
)

const eventType = "sale.completed"

// Broker is an implementation of the MessageBroker port for Kafka.
type Broker struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewBroker creates a new Kafka broker instance.
func NewBroker(ctx context.Context, bootstrapServers []string, topic string, logger *slog.Logger) (*Broker, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(bootstrapServers...),
		kgo.DefaultProduceTopic(topic),
		kgo.AllowAutoTopicCreation(),       // Удобно для локальной разработки
		kgo.RequiredAcks(kgo.AllISRAcks()), // Гарантируем, что сообщение получено всеми репликами
		kgo.RecordDeliveryTimeout(10 * time.Second),
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать kafka-клиент: %w", err)
	}

	// Checking the connection
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %w", domain.ErrBrokerUnavailable, err)
	}

	return &Broker{
		client: client,
		topic:  topic,
		logger: logger,
	}, nil
}

// PublishSaleCompleted publishes a settled receipt. The record is keyed by sale id so every event
// of one sale lands on one partition. Delivery is asynchronous; failures are logged by the callback.
func (b *Broker) PublishSaleCompleted(ctx context.Context, r domain.Receipt) error {
	payload, err := receipt.Encode(r)
	if err != nil {
		return err
	}

	record := &kgo.Record{
		Key:   []byte(r.SaleID),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "idempotency_key", Value: []byte(r.Sale.IdempotencyKey.String())},
		},
	}

	b.wg.Add(1)
	// The sale is already committed, so delivery must not be cancelled with the request context.
	b.client.Produce(context.WithoutCancel(ctx), record, func(r *kgo.Record, err error) {
		defer b.wg.Done()
		if err != nil {
			b.logger.Error("не удалось доставить сообщение в kafka", "topic", r.Topic, "sale_id", string(r.Key), "error", err)
		} else {
			b.logger.Debug("сообщение успешно доставлено в kafka", "topic", r.Topic, "partition", r.Partition, "offset", r.Offset)
		}
	})

	return nil
}

// Close gracefully stops the producer.
func (b *Broker) Close() {
	b.logger.Info("ожидание завершения отправки сообщений в kafka...")
	b.wg.Wait() // Ждём, пока все колбэки отработают
	b.client.Close()
	b.logger.Info("kafka-клиент успешно остановлен")
}

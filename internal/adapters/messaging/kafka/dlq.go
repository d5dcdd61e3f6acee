package kafka

import (
	"context"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Headers attached to every dead-lettered record.
const (
	HeaderErrorType     = "error_type"
	HeaderErrorString   = "error_string"
	HeaderOriginalTopic = "original_topic"
)

// DLQ forwards records that could not be processed to the dead-letter topic.
type DLQ struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

func NewDLQ(client *kgo.Client, topic string, logger *slog.Logger) *DLQ {
	return &DLQ{client: client, topic: topic, logger: logger}
}

func (d *DLQ) Topic() string { return d.topic }

// Send copies the original record with failure metadata in its headers.
func (d *DLQ) Send(ctx context.Context, original *kgo.Record, errorType, errorString string) {
	d.client.Produce(ctx, DeadLetter(d.topic, original, errorType, errorString), func(r *kgo.Record, err error) {
		if err != nil {
			// Критическая ошибка: потеря сообщения в DLQ недопустима.
			d.logger.Error("не удалось отправить сообщение в DLQ", "key", string(r.Key), "error", err)
		}
	})
}

// DeadLetter builds the record that Send produces.
func DeadLetter(topic string, original *kgo.Record, errorType, errorString string) *kgo.Record {
	return &kgo.Record{
		Topic: topic,
		Value: original.Value,
		Key:   original.Key,
		Headers: []kgo.RecordHeader{
			{Key: HeaderErrorType, Value: []byte(errorType)},
			{Key: HeaderErrorString, Value: []byte(errorString)},
			{Key: HeaderOriginalTopic, Value: []byte(original.Topic)},
		},
	}
}

// ErrorHeaders extracts error_type and error_string, "N/A" when missing.
func ErrorHeaders(headers []kgo.RecordHeader) (errorType, errorString string) {
	errorType, errorString = "N/A", "N/A"
	for _, h := range headers {
		switch h.Key {
		case HeaderErrorType:
			errorType = string(h.Value)
		case HeaderErrorString:
			errorString = string(h.Value)
		}
	}
	return errorType, errorString
}

package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/twmb/franz-go/pkg/kgo"
)

func TestDeadLetter_CarriesFailureMetadata(t *testing.T) {
	original := &kgo.Record{Topic: "sales.completed", Key: []byte("42"), Value: []byte("{")}

	dl := DeadLetter("sales.completed.dlq", original, "unmarshal_error", "unexpected EOF")

	assert.Equal(t, "sales.completed.dlq", dl.Topic)
	assert.Equal(t, original.Key, dl.Key)
	assert.Equal(t, original.Value, dl.Value)
	errorType, errorString := ErrorHeaders(dl.Headers)
	assert.Equal(t, "unmarshal_error", errorType)
	assert.Equal(t, "unexpected EOF", errorString)
}

func TestErrorHeaders_Missing(t *testing.T) {
	errorType, errorString := ErrorHeaders(nil)

	assert.Equal(t, "N/A", errorType)
	assert.Equal(t, "N/A", errorString)
}

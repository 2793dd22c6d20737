package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func newTestProducer(w MessageWriter) *Producer {
	return NewProducerWithWriter(w, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "ecommerce.search.clicked", Topic("search", "clicked"))
}

func TestNewEvent_PopulatesEnvelope(t *testing.T) {
	event, err := NewEvent("search.performed", "rec-1", "search", "discovery-service", map[string]int{"result_count": 3})
	require.NoError(t, err)

	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, 1, event.Version)
	assert.False(t, event.Timestamp.IsZero())

	var data map[string]int
	require.NoError(t, event.UnmarshalData(&data))
	assert.Equal(t, 3, data["result_count"])
}

func TestProducer_Publish_WritesKeyedMessageWithHeaders(t *testing.T) {
	w := &recordingWriter{}
	p := newTestProducer(w)

	event, err := NewEvent("search.clicked", "rec-9", "search", "discovery-service", map[string]string{"slug": "classic-black-hoodie"})
	require.NoError(t, err)
	event.WithCorrelationID("corr-1")

	require.NoError(t, p.Publish(context.Background(), "ecommerce.search.clicked", event))
	require.Len(t, w.messages, 1)

	msg := w.messages[0]
	assert.Equal(t, "ecommerce.search.clicked", msg.Topic)
	assert.Equal(t, []byte("rec-9"), msg.Key)

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "search.clicked", headers["event_type"])
	assert.Equal(t, "corr-1", headers["correlation_id"])

	decoded, err := UnmarshalEvent(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, event.EventID, decoded.EventID)
}

func TestProducer_Publish_WrapsWriterError(t *testing.T) {
	w := &recordingWriter{err: errors.New("leader not available")}
	p := newTestProducer(w)

	event, err := NewEvent("search.clicked", "rec-9", "search", "discovery-service", nil)
	require.NoError(t, err)

	err = p.Publish(context.Background(), "ecommerce.search.clicked", event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish event to ecommerce.search.clicked")
}

func TestProducer_Close(t *testing.T) {
	w := &recordingWriter{}
	require.NoError(t, newTestProducer(w).Close())
	assert.True(t, w.closed)
}

func TestPingBrokers_NoBrokers(t *testing.T) {
	err := PingBrokers(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no brokers configured")
}

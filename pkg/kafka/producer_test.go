package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewEvent(t *testing.T) {
	e, err := NewEvent("order.completed", "order-1", "order", "membership", map[string]string{"plan": "ultimate"})
	require.NoError(t, err)

	assert.NotEmpty(t, e.EventID)
	assert.Equal(t, 1, e.Version)
	assert.Equal(t, "order.completed", e.EventType)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(e.Data, &payload))
	assert.Equal(t, "ultimate", payload["plan"])
}

func TestNewEvent_UnencodablePayload(t *testing.T) {
	_, err := NewEvent("x", "id", "agg", "src", make(chan int))
	assert.Error(t, err)
}

func TestEvent_RoundTripEnvelope(t *testing.T) {
	e, err := NewEvent("account.registered", "acct-1", "account", "membership", struct{}{})
	require.NoError(t, err)
	e.WithCorrelationID("corr-9")

	b, err := e.Marshal()
	require.NoError(t, err)
	var got Event
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "corr-9", got.CorrelationID)
	assert.Equal(t, "account", got.AggregateType)
}

func TestProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, []string{"localhost:9092"}, quietLogger())

	e, err := NewEvent("membership.activated", "acct-1", "account", "membership", map[string]int{"days": 30})
	require.NoError(t, err)
	e.WithCorrelationID("corr-1")

	before := testutil.ToFloat64(messagesPublished.WithLabelValues("chaos.membership.activated"))
	require.NoError(t, p.Publish(context.Background(), "chaos.membership.activated", e))

	require.Len(t, w.messages, 1)
	msg := w.messages[0]
	assert.Equal(t, "chaos.membership.activated", msg.Topic)
	assert.Equal(t, []byte("acct-1"), msg.Key)

	carrier := headerCarrier{headers: &msg.Headers}
	assert.Equal(t, "membership.activated", carrier.Get("event_type"))
	assert.Equal(t, "corr-1", carrier.Get("correlation_id"))
	assert.Equal(t, before+1, testutil.ToFloat64(messagesPublished.WithLabelValues("chaos.membership.activated")))
}

func TestProducer_PublishError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := NewProducerWithWriter(w, nil, quietLogger())

	e, err := NewEvent("order.failed", "order-1", "order", "membership", nil)
	require.NoError(t, err)

	err = p.Publish(context.Background(), "chaos.order.failed", e)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish event to chaos.order.failed")
}

func TestProducer_PingWithoutBrokers(t *testing.T) {
	p := NewProducerWithWriter(&fakeWriter{}, nil, quietLogger())
	assert.Error(t, p.Ping(context.Background()))
}

func TestProducer_Close(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, NewProducerWithWriter(w, nil, quietLogger()).Close())
	assert.True(t, w.closed)
}

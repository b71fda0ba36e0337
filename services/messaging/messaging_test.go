package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCatalogResult(t *testing.T) {
	evt, err := DecodeCatalogResult([]byte(`{"catalogExecutionId":"12","eventResponse":"CREATE TABLE SUCCESS","message":"ok","profileId":3}`))
	require.NoError(t, err)
	assert.Equal(t, CatalogResultEvent{CatalogExecutionID: 12, EventResponse: "CREATE TABLE SUCCESS", Message: "ok", ProfileID: 3}, evt)

	for _, body := range []string{
		`not json`,
		`{"eventResponse":"x","profileId":3}`,
		`{"catalogExecutionId":4,"profileId":"abc"}`,
		`{"catalogExecutionId":0,"profileId":1}`,
	} {
		_, err := DecodeCatalogResult([]byte(body))
		assert.ErrorIs(t, err, ErrInvalidPayload, body)
	}
}

func TestDecodeProfileUpdate(t *testing.T) {
	evt, err := DecodeProfileUpdate([]byte(`{"profileId":9,"eventResponse":"VALIDATION ERROR"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(9), evt.ProfileID)
	assert.Equal(t, "VALIDATION ERROR", evt.EventResponse)

	_, err = DecodeProfileUpdate([]byte(`{"eventResponse":"VALIDATION ERROR"}`))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

type recordingPublisher struct {
	exchange, routingKey string
	body                 []byte
	err                  error
}

func (p *recordingPublisher) Publish(_ context.Context, exchange, routingKey string, body []byte) error {
	p.exchange, p.routingKey, p.body = exchange, routingKey, body
	return p.err
}

func TestCatalogEventPublisher(t *testing.T) {
	rec := &recordingPublisher{}
	pub := NewCatalogEventPublisher(rec, "catalog", "catalog.request")
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	err := pub.PublishCatalogRequest(context.Background(), CatalogRequestEvent{
		CatalogExecutionID: 5, ConnectionID: 2, EventID: "e-1", EventRequest: "CREATE TABLE", EventTime: at, ProfileID: 7,
	})
	require.NoError(t, err)
	assert.Equal(t, "catalog", rec.exchange)
	assert.Equal(t, "catalog.request", rec.routingKey)
	assert.JSONEq(t, `{"catalogExecutionId":5,"connectionId":2,"eventId":"e-1","eventRequest":"CREATE TABLE","eventTime":"2026-01-02T03:04:05Z","profileId":7}`, string(rec.body))

	rec.err = errors.New("down")
	assert.EqualError(t, pub.PublishCatalogRequest(context.Background(), CatalogRequestEvent{}), "down")
}

type fakeAcknowledger struct {
	mu   sync.Mutex
	acks []uint64
}

func (a *fakeAcknowledger) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks = append(a.acks, tag)
	return nil
}

func (a *fakeAcknowledger) Nack(uint64, bool, bool) error { return nil }
func (a *fakeAcknowledger) Reject(uint64, bool) error     { return nil }

func TestConsumeDeliveries_AcksEveryMessage(t *testing.T) {
	ack := &fakeAcknowledger{}
	deliveries := make(chan amqp.Delivery, 2)
	deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte(`{"profileId":1}`)}
	deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 2, Body: []byte(`garbage`)}
	close(deliveries)

	var seen []string
	consumeDeliveries(context.Background(), "profile", deliveries, func(_ context.Context, body []byte) {
		seen = append(seen, string(body))
	})

	assert.Equal(t, []string{`{"profileId":1}`, `garbage`}, seen)
	assert.Equal(t, []uint64{1, 2}, ack.acks)
}

func TestBroker_PublishWithoutConnection(t *testing.T) {
	b := NewBroker(Config{URL: "amqp://localhost"})
	err := b.Publish(context.Background(), "x", "y", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Equal(t, 5, b.cfg.Prefetch)
	assert.Equal(t, time.Second, b.cfg.ReconnectDelay)
}

func TestBroker_RunRetriesUntilCancelled(t *testing.T) {
	b := NewBroker(Config{URL: "amqp://nowhere", ReconnectDelay: 5 * time.Millisecond})
	var mu sync.Mutex
	attempts := 0
	b.dial = func(string) (*amqp.Connection, error) {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		return nil, errors.New("refused")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	require.NoError(t, b.Run(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Greater(t, attempts, 1)
}

type stubConfirmChannel struct {
	published chan string
}

// PublishWithDeferredConfirmWithContext never confirms "slow" messages and fails every other one.
func (s *stubConfirmChannel) PublishWithDeferredConfirmWithContext(_ context.Context, _, key string, _, _ bool, _ amqp.Publishing) (*amqp.DeferredConfirmation, error) {
	s.published <- key
	if key == "slow" {
		return &amqp.DeferredConfirmation{}, nil
	}
	return nil, errors.New("channel closed")
}

func TestBroker_PublishDoesNotSerializeConfirms(t *testing.T) {
	b := NewBroker(Config{URL: "amqp://localhost"})
	stub := &stubConfirmChannel{published: make(chan string, 2)}
	b.pubCh = stub

	slowCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	slowDone := make(chan error, 1)
	go func() { slowDone <- b.Publish(slowCtx, "catalog", "slow", []byte(`{}`)) }()
	require.Equal(t, "slow", <-stub.published)

	start := time.Now()
	err := b.Publish(context.Background(), "catalog", "fast", []byte(`{}`))
	assert.ErrorContains(t, err, "channel closed")
	assert.Less(t, time.Since(start), time.Second)

	cancel()
	assert.ErrorIs(t, <-slowDone, context.Canceled)
}

package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"dataprofileservice/pkg/logger"
)

// ErrNotConnected is returned by Publish while no broker connection is open.
var ErrNotConnected = errors.New("amqp publisher is not connected")

// Publisher sends raw message bodies.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body []byte) error
}

// Handler processes one delivery body. Deliveries are acknowledged whatever the outcome.
type Handler func(ctx context.Context, body []byte)

// Config holds the broker connection settings.
type Config struct {
	URL            string
	Prefetch       int
	ReconnectDelay time.Duration
}

// confirmChannel is the part of *amqp.Channel used for confirmed publishing.
type confirmChannel interface {
	PublishWithDeferredConfirmWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) (*amqp.DeferredConfirmation, error)
}

type consumer struct {
	queue   string
	handler Handler
}

// Broker keeps one AMQP connection alive, reconnecting after it closes, and serves
// a confirm-mode publisher and durable-queue consumers on it.
type Broker struct {
	cfg       Config
	dial      func(url string) (*amqp.Connection, error)
	consumers []consumer

	mu    sync.Mutex
	conn  *amqp.Connection
	pubCh confirmChannel
}

// NewBroker creates a broker. Call Consume before Run.
func NewBroker(cfg Config) *Broker {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 5
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = time.Second
	}
	return &Broker{cfg: cfg, dial: amqp.Dial}
}

// Consume registers handler for queue.
func (b *Broker) Consume(queue string, handler Handler) {
	b.consumers = append(b.consumers, consumer{queue: queue, handler: handler})
}

// Run connects, starts the publisher and consumers, and reconnects whenever the
// connection closes. It returns when ctx is done.
func (b *Broker) Run(ctx context.Context) error {
	for {
		closed, err := b.connect(ctx)
		if err != nil {
			logger.Errorf("[AMQP] %v", err)
		} else {
			logger.Infof("[AMQP] connected")
			select {
			case <-ctx.Done():
				b.Close()
				return nil
			case amqpErr := <-closed:
				logger.Errorf("[AMQP] connection closed: %v, reconnecting", amqpErr)
				b.reset()
			}
		}

		select {
		case <-ctx.Done():
			b.Close()
			return nil
		case <-time.After(b.cfg.ReconnectDelay):
		}
	}
}

func (b *Broker) connect(ctx context.Context) (chan *amqp.Error, error) {
	conn, err := b.dial(b.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))

	pubCh, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open publisher channel: %w", err)
	}
	if err := pubCh.Confirm(false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable publisher confirms: %w", err)
	}

	b.mu.Lock()
	b.conn, b.pubCh = conn, pubCh
	b.mu.Unlock()
	logger.Infof("[AMQP] Publisher started")

	for _, c := range b.consumers {
		if err := b.startConsumer(ctx, conn, c); err != nil {
			conn.Close()
			b.reset()
			return nil, err
		}
	}
	return closed, nil
}

func (b *Broker) startConsumer(ctx context.Context, conn *amqp.Connection, c consumer) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel for %s: %w", c.queue, err)
	}
	if err := ch.Qos(b.cfg.Prefetch, 0, false); err != nil {
		return fmt.Errorf("set prefetch for %s: %w", c.queue, err)
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", c.queue, err)
	}
	deliveries, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}
	logger.Infof("[AMQP] Consumer started %q", c.queue)
	go consumeDeliveries(ctx, c.queue, deliveries, c.handler)
	return nil
}

// consumeDeliveries runs handler for each delivery and acks it. It returns when
// deliveries closes or ctx is done.
func consumeDeliveries(ctx context.Context, queue string, deliveries <-chan amqp.Delivery, handler Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				logger.Warnf("[AMQP] delivery channel for %q closed", queue)
				return
			}
			handler(ctx, d.Body)
			if err := d.Ack(false); err != nil {
				logger.Errorf("[AMQP] ack on %q failed: %v", queue, err)
			}
		}
	}
}

// Publish sends body and waits for the broker to confirm it. Concurrent publishes
// wait for their confirms independently.
func (b *Broker) Publish(ctx context.Context, exchange, routingKey string, body []byte) error {
	b.mu.Lock()
	pubCh := b.pubCh
	b.mu.Unlock()
	if pubCh == nil {
		return ErrNotConnected
	}
	confirm, err := pubCh.PublishWithDeferredConfirmWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("await publish confirm: %w", err)
	}
	if !acked {
		return fmt.Errorf("publish to %s/%s was nacked", exchange, routingKey)
	}
	logger.Debugf("[AMQP] message delivered to %s/%s", exchange, routingKey)
	return nil
}

func (b *Broker) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conn, b.pubCh = nil, nil
}

// Close closes the current connection, if any.
func (b *Broker) Close() error {
	b.mu.Lock()
	conn := b.conn
	b.conn, b.pubCh = nil, nil
	b.mu.Unlock()
	if conn == nil || conn.IsClosed() {
		return nil
	}
	return conn.Close()
}

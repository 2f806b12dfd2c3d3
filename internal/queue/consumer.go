package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v5"
	amqp "github.com/rabbitmq/amqp091-go"
)

// UnsignedHandler processes one unsigned-transaction event.  A returned
// error rejects the message without requeueing it, except ErrRetryLater.
type UnsignedHandler func(ctx context.Context, ev TransactionUnsignedEvent) error

// ErrInvalidEvent is returned for messages that cannot be processed.
var ErrInvalidEvent = errors.New("invalid event")

// ErrRetryLater may be returned by an UnsignedHandler when the event cannot
// be handled yet.  The message goes back to the queue after a delay.
var ErrRetryLater = errors.New("retry later")

// Consumer drains the transaction.unsigned queue.
type Consumer struct {
	url      string
	handle   UnsignedHandler
	logger   *log.Logger
	prefetch int
	// requeueDelay holds back messages handed back with ErrRetryLater.
	requeueDelay time.Duration
}

// NewConsumer returns a Consumer that passes events to handle.
func NewConsumer(url string, handle UnsignedHandler, logger *log.Logger) *Consumer {
	if logger == nil {
		logger = log.Default()
	}
	return &Consumer{url: url, handle: handle, logger: logger, prefetch: 10, requeueDelay: 5 * time.Second}
}

// Run connects to RabbitMQ, declares the queue and consumes messages until
// ctx is cancelled.  Lost connections are re-established with exponential
// backoff capped at thirty seconds.  Run returns ctx.Err() on shutdown.
func (c *Consumer) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, err := amqp.Dial(c.url)
		if err != nil {
			wait := b.NextBackOff()
			c.logger.Printf("tse-consumer: failed to dial broker: %v; retrying in %s", err, wait)
			if !sleep(ctx, wait) {
				return ctx.Err()
			}
			continue
		}
		b.Reset()

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Printf("tse-consumer: consume loop ended: %v; reconnecting", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		c.logger.Printf("tse-consumer: set QoS failed: %v", err)
	}
	if _, err := declare(ch, UnsignedQueueName); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(UnsignedQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if !c.process(ctx, d) {
				return ctx.Err()
			}
		}
	}
}

// process handles and settles one delivery.  It reports false when ctx
// ended while a message was held back.
func (c *Consumer) process(ctx context.Context, d amqp.Delivery) bool {
	err := c.handleMessage(ctx, d.Body)
	switch {
	case err == nil:
		_ = d.Ack(false)
	case errors.Is(err, ErrRetryLater):
		c.logger.Printf("tse-consumer: %v; requeueing in %s", err, c.requeueDelay)
		alive := sleep(ctx, c.requeueDelay)
		_ = d.Nack(false, true)
		return alive
	default:
		c.logger.Printf("tse-consumer: handle message failed: %v", err)
		_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
	}
	return true
}

func (c *Consumer) handleMessage(ctx context.Context, body []byte) error {
	var ev TransactionUnsignedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("%w: unmarshal: %v", ErrInvalidEvent, err)
	}
	if ev.TransactionID == "" || ev.OrganizationID == "" {
		return fmt.Errorf("%w: missing transaction or organization id", ErrInvalidEvent)
	}
	return c.handle(ctx, ev)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

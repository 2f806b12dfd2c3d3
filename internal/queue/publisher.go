package queue

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends events to RabbitMQ.  It dials per publish; events are
// rare and this keeps the publisher free of connection state.  A nil
// *Publisher drops events.
type Publisher struct {
	url    string
	logger *log.Logger
}

// NewPublisher returns a Publisher for the broker at url, or nil when url
// is empty.
func NewPublisher(url string, logger *log.Logger) *Publisher {
	if url == "" {
		return nil
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Publisher{url: url, logger: logger}
}

// PublishTransactionUnsigned publishes ev to the transaction.unsigned
// queue.  Errors are logged and returned so the caller can ignore them
// without interrupting the main flow.  Messages are marked persistent.
func (p *Publisher) PublishTransactionUnsigned(ctx context.Context, ev TransactionUnsignedEvent) error {
	if p == nil {
		return nil
	}
	body, err := json.Marshal(ev)
	if err != nil {
		p.logger.Printf("rabbitmq: marshal event failed: %v", err)
		return err
	}
	return p.publish(ctx, UnsignedQueueName, body)
}

func (p *Publisher) publish(ctx context.Context, queueName string, body []byte) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.logger.Printf("rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.logger.Printf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := declare(ch, queueName); err != nil {
		p.logger.Printf("rabbitmq: queue declare failed: %v", err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx,
		"",        // default exchange
		queueName, // routing key = queue name
		false,     // mandatory
		false,     // immediate
		pub,
	); err != nil {
		p.logger.Printf("rabbitmq: publish failed: %v", err)
		return err
	}
	return nil
}

// declare ensures the queue exists.  Durable so messages survive broker
// restarts.
func declare(ch *amqp.Channel, name string) (amqp.Queue, error) {
	return ch.QueueDeclare(
		name,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	)
}

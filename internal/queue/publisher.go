package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher publishes UserEvents to a durable RabbitMQ queue. Each call
// dials its own connection; login and registration are low-volume enough
// that a pooled channel is not worth the reconnect bookkeeping.
type Publisher struct {
	URL   string
	Queue string
	Log   *zap.Logger

	dial func(url string) (*amqp.Connection, error)
}

// NewPublisher returns a Publisher for url. An empty queue name falls back
// to DefaultQueueName.
func NewPublisher(url, queue string, log *zap.Logger) *Publisher {
	if queue == "" {
		queue = DefaultQueueName
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{URL: url, Queue: queue, Log: log, dial: amqp.Dial}
}

// Publish sends ev as a persistent JSON message. Failures are logged and
// returned so the caller can decide to ignore them.
func (p *Publisher) Publish(ctx context.Context, ev UserEvent) error {
	log := p.Log.With(zap.String("queue", p.Queue), zap.String("event", ev.Type))

	body, err := json.Marshal(ev)
	if err != nil {
		log.Warn("rabbitmq: marshal event failed", zap.Error(err))
		return fmt.Errorf("marshal event: %w", err)
	}

	conn, err := p.dial(p.URL)
	if err != nil {
		log.Warn("rabbitmq: dial failed", zap.Error(err))
		return fmt.Errorf("dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Warn("rabbitmq: channel open failed", zap.Error(err))
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(p.Queue, true, false, false, false, nil); err != nil {
		log.Warn("rabbitmq: queue declare failed", zap.Error(err))
		return fmt.Errorf("queue declare: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         ev.Type,
		Body:         body,
	}
	// default exchange, routing key = queue name
	if err := ch.PublishWithContext(ctx, "", p.Queue, false, false, pub); err != nil {
		log.Warn("rabbitmq: publish failed", zap.Error(err))
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// NopPublisher discards events. It is used when no broker URL is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, UserEvent) error { return nil }

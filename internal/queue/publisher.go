package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"blog_api/internal/observability"

	amqp "github.com/rabbitmq/amqp091-go"
)

var ErrNotConnected = errors.New("rabbitmq connection is not available")

// Publisher sends post events to a durable queue on the default exchange.
type Publisher struct {
	conn    *amqp.Connection
	queue   string
	metrics *observability.Metrics
}

func NewPublisher(conn *amqp.Connection, queueName string, metrics *observability.Metrics) *Publisher {
	return &Publisher{conn: conn, queue: queueName, metrics: metrics}
}

func (p *Publisher) Publish(ctx context.Context, event PostEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ch, err := CreateChannel(p.conn)
	if err != nil {
		return err
	}
	defer ch.Close()

	err = ch.PublishWithContext(
		ctx,
		"",      // exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Type:         string(event.Type),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}

	p.metrics.QueueMessagesPublished.WithLabelValues(p.queue).Inc()
	return nil
}

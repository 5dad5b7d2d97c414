package queue

import (
	"context"
	"fmt"
	"time"

	"blog_api/internal/config"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const dialAttempts = 5

// dial is replaced in tests.
var dial = amqp.Dial

// SetupRabbitMQ dials the broker, backing off one more second per failed
// attempt. It gives up early when ctx is cancelled.
func SetupRabbitMQ(ctx context.Context, rabbitMQCfg *config.RabbitMQConfig) (*amqp.Connection, error) {
	var err error
	for attempt := 1; attempt <= dialAttempts; attempt++ {
		var conn *amqp.Connection
		conn, err = dial(rabbitMQCfg.URL)
		if err == nil {
			logrus.WithField("queue", rabbitMQCfg.Queue).Info("RabbitMQ connection established")
			return conn, nil
		}

		logrus.WithError(err).Warnf("Failed to connect to RabbitMQ (attempt %d/%d)", attempt, dialAttempts)
		if attempt == dialAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}

	return nil, fmt.Errorf("connect to rabbitmq after %d attempts: %w", dialAttempts, err)
}

// CheckConnection reports ErrNotConnected once the broker connection is gone.
func CheckConnection(conn *amqp.Connection) error {
	if conn == nil || conn.IsClosed() {
		return ErrNotConnected
	}
	return nil
}

func CreateChannel(conn *amqp.Connection) (*amqp.Channel, error) {
	if err := CheckConnection(conn); err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	return ch, nil
}

// DeclareQueue declares the durable post event queue.
func DeclareQueue(ch *amqp.Channel, queueName string) (amqp.Queue, error) {
	q, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return amqp.Queue{}, fmt.Errorf("declare queue %s: %w", queueName, err)
	}

	return q, nil
}

package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"blog_api/internal/observability"
	"blog_api/internal/queue"
	"blog_api/internal/upload"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const (
	retryHeader = "x-retry-count"
	maxRetries  = 3
)

type outcome int

const (
	ack outcome = iota
	drop
	retry
)

func retryCount(headers amqp.Table) int32 {
	switch v := headers[retryHeader].(type) {
	case int32:
		return v
	case int64:
		return int32(v)
	case int:
		return int32(v)
	default:
		return 0
	}
}

// process decodes and handles one delivery and decides what happens to it.
func process(p *Processor, msg amqp.Delivery, workerID int) outcome {
	var event queue.PostEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		logrus.WithError(err).WithField("worker", workerID).Error("Invalid event payload")
		return drop
	}

	err := p.Handle(event, workerID)
	if err == nil {
		return ack
	}

	log := logrus.WithError(err).WithFields(logrus.Fields{
		"worker":  workerID,
		"event":   event.Type,
		"post_id": event.PostID,
	})
	if errors.Is(err, ErrUnknownEvent) || errors.Is(err, upload.ErrOutsideRoot) {
		log.Error("Dropping event")
		return drop
	}

	attempt := retryCount(msg.Headers)
	if attempt >= maxRetries {
		log.Error("Event failed after max retries")
		return drop
	}

	log.Warnf("Event failed, requeuing (retry %d/%d)", attempt+1, maxRetries)
	return retry
}

func republishWithRetry(ch *amqp.Channel, msg *amqp.Delivery, count int32) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	headers := amqp.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[retryHeader] = count

	return ch.PublishWithContext(
		ctx,
		"",             // exchange
		msg.RoutingKey, // routing key (queue name)
		false,          // mandatory
		false,          // immediate
		amqp.Publishing{
			ContentType:  msg.ContentType,
			DeliveryMode: amqp.Persistent,
			Type:         msg.Type,
			Body:         msg.Body,
			Headers:      headers,
		},
	)
}

// StartWorker consumes queueName until ctx is cancelled or the channel closes.
func StartWorker(ctx context.Context, conn *amqp.Connection, queueName string, p *Processor, metrics *observability.Metrics, id int) {
	ch, err := conn.Channel()
	if err != nil {
		logrus.Fatalf("Worker %d failed to open channel: %v", id, err)
	}
	defer ch.Close()

	if err := ch.Qos(1, 0, false); err != nil {
		logrus.Fatalf("Worker %d failed to set QoS: %v", id, err)
	}

	msgs, err := ch.Consume(
		queueName,
		"",
		false, // auto-ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		logrus.Fatalf("Worker %d failed to start consuming messages: %v", id, err)
	}

	logrus.Infof("Worker %d started", id)

	for {
		select {
		case <-ctx.Done():
			logrus.Infof("Worker %d stopping", id)
			return
		case msg, ok := <-msgs:
			if !ok {
				logrus.Warnf("Worker %d: delivery channel closed", id)
				return
			}
			metrics.QueueMessagesConsumed.WithLabelValues(queueName).Inc()

			switch process(p, msg, id) {
			case ack:
				msg.Ack(false)
			case drop:
				msg.Nack(false, false)
			case retry:
				if err := republishWithRetry(ch, &msg, retryCount(msg.Headers)+1); err != nil {
					logrus.WithError(err).Error("Failed to republish message")
					msg.Nack(false, false)
					continue
				}
				metrics.QueueMessagesPublished.WithLabelValues(queueName).Inc()
				msg.Ack(false)
			}
		}
	}
}

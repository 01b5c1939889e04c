package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Chedly25/newTrip/internal/domain"
	"github.com/Chedly25/newTrip/internal/infra/metrics"
)

// RabbitMentionQueue implements the mention job queue over AMQP.
type RabbitMentionQueue struct {
	conn  *amqp.Connection
	queue string

	mu         sync.Mutex
	ch         *amqp.Channel
	deliveries <-chan amqp.Delivery
}

var _ domain.MentionQueue = (*RabbitMentionQueue)(nil)

// NewRabbitMentionQueue connects to RabbitMQ and declares a durable queue.
func NewRabbitMentionQueue(amqpURL, queue string) (*RabbitMentionQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	ch.Close()
	return &RabbitMentionQueue{conn: conn, queue: queue}, nil
}

// Enqueue publishes a job with persistent delivery mode.
func (q *RabbitMentionQueue) Enqueue(ctx context.Context, job domain.MentionJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	ch, err := q.conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp channel: %w", err)
	}
	defer ch.Close()
	start := time.Now()
	err = ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	return nil
}

// Receive blocks until a job arrives. The returned ack requeues on failure.
func (q *RabbitMentionQueue) Receive(ctx context.Context) (domain.MentionJob, domain.AckFunc, error) {
	deliveries, err := q.consumer()
	if err != nil {
		return domain.MentionJob{}, nil, err
	}
	select {
	case <-ctx.Done():
		return domain.MentionJob{}, nil, ctx.Err()
	case d, ok := <-deliveries:
		if !ok {
			q.resetConsumer()
			return domain.MentionJob{}, nil, errors.New("amqp: delivery channel closed")
		}
		var job domain.MentionJob
		if err := json.Unmarshal(d.Body, &job); err != nil {
			// Poison message: drop it instead of redelivering forever.
			_ = d.Nack(false, false)
			return domain.MentionJob{}, nil, fmt.Errorf("decode job: %w", err)
		}
		ack := func(success bool) error {
			if success {
				return d.Ack(false)
			}
			return d.Nack(false, true)
		}
		return job, ack, nil
	}
}

// Close releases the AMQP connection.
func (q *RabbitMentionQueue) Close() error {
	return q.conn.Close()
}

func (q *RabbitMentionQueue) consumer() (<-chan amqp.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.deliveries != nil {
		return q.deliveries, nil
	}
	ch, err := q.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("amqp qos: %w", err)
	}
	deliveries, err := ch.Consume(q.queue, "", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("amqp consume: %w", err)
	}
	q.ch = ch
	q.deliveries = deliveries
	return deliveries, nil
}

func (q *RabbitMentionQueue) resetConsumer() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ch != nil {
		_ = q.ch.Close()
	}
	q.ch = nil
	q.deliveries = nil
}

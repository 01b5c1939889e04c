package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Chedly25/newTrip/internal/domain"
)

// RedisMentionQueue implements the mention job queue on Redis lists.
// Used in dev setups without RabbitMQ; delivery is at-most-once.
type RedisMentionQueue struct {
	client *redis.Client
	key    string
}

var _ domain.MentionQueue = (*RedisMentionQueue)(nil)

// NewRedisMentionQueue creates a queue under the given list key.
func NewRedisMentionQueue(client *redis.Client, key string) *RedisMentionQueue {
	return &RedisMentionQueue{client: client, key: key}
}

// Enqueue pushes a job onto the list.
func (q *RedisMentionQueue) Enqueue(ctx context.Context, job domain.MentionJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("push job: %w", err)
	}
	return nil
}

// Receive blocks until a job arrives. Failed jobs are pushed back.
func (q *RedisMentionQueue) Receive(ctx context.Context) (domain.MentionJob, domain.AckFunc, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.MentionJob{}, nil, err
		}
		res, err := q.client.BRPop(ctx, time.Second, q.key).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return domain.MentionJob{}, nil, ctx.Err()
				}
				continue
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return domain.MentionJob{}, nil, err
		}
		if len(res) != 2 {
			return domain.MentionJob{}, nil, errors.New("redis queue: unexpected response")
		}
		payload := []byte(res[1])
		var job domain.MentionJob
		if err := json.Unmarshal(payload, &job); err != nil {
			return domain.MentionJob{}, nil, fmt.Errorf("decode job: %w", err)
		}
		ack := func(success bool) error {
			if success {
				return nil
			}
			return q.client.LPush(context.Background(), q.key, payload).Err()
		}
		return job, ack, nil
	}
}

// RedisReviewQueue publishes ambiguous-match items onto a Redis list.
type RedisReviewQueue struct {
	client *redis.Client
	key    string
}

var _ domain.ReviewQueue = (*RedisReviewQueue)(nil)

// NewRedisReviewQueue creates the review output channel.
func NewRedisReviewQueue(client *redis.Client, key string) *RedisReviewQueue {
	return &RedisReviewQueue{client: client, key: key}
}

// Publish appends a review item for external consumers.
func (q *RedisReviewQueue) Publish(ctx context.Context, item domain.ReviewItem) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal review item: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("push review item: %w", err)
	}
	return nil
}

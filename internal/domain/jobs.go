package domain

import (
	"context"
	"time"
)

// MentionJob carries one mention through the pipeline queue.
type MentionJob struct {
	ID         string    `json:"job_id"`
	Mention    Mention   `json:"mention"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	// Requeued marks a job replayed from the dead-letter state.
	Requeued bool `json:"requeued,omitempty"`
}

// AckFunc confirms processing or requests redelivery of a job.
type AckFunc func(success bool) error

// MentionQueue is the unbounded, restartable input stream of the pipeline.
type MentionQueue interface {
	Enqueue(ctx context.Context, job MentionJob) error
	Receive(ctx context.Context) (MentionJob, AckFunc, error)
}

// ReviewQueue publishes ambiguous-match items for external review consumers.
type ReviewQueue interface {
	Publish(ctx context.Context, item ReviewItem) error
}

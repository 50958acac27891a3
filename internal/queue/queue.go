// Package queue carries enrichment jobs from the ingestion endpoint to the
// workers. Delivery is at-least-once: a consumer acknowledges a message after
// processing it, and an unacknowledged message may be delivered again.
package queue

import (
	"context"
	"errors"
)

// Common errors returned by queue implementations.
var (
	ErrQueueClosed = errors.New("queue is closed")
	ErrQueueFull   = errors.New("queue is full")
)

// Message is one enrichment job.
type Message struct {
	TaskID   string `json:"task_id"`
	FlightID string `json:"flight_id"`

	// Receipt identifies the delivery for Ack. Set by Dequeue.
	Receipt string `json:"-"`
}

// Queue is the work queue between the API and the worker pool.
type Queue interface {
	// Enqueue publishes msg. It does not wait for a consumer.
	Enqueue(ctx context.Context, msg Message) error

	// Dequeue blocks until a message is available, ctx is done, or the queue
	// is closed, in which case it returns ErrQueueClosed.
	Dequeue(ctx context.Context) (Message, error)

	// Ack marks a dequeued message as processed.
	Ack(ctx context.Context, msg Message) error

	// Len reports the number of messages waiting for a consumer.
	Len(ctx context.Context) (int64, error)

	// Close stops delivery. Messages still buffered may be lost for
	// in-memory implementations.
	Close() error
}

package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// ChannelQueue is an in-process Queue backed by a buffered channel. It suits a
// single process running both the API and the workers; jobs do not survive a
// restart.
type ChannelQueue struct {
	messages chan Message
	logger   *slog.Logger

	mu     sync.RWMutex
	closed bool
}

var _ Queue = (*ChannelQueue)(nil)

// NewChannelQueue creates a queue holding at most size messages.
func NewChannelQueue(size int, logger *slog.Logger) *ChannelQueue {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChannelQueue{
		messages: make(chan Message, size),
		logger:   logger.With(slog.String("component", "channel_queue")),
	}
}

// Enqueue adds msg without blocking. Returns ErrQueueFull when the buffer is
// full and ErrQueueClosed after Close.
func (q *ChannelQueue) Enqueue(ctx context.Context, msg Message) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case q.messages <- msg:
		q.logger.Debug("message enqueued",
			slog.String("task_id", msg.TaskID),
			slog.Int("queue_len", len(q.messages)),
			slog.Int("queue_cap", cap(q.messages)))
		return nil
	default:
		return fmt.Errorf("%w: capacity %d reached", ErrQueueFull, cap(q.messages))
	}
}

// Dequeue implements Queue.Dequeue.
func (q *ChannelQueue) Dequeue(ctx context.Context) (Message, error) {
	select {
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case msg, ok := <-q.messages:
		if !ok {
			return Message{}, ErrQueueClosed
		}
		msg.Receipt = msg.TaskID
		return msg, nil
	}
}

// Ack is a no-op: a received message is already gone from the channel.
func (q *ChannelQueue) Ack(context.Context, Message) error {
	return nil
}

// Len implements Queue.Len.
func (q *ChannelQueue) Len(context.Context) (int64, error) {
	return int64(len(q.messages)), nil
}

// Close closes the queue, preventing further submission. Consumers drain what
// is buffered and then receive ErrQueueClosed.
func (q *ChannelQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.messages)
		q.logger.Info("queue closed")
	}
	return nil
}

package mocks

import (
	"context"

	"github.com/phrazzld/fare-enricher/internal/queue"
	"github.com/stretchr/testify/mock"
)

// TestifyMockQueue is a mock of queue.Queue for use with testify/mock.
type TestifyMockQueue struct {
	mock.Mock
}

var _ queue.Queue = (*TestifyMockQueue)(nil)

// Enqueue is a mock implementation of queue.Queue.Enqueue.
func (m *TestifyMockQueue) Enqueue(ctx context.Context, msg queue.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// Dequeue is a mock implementation of queue.Queue.Dequeue.
func (m *TestifyMockQueue) Dequeue(ctx context.Context) (queue.Message, error) {
	args := m.Called(ctx)
	msg, _ := args.Get(0).(queue.Message)
	return msg, args.Error(1)
}

// Ack is a mock implementation of queue.Queue.Ack.
func (m *TestifyMockQueue) Ack(ctx context.Context, msg queue.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// Len is a mock implementation of queue.Queue.Len.
func (m *TestifyMockQueue) Len(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// Close is a mock implementation of queue.Queue.Close.
func (m *TestifyMockQueue) Close() error {
	args := m.Called()
	return args.Error(0)
}

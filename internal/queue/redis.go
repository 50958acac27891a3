package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	payloadField     = "data"
	defaultBlockTime = 2 * time.Second
)

// RedisOptions configures a RedisQueue.
type RedisOptions struct {
	// Stream is the Redis stream key.
	Stream string
	// Group is the consumer group shared by all workers.
	Group string
	// Consumer names this process inside the group. Defaults to host-pid.
	Consumer string
	// ClaimIdle is how long a delivered message may stay unacknowledged before
	// another consumer takes it over.
	ClaimIdle time.Duration
	// BlockTime bounds each blocking read so Close and cancellation are noticed.
	BlockTime time.Duration
}

// RedisQueue is a Queue on a Redis stream with a consumer group. Messages a
// consumer read but never acknowledged are reclaimed after ClaimIdle, so a
// crashed worker's jobs are delivered again.
type RedisQueue struct {
	client *redis.Client
	opts   RedisOptions
	logger *slog.Logger
	closed atomic.Bool
}

var _ Queue = (*RedisQueue)(nil)

// NewRedisClient parses a redis:// URL and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// NewRedisQueue creates the consumer group if needed and returns the queue.
// The client is owned by the caller.
func NewRedisQueue(ctx context.Context, client *redis.Client, opts RedisOptions, logger *slog.Logger) (*RedisQueue, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Consumer == "" {
		host, _ := os.Hostname()
		opts.Consumer = fmt.Sprintf("%s-%d", host, os.Getpid())
	}
	if opts.BlockTime <= 0 {
		opts.BlockTime = defaultBlockTime
	}
	if opts.ClaimIdle <= 0 {
		opts.ClaimIdle = time.Hour
	}

	err := client.XGroupCreateMkStream(ctx, opts.Stream, opts.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return &RedisQueue{
		client: client,
		opts:   opts,
		logger: logger.With(
			slog.String("component", "redis_queue"),
			slog.String("stream", opts.Stream),
			slog.String("consumer", opts.Consumer)),
	}, nil
}

// Enqueue appends msg to the stream.
func (q *RedisQueue) Enqueue(ctx context.Context, msg Message) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	id, err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.opts.Stream,
		Values: map[string]interface{}{payloadField: string(data)},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to add to stream: %w", err)
	}

	q.logger.Debug("message enqueued", slog.String("task_id", msg.TaskID), slog.String("message_id", id))
	return nil
}

// Dequeue returns a stale message reclaimed from another consumer if there is
// one, otherwise the next new message.
func (q *RedisQueue) Dequeue(ctx context.Context) (Message, error) {
	for {
		if q.closed.Load() {
			return Message{}, ErrQueueClosed
		}
		if err := ctx.Err(); err != nil {
			return Message{}, err
		}

		msg, ok, err := q.claimStale(ctx)
		if err != nil {
			return Message{}, err
		}
		if ok {
			return msg, nil
		}

		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.opts.Group,
			Consumer: q.opts.Consumer,
			Streams:  []string{q.opts.Stream, ">"},
			Count:    1,
			Block:    q.opts.BlockTime,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Message{}, ctxErr
			}
			return Message{}, fmt.Errorf("failed to read from stream: %w", err)
		}

		if len(streams) == 0 || len(streams[0].Messages) == 0 {
			continue
		}

		msg, err = q.decode(ctx, streams[0].Messages[0])
		if err != nil {
			continue
		}
		return msg, nil
	}
}

func (q *RedisQueue) claimStale(ctx context.Context) (Message, bool, error) {
	messages, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.opts.Stream,
		Group:    q.opts.Group,
		Consumer: q.opts.Consumer,
		MinIdle:  q.opts.ClaimIdle,
		Start:    "0-0",
		Count:    1,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Message{}, false, fmt.Errorf("failed to claim stale messages: %w", err)
	}

	for _, m := range messages {
		msg, err := q.decode(ctx, m)
		if err != nil {
			continue
		}
		q.logger.Warn("reclaimed unacknowledged message",
			slog.String("task_id", msg.TaskID),
			slog.String("message_id", m.ID))
		return msg, true, nil
	}
	return Message{}, false, nil
}

// decode parses a stream entry. Entries that cannot be parsed are
// acknowledged and dropped so they are not redelivered forever.
func (q *RedisQueue) decode(ctx context.Context, m redis.XMessage) (Message, error) {
	raw, ok := m.Values[payloadField].(string)
	var msg Message
	if ok {
		if err := json.Unmarshal([]byte(raw), &msg); err == nil && msg.TaskID != "" {
			msg.Receipt = m.ID
			return msg, nil
		}
	}

	q.logger.Error("dropping malformed message", slog.String("message_id", m.ID))
	if err := q.ack(ctx, m.ID); err != nil {
		q.logger.Error("failed to drop malformed message",
			slog.String("message_id", m.ID),
			slog.String("error", err.Error()))
	}
	return Message{}, fmt.Errorf("malformed message %s", m.ID)
}

// Ack acknowledges and deletes the delivered entry.
func (q *RedisQueue) Ack(ctx context.Context, msg Message) error {
	if msg.Receipt == "" {
		return fmt.Errorf("message for task %s has no receipt", msg.TaskID)
	}
	return q.ack(ctx, msg.Receipt)
}

func (q *RedisQueue) ack(ctx context.Context, id string) error {
	pipe := q.client.TxPipeline()
	pipe.XAck(ctx, q.opts.Stream, q.opts.Group, id)
	pipe.XDel(ctx, q.opts.Stream, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to acknowledge message: %w", err)
	}
	return nil
}

// Len reports entries in the stream, including delivered but unacknowledged ones.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.XLen(ctx, q.opts.Stream).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue length: %w", err)
	}
	return n, nil
}

// Close stops Dequeue. Pending entries stay in Redis.
func (q *RedisQueue) Close() error {
	if q.closed.CompareAndSwap(false, true) {
		q.logger.Info("queue closed")
	}
	return nil
}

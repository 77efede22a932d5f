package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultBlockTimeout = 5 * time.Second

// RedisQueue stores pending events in a Redis list and moves each received event
// to a processing list until it is acked.
type RedisQueue struct {
	client        *redis.Client
	key           string
	processingKey string
	blockTimeout  time.Duration
}

// NewRedisQueue creates a queue on the list key; in-flight events live under key+":processing".
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	return &RedisQueue{
		client:        client,
		key:           key,
		processingKey: key + ":processing",
		blockTimeout:  defaultBlockTimeout,
	}
}

func (q *RedisQueue) Publish(ctx context.Context, event Event) error {
	raw, err := json.Marshal(stamp(event))
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return q.client.LPush(ctx, q.key, raw).Err()
}

func (q *RedisQueue) Receive(ctx context.Context) (*Delivery, error) {
	for {
		raw, err := q.client.BLMove(ctx, q.key, q.processingKey, "RIGHT", "LEFT", q.blockTimeout).Result()
		if errors.Is(err, redis.Nil) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if err != nil {
			if errors.Is(err, redis.ErrClosed) {
				return nil, ErrQueueClosed
			}
			return nil, err
		}

		var event Event
		if err := json.Unmarshal([]byte(raw), &event); err != nil {
			// Undecodable entries would be redelivered forever; drop them.
			_ = q.client.LRem(ctx, q.processingKey, 1, raw).Err()
			return nil, fmt.Errorf("decode event: %w", err)
		}
		return &Delivery{
			Event: event,
			ack: func(ctx context.Context) error {
				return q.client.LRem(ctx, q.processingKey, 1, raw).Err()
			},
		}, nil
	}
}

// Requeue moves events left in the processing list (by a consumer that died before
// acking) back to the pending list. Call it before consumers start.
func (q *RedisQueue) Requeue(ctx context.Context) (int, error) {
	moved := 0
	for {
		err := q.client.LMove(ctx, q.processingKey, q.key, "RIGHT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return moved, nil
		}
		if err != nil {
			return moved, err
		}
		moved++
	}
}

// Close is a no-op; the Redis client is owned by the caller.
func (q *RedisQueue) Close() error {
	return nil
}

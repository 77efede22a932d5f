package events

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisQueue(t *testing.T) (*RedisQueue, *redis.Client) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	q := NewRedisQueue(client, "triage:events")
	q.blockTimeout = 100 * time.Millisecond
	return q, client
}

func TestRedisQueuePublishReceiveAck(t *testing.T) {
	q, client := newRedisQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Publish(ctx, Event{Name: EventTicketCreate, Data: map[string]any{"ticketId": "T1"}}))
	require.NoError(t, q.Publish(ctx, Event{Name: EventUserSignup, Data: map[string]any{"userId": "U1"}}))

	d, err := q.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, EventTicketCreate, d.Event.Name, "oldest event first")
	assert.Equal(t, "T1", d.Event.Data["ticketId"])
	assert.NotEmpty(t, d.Event.ID)
	assert.False(t, d.Event.Timestamp.IsZero())

	assert.Equal(t, int64(1), client.LLen(ctx, "triage:events:processing").Val())
	assert.Equal(t, int64(1), client.LLen(ctx, "triage:events").Val())

	require.NoError(t, d.Ack(ctx))
	assert.Zero(t, client.LLen(ctx, "triage:events:processing").Val())
}

func TestRedisQueueRequeueRecoversUnacked(t *testing.T) {
	q, client := newRedisQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Publish(ctx, Event{ID: "evt-1", Name: EventTicketCreate}))
	_, err := q.Receive(ctx)
	require.NoError(t, err)

	// A fresh consumer after a crash sees the delivery again.
	restarted := NewRedisQueue(client, "triage:events")
	restarted.blockTimeout = q.blockTimeout
	n, err := restarted.Requeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, client.LLen(ctx, "triage:events:processing").Val())

	d, err := restarted.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "evt-1", d.Event.ID)
	require.NoError(t, d.Ack(ctx))

	n, err = restarted.Requeue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisQueueDropsUndecodableEntry(t *testing.T) {
	q, client := newRedisQueue(t)
	ctx := context.Background()

	require.NoError(t, client.LPush(ctx, "triage:events", "garbage").Err())

	_, err := q.Receive(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode event")
	assert.Zero(t, client.LLen(ctx, "triage:events:processing").Val())
	assert.Zero(t, client.LLen(ctx, "triage:events").Val())
}

func TestRedisQueueReceiveHonorsContext(t *testing.T) {
	q, _ := newRedisQueue(t)
	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	_, err := q.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

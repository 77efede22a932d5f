package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/events"
)

func TestPoolBoundsConcurrency(t *testing.T) {
	pool := NewPool(2, zap.NewNop())
	ctx := context.Background()

	var active, peak int64
	for i := 0; i < 8; i++ {
		require.NoError(t, pool.Submit(ctx, ctx, func(context.Context) error {
			n := atomic.AddInt64(&active, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt64(&active, -1)
			return nil
		}))
	}
	pool.Wait()

	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(2))
	assert.Equal(t, int64(8), pool.Stats().Completed)
}

func TestPoolCountsFailuresAndPanics(t *testing.T) {
	pool := NewPool(1, nil)
	ctx := context.Background()

	require.NoError(t, pool.Submit(ctx, ctx, func(context.Context) error { return errors.New("boom") }))
	require.NoError(t, pool.Submit(ctx, ctx, func(context.Context) error { panic("bad") }))
	pool.Wait()

	stats := pool.Stats()
	assert.Equal(t, int64(2), stats.Failed)
	assert.Equal(t, int64(1), stats.Panics)
}

func TestPoolRejectsAfterShutdown(t *testing.T) {
	pool := NewPool(1, nil)
	pool.Shutdown()

	err := pool.Submit(context.Background(), context.Background(), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrPoolShutdown)
}

type recordingDispatcher struct {
	mu   sync.Mutex
	ids  []string
	fail bool
}

func (d *recordingDispatcher) Dispatch(_ context.Context, e events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ids = append(d.ids, e.ID)
	if d.fail {
		return errors.New("handler failed")
	}
	return nil
}

func (d *recordingDispatcher) seen() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string{}, d.ids...)
}

func TestConsumerDispatchesUntilCancelled(t *testing.T) {
	queue := events.NewMemoryQueue(8)
	dispatcher := &recordingDispatcher{fail: true}
	consumer := NewConsumer(queue, dispatcher, NewPool(4, nil), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, queue.Publish(ctx, events.Event{ID: id, Name: events.EventTicketCreate}))
	}

	require.Eventually(t, func() bool { return len(dispatcher.seen()) == 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
	assert.ElementsMatch(t, []string{"a", "b", "c"}, dispatcher.seen())
}

func TestConsumerStopsOnClosedQueue(t *testing.T) {
	queue := events.NewMemoryQueue(1)
	require.NoError(t, queue.Close())

	consumer := NewConsumer(queue, &recordingDispatcher{}, NewPool(1, nil), nil)
	assert.NoError(t, consumer.Run(context.Background()))
}

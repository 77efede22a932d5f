package events

import (
	"context"
	"sync"
)

type memoryQueue struct {
	ch     chan Event
	done   chan struct{}
	closed sync.Once
}

// NewMemoryQueue creates a buffered in-process queue. Events are lost on restart.
func NewMemoryQueue(size int) Queue {
	if size <= 0 {
		size = 1
	}
	return &memoryQueue{
		ch:   make(chan Event, size),
		done: make(chan struct{}),
	}
}

func (q *memoryQueue) Publish(ctx context.Context, event Event) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}
	select {
	case q.ch <- stamp(event):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.done:
		return ErrQueueClosed
	}
}

func (q *memoryQueue) Receive(ctx context.Context) (*Delivery, error) {
	select {
	case event := <-q.ch:
		return &Delivery{Event: event}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-q.done:
		return nil, ErrQueueClosed
	}
}

func (q *memoryQueue) Close() error {
	q.closed.Do(func() { close(q.done) })
	return nil
}

package events

import (
	"context"
	"errors"
)

// ErrQueueClosed is returned by a queue after Close.
var ErrQueueClosed = errors.New("event queue closed")

// Publisher enqueues events for asynchronous processing.
type Publisher interface {
	// Publish returns once the event is enqueued; it never waits for processing.
	Publish(ctx context.Context, event Event) error
}

// Queue is an at-least-once event queue.
type Queue interface {
	Publisher
	// Receive blocks until an event is available. The delivery must be acked once handled;
	// unacked deliveries may be redelivered.
	Receive(ctx context.Context) (*Delivery, error)
	Close() error
}

// Delivery is an event handed to a consumer.
type Delivery struct {
	Event Event
	ack   func(context.Context) error
}

// Ack confirms the delivery was handled.
func (d *Delivery) Ack(ctx context.Context) error {
	if d == nil || d.ack == nil {
		return nil
	}
	return d.ack(ctx)
}

func stamp(event Event) Event {
	if event.ID == "" || event.Timestamp.IsZero() {
		fresh := NewEvent(event.Name, event.Data)
		if event.ID != "" {
			fresh.ID = event.ID
		}
		if !event.Timestamp.IsZero() {
			fresh.Timestamp = event.Timestamp
		}
		return fresh
	}
	return event
}

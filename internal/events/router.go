package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNoHandler is returned when an event has no subscribers.
var ErrNoHandler = errors.New("no handler subscribed")

// EventHandler handles a delivered event.
type EventHandler func(context.Context, Event) error

// Router fans delivered events out to the handlers subscribed to their name.
type Router struct {
	mu        sync.RWMutex
	listeners map[Name][]EventHandler
}

// NewRouter creates a router instance.
func NewRouter() *Router {
	return &Router{
		listeners: make(map[Name][]EventHandler),
	}
}

// Subscribe registers a handler for the given event name.
func (r *Router) Subscribe(name Name, handler EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners[name] = append(r.listeners[name], handler)
}

// Dispatch invokes every handler for the event; one failing handler does not stop the others.
func (r *Router) Dispatch(ctx context.Context, event Event) error {
	r.mu.RLock()
	handlers := append([]EventHandler{}, r.listeners[event.Name]...)
	r.mu.RUnlock()

	if len(handlers) == 0 {
		return fmt.Errorf("%w: %s", ErrNoHandler, event.Name)
	}

	var errs []error
	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Names lists the event names that have subscribers.
func (r *Router) Names() []Name {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]Name, 0, len(r.listeners))
	for name := range r.listeners {
		names = append(names, name)
	}
	return names
}

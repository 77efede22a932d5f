package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/events"
)

const receiveErrorBackoff = time.Second

// Dispatcher routes a delivered event to its handlers.
type Dispatcher interface {
	Dispatch(ctx context.Context, event events.Event) error
}

// Consumer pulls events from a queue and dispatches each on the pool.
type Consumer struct {
	queue      events.Queue
	dispatcher Dispatcher
	pool       *Pool
	logger     *zap.Logger
}

// NewConsumer wires a queue to a dispatcher through a pool.
func NewConsumer(queue events.Queue, dispatcher Dispatcher, pool *Pool, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{queue: queue, dispatcher: dispatcher, pool: pool, logger: logger}
}

// Run receives until ctx is cancelled or the queue closes, then waits for in-flight work.
// Deliveries whose handlers fail are still acked: step failures are recorded on the run
// and picked up by redrive, so redelivering would only repeat them.
func (c *Consumer) Run(ctx context.Context) error {
	taskCtx := context.WithoutCancel(ctx)
	defer c.pool.Wait()

	for {
		delivery, err := c.queue.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, events.ErrQueueClosed) {
				return nil
			}
			c.logger.Warn("event receive failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(receiveErrorBackoff):
			}
			continue
		}

		err = c.pool.Submit(ctx, taskCtx, func(runCtx context.Context) error {
			return c.handle(runCtx, delivery)
		})
		if err != nil {
			// Not acked: the event stays in flight and is recovered on restart.
			c.logger.Warn("event not scheduled", zap.String("event_id", delivery.Event.ID), zap.Error(err))
			if ctx.Err() != nil || errors.Is(err, ErrPoolShutdown) {
				return nil
			}
		}
	}
}

func (c *Consumer) handle(ctx context.Context, delivery *events.Delivery) error {
	event := delivery.Event
	logger := c.logger.With(zap.String("event_id", event.ID), zap.String("event", string(event.Name)))

	err := c.dispatcher.Dispatch(ctx, event)
	if err != nil {
		logger.Error("event handling failed", zap.Error(err))
	} else {
		logger.Debug("event handled")
	}

	if ackErr := delivery.Ack(ctx); ackErr != nil {
		logger.Warn("event ack failed", zap.Error(ackErr))
	}
	return err
}

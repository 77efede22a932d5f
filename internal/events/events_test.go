package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/ticket-triage/pkg/util/errorutil"
)

func TestMemoryQueuePublishReceive(t *testing.T) {
	q := NewMemoryQueue(4)
	ctx := context.Background()

	require.NoError(t, q.Publish(ctx, Event{Name: EventTicketCreate, Data: map[string]any{"ticketId": "T1"}}))

	d, err := q.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, EventTicketCreate, d.Event.Name)
	assert.NotEmpty(t, d.Event.ID)
	assert.False(t, d.Event.Timestamp.IsZero())
	assert.NoError(t, d.Ack(ctx))
}

func TestMemoryQueueKeepsGivenID(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx := context.Background()
	require.NoError(t, q.Publish(ctx, Event{ID: "evt-1", Name: EventUserSignup}))

	d, err := q.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "evt-1", d.Event.ID)
}

func TestMemoryQueueReceiveHonorsContext(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryQueueClose(t *testing.T) {
	q := NewMemoryQueue(1)
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	assert.ErrorIs(t, q.Publish(context.Background(), Event{Name: EventUserSignup}), ErrQueueClosed)
	_, err := q.Receive(context.Background())
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestRouterDispatch(t *testing.T) {
	r := NewRouter()
	var mu sync.Mutex
	var seen []string

	r.Subscribe(EventTicketCreate, func(_ context.Context, e Event) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, "first:"+e.ID)
		return errors.New("first failed")
	})
	r.Subscribe(EventTicketCreate, func(_ context.Context, e Event) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, "second:"+e.ID)
		return nil
	})

	err := r.Dispatch(context.Background(), Event{ID: "e1", Name: EventTicketCreate})
	assert.ErrorContains(t, err, "first failed")
	assert.Equal(t, []string{"first:e1", "second:e1"}, seen)
	assert.ElementsMatch(t, []Name{EventTicketCreate}, r.Names())
}

func TestRouterNoHandler(t *testing.T) {
	err := NewRouter().Dispatch(context.Background(), Event{Name: "unknown"})
	assert.ErrorIs(t, err, ErrNoHandler)
}

func TestTicketCreatePayload(t *testing.T) {
	e := NewEvent(EventTicketCreate, map[string]any{
		"ticketId":    "T1",
		"title":       "Login broken",
		"description": "Users cannot log in",
		"userId":      "U1",
		"userEmail":   "alice@example.com",
	})

	var p TicketCreatePayload
	require.NoError(t, e.DecodeData(&p))
	assert.Equal(t, "T1", p.TicketID)

	err := p.Validate()
	require.Error(t, err)
	assert.True(t, apperrors.IsPermanent(err))
	assert.Contains(t, err.Error(), "userName")

	p.UserName = "Alice"
	assert.NoError(t, p.Validate())
}

func TestDecodeDataRejectsWrongTypes(t *testing.T) {
	e := NewEvent(EventUserSignup, map[string]any{"userId": 42})

	var p UserSignupPayload
	err := e.DecodeData(&p)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))
}

// Package triage defines the workflows that react to ticket and signup events.
package triage

import (
	"context"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/events"
	"github.com/spec-kit/ticket-triage/internal/workflow"
)

// Classifier produces AI metadata for a ticket. It never fails.
type Classifier interface {
	Classify(ctx context.Context, title, description string) domain.ClassificationResult
}

// Assigner picks an assignee for suggested skills; nil means nobody is available.
type Assigner interface {
	Assign(ctx context.Context, suggestedSkills []string) (*domain.User, error)
}

// TicketUpdater persists the triage outcome of a ticket. A missing ticket is reported
// as an errorutil NotFound error.
type TicketUpdater interface {
	UpdateTriage(ctx context.Context, id string, update domain.TicketTriageUpdate) (*domain.Ticket, error)
}

// Register subscribes the given workflows to their events on router.
func Register(engine *workflow.Engine, router *events.Router, workflows ...workflow.Workflow) {
	engine.Register(router, workflows...)
}

func dataString(key string) func(events.Event) string {
	return func(e events.Event) string {
		s, _ := e.Data[key].(string)
		return s
	}
}

package triage

import (
	"context"
	"fmt"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/events"
	"github.com/spec-kit/ticket-triage/internal/notification"
	"github.com/spec-kit/ticket-triage/internal/workflow"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util/errorutil"
)

// Step and workflow names of ticket triage.
const (
	TicketWorkflowName   = "ticket-create"
	StepClassify         = "classify"
	StepAssignAndPersist = "assign-and-persist"
	StepNotifyAuthor     = "notify-author"
	StepNotifyAssignee   = "notify-assignee"
)

// TicketOutput is the stored output of a ticket-create run.
type TicketOutput struct {
	Success    bool   `json:"success"`
	TicketID   string `json:"ticketId"`
	AssignedTo string `json:"assignedTo,omitempty"`
}

// TicketWorkflow classifies, assigns and announces a newly created ticket.
type TicketWorkflow struct {
	classifier Classifier
	assigner   Assigner
	tickets    TicketUpdater
	notifier   notification.Dispatcher
}

// NewTicketWorkflow wires the ticket workflow dependencies.
func NewTicketWorkflow(classifier Classifier, assigner Assigner, tickets TicketUpdater, notifier notification.Dispatcher) *TicketWorkflow {
	return &TicketWorkflow{
		classifier: classifier,
		assigner:   assigner,
		tickets:    tickets,
		notifier:   notifier,
	}
}

// Definition returns the workflow triggered by ticket.create, one run per ticket id.
func (w *TicketWorkflow) Definition() workflow.Workflow {
	return workflow.Workflow{
		Name:     TicketWorkflowName,
		Event:    events.EventTicketCreate,
		Identity: dataString("ticketId"),
		Handler:  w.run,
	}
}

func (w *TicketWorkflow) run(sc *workflow.StepContext) (any, error) {
	var payload events.TicketCreatePayload
	if err := sc.Event().DecodeData(&payload); err != nil {
		return nil, err
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	metadata, err := workflow.Run(sc, StepClassify, func(ctx context.Context) (domain.ClassificationResult, error) {
		return w.classifier.Classify(ctx, payload.Title, payload.Description), nil
	})
	if err != nil {
		return nil, err
	}

	ticket, err := workflow.Run(sc, StepAssignAndPersist, func(ctx context.Context) (*domain.Ticket, error) {
		return w.assignAndPersist(ctx, payload.TicketID, metadata)
	})
	if err != nil {
		return nil, err
	}

	if _, err := workflow.Run(sc, StepNotifyAuthor, func(ctx context.Context) (bool, error) {
		return true, w.notifyAuthor(ctx, payload, ticket)
	}); err != nil {
		return nil, err
	}

	if ticket.Assignee != nil {
		if _, err := workflow.Run(sc, StepNotifyAssignee, func(ctx context.Context) (bool, error) {
			return true, w.notifyAssignee(ctx, payload, metadata, ticket.Assignee)
		}); err != nil {
			return nil, err
		}
	}

	out := TicketOutput{Success: true, TicketID: payload.TicketID}
	if ticket.Assignee != nil {
		out.AssignedTo = ticket.Assignee.Name
	}
	return out, nil
}

func (w *TicketWorkflow) assignAndPersist(ctx context.Context, ticketID string, metadata domain.ClassificationResult) (*domain.Ticket, error) {
	assignee, err := w.assigner.Assign(ctx, metadata.SuggestedSkills)
	if err != nil {
		return nil, err
	}

	update := domain.TicketTriageUpdate{
		AIMetadata: metadata,
		Priority:   metadata.Priority,
		Status:     domain.TicketStatusOpen,
	}
	if !update.Priority.Valid() {
		update.Priority = domain.TicketPriorityMedium
	}
	if assignee != nil {
		update.AssigneeID = &assignee.ID
		update.Status = domain.TicketStatusInProgress
	}

	ticket, err := w.tickets.UpdateTriage(ctx, ticketID, update)
	if err != nil {
		// Not found stays retryable: ticket.create may be delivered before the insert is visible.
		if apperrors.CodeOf(err) == apperrors.CodeNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("update ticket %s: %w", ticketID, err)
	}
	if ticket.Assignee == nil && assignee != nil {
		ticket.Assignee = assignee
	}
	return ticket, nil
}

func (w *TicketWorkflow) notifyAuthor(ctx context.Context, payload events.TicketCreatePayload, ticket *domain.Ticket) error {
	created := notification.TicketNotification{
		To:       payload.UserEmail,
		Name:     payload.UserName,
		TicketID: payload.TicketID,
		Title:    payload.Title,
		Status:   notification.StatusCreated,
	}
	if ticket.Assignee != nil {
		created.AssignedToName = ticket.Assignee.Name
	}
	return w.notifier.SendTicketNotification(ctx, created)
}

func (w *TicketWorkflow) notifyAssignee(ctx context.Context, payload events.TicketCreatePayload, metadata domain.ClassificationResult, assignee *domain.User) error {
	return w.notifier.SendTicketNotification(ctx, notification.TicketNotification{
		To:                  assignee.Email,
		Name:                assignee.Name,
		TicketID:            payload.TicketID,
		Title:               payload.Title,
		Status:              notification.StatusAssigned,
		Description:         payload.Description,
		EnhancedDescription: metadata.EnhancedDescription,
	})
}

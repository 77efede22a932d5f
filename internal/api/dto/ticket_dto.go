package dto

import (
	"time"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

// TicketSummary response.
type TicketSummary struct {
	ID         string                `json:"id"`
	Title      string                `json:"title"`
	Status     domain.TicketStatus   `json:"status"`
	Priority   domain.TicketPriority `json:"priority"`
	AssignedTo *string               `json:"assigned_to"`
	CreatedAt  time.Time             `json:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

// TicketDetailResponse provides full triage info for one ticket.
type TicketDetailResponse struct {
	ID          string                       `json:"id"`
	Title       string                       `json:"title"`
	Description string                       `json:"description"`
	CreatedBy   string                       `json:"created_by"`
	Status      domain.TicketStatus          `json:"status"`
	Priority    domain.TicketPriority        `json:"priority"`
	Assignee    *AssigneeResponse            `json:"assignee"`
	AIMetadata  *domain.ClassificationResult `json:"ai_metadata"`
	CreatedAt   time.Time                    `json:"created_at"`
	UpdatedAt   time.Time                    `json:"updated_at"`
}

// AssigneeResponse is the populated assignee of a ticket.
type AssigneeResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

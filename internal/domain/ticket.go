package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in-progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// TicketPriority enumerates triage urgency.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "low"
	TicketPriorityMedium   TicketPriority = "medium"
	TicketPriorityHigh     TicketPriority = "high"
	TicketPriorityCritical TicketPriority = "critical"
)

// Valid reports whether p is one of the known priorities.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityCritical:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID          string                `json:"id"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	CreatedBy   string                `json:"created_by"`
	Status      TicketStatus          `json:"status"`
	Priority    TicketPriority        `json:"priority"`
	AssignedTo  *string               `json:"assigned_to,omitempty"`
	Assignee    *User                 `json:"assignee,omitempty"`
	AIMetadata  *ClassificationResult `json:"ai_metadata,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// TicketTriageUpdate is the set of fields the triage workflow writes in one update.
// AssigneeID nil clears any previous assignee.
type TicketTriageUpdate struct {
	AIMetadata ClassificationResult
	Priority   TicketPriority
	AssigneeID *string
	Status     TicketStatus
}

package dto

import (
	"encoding/json"
	"time"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

// PublishEventRequest payload.
type PublishEventRequest struct {
	Name string         `json:"name"`
	Data map[string]any `json:"data"`
}

// PublishEventResponse acknowledges an enqueued event.
type PublishEventResponse struct {
	ID string `json:"id"`
}

// RunResponse describes a workflow run and its steps.
type RunResponse struct {
	ID           string           `json:"id"`
	WorkflowName string           `json:"workflow_name"`
	EventName    string           `json:"event_name"`
	Status       domain.RunStatus `json:"status"`
	Output       json.RawMessage  `json:"output,omitempty"`
	Error        string           `json:"error,omitempty"`
	ErrorCode    string           `json:"error_code,omitempty"`
	Executions   int              `json:"executions"`
	Steps        []StepResponse   `json:"steps"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// StepResponse describes one step record.
type StepResponse struct {
	Name      string            `json:"name"`
	Status    domain.StepStatus `json:"status"`
	Attempts  int               `json:"attempts"`
	LastError string            `json:"last_error,omitempty"`
	Result    json.RawMessage   `json:"result,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}

package domain

import (
	"encoding/json"
	"time"
)

// RunStatus is the terminal-or-running state of a workflow run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// StepStatus tracks a single step inside a run.
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusSucceeded StepStatus = "succeeded"
	StepStatusFailed    StepStatus = "failed"
)

// WorkflowRun is one execution of a workflow for one event occurrence.
type WorkflowRun struct {
	ID           string          `json:"id"`
	WorkflowName string          `json:"workflow_name"`
	EventName    string          `json:"event_name"`
	EventData    json.RawMessage `json:"event_data,omitempty"`
	Status       RunStatus       `json:"status"`
	Steps        []StepRecord    `json:"steps"`
	Output       json.RawMessage `json:"output,omitempty"`
	Error        string          `json:"error,omitempty"`
	ErrorCode    string          `json:"error_code,omitempty"`
	Executions   int             `json:"executions"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Step returns the record for name, if any.
func (r *WorkflowRun) Step(name string) (*StepRecord, bool) {
	for i := range r.Steps {
		if r.Steps[i].Name == name {
			return &r.Steps[i], true
		}
	}
	return nil, false
}

// StepRecord is the persisted state of one step. A succeeded record is immutable.
type StepRecord struct {
	Name      string          `json:"name"`
	Status    StepStatus      `json:"status"`
	Result    json.RawMessage `json:"result,omitempty"`
	Attempts  int             `json:"attempts"`
	LastError string          `json:"last_error,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

type inMemoryWorkflowRunRepository struct {
	mu   sync.Mutex
	runs map[string]*domain.WorkflowRun
}

// NewInMemoryWorkflowRunRepository keeps runs in process memory. Runs do not survive a restart.
func NewInMemoryWorkflowRunRepository() WorkflowRunRepository {
	return &inMemoryWorkflowRunRepository{runs: make(map[string]*domain.WorkflowRun)}
}

func (r *inMemoryWorkflowRunRepository) LoadOrCreate(_ context.Context, run *domain.WorkflowRun) (*domain.WorkflowRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.runs[run.ID]; ok {
		return cloneRun(existing), nil
	}
	now := time.Now().UTC()
	stored := cloneRun(run)
	stored.Steps = nil
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.runs[run.ID] = stored
	return cloneRun(stored), nil
}

func (r *inMemoryWorkflowRunRepository) GetByID(_ context.Context, id string) (*domain.WorkflowRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return cloneRun(run), nil
}

func (r *inMemoryWorkflowRunRepository) UpdateRun(_ context.Context, run *domain.WorkflowRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.runs[run.ID]
	if !ok {
		return ErrRunNotFound
	}
	stored.Status = run.Status
	stored.Output = append([]byte(nil), run.Output...)
	stored.Error = run.Error
	stored.ErrorCode = run.ErrorCode
	stored.Executions = run.Executions
	stored.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *inMemoryWorkflowRunRepository) SaveStep(_ context.Context, runID string, step *domain.StepRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.runs[runID]
	if !ok {
		return ErrRunNotFound
	}
	record := *step
	record.Result = append([]byte(nil), step.Result...)
	record.UpdatedAt = time.Now().UTC()
	if existing, ok := stored.Step(step.Name); ok {
		if existing.Status == domain.StepStatusSucceeded {
			return ErrStepSucceeded
		}
		*existing = record
		return nil
	}
	stored.Steps = append(stored.Steps, record)
	return nil
}

func (r *inMemoryWorkflowRunRepository) List(_ context.Context, filter RunFilter) ([]domain.WorkflowRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.WorkflowRun
	for _, run := range r.runs {
		if filter.Status != nil && run.Status != *filter.Status {
			continue
		}
		if filter.ErrorCode != nil && run.ErrorCode != *filter.ErrorCode {
			continue
		}
		if filter.MaxExecutions > 0 && run.Executions >= filter.MaxExecutions {
			continue
		}
		listed := cloneRun(run)
		listed.Steps = nil
		result = append(result, *listed)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.Before(result[j].UpdatedAt)
	})
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func cloneRun(run *domain.WorkflowRun) *domain.WorkflowRun {
	out := *run
	out.EventData = append([]byte(nil), run.EventData...)
	out.Output = append([]byte(nil), run.Output...)
	out.Steps = make([]domain.StepRecord, len(run.Steps))
	for i, step := range run.Steps {
		out.Steps[i] = step
		out.Steps[i].Result = append([]byte(nil), step.Result...)
	}
	return &out
}

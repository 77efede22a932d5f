package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/events"
	"github.com/spec-kit/ticket-triage/internal/repository"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util/errorutil"
)

// Redriver republishes the trigger event of failed runs so the engine resumes them.
type Redriver struct {
	runs          repository.WorkflowRunRepository
	publisher     events.Publisher
	maxExecutions int
	batchSize     int
	logger        *zap.Logger
}

// NewRedriver creates a redriver. Runs that already executed maxExecutions times are left alone.
func NewRedriver(runs repository.WorkflowRunRepository, publisher events.Publisher, maxExecutions, batchSize int, logger *zap.Logger) *Redriver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redriver{
		runs:          runs,
		publisher:     publisher,
		maxExecutions: maxExecutions,
		batchSize:     batchSize,
		logger:        logger,
	}
}

// RedriveFailed republishes a batch of runs that failed on an exhausted step.
func (r *Redriver) RedriveFailed(ctx context.Context) (int, error) {
	status := domain.RunStatusFailed
	code := apperrors.CodeStepFailed
	runs, err := r.runs.List(ctx, repository.RunFilter{
		Status:        &status,
		ErrorCode:     &code,
		MaxExecutions: r.maxExecutions,
		Limit:         r.batchSize,
	})
	if err != nil {
		return 0, fmt.Errorf("list failed runs: %w", err)
	}

	redriven := 0
	for i := range runs {
		if err := r.republish(ctx, &runs[i]); err != nil {
			r.logger.Warn("redrive failed", zap.String("run_id", runs[i].ID), zap.Error(err))
			continue
		}
		redriven++
	}
	return redriven, nil
}

// Redrive republishes one failed run on request.
func (r *Redriver) Redrive(ctx context.Context, runID string) error {
	run, err := r.runs.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, repository.ErrRunNotFound) {
			return apperrors.NewNotFound("workflow run", map[string]any{"run_id": runID})
		}
		return err
	}

	details := map[string]any{"run_id": runID, "status": run.Status, "error_code": run.ErrorCode}
	switch {
	case run.Status != domain.RunStatusFailed:
		return apperrors.NewConflict("only failed runs can be redriven", details)
	case run.ErrorCode == apperrors.CodeValidation:
		return apperrors.NewConflict("run failed validation and cannot succeed on retry", details)
	case r.maxExecutions > 0 && run.Executions >= r.maxExecutions:
		return apperrors.NewConflict("run reached its execution limit", details)
	}
	return r.republish(ctx, run)
}

func (r *Redriver) republish(ctx context.Context, run *domain.WorkflowRun) error {
	var data map[string]any
	if len(run.EventData) > 0 {
		if err := json.Unmarshal(run.EventData, &data); err != nil {
			return fmt.Errorf("decode stored event: %w", err)
		}
	}
	event := events.NewEvent(events.Name(run.EventName), data)
	if err := r.publisher.Publish(ctx, event); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	r.logger.Info("run redriven",
		zap.String("run_id", run.ID),
		zap.String("workflow", run.WorkflowName),
		zap.String("event_id", event.ID),
		zap.Int("executions", run.Executions),
	)
	return nil
}

package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/events"
	"github.com/spec-kit/ticket-triage/internal/repository"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util/errorutil"
)

// StepContext is handed to a workflow handler for the duration of one execution.
type StepContext struct {
	ctx      context.Context
	engine   *Engine
	workflow string
	run      *domain.WorkflowRun
	event    events.Event
	logger   *zap.Logger
	seen     map[string]struct{}
}

// Context returns the execution context.
func (sc *StepContext) Context() context.Context { return sc.ctx }

// Event returns the triggering event.
func (sc *StepContext) Event() events.Event { return sc.event }

// RunID returns the id of the current run.
func (sc *StepContext) RunID() string { return sc.run.ID }

// Logger returns a logger tagged with the run.
func (sc *StepContext) Logger() *zap.Logger { return sc.logger }

// Run executes fn as the named step. A step that already succeeded in this run is not
// invoked again; its stored result is decoded into T instead. Otherwise fn is attempted
// per the engine's retry policy and the outcome of every attempt is persisted.
// Step names must be unique within a workflow.
func Run[T any](sc *StepContext, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if _, dup := sc.seen[name]; dup {
		return zero, apperrors.NewValidationError(fmt.Sprintf("duplicate step %q", name), nil)
	}
	sc.seen[name] = struct{}{}

	logger := sc.logger.With(zap.String("step", name))

	prior := 0
	if rec, ok := sc.run.Step(name); ok {
		if rec.Status == domain.StepStatusSucceeded {
			logger.Debug("step memoized")
			return decodeResult[T](rec)
		}
		prior = rec.Attempts
	}

	policy := sc.engine.policy
	maxAttempts := policy.attempts()
	record := &domain.StepRecord{Name: name}
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if err := WaitForBackoff(sc.ctx, ComputeBackoff(policy, attempt-1)); err != nil {
				return zero, err
			}
		}

		record.Status = domain.StepStatusRunning
		record.Attempts = prior + attempt + 1
		attemptLogger := logger.With(zap.Int("attempt", record.Attempts))
		if err := sc.save(record); err != nil {
			if errors.Is(err, repository.ErrStepSucceeded) {
				return reloadMemoized[T](sc, name)
			}
			return zero, fmt.Errorf("persist step %q: %w", name, err)
		}

		started := time.Now()
		result, err := fn(sc.ctx)
		elapsed := time.Since(started)

		if err == nil {
			raw, mErr := json.Marshal(result)
			if mErr != nil {
				err = apperrors.NewValidationError(fmt.Sprintf("step %q result is not serializable", name), map[string]any{"error": mErr.Error()})
			} else {
				record.Status = domain.StepStatusSucceeded
				record.Result = raw
				record.LastError = ""
				if saveErr := sc.save(record); saveErr != nil {
					if errors.Is(saveErr, repository.ErrStepSucceeded) {
						// A concurrent execution won; its result is the one that counts.
						return reloadMemoized[T](sc, name)
					}
					return zero, fmt.Errorf("persist step %q: %w", name, saveErr)
				}
				sc.engine.metrics.RecordStepAttempt(sc.workflow, name, "succeeded", elapsed)
				attemptLogger.Info("step succeeded", zap.Duration("duration", elapsed))
				return result, nil
			}
		}

		lastErr = err
		record.LastError = err.Error()
		sc.engine.metrics.RecordStepAttempt(sc.workflow, name, "failed", elapsed)

		if apperrors.IsPermanent(err) {
			record.Status = domain.StepStatusFailed
			if saveErr := sc.save(record); saveErr != nil {
				attemptLogger.Error("failed to persist step failure", zap.Error(saveErr))
			}
			attemptLogger.Error("step failed permanently", zap.Error(err))
			return zero, err
		}
		attemptLogger.Warn("step attempt failed", zap.Error(err))
	}

	record.Status = domain.StepStatusFailed
	if err := sc.save(record); err != nil {
		logger.Error("failed to persist step failure", zap.Error(err))
	}
	return zero, apperrors.NewStepFailed(name, record.Attempts, lastErr)
}

func (sc *StepContext) save(record *domain.StepRecord) error {
	if err := sc.engine.runs.SaveStep(context.WithoutCancel(sc.ctx), sc.run.ID, record); err != nil {
		return err
	}
	stored := *record
	stored.Result = append(json.RawMessage(nil), record.Result...)
	if existing, ok := sc.run.Step(record.Name); ok {
		*existing = stored
	} else {
		sc.run.Steps = append(sc.run.Steps, stored)
	}
	return nil
}

// reloadMemoized refreshes the run from the store and returns the succeeded result of name.
func reloadMemoized[T any](sc *StepContext, name string) (T, error) {
	var zero T
	run, err := sc.engine.runs.GetByID(context.WithoutCancel(sc.ctx), sc.run.ID)
	if err != nil {
		return zero, fmt.Errorf("reload run for step %q: %w", name, err)
	}
	sc.run.Steps = run.Steps
	rec, ok := sc.run.Step(name)
	if !ok || rec.Status != domain.StepStatusSucceeded {
		return zero, fmt.Errorf("step %q not found as succeeded after store conflict", name)
	}
	return decodeResult[T](rec)
}

func decodeResult[T any](rec *domain.StepRecord) (T, error) {
	var out T
	if len(rec.Result) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(rec.Result, &out); err != nil {
		return out, fmt.Errorf("decode memoized step %q: %w", rec.Name, err)
	}
	return out, nil
}

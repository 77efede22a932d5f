package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/events"
	"github.com/spec-kit/ticket-triage/internal/observability"
	"github.com/spec-kit/ticket-triage/internal/repository"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util/errorutil"
)

// Workflow is a named, event-triggered sequence of steps.
type Workflow struct {
	Name  string
	Event events.Name
	// Identity returns the key that makes redeliveries of one occurrence share a run.
	// An empty identity falls back to the event id.
	Identity func(events.Event) string
	// Handler runs the steps and returns the run output.
	Handler func(sc *StepContext) (any, error)
}

// RunResult is the outcome of Execute.
type RunResult struct {
	RunID  string           `json:"run_id"`
	Status domain.RunStatus `json:"status"`
	Output json.RawMessage  `json:"output,omitempty"`
	// Replayed is true when the run had already succeeded and nothing was executed.
	Replayed bool `json:"replayed"`
}

// Options configures an Engine.
type Options struct {
	Policy  RetryPolicy
	Logger  *zap.Logger
	Metrics *observability.Metrics
}

// Engine executes workflows with durable, memoized steps.
type Engine struct {
	runs    repository.WorkflowRunRepository
	policy  RetryPolicy
	logger  *zap.Logger
	metrics *observability.Metrics
	group   singleflight.Group
}

// NewEngine creates an engine persisting to runs.
func NewEngine(runs repository.WorkflowRunRepository, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		runs:    runs,
		policy:  opts.Policy,
		logger:  logger,
		metrics: opts.Metrics,
	}
}

// Handler adapts wf to an event subscription.
func (e *Engine) Handler(wf Workflow) events.EventHandler {
	return func(ctx context.Context, event events.Event) error {
		_, err := e.Execute(ctx, wf, event)
		return err
	}
}

// Register subscribes each workflow to its trigger event.
func (e *Engine) Register(router *events.Router, workflows ...Workflow) {
	for _, wf := range workflows {
		router.Subscribe(wf.Event, e.Handler(wf))
	}
}

// Execute runs wf for event. A run that already succeeded returns its stored output;
// a failed or interrupted run resumes after its last succeeded step.
func (e *Engine) Execute(ctx context.Context, wf Workflow, event events.Event) (*RunResult, error) {
	identity := ""
	if wf.Identity != nil {
		identity = wf.Identity(event)
	}
	if identity == "" {
		identity = event.ID
	}
	runID := RunID(wf.Name, identity)

	v, err, _ := e.group.Do(runID, func() (any, error) {
		return e.execute(ctx, wf, event, runID)
	})
	result, _ := v.(*RunResult)
	return result, err
}

func (e *Engine) execute(ctx context.Context, wf Workflow, event events.Event, runID string) (*RunResult, error) {
	logger := e.logger.With(zap.String("run_id", runID), zap.String("workflow", wf.Name), zap.String("event_id", event.ID))

	eventData, err := json.Marshal(event.Data)
	if err != nil {
		return nil, apperrors.NewValidationError("event data is not serializable", map[string]any{"error": err.Error()})
	}

	run, err := e.runs.LoadOrCreate(ctx, &domain.WorkflowRun{
		ID:           runID,
		WorkflowName: wf.Name,
		EventName:    string(event.Name),
		EventData:    eventData,
		Status:       domain.RunStatusRunning,
	})
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}

	if run.Status == domain.RunStatusSucceeded {
		logger.Info("run already succeeded, skipping")
		return &RunResult{RunID: runID, Status: run.Status, Output: run.Output, Replayed: true}, nil
	}

	run.Executions++
	run.Status = domain.RunStatusRunning
	run.Error = ""
	run.ErrorCode = ""
	if err := e.runs.UpdateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("start run %s: %w", runID, err)
	}
	logger.Info("run started", zap.Int("execution", run.Executions), zap.Int("memoized_steps", countSucceeded(run)))

	sc := &StepContext{
		ctx:      ctx,
		engine:   e,
		workflow: wf.Name,
		run:      run,
		event:    event,
		logger:   logger,
		seen:     make(map[string]struct{}),
	}

	output, runErr := wf.Handler(sc)
	// Final state is written even if the caller gave up.
	persistCtx := context.WithoutCancel(ctx)

	if runErr == nil {
		raw, err := json.Marshal(output)
		if err != nil {
			runErr = apperrors.NewValidationError("workflow output is not serializable", map[string]any{"error": err.Error()})
		} else {
			run.Status = domain.RunStatusSucceeded
			run.Output = raw
			if err := e.runs.UpdateRun(persistCtx, run); err != nil {
				return nil, fmt.Errorf("complete run %s: %w", runID, err)
			}
			e.metrics.RecordRun(wf.Name, string(run.Status))
			logger.Info("run succeeded")
			return &RunResult{RunID: runID, Status: run.Status, Output: raw}, nil
		}
	}

	run.Status = domain.RunStatusFailed
	run.Output = nil
	run.Error = runErr.Error()
	run.ErrorCode = apperrors.CodeOf(runErr)
	if err := e.runs.UpdateRun(persistCtx, run); err != nil {
		logger.Error("failed to persist run failure", zap.Error(err))
	}
	e.metrics.RecordRun(wf.Name, string(run.Status))
	logger.Error("run failed", zap.String("error_code", run.ErrorCode), zap.Error(runErr))
	return &RunResult{RunID: runID, Status: run.Status}, runErr
}

// Status returns the stored run with its steps.
func (e *Engine) Status(ctx context.Context, runID string) (*domain.WorkflowRun, error) {
	run, err := e.runs.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, repository.ErrRunNotFound) {
			return nil, apperrors.NewNotFound("workflow run", map[string]any{"run_id": runID})
		}
		return nil, err
	}
	return run, nil
}

func countSucceeded(run *domain.WorkflowRun) int {
	n := 0
	for _, step := range run.Steps {
		if step.Status == domain.StepStatusSucceeded {
			n++
		}
	}
	return n
}

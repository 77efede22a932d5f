package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/events"
	"github.com/spec-kit/ticket-triage/internal/observability"
	"github.com/spec-kit/ticket-triage/internal/repository"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util/errorutil"
)

type classification struct {
	Skills []string `json:"skills"`
}

func newTestEngine(t *testing.T, attempts int) (*Engine, repository.WorkflowRunRepository, *observability.Metrics) {
	t.Helper()
	runs := repository.NewInMemoryWorkflowRunRepository()
	metrics := observability.NewMetrics()
	engine := NewEngine(runs, Options{
		Policy:  RetryPolicy{MaxAttempts: attempts, Backoff: BackoffNone},
		Logger:  zap.NewNop(),
		Metrics: metrics,
	})
	return engine, runs, metrics
}

func ticketEvent(id string) events.Event {
	return events.Event{ID: "evt-" + id, Name: events.EventTicketCreate, Data: map[string]any{"ticketId": id}}
}

func byTicketID(e events.Event) string {
	id, _ := e.Data["ticketId"].(string)
	return id
}

// twoStepWorkflow counts invocations and fails the second step while failSecond is set.
type twoStepWorkflow struct {
	first, second atomic.Int32
	failSecond    atomic.Bool
	order         []string
	mu            sync.Mutex
}

func (w *twoStepWorkflow) record(step string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.order = append(w.order, step)
}

func (w *twoStepWorkflow) definition() Workflow {
	return Workflow{
		Name:     "two-step",
		Event:    events.EventTicketCreate,
		Identity: byTicketID,
		Handler: func(sc *StepContext) (any, error) {
			c, err := Run(sc, "classify", func(context.Context) (classification, error) {
				w.first.Add(1)
				w.record("classify")
				return classification{Skills: []string{"auth"}}, nil
			})
			if err != nil {
				return nil, err
			}
			assigned, err := Run(sc, "assign", func(context.Context) (string, error) {
				w.second.Add(1)
				w.record("assign")
				if w.failSecond.Load() {
					return "", errors.New("database unavailable")
				}
				return "agent-for-" + c.Skills[0], nil
			})
			if err != nil {
				return nil, err
			}
			return map[string]any{"success": true, "assignedTo": assigned}, nil
		},
	}
}

func TestExecuteIsIdempotent(t *testing.T) {
	engine, _, metrics := newTestEngine(t, 3)
	wf := &twoStepWorkflow{}
	ctx := context.Background()

	first, err := engine.Execute(ctx, wf.definition(), ticketEvent("T1"))
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusSucceeded, first.Status)
	assert.False(t, first.Replayed)

	second, err := engine.Execute(ctx, wf.definition(), ticketEvent("T1"))
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.RunID, second.RunID)
	assert.JSONEq(t, string(first.Output), string(second.Output))

	assert.Equal(t, int32(1), wf.first.Load())
	assert.Equal(t, int32(1), wf.second.Load())
	assert.Equal(t, int64(1), metrics.Snapshot().Runs["two-step|succeeded"])
}

func TestStepsRunSequentially(t *testing.T) {
	engine, _, _ := newTestEngine(t, 1)
	wf := &twoStepWorkflow{}

	res, err := engine.Execute(context.Background(), wf.definition(), ticketEvent("T1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"classify", "assign"}, wf.order)

	var out map[string]any
	require.NoError(t, json.Unmarshal(res.Output, &out))
	assert.Equal(t, "agent-for-auth", out["assignedTo"])
}

func TestRetryExhaustionFailsRunWithoutRollback(t *testing.T) {
	engine, runs, _ := newTestEngine(t, 3)
	wf := &twoStepWorkflow{}
	wf.failSecond.Store(true)

	res, err := engine.Execute(context.Background(), wf.definition(), ticketEvent("T2"))
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeStepFailed, apperrors.CodeOf(err))
	assert.ErrorContains(t, err, "database unavailable")
	assert.Equal(t, domain.RunStatusFailed, res.Status)
	assert.Equal(t, int32(3), wf.second.Load())

	run, err := runs.GetByID(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusFailed, run.Status)
	assert.Equal(t, apperrors.CodeStepFailed, run.ErrorCode)

	classify, ok := run.Step("classify")
	require.True(t, ok)
	assert.Equal(t, domain.StepStatusSucceeded, classify.Status)

	assign, ok := run.Step("assign")
	require.True(t, ok)
	assert.Equal(t, domain.StepStatusFailed, assign.Status)
	assert.Equal(t, 3, assign.Attempts)
	assert.Equal(t, "database unavailable", assign.LastError)
}

func TestFailedRunResumesAfterLastSucceededStep(t *testing.T) {
	engine, runs, _ := newTestEngine(t, 2)
	wf := &twoStepWorkflow{}
	wf.failSecond.Store(true)
	ctx := context.Background()

	_, err := engine.Execute(ctx, wf.definition(), ticketEvent("T3"))
	require.Error(t, err)

	wf.failSecond.Store(false)
	res, err := engine.Execute(ctx, wf.definition(), ticketEvent("T3"))
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusSucceeded, res.Status)

	assert.Equal(t, int32(1), wf.first.Load(), "memoized step must not run again")
	assert.Equal(t, int32(3), wf.second.Load())

	run, err := runs.GetByID(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, 2, run.Executions)
	assert.Empty(t, run.ErrorCode)
	assign, _ := run.Step("assign")
	assert.Equal(t, 3, assign.Attempts)
}

func TestPermanentErrorIsNotRetried(t *testing.T) {
	engine, _, _ := newTestEngine(t, 5)
	calls := 0
	wf := Workflow{
		Name:     "validate",
		Event:    events.EventUserSignup,
		Identity: byTicketID,
		Handler: func(sc *StepContext) (any, error) {
			return Run(sc, "check", func(context.Context) (bool, error) {
				calls++
				return false, apperrors.NewValidationError("missing email", nil)
			})
		},
	}

	_, err := engine.Execute(context.Background(), wf, ticketEvent("T4"))
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))
}

func TestTransientErrorRecovers(t *testing.T) {
	engine, runs, metrics := newTestEngine(t, 4)
	calls := 0
	wf := Workflow{
		Name:     "flaky",
		Event:    events.EventTicketCreate,
		Identity: byTicketID,
		Handler: func(sc *StepContext) (any, error) {
			return Run(sc, "send", func(context.Context) (int, error) {
				calls++
				if calls < 3 {
					return 0, errors.New("smtp 421")
				}
				return calls, nil
			})
		},
	}

	res, err := engine.Execute(context.Background(), wf, ticketEvent("T5"))
	require.NoError(t, err)
	assert.JSONEq(t, "3", string(res.Output))

	run, _ := runs.GetByID(context.Background(), res.RunID)
	send, _ := run.Step("send")
	assert.Equal(t, 3, send.Attempts)
	assert.Empty(t, send.LastError)

	steps := metrics.Snapshot().Steps
	assert.Equal(t, int64(2), steps["flaky|send|failed"])
	assert.Equal(t, int64(1), steps["flaky|send|succeeded"])
}

func TestConcurrentDeliveriesShareOneRun(t *testing.T) {
	engine, _, _ := newTestEngine(t, 1)
	var calls atomic.Int32
	wf := Workflow{
		Name:     "slow",
		Event:    events.EventTicketCreate,
		Identity: byTicketID,
		Handler: func(sc *StepContext) (any, error) {
			return Run(sc, "work", func(context.Context) (string, error) {
				calls.Add(1)
				time.Sleep(20 * time.Millisecond)
				return "done", nil
			})
		},
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := engine.Execute(context.Background(), wf, ticketEvent("T6"))
			assert.NoError(t, err)
			assert.Equal(t, domain.RunStatusSucceeded, res.Status)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestDuplicateStepNameIsRejected(t *testing.T) {
	engine, _, _ := newTestEngine(t, 1)
	wf := Workflow{
		Name:     "dup",
		Event:    events.EventTicketCreate,
		Identity: byTicketID,
		Handler: func(sc *StepContext) (any, error) {
			if _, err := Run(sc, "a", func(context.Context) (int, error) { return 1, nil }); err != nil {
				return nil, err
			}
			return Run(sc, "a", func(context.Context) (int, error) { return 2, nil })
		},
	}

	_, err := engine.Execute(context.Background(), wf, ticketEvent("T7"))
	assert.ErrorContains(t, err, `duplicate step "a"`)
}

func TestIdentityFallsBackToEventID(t *testing.T) {
	engine, _, _ := newTestEngine(t, 1)
	wf := Workflow{
		Name:    "anon",
		Event:   events.EventUserSignup,
		Handler: func(sc *StepContext) (any, error) { return sc.RunID(), nil },
	}

	res, err := engine.Execute(context.Background(), wf, events.Event{ID: "evt-9", Name: events.EventUserSignup})
	require.NoError(t, err)
	assert.Equal(t, RunID("anon", "evt-9"), res.RunID)
}

func TestStatus(t *testing.T) {
	engine, _, _ := newTestEngine(t, 1)
	wf := &twoStepWorkflow{}

	res, err := engine.Execute(context.Background(), wf.definition(), ticketEvent("T8"))
	require.NoError(t, err)

	run, err := engine.Status(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Len(t, run.Steps, 2)
	assert.Equal(t, string(events.EventTicketCreate), run.EventName)
	assert.JSONEq(t, `{"ticketId":"T8"}`, string(run.EventData))

	_, err = engine.Status(context.Background(), "missing")
	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))
}

func TestRegisterSubscribesWorkflows(t *testing.T) {
	engine, _, _ := newTestEngine(t, 1)
	wf := &twoStepWorkflow{}
	router := events.NewRouter()
	engine.Register(router, wf.definition())

	require.NoError(t, router.Dispatch(context.Background(), ticketEvent("T9")))
	assert.Equal(t, int32(1), wf.first.Load())
}

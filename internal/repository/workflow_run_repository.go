package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

var (
	// ErrRunNotFound is returned when no run exists for an id.
	ErrRunNotFound = errors.New("workflow run not found")
	// ErrStepSucceeded is returned when a write would overwrite a succeeded step.
	ErrStepSucceeded = errors.New("step already succeeded")
)

// RunFilter narrows run listings.
type RunFilter struct {
	Status        *domain.RunStatus
	ErrorCode     *string
	MaxExecutions int
	Limit         int
}

// WorkflowRunRepository durably stores runs and their step records.
// Implementations must be safe for concurrent use.
type WorkflowRunRepository interface {
	// LoadOrCreate inserts run unless a run with the same id exists, then returns the stored run.
	LoadOrCreate(ctx context.Context, run *domain.WorkflowRun) (*domain.WorkflowRun, error)
	GetByID(ctx context.Context, id string) (*domain.WorkflowRun, error)
	// UpdateRun persists status, output, error fields and the execution counter.
	UpdateRun(ctx context.Context, run *domain.WorkflowRun) error
	// SaveStep upserts a step record. It returns ErrStepSucceeded instead of touching a succeeded step.
	SaveStep(ctx context.Context, runID string, step *domain.StepRecord) error
	// List returns runs without their steps, oldest update first.
	List(ctx context.Context, filter RunFilter) ([]domain.WorkflowRun, error)
}

type workflowRunRepository struct {
	pool *pgxpool.Pool
}

// NewWorkflowRunRepository returns a Postgres-backed run store.
func NewWorkflowRunRepository(pool *pgxpool.Pool) WorkflowRunRepository {
	return &workflowRunRepository{pool: pool}
}

func (r *workflowRunRepository) LoadOrCreate(ctx context.Context, run *domain.WorkflowRun) (*domain.WorkflowRun, error) {
	const query = `
        INSERT INTO workflow_runs (id, workflow_name, event_name, event_data, status, executions)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (id) DO NOTHING`
	if _, err := r.pool.Exec(ctx, query,
		run.ID,
		run.WorkflowName,
		run.EventName,
		[]byte(run.EventData),
		run.Status,
		run.Executions,
	); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, run.ID)
}

func (r *workflowRunRepository) GetByID(ctx context.Context, id string) (*domain.WorkflowRun, error) {
	const runQuery = `
        SELECT id, workflow_name, event_name, event_data, status, output, error, error_code, executions, created_at, updated_at
        FROM workflow_runs WHERE id=$1`
	run, err := scanRun(r.pool.QueryRow(ctx, runQuery, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}

	const stepQuery = `
        SELECT step_name, status, result, attempts, last_error, updated_at
        FROM workflow_steps WHERE run_id=$1 ORDER BY seq ASC`
	rows, err := r.pool.Query(ctx, stepQuery, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			step   domain.StepRecord
			result []byte
		)
		if err := rows.Scan(
			&step.Name,
			&step.Status,
			&result,
			&step.Attempts,
			&step.LastError,
			&step.UpdatedAt,
		); err != nil {
			return nil, err
		}
		step.Result = result
		run.Steps = append(run.Steps, step)
	}
	return run, rows.Err()
}

func (r *workflowRunRepository) UpdateRun(ctx context.Context, run *domain.WorkflowRun) error {
	const query = `
        UPDATE workflow_runs SET status=$1, output=$2, error=$3, error_code=$4, executions=$5, updated_at=NOW()
        WHERE id=$6`
	cmd, err := r.pool.Exec(ctx, query,
		run.Status,
		[]byte(run.Output),
		run.Error,
		run.ErrorCode,
		run.Executions,
		run.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrRunNotFound
	}
	return nil
}

func (r *workflowRunRepository) SaveStep(ctx context.Context, runID string, step *domain.StepRecord) error {
	const query = `
        INSERT INTO workflow_steps (run_id, step_name, status, result, attempts, last_error)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (run_id, step_name) DO UPDATE
        SET status=EXCLUDED.status, result=EXCLUDED.result, attempts=EXCLUDED.attempts,
            last_error=EXCLUDED.last_error, updated_at=NOW()
        WHERE workflow_steps.status <> 'succeeded'`
	cmd, err := r.pool.Exec(ctx, query,
		runID,
		step.Name,
		step.Status,
		[]byte(step.Result),
		step.Attempts,
		step.LastError,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrStepSucceeded
	}
	return nil
}

func (r *workflowRunRepository) List(ctx context.Context, filter RunFilter) ([]domain.WorkflowRun, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.ErrorCode != nil {
		args = append(args, *filter.ErrorCode)
		clauses = append(clauses, fmt.Sprintf("error_code=$%d", len(args)))
	}
	if filter.MaxExecutions > 0 {
		args = append(args, filter.MaxExecutions)
		clauses = append(clauses, fmt.Sprintf("executions < $%d", len(args)))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(`
        SELECT id, workflow_name, event_name, event_data, status, output, error, error_code, executions, created_at, updated_at
        FROM workflow_runs WHERE %s ORDER BY updated_at ASC LIMIT %d`,
		strings.Join(clauses, " AND "), limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.WorkflowRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *run)
	}
	return result, rows.Err()
}

// rowScanner is satisfied by pgx.Row, pgx.Rows, *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*domain.WorkflowRun, error) {
	var (
		run       domain.WorkflowRun
		eventData []byte
		output    []byte
	)
	if err := row.Scan(
		&run.ID,
		&run.WorkflowName,
		&run.EventName,
		&eventData,
		&run.Status,
		&output,
		&run.Error,
		&run.ErrorCode,
		&run.Executions,
		&run.CreatedAt,
		&run.UpdatedAt,
	); err != nil {
		return nil, err
	}
	run.EventData = eventData
	run.Output = output
	return &run, nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

// SQLiteRunSchema creates the run tables on a SQLite database.
const SQLiteRunSchema = `
CREATE TABLE IF NOT EXISTS workflow_runs (
    id            TEXT PRIMARY KEY,
    workflow_name TEXT NOT NULL,
    event_name    TEXT NOT NULL,
    event_data    BLOB,
    status        TEXT NOT NULL,
    output        BLOB,
    error         TEXT NOT NULL DEFAULT '',
    error_code    TEXT NOT NULL DEFAULT '',
    executions    INTEGER NOT NULL DEFAULT 0,
    created_at    DATETIME NOT NULL,
    updated_at    DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_workflow_runs_status ON workflow_runs(status, error_code);
CREATE TABLE IF NOT EXISTS workflow_steps (
    seq        INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id     TEXT NOT NULL REFERENCES workflow_runs(id) ON DELETE CASCADE,
    step_name  TEXT NOT NULL,
    status     TEXT NOT NULL,
    result     BLOB,
    attempts   INTEGER NOT NULL DEFAULT 0,
    last_error TEXT NOT NULL DEFAULT '',
    updated_at DATETIME NOT NULL,
    UNIQUE (run_id, step_name)
);`

type sqliteWorkflowRunRepository struct {
	db *sql.DB
}

// NewSQLiteWorkflowRunRepository returns a run store on a database/sql SQLite handle.
// The schema must already exist (see SQLiteRunSchema).
func NewSQLiteWorkflowRunRepository(db *sql.DB) WorkflowRunRepository {
	return &sqliteWorkflowRunRepository{db: db}
}

func (r *sqliteWorkflowRunRepository) LoadOrCreate(ctx context.Context, run *domain.WorkflowRun) (*domain.WorkflowRun, error) {
	const query = `
        INSERT INTO workflow_runs (id, workflow_name, event_name, event_data, status, executions, created_at, updated_at)
        VALUES (?,?,?,?,?,?,?,?)
        ON CONFLICT (id) DO NOTHING`
	now := time.Now().UTC()
	if _, err := r.db.ExecContext(ctx, query,
		run.ID,
		run.WorkflowName,
		run.EventName,
		[]byte(run.EventData),
		string(run.Status),
		run.Executions,
		now,
		now,
	); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, run.ID)
}

func (r *sqliteWorkflowRunRepository) GetByID(ctx context.Context, id string) (*domain.WorkflowRun, error) {
	const runQuery = `
        SELECT id, workflow_name, event_name, event_data, status, output, error, error_code, executions, created_at, updated_at
        FROM workflow_runs WHERE id=?`
	run, err := scanRun(r.db.QueryRowContext(ctx, runQuery, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}

	const stepQuery = `
        SELECT step_name, status, result, attempts, last_error, updated_at
        FROM workflow_steps WHERE run_id=? ORDER BY seq ASC`
	rows, err := r.db.QueryContext(ctx, stepQuery, id)
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

func (r *sqliteWorkflowRunRepository) UpdateRun(ctx context.Context, run *domain.WorkflowRun) error {
	const query = `
        UPDATE workflow_runs SET status=?, output=?, error=?, error_code=?, executions=?, updated_at=?
        WHERE id=?`
	res, err := r.db.ExecContext(ctx, query,
		string(run.Status),
		[]byte(run.Output),
		run.Error,
		run.ErrorCode,
		run.Executions,
		time.Now().UTC(),
		run.ID,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrRunNotFound
	}
	return nil
}

func (r *sqliteWorkflowRunRepository) SaveStep(ctx context.Context, runID string, step *domain.StepRecord) error {
	const query = `
        INSERT INTO workflow_steps (run_id, step_name, status, result, attempts, last_error, updated_at)
        VALUES (?,?,?,?,?,?,?)
        ON CONFLICT (run_id, step_name) DO UPDATE
        SET status=excluded.status, result=excluded.result, attempts=excluded.attempts,
            last_error=excluded.last_error, updated_at=excluded.updated_at
        WHERE workflow_steps.status <> 'succeeded'`
	res, err := r.db.ExecContext(ctx, query,
		runID,
		step.Name,
		string(step.Status),
		[]byte(step.Result),
		step.Attempts,
		step.LastError,
		time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrStepSucceeded
	}
	return nil
}

func (r *sqliteWorkflowRunRepository) List(ctx context.Context, filter RunFilter) ([]domain.WorkflowRun, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Status != nil {
		clauses = append(clauses, "status=?")
		args = append(args, string(*filter.Status))
	}
	if filter.ErrorCode != nil {
		clauses = append(clauses, "error_code=?")
		args = append(args, *filter.ErrorCode)
	}
	if filter.MaxExecutions > 0 {
		clauses = append(clauses, "executions < ?")
		args = append(args, filter.MaxExecutions)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(`
        SELECT id, workflow_name, event_name, event_data, status, output, error, error_code, executions, created_at, updated_at
        FROM workflow_runs WHERE %s ORDER BY updated_at ASC LIMIT %d`,
		strings.Join(clauses, " AND "), limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
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

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-triage/internal/domain"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util/errorutil"
)

// TicketFilter captures listing parameters.
type TicketFilter struct {
	CreatedBy  *string
	AssignedTo *string
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	Limit      int
	Offset     int
}

// TicketRepository encapsulates ticket persistence used by triage.
type TicketRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	UpdateTriage(ctx context.Context, id string, update domain.TicketTriageUpdate) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `t.id, t.title, t.description, t.created_by, t.status, t.priority, t.assigned_to, t.ai_metadata,
               t.created_at, t.updated_at, u.id, u.name, u.email, u.role, u.skills, u.created_at`

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + `
        FROM tickets t LEFT JOIN users u ON u.id = t.assigned_to
        WHERE t.id=$1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	return ticket, ticketNotFound(err, id)
}

// UpdateTriage writes classification, priority, assignee and status in one statement
// and returns the updated ticket with its assignee populated.
func (r *ticketRepository) UpdateTriage(ctx context.Context, id string, update domain.TicketTriageUpdate) (*domain.Ticket, error) {
	metadata, err := json.Marshal(update.AIMetadata)
	if err != nil {
		return nil, fmt.Errorf("encode ai metadata: %w", err)
	}
	query := `
        WITH t AS (
            UPDATE tickets SET ai_metadata=$1, priority=$2, assigned_to=$3, status=$4, updated_at=NOW()
            WHERE id=$5
            RETURNING *
        )
        SELECT ` + ticketColumns + `
        FROM t LEFT JOIN users u ON u.id = t.assigned_to`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query,
		metadata,
		update.Priority,
		update.AssigneeID,
		update.Status,
		id,
	))
	return ticket, ticketNotFound(err, id)
}

// ticketNotFound turns a missing row into an errorutil NotFound error.
func ticketNotFound(err error, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
	}
	return err
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CreatedBy != nil {
		args = append(args, *filter.CreatedBy)
		clauses = append(clauses, fmt.Sprintf("t.created_by=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("t.assigned_to=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("t.status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("t.priority IN (%s)", strings.Join(placeholders, ",")))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets t LEFT JOIN users u ON u.id = t.assigned_to
             WHERE %s ORDER BY t.created_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		ticket          domain.Ticket
		metadata        []byte
		assigneeID      *string
		assigneeName    *string
		assigneeEmail   *string
		assigneeRole    *string
		assigneeSkills  []string
		assigneeCreated *time.Time
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.CreatedBy,
		&ticket.Status,
		&ticket.Priority,
		&ticket.AssignedTo,
		&metadata,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&assigneeID,
		&assigneeName,
		&assigneeEmail,
		&assigneeRole,
		&assigneeSkills,
		&assigneeCreated,
	); err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		var classification domain.ClassificationResult
		if err := json.Unmarshal(metadata, &classification); err != nil {
			return nil, fmt.Errorf("decode ai metadata: %w", err)
		}
		ticket.AIMetadata = &classification
	}
	if assigneeID != nil {
		ticket.Assignee = &domain.User{
			ID:     *assigneeID,
			Name:   deref(assigneeName),
			Email:  deref(assigneeEmail),
			Role:   domain.UserRole(deref(assigneeRole)),
			Skills: assigneeSkills,
		}
		if assigneeCreated != nil {
			ticket.Assignee.CreatedAt = *assigneeCreated
		}
	}
	return &ticket, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opsmind/ticket-service/internal/domain"
)

// ErrStaleUpdate reports that a conditional write matched no row: the ticket
// was deleted or its status changed between the caller's read and the write.
var ErrStaleUpdate = errors.New("ticket modified concurrently")

// TicketFilter captures listing parameters. Soft-deleted tickets are always
// excluded.
type TicketFilter struct {
	Statuses     []domain.TicketStatus
	Priorities   []domain.TicketPriority
	RequestTypes []domain.RequestType
	Building     *string
	RequesterID  *string
	Limit        int
	Offset       int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	// UpdateFields writes the ticket conditionally on the status the caller
	// read. A concurrent transition or delete makes the write miss and
	// returns ErrStaleUpdate.
	UpdateFields(ctx context.Context, ticket *domain.Ticket, expectedStatus domain.TicketStatus) error
	SoftDelete(ctx context.Context, id string) error
	// Escalate appends the escalation record, increments escalation_count
	// server-side and sets assigned_level, all in one transaction.
	Escalate(ctx context.Context, id string, escalation *domain.TicketEscalation) (*domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, title, description, request_type, building, room, requester_id,
               status, priority, assigned_level, escalation_count, resolution_summary,
               is_deleted, closed_at, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (title, description, request_type, building, room, requester_id, status, priority, assigned_level)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.RequestType,
		ticket.Building,
		ticket.Room,
		ticket.RequesterID,
		ticket.Status,
		ticket.Priority,
		ticket.AssignedLevel,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1 AND is_deleted=FALSE`, ticketColumns)
	var ticket domain.Ticket
	if err := scanTicket(r.pool.QueryRow(ctx, query, id), &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) UpdateFields(ctx context.Context, ticket *domain.Ticket, expectedStatus domain.TicketStatus) error {
	const query = `
        UPDATE tickets SET title=$1, description=$2, building=$3, room=$4,
            status=$5, resolution_summary=$6, closed_at=$7, updated_at=NOW()
        WHERE id=$8 AND status=$9 AND is_deleted=FALSE
        RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Building,
		ticket.Room,
		ticket.Status,
		ticket.ResolutionSummary,
		ticket.ClosedAt,
		ticket.ID,
		expectedStatus,
	).Scan(&ticket.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrStaleUpdate
	}
	return err
}

func (r *ticketRepository) SoftDelete(ctx context.Context, id string) error {
	const query = `UPDATE tickets SET is_deleted=TRUE, updated_at=NOW() WHERE id=$1 AND is_deleted=FALSE`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) Escalate(ctx context.Context, id string, escalation *domain.TicketEscalation) (*domain.Ticket, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// The increment happens in SQL so concurrent escalations never lose an
	// update to a stale client-side read.
	updateQuery := fmt.Sprintf(`
        UPDATE tickets SET escalation_count = escalation_count + 1, assigned_level=$1, updated_at=NOW()
        WHERE id=$2 AND is_deleted=FALSE AND status <> 'CLOSED'
        RETURNING %s`, ticketColumns)
	var ticket domain.Ticket
	if err := scanTicket(tx.QueryRow(ctx, updateQuery, escalation.ToLevel, id), &ticket); err != nil {
		return nil, err
	}

	const insertQuery = `
        INSERT INTO ticket_escalations (ticket_id, from_level, to_level, reason)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	if err := tx.QueryRow(ctx, insertQuery, id, escalation.FromLevel, escalation.ToLevel, escalation.Reason).
		Scan(&escalation.ID, &escalation.CreatedAt); err != nil {
		return nil, err
	}
	escalation.TicketID = id

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := fmt.Sprintf(`SELECT %s FROM tickets`, ticketColumns)
	clauses := []string{"is_deleted=FALSE"}
	args := []any{}

	if filter.RequesterID != nil {
		args = append(args, *filter.RequesterID)
		clauses = append(clauses, fmt.Sprintf("requester_id=$%d", len(args)))
	}
	if filter.Building != nil {
		args = append(args, *filter.Building)
		clauses = append(clauses, fmt.Sprintf("building=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.RequestTypes) > 0 {
		placeholders := make([]string, len(filter.RequestTypes))
		for i, rt := range filter.RequestTypes {
			args = append(args, rt)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("request_type IN (%s)", strings.Join(placeholders, ",")))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func scanTicket(row pgx.Row, ticket *domain.Ticket) error {
	return row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.RequestType,
		&ticket.Building,
		&ticket.Room,
		&ticket.RequesterID,
		&ticket.Status,
		&ticket.Priority,
		&ticket.AssignedLevel,
		&ticket.EscalationCount,
		&ticket.ResolutionSummary,
		&ticket.IsDeleted,
		&ticket.ClosedAt,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	)
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}

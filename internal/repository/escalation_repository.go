package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opsmind/ticket-service/internal/domain"
)

// EscalationRepository reads the append-only escalation audit trail.
// Writes happen through TicketRepository.Escalate so the count increment and
// the audit row share one transaction.
type EscalationRepository interface {
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketEscalation, error)
}

type escalationRepository struct {
	pool *pgxpool.Pool
}

// NewEscalationRepository instantiates repository.
func NewEscalationRepository(pool *pgxpool.Pool) EscalationRepository {
	return &escalationRepository{pool: pool}
}

func (r *escalationRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketEscalation, error) {
	const query = `
        SELECT id, ticket_id, from_level, to_level, reason, created_at
        FROM ticket_escalations WHERE ticket_id=$1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketEscalation
	for rows.Next() {
		var esc domain.TicketEscalation
		if err := rows.Scan(&esc.ID, &esc.TicketID, &esc.FromLevel, &esc.ToLevel, &esc.Reason, &esc.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, esc)
	}
	return result, rows.Err()
}

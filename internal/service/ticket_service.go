package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/opsmind/ticket-service/internal/domain"
	"github.com/opsmind/ticket-service/internal/events"
	"github.com/opsmind/ticket-service/internal/repository"
	apperrors "github.com/opsmind/ticket-service/pkg/util"
)

// TicketService coordinates the ticket lifecycle: creation, the linear status
// progression, escalation bookkeeping and soft deletion. Events announce
// committed mutations; a publish failure never rolls a mutation back.
type TicketService struct {
	tickets     repository.TicketRepository
	escalations repository.EscalationRepository
	cache       *repository.TicketCache
	publisher   events.Publisher
	logger      *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo     repository.TicketRepository
	EscalationRepo repository.EscalationRepository
	Cache          *repository.TicketCache
	Publisher      events.Publisher
	Logger         *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	RequestType domain.RequestType
	Building    string
	Room        string
	RequesterID string
}

// TicketUpdateInput carries a partial update; nil fields are left untouched.
type TicketUpdateInput struct {
	Title             *string
	Description       *string
	Building          *string
	Room              *string
	Status            *domain.TicketStatus
	ResolutionSummary *string
}

// TicketListFilter describes listing filters.
type TicketListFilter struct {
	Statuses     []domain.TicketStatus
	Priorities   []domain.TicketPriority
	RequestTypes []domain.RequestType
	Building     *string
	RequesterID  *string
	Limit        int
	Offset       int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:     deps.TicketRepo,
		escalations: deps.EscalationRepo,
		cache:       deps.Cache,
		publisher:   deps.Publisher,
		logger:      logger,
	}
}

// Create persists a new OPEN ticket and announces it. Priority and support
// level are assigned by policy, never taken from the caller.
func (s *TicketService) Create(ctx context.Context, input TicketCreateInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" || description == "" {
		return nil, apperrors.NewValidationError("title and description required", nil)
	}
	if strings.TrimSpace(input.Building) == "" || strings.TrimSpace(input.Room) == "" {
		return nil, apperrors.NewValidationError("building and room required", nil)
	}
	if strings.TrimSpace(input.RequesterID) == "" {
		return nil, apperrors.NewValidationError("requester_id required", nil)
	}
	if !domain.ValidRequestType(input.RequestType) {
		return nil, apperrors.NewValidationError("unknown request type", map[string]any{"request_type": input.RequestType})
	}

	ticket := &domain.Ticket{
		Title:         title,
		Description:   description,
		RequestType:   input.RequestType,
		Building:      strings.TrimSpace(input.Building),
		Room:          strings.TrimSpace(input.Room),
		RequesterID:   strings.TrimSpace(input.RequesterID),
		Status:        domain.TicketStatusOpen,
		Priority:      priorityFor(input.RequestType),
		AssignedLevel: domain.SupportLevelL1,
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publish(ctx, events.EventTicketCreated, ticket)
	return ticket, nil
}

// List returns tickets matching the filter, newest first.
func (s *TicketService) List(ctx context.Context, filter TicketListFilter) ([]domain.Ticket, error) {
	repoFilter := repository.TicketFilter{
		Statuses:     filter.Statuses,
		Priorities:   filter.Priorities,
		RequestTypes: filter.RequestTypes,
		Building:     filter.Building,
		RequesterID:  filter.RequesterID,
		Limit:        filter.Limit,
		Offset:       filter.Offset,
	}
	tickets, err := s.tickets.ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// Get fetches a live ticket by id.
func (s *TicketService) Get(ctx context.Context, id string) (*domain.Ticket, error) {
	if cached, ok := s.cache.Get(ctx, id); ok {
		return cached, nil
	}
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	s.cache.Set(ctx, ticket)
	return ticket, nil
}

// UpdateFields applies the patch to a live ticket. A status change must be
// the unique legal successor of the current status; on rejection nothing is
// applied. Closing stamps closed_at in the same write. The write is keyed on
// the status read here, so a concurrent transition surfaces as a conflict.
func (s *TicketService) UpdateFields(ctx context.Context, id string, patch TicketUpdateInput) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
		}
		return nil, apperrors.MapError(err)
	}

	priorStatus := ticket.Status
	if patch.Status != nil {
		next := *patch.Status
		if !domain.ValidStatus(next) {
			return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": next})
		}
		if !domain.CanTransition(priorStatus, next) {
			return nil, apperrors.NewInvalidTransition(string(priorStatus), string(next))
		}
		ticket.Status = next
		if next == domain.TicketStatusClosed {
			now := time.Now()
			ticket.ClosedAt = &now
		}
	}
	if patch.Title != nil {
		ticket.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		ticket.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Building != nil {
		ticket.Building = strings.TrimSpace(*patch.Building)
	}
	if patch.Room != nil {
		ticket.Room = strings.TrimSpace(*patch.Room)
	}
	if patch.ResolutionSummary != nil {
		ticket.ResolutionSummary = patch.ResolutionSummary
	}

	if err := s.tickets.UpdateFields(ctx, ticket, priorStatus); err != nil {
		if errors.Is(err, repository.ErrStaleUpdate) {
			return nil, apperrors.NewConflict("ticket modified concurrently", map[string]any{"ticket_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	s.cache.Invalidate(ctx, id)
	s.publish(ctx, events.EventTicketUpdated, ticket)
	return ticket, nil
}

// Escalate reassigns the ticket to another support tier, appending the audit
// record and incrementing escalation_count atomically. Allowed in any
// non-terminal status; escalation is recorded but not announced.
func (s *TicketService) Escalate(ctx context.Context, id string, from, to domain.SupportLevel, reason string) (*domain.Ticket, error) {
	if !domain.ValidSupportLevel(from) || !domain.ValidSupportLevel(to) {
		return nil, apperrors.NewValidationError("unknown support level", map[string]any{"from_level": from, "to_level": to})
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.NewValidationError("reason required", nil)
	}

	escalation := &domain.TicketEscalation{
		FromLevel: from,
		ToLevel:   to,
		Reason:    reason,
	}
	ticket, err := s.tickets.Escalate(ctx, id, escalation)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, s.classifyEscalateMiss(ctx, id)
		}
		return nil, apperrors.MapError(err)
	}
	s.cache.Invalidate(ctx, id)
	return ticket, nil
}

// classifyEscalateMiss distinguishes a missing or deleted ticket from a
// closed one after the conditional escalation write matched nothing.
func (s *TicketService) classifyEscalateMiss(ctx context.Context, id string) error {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
	}
	if ticket.Status.IsTerminal() {
		return apperrors.NewConflict("ticket is closed", map[string]any{"ticket_id": id, "status": ticket.Status})
	}
	return apperrors.NewConflict("ticket modified concurrently", map[string]any{"ticket_id": id})
}

// ListEscalations returns a ticket's escalation history, oldest first.
func (s *TicketService) ListEscalations(ctx context.Context, id string) ([]domain.TicketEscalation, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	history, err := s.escalations.ListByTicket(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return history, nil
}

// SoftDelete hides the ticket from every other operation while retaining it,
// and its escalation history, for audit.
func (s *TicketService) SoftDelete(ctx context.Context, id string) error {
	if err := s.tickets.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
		}
		return apperrors.MapError(err)
	}
	s.cache.Invalidate(ctx, id)
	return nil
}

// publish hands the committed mutation to the broker. Failures are observed
// and counted but never propagate: delivery is best effort.
func (s *TicketService) publish(ctx context.Context, eventType events.EventType, ticket *domain.Ticket) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, eventType, ticket); err != nil {
		s.logger.Warn("event publish failed",
			zap.String("event", string(eventType)),
			zap.String("ticket_id", ticket.ID),
			zap.Error(err))
	}
}

// priorityFor implements the static assignment policy: incidents run hot,
// maintenance can wait.
func priorityFor(requestType domain.RequestType) domain.TicketPriority {
	switch requestType {
	case domain.RequestTypeIncident:
		return domain.TicketPriorityHigh
	case domain.RequestTypeMaintenance:
		return domain.TicketPriorityLow
	default:
		return domain.TicketPriorityMedium
	}
}

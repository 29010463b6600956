package events

import (
	"time"

	"github.com/opsmind/ticket-service/internal/domain"
)

// EventType identifies a ticket mutation announcement. The set is closed;
// the value doubles as the routing key on the topic exchange.
type EventType string

const (
	EventTicketCreated EventType = "ticket.created"
	EventTicketUpdated EventType = "ticket.updated"
)

// Envelope is the wire format consumers receive.
type Envelope struct {
	EventType  EventType      `json:"eventType"`
	OccurredAt string         `json:"occurredAt"`
	Data       TicketSnapshot `json:"data"`
}

// TicketSnapshot is the full ticket state carried inside the envelope.
type TicketSnapshot struct {
	ID                string                `json:"id"`
	Title             string                `json:"title"`
	Description       string                `json:"description"`
	RequestType       domain.RequestType    `json:"request_type"`
	Building          string                `json:"building"`
	Room              string                `json:"room"`
	RequesterID       string                `json:"requester_id"`
	Status            domain.TicketStatus   `json:"status"`
	Priority          domain.TicketPriority `json:"priority"`
	AssignedLevel     domain.SupportLevel   `json:"assigned_level"`
	EscalationCount   int                   `json:"escalation_count"`
	ResolutionSummary *string               `json:"resolution_summary,omitempty"`
	ClosedAt          *time.Time            `json:"closed_at,omitempty"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
}

// Snapshot converts a domain ticket into its wire representation.
func Snapshot(ticket *domain.Ticket) TicketSnapshot {
	return TicketSnapshot{
		ID:                ticket.ID,
		Title:             ticket.Title,
		Description:       ticket.Description,
		RequestType:       ticket.RequestType,
		Building:          ticket.Building,
		Room:              ticket.Room,
		RequesterID:       ticket.RequesterID,
		Status:            ticket.Status,
		Priority:          ticket.Priority,
		AssignedLevel:     ticket.AssignedLevel,
		EscalationCount:   ticket.EscalationCount,
		ResolutionSummary: ticket.ResolutionSummary,
		ClosedAt:          ticket.ClosedAt,
		CreatedAt:         ticket.CreatedAt,
		UpdatedAt:         ticket.UpdatedAt,
	}
}

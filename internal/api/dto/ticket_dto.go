package dto

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/opsmind/ticket-service/internal/domain"
	apperrors "github.com/opsmind/ticket-service/pkg/util"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	RequestType string `json:"type_of_request"`
	Building    string `json:"building"`
	Room        string `json:"room"`
	RequesterID string `json:"requester_id"`
}

// Validate enforces the creation constraints field by field.
func (r CreateTicketRequest) Validate() error {
	details := map[string]any{}
	if len(strings.TrimSpace(r.Title)) < 3 {
		details["title"] = "must be at least 3 characters"
	}
	if len(strings.TrimSpace(r.Description)) < 5 {
		details["description"] = "must be at least 5 characters"
	}
	if !domain.ValidRequestType(domain.RequestType(r.RequestType)) {
		details["type_of_request"] = "must be one of INCIDENT, SERVICE_REQUEST, MAINTENANCE"
	}
	if strings.TrimSpace(r.Building) == "" {
		details["building"] = "is required"
	}
	if strings.TrimSpace(r.Room) == "" {
		details["room"] = "is required"
	}
	if _, err := uuid.Parse(r.RequesterID); err != nil {
		details["requester_id"] = "must be a valid UUID"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid ticket payload", details)
	}
	return nil
}

// UpdateTicketRequest is a partial update; absent fields stay untouched.
type UpdateTicketRequest struct {
	Title             *string `json:"title"`
	Description       *string `json:"description"`
	Building          *string `json:"building"`
	Room              *string `json:"room"`
	Status            *string `json:"status"`
	ResolutionSummary *string `json:"resolution_summary"`
}

// Validate enforces the update constraints on the fields that are present.
func (r UpdateTicketRequest) Validate() error {
	details := map[string]any{}
	if r.Title != nil && len(strings.TrimSpace(*r.Title)) < 3 {
		details["title"] = "must be at least 3 characters"
	}
	if r.Description != nil && len(strings.TrimSpace(*r.Description)) < 5 {
		details["description"] = "must be at least 5 characters"
	}
	if r.Building != nil && strings.TrimSpace(*r.Building) == "" {
		details["building"] = "must not be empty"
	}
	if r.Room != nil && strings.TrimSpace(*r.Room) == "" {
		details["room"] = "must not be empty"
	}
	if r.Status != nil && !domain.ValidStatus(domain.TicketStatus(*r.Status)) {
		details["status"] = "must be one of OPEN, IN_PROGRESS, RESOLVED, CLOSED"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid ticket patch", details)
	}
	return nil
}

// EscalateTicketRequest payload.
type EscalateTicketRequest struct {
	FromLevel string `json:"from_level"`
	ToLevel   string `json:"to_level"`
	Reason    string `json:"reason"`
}

// Validate enforces the escalation constraints.
func (r EscalateTicketRequest) Validate() error {
	details := map[string]any{}
	if !domain.ValidSupportLevel(domain.SupportLevel(r.FromLevel)) {
		details["from_level"] = "must be one of L1, L2, L3, L4"
	}
	if !domain.ValidSupportLevel(domain.SupportLevel(r.ToLevel)) {
		details["to_level"] = "must be one of L1, L2, L3, L4"
	}
	if strings.TrimSpace(r.Reason) == "" {
		details["reason"] = "is required"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid escalation payload", details)
	}
	return nil
}

// TicketResponse is the full ticket representation.
type TicketResponse struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	RequestType       string     `json:"type_of_request"`
	Building          string     `json:"building"`
	Room              string     `json:"room"`
	RequesterID       string     `json:"requester_id"`
	Status            string     `json:"status"`
	Priority          string     `json:"priority"`
	AssignedLevel     string     `json:"assigned_to_level"`
	EscalationCount   int        `json:"escalation_count"`
	ResolutionSummary *string    `json:"resolution_summary"`
	ClosedAt          *time.Time `json:"closed_at"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// EscalationResponse represents one audit record.
type EscalationResponse struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticket_id"`
	FromLevel string    `json:"from_level"`
	ToLevel   string    `json:"to_level"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// FromTicket maps a domain ticket to its response form.
func FromTicket(ticket *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:                ticket.ID,
		Title:             ticket.Title,
		Description:       ticket.Description,
		RequestType:       string(ticket.RequestType),
		Building:          ticket.Building,
		Room:              ticket.Room,
		RequesterID:       ticket.RequesterID,
		Status:            string(ticket.Status),
		Priority:          string(ticket.Priority),
		AssignedLevel:     string(ticket.AssignedLevel),
		EscalationCount:   ticket.EscalationCount,
		ResolutionSummary: ticket.ResolutionSummary,
		ClosedAt:          ticket.ClosedAt,
		CreatedAt:         ticket.CreatedAt,
		UpdatedAt:         ticket.UpdatedAt,
	}
}

// FromEscalation maps an escalation audit record to its response form.
func FromEscalation(esc *domain.TicketEscalation) EscalationResponse {
	return EscalationResponse{
		ID:        esc.ID,
		TicketID:  esc.TicketID,
		FromLevel: string(esc.FromLevel),
		ToLevel:   string(esc.ToLevel),
		Reason:    esc.Reason,
		CreatedAt: esc.CreatedAt,
	}
}

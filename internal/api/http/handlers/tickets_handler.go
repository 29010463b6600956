package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/opsmind/ticket-service/internal/api/dto"
	"github.com/opsmind/ticket-service/internal/domain"
	"github.com/opsmind/ticket-service/internal/service"
	apperrors "github.com/opsmind/ticket-service/pkg/util"
)

// TicketsHandler exposes the ticket operation surface over HTTP.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := req.Validate(); err != nil {
		return err
	}

	ticket, err := h.service.Create(c.Context(), service.TicketCreateInput{
		Title:       req.Title,
		Description: req.Description,
		RequestType: domain.RequestType(req.RequestType),
		Building:    req.Building,
		Room:        req.Room,
		RequesterID: req.RequesterID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.FromTicket(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	tickets, err := h.service.List(c.Context(), parseTicketQuery(c))
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.FromTicket(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// ListTicketsByRequester GET /tickets/requester/:requesterId.
func (h *TicketsHandler) ListTicketsByRequester(c *fiber.Ctx) error {
	requesterID := c.Params("requesterId")
	filter := parseTicketQuery(c)
	filter.RequesterID = &requesterID
	tickets, err := h.service.List(c.Context(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.FromTicket(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.service.Get(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicket(ticket)})
}

// UpdateTicket PATCH /tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := req.Validate(); err != nil {
		return err
	}

	patch := service.TicketUpdateInput{
		Title:             req.Title,
		Description:       req.Description,
		Building:          req.Building,
		Room:              req.Room,
		ResolutionSummary: req.ResolutionSummary,
	}
	if req.Status != nil {
		status := domain.TicketStatus(*req.Status)
		patch.Status = &status
	}

	ticket, err := h.service.UpdateFields(c.Context(), c.Params("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicket(ticket)})
}

// EscalateTicket POST /tickets/:id/escalate.
func (h *TicketsHandler) EscalateTicket(c *fiber.Ctx) error {
	var req dto.EscalateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := req.Validate(); err != nil {
		return err
	}

	ticket, err := h.service.Escalate(c.Context(), c.Params("id"),
		domain.SupportLevel(req.FromLevel), domain.SupportLevel(req.ToLevel), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicket(ticket)})
}

// ListEscalations GET /tickets/:id/escalations.
func (h *TicketsHandler) ListEscalations(c *fiber.Ctx) error {
	history, err := h.service.ListEscalations(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.EscalationResponse, 0, len(history))
	for i := range history {
		items = append(items, dto.FromEscalation(&history[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// DeleteTicket DELETE /tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	if err := h.service.SoftDelete(c.Context(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func parseTicketQuery(c *fiber.Ctx) service.TicketListFilter {
	filter := service.TicketListFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.TrimSpace(part)))
		}
	}
	if priorityStr := c.Query("priority"); priorityStr != "" {
		for _, part := range strings.Split(priorityStr, ",") {
			filter.Priorities = append(filter.Priorities, domain.TicketPriority(strings.TrimSpace(part)))
		}
	}
	if typeStr := c.Query("type"); typeStr != "" {
		for _, part := range strings.Split(typeStr, ",") {
			filter.RequestTypes = append(filter.RequestTypes, domain.RequestType(strings.TrimSpace(part)))
		}
	}
	if building := c.Query("building"); building != "" {
		filter.Building = &building
	}
	if requester := c.Query("requester_id"); requester != "" {
		filter.RequesterID = &requester
	}
	filter.Limit = parseInt(c.Query("limit"), 50)
	filter.Offset = parseIntAllowZero(c.Query("offset"), 0)
	return filter
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func parseIntAllowZero(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}

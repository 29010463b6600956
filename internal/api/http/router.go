package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/opsmind/ticket-service/internal/api/docs"
	"github.com/opsmind/ticket-service/internal/api/http/handlers"
	"github.com/opsmind/ticket-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	ServiceName string
	Version     string
	Health      *handlers.HealthHandler
	Tickets     *handlers.TicketsHandler
	Metrics     *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Get("/openapi.json", func(c *fiber.Ctx) error {
		return c.JSON(docs.Spec(cfg.ServiceName, cfg.Version))
	})
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	tickets := app.Group("/tickets")
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/requester/:requesterId", cfg.Tickets.ListTicketsByRequester)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id", cfg.Tickets.UpdateTicket)
	tickets.Delete("/:id", cfg.Tickets.DeleteTicket)
	tickets.Post("/:id/escalate", cfg.Tickets.EscalateTicket)
	tickets.Get("/:id/escalations", cfg.Tickets.ListEscalations)
}

package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-triage/internal/api/http/handlers"
	"github.com/spec-kit/ticket-triage/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health   *handlers.HealthHandler
	Events   *handlers.EventsHandler
	Runs     *handlers.RunsHandler
	Tickets  *handlers.TicketsHandler
	EventKey *auth.EventKeyMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	api := app.Group("/api")
	api.Post("/events", cfg.EventKey.Handle, cfg.Events.Publish)

	api.Get("/runs/:id", cfg.Runs.GetRun)
	api.Post("/runs/:id/redrive", cfg.EventKey.Handle, cfg.Runs.Redrive)

	if cfg.Tickets != nil {
		api.Get("/tickets", cfg.Tickets.ListTickets)
		api.Get("/tickets/:id", cfg.Tickets.GetTicket)
	}
}

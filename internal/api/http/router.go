package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/blockhaven/ticketd/internal/api/http/handlers"
	"github.com/blockhaven/ticketd/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Session        *handlers.SessionHandler
	Tickets        *handlers.TicketsHandler
	Notices        *handlers.NoticesHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/session", cfg.Session.Open)

	protected := app.Group("", cfg.AuthMiddleware.Handle)
	protected.Post("/presence/join", cfg.Session.Join)
	protected.Post("/presence/leave", cfg.Session.Leave)

	protected.Get("/sync", cfg.Tickets.Sync)
	protected.Post("/tickets", cfg.Tickets.CreateTicket)
	protected.Post("/tickets/:id/messages", cfg.Tickets.AddMessage)
	protected.Patch("/tickets/:id/status", cfg.Tickets.UpdateStatus)
	protected.Delete("/tickets/:id", cfg.Tickets.DeleteTicket)

	protected.Get("/notices", cfg.Notices.List)
}

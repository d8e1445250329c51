package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-dispatch/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-dispatch/internal/auth"
	"github.com/spec-kit/helpdesk-dispatch/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Notifications  *handlers.NotificationsHandler
	Admin          *handlers.AdminHandler
	AuthMiddleware fiber.Handler
}

// RegisterRoutes wires HTTP routes. Role checks beyond authentication live in
// the services, which also apply tenant scope.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/login", cfg.Auth.Login)

	api := app.Group("", cfg.AuthMiddleware, auth.RequireAuthenticated())

	tickets := api.Group("/tickets")
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id", cfg.Tickets.UpdateTicket)
	tickets.Post("/:id/assign", cfg.Tickets.AssignTicket)
	tickets.Post("/:id/transition", cfg.Tickets.TransitionTicket)
	tickets.Post("/:id/resolve", cfg.Tickets.ResolveTicket)
	tickets.Post("/:id/rate", cfg.Tickets.RateTicket)
	tickets.Post("/:id/review", cfg.Tickets.ReviewTicket)
	tickets.Post("/:id/comments", cfg.Tickets.AddComment)
	tickets.Post("/:id/worklog", cfg.Tickets.AddWorkLog)

	notifications := api.Group("/notifications")
	notifications.Get("/", cfg.Notifications.List)
	notifications.Get("/stream", cfg.Notifications.Stream)
	notifications.Post("/", auth.RequireAdministrator(), cfg.Notifications.Send)

	api.Get("/dashboard/sla", cfg.Admin.SLADashboard)
	api.Get("/audit-log", auth.RequireAdministrator(), cfg.Admin.AuditLog)
	api.Get("/settings", auth.RequireAdministrator(), cfg.Admin.Settings)
	api.Post("/settings/refresh", auth.RequireRoles(domain.RoleSystemAdmin), cfg.Admin.RefreshSettings)
	api.Get("/metrics", auth.RequireRoles(domain.RoleSystemAdmin), cfg.Admin.Metrics)
}

package http

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/device-issue-service/internal/api/http/handlers"
	"github.com/spec-kit/device-issue-service/internal/auth"
	"github.com/spec-kit/device-issue-service/internal/service"
	"github.com/spec-kit/device-issue-service/internal/workflow"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Issues         *handlers.IssuesHandler
	Approvals      *handlers.ApprovalsHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        http.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics))
	}

	api := app.Group("/api")
	api.Post("/issues", cfg.Issues.Submit)
	api.Post("/issues/submit", cfg.Issues.SubmitForm)

	protected := api.Group("/issues", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	protected.Get("", cfg.Issues.List)
	protected.Get("/summary", cfg.Issues.Summary)
	protected.Get("/count", cfg.Issues.Count)
	protected.Get("/:id", cfg.Issues.Get)
	protected.Get("/:id/approvals", cfg.Approvals.History)

	update := auth.RequireRole(service.UpdateRoles...)
	protected.Patch("/:id", update, cfg.Issues.Update)
	protected.Patch("/:id/status", update, cfg.Issues.Update)
	protected.Delete("/:id", auth.RequireRole(service.DeleteRoles...), cfg.Issues.Delete)

	for _, rule := range workflow.Rules() {
		path := "/:id/" + string(rule.Action.Decision) + "/" + rule.Action.Role.Slug()
		protected.Post(path, auth.RequireRole(rule.Action.Role), cfg.Approvals.Decide(rule.Action))
	}
}

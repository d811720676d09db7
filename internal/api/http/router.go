package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/case-workflow-service/internal/api/http/handlers"
	"github.com/spec-kit/case-workflow-service/internal/auth"
	"github.com/spec-kit/case-workflow-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Workflows      *handlers.WorkflowHandler
	Cases          *handlers.CasesHandler
	Dashboard      *handlers.DashboardHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	v1 := app.Group("/v1", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())

	workflows := v1.Group("/workflows")
	workflows.Get("/workbasket/my-cases", cfg.Workflows.MyCases)
	workflows.Get("/work-queue", auth.RequireRole(domain.RoleManager), cfg.Workflows.WorkQueue)
	workflows.Post("/get-next-case", cfg.Workflows.GetNextCase)
	workflows.Post("/start", cfg.Workflows.Start)
	workflows.Post("/escalate", cfg.Workflows.Escalate)
	workflows.Post("/return", cfg.Workflows.Return)
	workflows.Post("/bulk-reassign", auth.RequireRole(domain.RoleManager), cfg.Workflows.BulkReassign)
	workflows.Post("/disposition", cfg.Workflows.Disposition)

	cases := v1.Group("/cases")
	cases.Post("", auth.RequireRole(domain.RoleManager), cfg.Cases.Create)
	cases.Post("/bulk", auth.RequireRole(domain.RoleManager), cfg.Cases.BulkCreate)
	cases.Get("/:id", cfg.Cases.Get)
	cases.Get("/:id/audit", cfg.Cases.Audit)

	dashboard := v1.Group("/dashboard")
	dashboard.Get("/workflow-distribution", cfg.Dashboard.WorkflowDistribution)
	dashboard.Get("/team-capacity", cfg.Dashboard.TeamCapacity)
	dashboard.Get("/recent-activity", cfg.Dashboard.RecentActivity)
}

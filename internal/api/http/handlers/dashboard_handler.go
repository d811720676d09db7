package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/case-workflow-service/internal/api/dto"
	"github.com/spec-kit/case-workflow-service/internal/domain"
	"github.com/spec-kit/case-workflow-service/internal/service"
)

// DashboardHandler serves read-only workflow projections.
type DashboardHandler struct {
	reporting *service.ReportingService
}

// NewDashboardHandler constructs handler.
func NewDashboardHandler(reporting *service.ReportingService) *DashboardHandler {
	return &DashboardHandler{reporting: reporting}
}

// WorkflowDistribution GET /v1/dashboard/workflow-distribution.
func (h *DashboardHandler) WorkflowDistribution(c *fiber.Ctx) error {
	counts, err := h.reporting.WorkflowDistribution(c.UserContext())
	if err != nil {
		return err
	}
	distribution := make(map[string]int, len(counts))
	for status, count := range counts {
		distribution[string(status)] = count
	}
	return c.JSON(fiber.Map{"data": distribution})
}

// TeamCapacity GET /v1/dashboard/team-capacity.
func (h *DashboardHandler) TeamCapacity(c *fiber.Ctx) error {
	capacities, err := h.reporting.TeamCapacity(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]fiber.Map, 0, len(capacities))
	for _, capacity := range capacities {
		depths := make(map[string]int, len(capacity.QueueDepths))
		for level, depth := range capacity.QueueDepths {
			depths[levelLabel(level)] = depth
		}
		items = append(items, fiber.Map{
			"line_of_business": capacity.LineOfBusiness,
			"queue_depths":     depths,
			"active_cases":     capacity.ActiveCases,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// RecentActivity GET /v1/dashboard/recent-activity.
func (h *DashboardHandler) RecentActivity(c *fiber.Ctx) error {
	limit := parseInt(c.Query("limit"), 50)
	entries, err := h.reporting.RecentActivity(c.UserContext(), limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAuditEntryResponses(entries)})
}

func levelLabel(level domain.EscalationLevel) string {
	if level == domain.LevelNone {
		return "analyst_pool"
	}
	return string(level)
}

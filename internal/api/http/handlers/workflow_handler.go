package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/case-workflow-service/internal/api/dto"
	"github.com/spec-kit/case-workflow-service/internal/auth"
	"github.com/spec-kit/case-workflow-service/internal/domain"
	"github.com/spec-kit/case-workflow-service/internal/service"
)

// WorkflowHandler handles work assignment and transition endpoints.
type WorkflowHandler struct {
	assignment *service.AssignmentService
	workflow   *service.WorkflowService
}

// NewWorkflowHandler constructs handler.
func NewWorkflowHandler(assignment *service.AssignmentService, workflowService *service.WorkflowService) *WorkflowHandler {
	return &WorkflowHandler{assignment: assignment, workflow: workflowService}
}

// MyCases GET /v1/workflows/workbasket/my-cases.
func (h *WorkflowHandler) MyCases(c *fiber.Ctx) error {
	identity, err := callerIdentity(c)
	if err != nil {
		return err
	}
	limit, offset := parsePage(c)
	cases, err := h.assignment.GetMyWorkbasket(c.UserContext(), identity, c.Query("filter"), limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCaseSummaries(cases)})
}

// WorkQueue GET /v1/workflows/work-queue.
func (h *WorkflowHandler) WorkQueue(c *fiber.Ctx) error {
	var lob *string
	if v := c.Query("line_of_business"); v != "" {
		lob = &v
	}
	limit, offset := parsePage(c)
	cases, err := h.assignment.GetWorkQueue(c.UserContext(), lob, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCaseSummaries(cases)})
}

// GetNextCase POST /v1/workflows/get-next-case.
func (h *WorkflowHandler) GetNextCase(c *fiber.Ctx) error {
	identity, err := callerIdentity(c)
	if err != nil {
		return err
	}
	assigned, err := h.assignment.GetNextCase(c.UserContext(), identity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCaseSummary(assigned)})
}

// Start POST /v1/workflows/start.
func (h *WorkflowHandler) Start(c *fiber.Ctx) error {
	identity, err := callerIdentity(c)
	if err != nil {
		return err
	}
	var req dto.StartCaseRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	updated, err := h.workflow.StartCase(c.UserContext(), req.CaseID, identity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCaseSummary(updated)})
}

// Escalate POST /v1/workflows/escalate.
func (h *WorkflowHandler) Escalate(c *fiber.Ctx) error {
	identity, err := callerIdentity(c)
	if err != nil {
		return err
	}
	var req dto.EscalateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	updated, err := h.workflow.EscalateCase(c.UserContext(), req.CaseID, req.DestinationRole, req.Reason, identity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCaseSummary(updated)})
}

// Return POST /v1/workflows/return.
func (h *WorkflowHandler) Return(c *fiber.Ctx) error {
	identity, err := callerIdentity(c)
	if err != nil {
		return err
	}
	var req dto.ReturnCaseRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	updated, err := h.workflow.ReturnCase(c.UserContext(), req.CaseID, req.Reason, req.TargetAnalyst, identity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCaseSummary(updated)})
}

// BulkReassign POST /v1/workflows/bulk-reassign.
func (h *WorkflowHandler) BulkReassign(c *fiber.Ctx) error {
	identity, err := callerIdentity(c)
	if err != nil {
		return err
	}
	var req dto.BulkReassignRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	target := service.BulkTarget{
		NewAssignee:       req.NewAssignee,
		NewLineOfBusiness: req.NewLineOfBusiness,
	}
	outcomes, err := h.workflow.BulkReassign(c.UserContext(), req.CaseIDs, target, identity)
	if err != nil {
		return err
	}
	items := make([]dto.BulkReassignOutcome, 0, len(outcomes))
	for _, outcome := range outcomes {
		items = append(items, dto.BulkReassignOutcome{
			CaseID: outcome.CaseID,
			Result: outcome.Result,
			Reason: outcome.Reason,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// Disposition POST /v1/workflows/disposition.
func (h *WorkflowHandler) Disposition(c *fiber.Ctx) error {
	identity, err := callerIdentity(c)
	if err != nil {
		return err
	}
	var req dto.DispositionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	updated, err := h.workflow.SubmitDisposition(c.UserContext(), req.CaseID, req.Decision, identity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCaseSummary(updated)})
}

func callerIdentity(c *fiber.Ctx) (domain.Identity, error) {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return domain.Identity{}, fiber.NewError(http.StatusUnauthorized, "authentication required")
	}
	return identity, nil
}

func parsePage(c *fiber.Ctx) (int, int) {
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 0)
	if pageSize <= 0 {
		return 0, 0
	}
	return pageSize, (page - 1) * pageSize
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

package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/case-workflow-service/internal/api/dto"
	"github.com/spec-kit/case-workflow-service/internal/service"
)

// CasesHandler handles case intake and read endpoints.
type CasesHandler struct {
	intake    *service.IntakeService
	reporting *service.ReportingService
}

// NewCasesHandler constructs handler.
func NewCasesHandler(intake *service.IntakeService, reporting *service.ReportingService) *CasesHandler {
	return &CasesHandler{intake: intake, reporting: reporting}
}

// Create POST /v1/cases.
func (h *CasesHandler) Create(c *fiber.Ctx) error {
	identity, err := callerIdentity(c)
	if err != nil {
		return err
	}
	var req dto.CreateCaseRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	created, err := h.intake.CreateCase(c.UserContext(), identity, service.CaseCreateInput{
		LineOfBusiness: req.LineOfBusiness,
		CustomerID:     req.CustomerID,
		Summary:        req.Summary,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewCaseSummary(created)})
}

// BulkCreate POST /v1/cases/bulk.
func (h *CasesHandler) BulkCreate(c *fiber.Ctx) error {
	identity, err := callerIdentity(c)
	if err != nil {
		return err
	}
	var req dto.BulkCreateCasesRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	inputs := make([]service.CaseCreateInput, 0, len(req.Cases))
	for _, item := range req.Cases {
		inputs = append(inputs, service.CaseCreateInput{
			LineOfBusiness: item.LineOfBusiness,
			CustomerID:     item.CustomerID,
			Summary:        item.Summary,
		})
	}
	created, err := h.intake.BulkCreateCases(c.UserContext(), identity, inputs)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewCaseSummaries(created)})
}

// Get GET /v1/cases/:id.
func (h *CasesHandler) Get(c *fiber.Ctx) error {
	found, err := h.reporting.GetCase(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCaseSummary(found)})
}

// Audit GET /v1/cases/:id/audit.
func (h *CasesHandler) Audit(c *fiber.Ctx) error {
	entries, err := h.reporting.CaseAudit(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAuditEntryResponses(entries)})
}

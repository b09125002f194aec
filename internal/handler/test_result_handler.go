package handler

import (
	"go-lims-ws/internal/model"
	"go-lims-ws/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type TestResultHandler struct {
	service service.TestResultService
}

func NewTestResultHandler(s service.TestResultService) *TestResultHandler {
	return &TestResultHandler{service: s}
}

// CreateResult records a new draft test result against a lot
// POST /api/v1/results
func (h *TestResultHandler) CreateResult(c *fiber.Ctx) error {
	var req service.CreateResultRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	result, err := h.service.CreateResult(&req, getActor(c))
	if err != nil {
		if model.IsDomainError(err) {
			return domainError(c, err)
		}
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(201).JSON(fiber.Map{"message": "Test result recorded", "data": result})
}

// UpdateResult edits a draft result
// PATCH /api/v1/results/:id
func (h *TestResultHandler) UpdateResult(c *fiber.Ctx) error {
	resultID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid result ID"})
	}

	var req service.UpdateResultRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	result, err := h.service.UpdateResult(resultID, &req, getActor(c))
	if err != nil {
		return domainError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Test result updated", "data": result})
}

// ApproveResult locks a result for pass/fail evaluation
// POST /api/v1/results/:id/approve
func (h *TestResultHandler) ApproveResult(c *fiber.Ctx) error {
	resultID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid result ID"})
	}

	result, err := h.service.ApproveResult(resultID, getActor(c))
	if err != nil {
		return domainError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Test result approved", "data": result})
}

// RevertResult moves an approved result back to draft
// POST /api/v1/results/:id/revert
func (h *TestResultHandler) RevertResult(c *fiber.Ctx) error {
	resultID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid result ID"})
	}

	result, err := h.service.RevertResult(resultID, getActor(c))
	if err != nil {
		return domainError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Test result reverted to draft", "data": result})
}

// BulkApprove sets the status of many results in one transaction. The
// whole batch fails if any ID cannot be resolved.
// POST /api/v1/results/bulk-approve
func (h *TestResultHandler) BulkApprove(c *fiber.Ctx) error {
	var req struct {
		IDs    []uuid.UUID        `json:"ids"`
		Status model.ResultStatus `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	if len(req.IDs) == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "ids is required"})
	}
	if req.Status != model.ResultDraft && req.Status != model.ResultApproved {
		return c.Status(400).JSON(fiber.Map{"error": "status must be draft or approved"})
	}

	results, err := h.service.BulkApprove(req.IDs, req.Status, getActor(c))
	if err != nil {
		return domainError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Test results updated", "data": results})
}

// DeleteResult soft-deletes a draft result
// DELETE /api/v1/results/:id
func (h *TestResultHandler) DeleteResult(c *fiber.Ctx) error {
	resultID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid result ID"})
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	if err := h.service.DeleteResult(resultID, req.Reason, getActor(c)); err != nil {
		return domainError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Test result deleted"})
}

// GetResultsByLot lists a lot's test results
// GET /api/v1/lots/:id/results
func (h *TestResultHandler) GetResultsByLot(c *fiber.Ctx) error {
	lotID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid lot ID"})
	}

	results, err := h.service.GetByLotID(lotID)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Internal Server Error"})
	}
	return c.JSON(results)
}

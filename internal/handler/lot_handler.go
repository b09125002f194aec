package handler

import (
	"errors"

	"go-lims-ws/internal/authz"
	"go-lims-ws/internal/model"
	"go-lims-ws/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type LotHandler struct {
	lotService   service.LotService
	auditService service.AuditService
}

func NewLotHandler(lotService service.LotService, auditService service.AuditService) *LotHandler {
	return &LotHandler{lotService: lotService, auditService: auditService}
}

// Helper to build the acting identity from JWT context (set by auth middleware)
func getActor(c *fiber.Ctx) authz.Actor {
	actor := authz.Actor{ID: "system", Name: "Unknown"}
	if v := c.Locals("user_id"); v != nil {
		actor.ID = v.(string)
	}
	if v := c.Locals("user_name"); v != nil {
		actor.Name = v.(string)
	}
	if v := c.Locals("user_email"); v != nil {
		actor.Email = v.(string)
	}
	if v := c.Locals("user_role"); v != nil {
		actor.RoleCode = v.(string)
	}
	return actor
}

func getUserID(c *fiber.Ctx) string {
	userID := c.Locals("user_id")
	if userID == nil {
		return "system"
	}
	return userID.(string)
}

// Helper to parse UUID from string
func parseUUID(id string) (uuid.UUID, error) {
	return uuid.Parse(id)
}

// domainError maps workflow errors onto HTTP responses. Validation
// failures are 400, missing records 404, policy denials 403, anything
// else is an infrastructure failure.
func domainError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, model.ErrPermissionDenied):
		return c.Status(403).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, model.ErrLotNotFound),
		errors.Is(err, model.ErrResultNotFound),
		errors.Is(err, model.ErrReleaseNotFound),
		errors.Is(err, model.ErrRetestNotFound):
		return c.Status(404).JSON(fiber.Map{"error": err.Error()})
	case model.IsDomainError(err):
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.Status(500).JSON(fiber.Map{"error": "Internal Server Error"})
	}
}

// CreateLot registers a new lot for testing
// POST /api/v1/lots
func (h *LotHandler) CreateLot(c *fiber.Ctx) error {
	var req service.CreateLotRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	lot, err := h.lotService.CreateLot(&req, getActor(c))
	if err != nil {
		if errors.Is(err, service.ErrLotNumberExists) || errors.Is(err, service.ErrReferenceNumberExists) {
			return c.Status(409).JSON(fiber.Map{"error": err.Error()})
		}
		if model.IsDomainError(err) {
			return domainError(c, err)
		}
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(201).JSON(fiber.Map{"message": "Lot created", "data": lot})
}

// GetLots returns all lots, optionally filtered by status
// GET /api/v1/lots?status=UNDER_REVIEW
func (h *LotHandler) GetLots(c *fiber.Ctx) error {
	if statusParam := c.Query("status"); statusParam != "" {
		status := model.LotStatus(statusParam)
		valid := false
		for _, s := range model.AllLotStatuses {
			if s == status {
				valid = true
				break
			}
		}
		if !valid {
			return c.Status(400).JSON(fiber.Map{"error": "Unknown lot status: " + statusParam})
		}
		lots, err := h.lotService.GetLotsByStatus(status)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": "Internal Server Error"})
		}
		return c.JSON(lots)
	}

	lots, err := h.lotService.GetAllLots()
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Internal Server Error"})
	}
	return c.JSON(lots)
}

// GetLot returns a single lot with its results, releases and retests
// GET /api/v1/lots/:id
func (h *LotHandler) GetLot(c *fiber.Ctx) error {
	lotID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid lot ID"})
	}

	lot, err := h.lotService.GetLotByID(lotID)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(lot)
}

// UpdateStatus applies a human workflow transition (reject, resubmit,
// submit for release, approve, QC override)
// PATCH /api/v1/lots/:id/status
func (h *LotHandler) UpdateStatus(c *fiber.Ctx) error {
	lotID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid lot ID"})
	}

	var req struct {
		Status model.LotStatus `json:"status"`
		Reason string          `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	if req.Status == "" {
		return c.Status(400).JSON(fiber.Map{"error": "status is required"})
	}

	lot, err := h.lotService.UpdateStatus(lotID, req.Status, req.Reason, getActor(c))
	if err != nil {
		return domainError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Lot status updated", "data": lot})
}

// DeleteLot soft-deletes a lot that never entered testing
// DELETE /api/v1/lots/:id
func (h *LotHandler) DeleteLot(c *fiber.Ctx) error {
	lotID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid lot ID"})
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	if err := h.lotService.DeleteLot(lotID, req.Reason, getActor(c)); err != nil {
		return domainError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Lot deleted"})
}

// GetHistory returns the combined audit timeline for a lot, covering the
// lot itself, its test results and its COA releases
// GET /api/v1/lots/:id/history?skip=0&limit=50
func (h *LotHandler) GetHistory(c *fiber.Ctx) error {
	lotID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid lot ID"})
	}

	skip := c.QueryInt("skip", 0)
	limit := c.QueryInt("limit", 50)

	history, err := h.auditService.GetCombinedLotHistory(lotID, skip, limit)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(history)
}

package handler

import (
	"go-lims-ws/internal/model"
	"go-lims-ws/internal/service"

	"github.com/gofiber/fiber/v2"
)

type RetestHandler struct {
	service service.RetestService
}

func NewRetestHandler(s service.RetestService) *RetestHandler {
	return &RetestHandler{service: s}
}

// CreateRetest opens a retest request against failing results
// POST /api/v1/retests
func (h *RetestHandler) CreateRetest(c *fiber.Ctx) error {
	var req service.CreateRetestRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	request, err := h.service.CreateRetest(&req, getActor(c))
	if err != nil {
		if model.IsDomainError(err) {
			return domainError(c, err)
		}
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(201).JSON(fiber.Map{"message": "Retest requested", "data": request})
}

// CompleteRetest manually closes a retest request
// POST /api/v1/retests/:id/complete
func (h *RetestHandler) CompleteRetest(c *fiber.Ctx) error {
	retestID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid retest ID"})
	}

	request, err := h.service.CompleteRetest(retestID, getActor(c))
	if err != nil {
		return domainError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Retest completed", "data": request})
}

// GetRetest returns a single retest request with its items
// GET /api/v1/retests/:id
func (h *RetestHandler) GetRetest(c *fiber.Ctx) error {
	retestID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid retest ID"})
	}

	request, err := h.service.GetByID(retestID)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(request)
}

// GetRetestsByLot lists a lot's retest requests
// GET /api/v1/lots/:id/retests
func (h *RetestHandler) GetRetestsByLot(c *fiber.Ctx) error {
	lotID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid lot ID"})
	}

	requests, err := h.service.GetByLotID(lotID)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Internal Server Error"})
	}
	return c.JSON(requests)
}

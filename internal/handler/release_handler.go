package handler

import (
	"go-lims-ws/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ReleaseHandler struct {
	service service.ReleaseService
}

func NewReleaseHandler(s service.ReleaseService) *ReleaseHandler {
	return &ReleaseHandler{service: s}
}

// GetAwaiting lists all releases waiting for sign-off
// GET /api/v1/releases
func (h *ReleaseHandler) GetAwaiting(c *fiber.Ctx) error {
	releases, err := h.service.GetAwaiting()
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Internal Server Error"})
	}
	return c.JSON(releases)
}

// GetRelease returns a single COA release
// GET /api/v1/releases/:id
func (h *ReleaseHandler) GetRelease(c *fiber.Ctx) error {
	releaseID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid release ID"})
	}

	release, err := h.service.GetByID(releaseID)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(release)
}

// GetReleasesByLot lists a lot's COA releases
// GET /api/v1/lots/:id/releases
func (h *ReleaseHandler) GetReleasesByLot(c *fiber.Ctx) error {
	lotID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid lot ID"})
	}

	releases, err := h.service.GetByLotID(lotID)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Internal Server Error"})
	}
	return c.JSON(releases)
}

// ApproveRelease signs off a release; the lot moves to RELEASED once
// every sibling release is signed off
// POST /api/v1/releases/:id/approve
func (h *ReleaseHandler) ApproveRelease(c *fiber.Ctx) error {
	releaseID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid release ID"})
	}

	release, err := h.service.ApproveRelease(releaseID, getActor(c))
	if err != nil {
		return domainError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Release approved", "data": release})
}

// SendBack returns the lot to review with a mandatory reason
// POST /api/v1/releases/:id/send-back
func (h *ReleaseHandler) SendBack(c *fiber.Ctx) error {
	releaseID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid release ID"})
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	release, err := h.service.SendBack(releaseID, req.Reason, getActor(c))
	if err != nil {
		return domainError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Release sent back to review", "data": release})
}

// SaveDraft autosaves COA draft form data, no audit entry
// PUT /api/v1/releases/:id/draft
func (h *ReleaseHandler) SaveDraft(c *fiber.Ctx) error {
	releaseID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid release ID"})
	}

	var req service.SaveDraftRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	release, err := h.service.SaveDraft(releaseID, &req)
	if err != nil {
		return domainError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Draft saved", "data": release})
}

// AttachDocument links a generated COA document to the release
// PUT /api/v1/releases/:id/document
func (h *ReleaseHandler) AttachDocument(c *fiber.Ctx) error {
	releaseID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid release ID"})
	}

	var req struct {
		FilePath string `json:"file_path"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	if req.FilePath == "" {
		return c.Status(400).JSON(fiber.Map{"error": "file_path is required"})
	}

	release, err := h.service.AttachDocument(releaseID, req.FilePath, getActor(c))
	if err != nil {
		return domainError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Document attached", "data": release})
}

// SendEmail records an outbound COA email for the release
// POST /api/v1/releases/:id/email
func (h *ReleaseHandler) SendEmail(c *fiber.Ctx) error {
	releaseID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid release ID"})
	}

	var req service.SendEmailRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	history, err := h.service.SendEmail(releaseID, &req, getActor(c))
	if err != nil {
		return domainError(c, err)
	}

	return c.Status(201).JSON(fiber.Map{"message": "Email recorded", "data": history})
}

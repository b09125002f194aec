package handler

import (
	"go-lims-ws/internal/service"

	"github.com/gofiber/fiber/v2"
)

type AuditHandler struct {
	service service.AuditService
}

func NewAuditHandler(s service.AuditService) *AuditHandler {
	return &AuditHandler{service: s}
}

// auditedTables limits history lookups to tables the ledger covers
var auditedTables = map[string]bool{
	"lots":          true,
	"test_results":  true,
	"coa_releases":  true,
	"retest_requests": true,
	"products":      true,
	"product_test_specifications": true,
}

// GetHistory returns the audit timeline for one record, newest first
// GET /api/v1/audit/:table/:id?skip=0&limit=50
func (h *AuditHandler) GetHistory(c *fiber.Ctx) error {
	table := c.Params("table")
	if !auditedTables[table] {
		return c.Status(400).JSON(fiber.Map{"error": "Unknown audit table: " + table})
	}

	recordID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid record ID"})
	}

	skip := c.QueryInt("skip", 0)
	limit := c.QueryInt("limit", 50)

	entries, err := h.service.GetHistory(table, recordID, skip, limit)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Internal Server Error"})
	}
	return c.JSON(entries)
}

// GetRecent returns the most recent audit entries across all tables
// GET /api/v1/audit/recent?limit=20
func (h *AuditHandler) GetRecent(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)

	entries, err := h.service.GetRecent(limit)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Internal Server Error"})
	}
	return c.JSON(entries)
}

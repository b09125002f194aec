package handler

import (
	"go-lims-ws/internal/service"

	"github.com/gofiber/fiber/v2"
)

type DashboardHandler struct {
	service service.DashboardService
}

func NewDashboardHandler(s service.DashboardService) *DashboardHandler {
	return &DashboardHandler{service: s}
}

// GetDashboardStats returns overview statistics
func (h *DashboardHandler) GetDashboardStats(c *fiber.Ctx) error {
	stats, err := h.service.GetDashboardStats()
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to fetch dashboard stats"})
	}

	return c.JSON(stats)
}

// GetRecentActivity returns the latest audit ledger entries
// Query params: limit (default 20)
func (h *DashboardHandler) GetRecentActivity(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)

	entries, err := h.service.GetRecentActivity(limit)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to fetch recent activity"})
	}

	return c.JSON(fiber.Map{
		"limit": limit,
		"data":  entries,
	})
}

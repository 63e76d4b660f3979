package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"teachback/internal/services"
)

// StatsHandler serves the leaderboard, history, summary and streak routes
type StatsHandler struct {
	stats *services.StatsService
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(stats *services.StatsService) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// Leaderboard handles GET /api/stats/leaderboard (public)
func (h *StatsHandler) Leaderboard(c *fiber.Ctx) error {
	entries, err := h.stats.Leaderboard(c.Context())
	if err != nil {
		log.Printf("❌ Leaderboard error: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch leaderboard",
		})
	}
	return c.JSON(entries)
}

// History handles GET /api/stats/history (authenticated)
func (h *StatsHandler) History(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	history, err := h.stats.History(c.Context(), userID)
	if err != nil {
		log.Printf("❌ History error for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch history",
		})
	}
	return c.JSON(history)
}

// Summary handles GET /api/stats/summary (authenticated)
func (h *StatsHandler) Summary(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	summary, err := h.stats.Summary(c.Context(), userID)
	if err != nil {
		log.Printf("❌ Summary error for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch summary",
		})
	}
	return c.JSON(summary)
}

type streakRequest struct {
	Duration *int   `json:"duration"`
	Topic    string `json:"topic"`
}

// RecordStreak handles POST /api/stats/streak (authenticated)
func (h *StatsHandler) RecordStreak(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req streakRequest
	if err := c.BodyParser(&req); err != nil || req.Duration == nil || req.Topic == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Duration and topic are required",
		})
	}

	if err := h.stats.RecordStreak(c.Context(), userID, *req.Duration, req.Topic); err != nil {
		log.Printf("❌ Streak save error for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save streak",
		})
	}

	return c.JSON(fiber.Map{"status": "success"})
}

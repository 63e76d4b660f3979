package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"teachback/internal/database"
	"teachback/internal/services"
)

// HealthHandler serves the liveness endpoint
type HealthHandler struct {
	redis    *services.RedisService
	mongo    *database.MongoDB
	registry *services.ConnectionRegistry
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(redis *services.RedisService, mongo *database.MongoDB, registry *services.ConnectionRegistry) *HealthHandler {
	return &HealthHandler{
		redis:    redis,
		mongo:    mongo,
		registry: registry,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()

	brokerStatus := "ok"
	if err := h.redis.Ping(ctx); err != nil {
		brokerStatus = "unavailable"
	}

	dbStatus := "ok"
	if err := h.mongo.Ping(ctx); err != nil {
		dbStatus = "unavailable"
	}

	status := fiber.StatusOK
	if brokerStatus != "ok" || dbStatus != "ok" {
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(fiber.Map{
		"status":      "ok",
		"broker":      brokerStatus,
		"database":    dbStatus,
		"connections": h.registry.Count(),
	})
}

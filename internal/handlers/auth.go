package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"teachback/internal/services"
	"teachback/pkg/auth"
)

// AuthHandler issues access tokens
type AuthHandler struct {
	issuer *auth.TokenIssuer
	stats  *services.StatsService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(issuer *auth.TokenIssuer, stats *services.StatsService) *AuthHandler {
	return &AuthHandler{
		issuer: issuer,
		stats:  stats,
	}
}

type tokenRequest struct {
	UserID string `json:"userId"`
}

// IssueToken handles POST /api/auth/token
func (h *AuthHandler) IssueToken(c *fiber.Ctx) error {
	var req tokenRequest
	if err := c.BodyParser(&req); err != nil || req.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "userId is required",
		})
	}

	if err := h.stats.TouchUser(c.Context(), req.UserID); err != nil {
		log.Printf("❌ Auth error: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}

	token, err := h.issuer.IssueToken(req.UserID)
	if err != nil {
		log.Printf("❌ Failed to issue token for %s: %v", req.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}

	return c.JSON(fiber.Map{"token": token})
}

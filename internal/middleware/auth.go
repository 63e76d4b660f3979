package middleware

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"teachback/pkg/auth"
)

// RequireAuth verifies the gateway's JWT tokens.
// Supports both Authorization header and query parameter (for WebSocket
// connections, where browsers cannot set headers on the upgrade request).
// An unauthenticated WebSocket upgrade is rejected here, before any registry
// mutation happens.
func RequireAuth(issuer *auth.TokenIssuer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var token string

		// 1. Try Authorization header first
		authHeader := c.Get("Authorization")
		if authHeader != "" {
			extracted, err := auth.ExtractToken(authHeader)
			if err == nil {
				token = extracted
			}
		}

		// 2. Try query parameter (for WebSocket connections)
		if token == "" {
			token = c.Query("token")
		}

		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing or invalid authorization token",
			})
		}

		userID, err := issuer.VerifyToken(token)
		if err != nil {
			log.Printf("❌ Auth failed: %v", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		c.Locals("user_id", userID)
		return c.Next()
	}
}

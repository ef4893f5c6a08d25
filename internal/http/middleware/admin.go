package middleware

import (
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	"catalogapp/internal/config"
)

// AdminTokenAuth guards catalog writes and analytics reads.
// Expects: Authorization: Bearer <token>, checked against the configured
// bcrypt hash. With no hash configured the routes are open, except in
// production where they are closed.
func AdminTokenAuth(cfg *config.Config, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cfg.AdminTokenHash == "" {
			if cfg.IsProduction() {
				logger.Warn("Admin token hash not configured, refusing admin request",
					slog.String("path", c.Path()))
				return unauthorized(c, "Admin access is not configured")
			}
			return c.Next()
		}

		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return unauthorized(c, "Missing Authorization header")
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			return unauthorized(c, "Invalid Authorization header format. Expected: Bearer <token>")
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == "" {
			return unauthorized(c, "Token is empty")
		}

		if err := bcrypt.CompareHashAndPassword([]byte(cfg.AdminTokenHash), []byte(token)); err != nil {
			logger.Debug("Rejected admin token", slog.String("path", c.Path()))
			return unauthorized(c, "Invalid token")
		}

		return c.Next()
	}
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}

package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/config"
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/dto"
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// AdminRequired admits a request that either carries the configured
// X-Admin-Token or a valid JWT whose email, subject or role marks an admin.
// The admitted identity is stored in Locals("actor") for audit fields.
func AdminRequired(cfg *config.Config) fiber.Handler {
	adminEmails := parseCSV(cfg.AdminEmails)
	adminUserIDs := parseCSV(cfg.AdminUserIDs)

	checkClaims := func(c *fiber.Ctx) error {
		token, ok := c.Locals("user").(*jwt.Token)
		if !ok || token == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized",
			})
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Invalid claims",
			})
		}

		email, _ := claims["email"].(string)
		sub, _ := claims["sub"].(string)
		role, _ := claims["role"].(string)

		if contains(adminEmails, email) || contains(adminUserIDs, sub) || role == "admin" {
			actor := email
			if actor == "" {
				actor = sub
			}
			c.Locals("actor", actor)
			return c.Next()
		}

		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
			Error: true, Message: "Admin access required",
		})
	}
	withJWT := jwtware.New(jwtConfig(cfg, checkClaims))

	return func(c *fiber.Ctx) error {
		if cfg.AdminToken != "" {
			given := c.Get("X-Admin-Token")
			if given != "" && subtle.ConstantTimeCompare([]byte(given), []byte(cfg.AdminToken)) == 1 {
				c.Locals("actor", "admin-token")
				return c.Next()
			}
		}
		return withJWT(c)
	}
}

func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func contains(list []string, val string) bool {
	if val == "" {
		return false
	}
	for _, item := range list {
		if item == val {
			return true
		}
	}
	return false
}

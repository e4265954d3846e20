package middleware

import (
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/dto"
	"github.com/ahmetcoskunkizilkaya/menu-billing/internal/tenant"
	"github.com/gofiber/fiber/v2"
)

// TenantRequired resolves the restaurant tenant from the tenant_id claim of
// an already validated JWT. It must run after JWTProtected.
func TenantRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tenantID, err := tenant.TenantFromToken(c)
		if err != nil {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Error:   true,
				Message: "Token is not bound to a tenant",
			})
		}
		c.Locals("tenant_id", tenantID)
		return c.Next()
	}
}

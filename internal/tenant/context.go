package tenant

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// GetTenantID extracts the tenant UUID placed in context locals by the
// tenant middleware.
func GetTenantID(c *fiber.Ctx) (uuid.UUID, error) {
	if id, ok := c.Locals("tenant_id").(uuid.UUID); ok && id != uuid.Nil {
		return id, nil
	}
	return uuid.Nil, errors.New("missing tenant in context")
}

// TenantFromToken reads the tenant_id claim of the JWT in context.
func TenantFromToken(c *fiber.Ctx) (uuid.UUID, error) {
	claims, err := claimsFrom(c)
	if err != nil {
		return uuid.Nil, err
	}

	raw, ok := claims["tenant_id"].(string)
	if !ok || raw == "" {
		return uuid.Nil, errors.New("missing tenant_id claim")
	}

	return uuid.Parse(raw)
}

// GetActor names whoever is making the request, for audit fields.
func GetActor(c *fiber.Ctx) string {
	if actor, ok := c.Locals("actor").(string); ok && actor != "" {
		return actor
	}
	claims, err := claimsFrom(c)
	if err != nil {
		return ""
	}
	if email, ok := claims["email"].(string); ok && email != "" {
		return email
	}
	sub, _ := claims["sub"].(string)
	return sub
}

func claimsFrom(c *fiber.Ctx) (jwt.MapClaims, error) {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return nil, errors.New("invalid token in context")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid claims")
	}
	return claims, nil
}

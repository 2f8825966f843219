package middleware

import (
	"errors"
	"strings"

	"github.com/Ssanntii/Stock-Final-UTN/internal/identity"
	"github.com/gofiber/fiber/v2"
)

const PrincipalKey = "principal"

// NewAuthMiddleware resolves the bearer token into a Principal and stashes it
// in the request locals for the handlers.
func NewAuthMiddleware(provider identity.Provider) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized: missing header"})
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized: invalid header format"})
		}

		principal, err := provider.Resolve(c.UserContext(), parts[1])
		if err != nil {
			if errors.Is(err, identity.ErrUserNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User for token no longer exists"})
			}

			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized: invalid token"})
		}

		c.Locals(PrincipalKey, principal)
		return c.Next()
	}
}

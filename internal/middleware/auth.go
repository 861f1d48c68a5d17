package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/forgeline/internal/config"
	"github.com/example/forgeline/internal/utils"
)

const operatorContextKey = "currentOperator"

// AuthMiddleware validates JWT tokens and loads the operator name into context.
func AuthMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid authorization header")
		}

		operator, err := utils.ParseToken(cfg.JWTSecret, parts[1])
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}

		c.Locals(operatorContextKey, operator)
		return c.Next()
	}
}

// GetCurrentOperator extracts the authenticated operator name from context.
func GetCurrentOperator(c *fiber.Ctx) (string, bool) {
	value := c.Locals(operatorContextKey)
	if value == nil {
		return "", false
	}

	if name, ok := value.(string); ok {
		return name, true
	}

	return "", false
}

package middleware

import (
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/theleywin/Backend-Social-Feed/src/lib"
	"github.com/theleywin/Backend-Social-Feed/src/models"
)

const userKey = "user"

// ProtectRoute checks the Bearer token and attaches the verified identity to
// the request. Anything else is answered with 403.
func ProtectRoute(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || token == "" {
			return c.Status(fiber.StatusForbidden).JSON(lib.ErrorResponse("Unauthorized"))
		}

		user, err := lib.VerifyJWT(token, secret)
		if err != nil {
			slog.Debug("Rejected bearer token", "error", err)
			return c.Status(fiber.StatusForbidden).JSON(lib.ErrorResponse("Unauthorized"))
		}

		c.Locals(userKey, user)
		return c.Next()
	}
}

// CurrentUser returns the identity ProtectRoute attached.
func CurrentUser(c *fiber.Ctx) models.User {
	user, _ := c.Locals(userKey).(models.User)
	return user
}

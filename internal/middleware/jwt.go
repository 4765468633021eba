package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/transitpago/transitpago/internal/auth"
	"github.com/transitpago/transitpago/internal/config"
	"github.com/transitpago/transitpago/internal/identity"
)

// JWTAuth validates bearer tokens and loads the account into request locals.
func JWTAuth(cfg config.Config, repo identity.Repository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		tokenStr := strings.TrimSpace(authz[len("Bearer "):])
		claims, err := auth.ParseAndVerifyHS256(tokenStr, []byte(cfg.JWTSecret))
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}

		if exp, ok := claims["exp"].(float64); ok && time.Now().Unix() >= int64(exp) {
			return fiber.NewError(http.StatusUnauthorized, "token expired")
		}

		sub, _ := claims["sub"].(string)
		account, err := repo.FindByID(c.UserContext(), sub)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "account not found")
		}

		c.Locals("account_id", account.ID)
		c.Locals("role", account.Role)
		return c.Next()
	}
}

// RequireDriver rejects requests from accounts without the driver role. Must
// run after JWTAuth.
func RequireDriver() fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, _ := c.Locals("role").(string)
		if role != identity.RoleDriver {
			return fiber.NewError(http.StatusForbidden, "driver role required")
		}
		return c.Next()
	}
}

package middleware

import (
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v3"

	"cinepasse-backoffice/internal/backend"
	"cinepasse-backoffice/internal/models"
	"cinepasse-backoffice/internal/service"
)

// Locals keys set by RequireSession.
const (
	LocalPrincipal = "principal"
	LocalToken     = "session_token"
)

// SessionToken returns the token carried by the request: the session cookie
// first, then a Bearer Authorization header.
func SessionToken(c fiber.Ctx, cookieName string) string {
	if token := c.Cookies(cookieName); token != "" {
		return token
	}
	authHeader := c.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ""
}

// RequireSession rejects requests without a valid session. Public paths
// (health, login and logout, session state, swagger, blobs) bypass it.
func RequireSession(auth backend.Auth, cookieName string) fiber.Handler {
	publicPrefixes := []string{
		"/api/v1/health",
		"/api/v1/auth/",
		"/api/v1/session",
		"/swagger",
		"/blobs/",
	}

	return func(c fiber.Ctx) error {
		path := c.Path()

		for _, prefix := range publicPrefixes {
			if strings.HasPrefix(path, prefix) {
				return c.Next()
			}
		}

		token := SessionToken(c, cookieName)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": service.MsgSessionRequired,
			})
		}

		principal, err := auth.Verify(c.Context(), token)
		if err != nil {
			slog.Debug("session rejected", "path", path, "error", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": service.MsgSessionRequired,
			})
		}

		c.Locals(LocalPrincipal, principal)
		c.Locals(LocalToken, token)
		return c.Next()
	}
}

// Principal returns the principal stored by RequireSession.
func Principal(c fiber.Ctx) *models.Principal {
	p, _ := c.Locals(LocalPrincipal).(*models.Principal)
	return p
}

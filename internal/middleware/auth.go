package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/arkuspay/internal/config"
	"github.com/example/arkuspay/internal/services"
)

const (
	clientIDKey = "clientID"
	sessionKey  = "session"

	// ClientCookie identifies a browser across requests.
	ClientCookie = "client_id"
)

// ClientID issues or reads the client_id cookie and loads it into context.
func ClientID(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Cookies(ClientCookie)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
			c.Cookie(&fiber.Cookie{
				Name:     ClientCookie,
				Value:    id,
				Path:     "/",
				MaxAge:   int(clientCookieMaxAge.Seconds()),
				HTTPOnly: true,
				Secure:   cfg.Production(),
				SameSite: fiber.CookieSameSiteLaxMode,
			})
		}

		c.Locals(clientIDKey, id)
		return c.Next()
	}
}

// GetClientID extracts the browser client ID from context.
func GetClientID(c *fiber.Ctx) (string, bool) {
	id, ok := c.Locals(clientIDKey).(string)
	return id, ok && id != ""
}

// RequireSession runs the authoritative session check for a protected view.
// A visitor with no valid session loses the token cookie.
func RequireSession(guard *services.SessionGuard, redirects services.Redirects, cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		clientID, ok := GetClientID(c)
		if !ok {
			return fiber.NewError(fiber.StatusBadRequest, "missing client id")
		}

		entry, err := guard.Enter(c.UserContext(), clientID, redirects)
		if err != nil {
			return err
		}
		if entry.Unauthenticated {
			ClearTokenCookie(c, cfg)
		}
		if entry.Redirect != "" {
			return c.Redirect(entry.Redirect, fiber.StatusFound)
		}
		if entry.Unauthenticated {
			return fiber.NewError(fiber.StatusUnauthorized, "not authenticated")
		}

		c.Locals(sessionKey, entry.Session)
		return c.Next()
	}
}

// GetSession extracts the validated session from context.
func GetSession(c *fiber.Ctx) (services.Session, bool) {
	session, ok := c.Locals(sessionKey).(services.Session)
	return session, ok
}

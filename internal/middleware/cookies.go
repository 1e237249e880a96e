package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/example/arkuspay/internal/config"
)

// TokenCookie mirrors the stored credential for the route pre-filter.
const TokenCookie = "token"

const clientCookieMaxAge = 365 * 24 * time.Hour

// SetTokenCookie mirrors token into the token cookie.
func SetTokenCookie(c *fiber.Ctx, cfg *config.Config, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     TokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(cfg.CookieMaxAge.Seconds()),
		Secure:   cfg.Production(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// ClearTokenCookie expires the token cookie.
func ClearTokenCookie(c *fiber.Ctx, cfg *config.Config) {
	c.Cookie(&fiber.Cookie{
		Name:     TokenCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(1, 0),
		Secure:   cfg.Production(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

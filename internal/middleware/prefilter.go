package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

var publicPaths = map[string]bool{
	"/":             true,
	"/signin":       true,
	"/signup":       true,
	"/verify-email": true,
}

var unfilteredPrefixes = []string{"/api", "/assets", "/favicon.ico", "/healthz"}

// CookiePrefilter routes visitors on the presence of the token cookie alone.
// It grants nothing; protected views still run RequireSession.
func CookiePrefilter() fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		for _, prefix := range unfilteredPrefixes {
			if strings.HasPrefix(path, prefix) {
				return c.Next()
			}
		}

		hasToken := c.Cookies(TokenCookie) != ""

		if !hasToken && !publicPaths[path] && !strings.HasPrefix(path, "/onboarding") {
			return c.Redirect("/signin", fiber.StatusFound)
		}
		if hasToken && (path == "/signin" || path == "/signup") {
			return c.Redirect("/merchant", fiber.StatusFound)
		}
		return c.Next()
	}
}

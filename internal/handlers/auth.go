package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/arkuspay/internal/config"
	"github.com/example/arkuspay/internal/middleware"
	"github.com/example/arkuspay/internal/models"
	"github.com/example/arkuspay/internal/services"
)

// AuthHandler bundles dependencies for authentication pages.
type AuthHandler struct {
	auth  *services.AuthService
	guard *services.SessionGuard
	cfg   *config.Config
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(auth *services.AuthService, guard *services.SessionGuard, cfg *config.Config) *AuthHandler {
	return &AuthHandler{auth: auth, guard: guard, cfg: cfg}
}

// SignupPage renders the signup form, or moves a signed-in visitor along.
func (h *AuthHandler) SignupPage(c *fiber.Ctx) error {
	return h.entryPage(c, "signup", services.Redirects{
		Complete:   services.PathMerchant,
		Incomplete: services.PathBusiness,
	})
}

// SigninPage renders the signin form, or sends a signed-in visitor to the dashboard.
func (h *AuthHandler) SigninPage(c *fiber.Ctx) error {
	return h.entryPage(c, "signin", services.Redirects{
		Complete:   services.PathMerchant,
		Incomplete: services.PathMerchant,
	})
}

func (h *AuthHandler) entryPage(c *fiber.Ctx, page string, redirects services.Redirects) error {
	id, err := clientID(c)
	if err != nil {
		return err
	}

	_, signedIn, err := h.guard.Token(c.UserContext(), id)
	if err != nil {
		return err
	}
	if signedIn {
		entry, err := h.guard.Enter(c.UserContext(), id, redirects)
		if err != nil {
			return err
		}
		if entry.Unauthenticated {
			middleware.ClearTokenCookie(c, h.cfg)
		}
		if entry.Redirect != "" {
			return c.Redirect(entry.Redirect, fiber.StatusFound)
		}
	}

	return renderPage(c, page, fiber.Map{"redirect": c.Query("redirect")})
}

// Signup registers a new merchant account.
func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	id, err := clientID(c)
	if err != nil {
		return err
	}

	var form models.SignupForm
	if err := c.BodyParser(&form); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	out, err := h.auth.Signup(c.UserContext(), id, form)
	if err != nil {
		return err
	}
	if out.Token != "" {
		middleware.SetTokenCookie(c, h.cfg, out.Token)
	}
	return formResult(c, out.Redirect, out.Errors, out.FormError, nil)
}

// Signin authenticates an existing merchant.
func (h *AuthHandler) Signin(c *fiber.Ctx) error {
	id, err := clientID(c)
	if err != nil {
		return err
	}

	var form models.SigninForm
	if err := c.BodyParser(&form); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	out, err := h.auth.Signin(c.UserContext(), id, form, c.Query("redirect"))
	if err != nil {
		return err
	}
	if out.Token != "" {
		middleware.SetTokenCookie(c, h.cfg, out.Token)
	}
	return formResult(c, out.Redirect, out.Errors, out.FormError, nil)
}

// VerifyEmail confirms the token from a verification link.
func (h *AuthHandler) VerifyEmail(c *fiber.Ctx) error {
	out := h.auth.VerifyEmail(c.UserContext(), c.Query("token"))
	if out.FormError != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": out.FormError,
			"data":    fiber.Map{"resend": out.Resend},
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": out.Message,
		"data":    fiber.Map{"redirect": out.Redirect},
	})
}

// ResendVerification sends another verification email.
func (h *AuthHandler) ResendVerification(c *fiber.Ctx) error {
	id, err := clientID(c)
	if err != nil {
		return err
	}

	out, err := h.auth.ResendVerification(c.UserContext(), id)
	if err != nil {
		return err
	}
	if out.Redirect == services.PathSignin {
		middleware.ClearTokenCookie(c, h.cfg)
	}
	if out.FormError != "" {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"success":  false,
			"message":  out.FormError,
			"redirect": out.Redirect,
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": out.Message,
		"data":    fiber.Map{"token": out.VerificationToken},
	})
}

// Logout ends the session.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	id, err := clientID(c)
	if err != nil {
		return err
	}
	if err := h.auth.Logout(c.UserContext(), id); err != nil {
		return err
	}
	middleware.ClearTokenCookie(c, h.cfg)
	return formResult(c, services.PathSignin, nil, "", nil)
}

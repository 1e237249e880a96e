package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/arkuspay/internal/middleware"
	"github.com/example/arkuspay/internal/services"
)

// MerchantHandler serves the dashboard landing page and verification state.
type MerchantHandler struct {
	registry *services.VerificationRegistry
}

// NewMerchantHandler constructs a MerchantHandler.
func NewMerchantHandler(registry *services.VerificationRegistry) *MerchantHandler {
	return &MerchantHandler{registry: registry}
}

// Landing renders the dashboard home and keeps verification polling alive.
func (h *MerchantHandler) Landing(c *fiber.Ctx) error {
	id, err := clientID(c)
	if err != nil {
		return err
	}
	session, _ := middleware.GetSession(c)

	state := h.registry.Visit(c.UserContext(), id, services.PathMerchant)
	return renderPage(c, "merchant", fiber.Map{
		"user":         session.User,
		"merchant":     session.Merchant,
		"verification": state,
	})
}

// TrackVisit records a dashboard page other than the landing page, which
// stops the interval and refreshes verification once.
func (h *MerchantHandler) TrackVisit(c *fiber.Ctx) error {
	id, err := clientID(c)
	if err != nil {
		return err
	}
	if c.Method() == fiber.MethodGet {
		h.registry.Visit(c.UserContext(), id, c.Path())
	}
	return c.Next()
}

// Verification returns the current verification snapshot.
func (h *MerchantHandler) Verification(c *fiber.Ctx) error {
	id, err := clientID(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    h.registry.Poller(id).Snapshot(),
	})
}

// RefreshVerification fetches the status now, subject to the throttle.
func (h *MerchantHandler) RefreshVerification(c *fiber.Ctx) error {
	id, err := clientID(c)
	if err != nil {
		return err
	}
	poller := h.registry.Poller(id)
	if err := poller.FetchStatus(c.UserContext()); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    poller.Snapshot(),
	})
}

// SubmitVerification forwards identity documents.
func (h *MerchantHandler) SubmitVerification(c *fiber.Ctx) error {
	id, err := clientID(c)
	if err != nil {
		return err
	}
	form, err := multipartFromRequest(c)
	if err != nil {
		return err
	}

	poller := h.registry.Poller(id)
	ok, message := poller.SubmitDocuments(c.UserContext(), form)
	status := fiber.StatusOK
	if !ok {
		status = fiber.StatusUnprocessableEntity
	}
	return c.Status(status).JSON(fiber.Map{
		"success": ok,
		"message": message,
		"data":    poller.Snapshot(),
	})
}

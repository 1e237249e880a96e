package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/example/arkuspay/internal/config"
	"github.com/example/arkuspay/internal/middleware"
	"github.com/example/arkuspay/internal/services"
	"github.com/example/arkuspay/internal/utils"
)

// ResourceHandler proxies the dashboard's product, finance and notification
// views to the backend with the session's credential.
type ResourceHandler struct {
	api   *services.APIClient
	guard *services.SessionGuard
	cfg   *config.Config
	log   zerolog.Logger
}

// NewResourceHandler constructs a ResourceHandler.
func NewResourceHandler(api *services.APIClient, guard *services.SessionGuard, cfg *config.Config, log zerolog.Logger) *ResourceHandler {
	return &ResourceHandler{
		api:   api,
		guard: guard,
		cfg:   cfg,
		log:   log.With().Str("component", "resources").Logger(),
	}
}

// ListProducts returns a page of the merchant's products.
func (h *ResourceHandler) ListProducts(c *fiber.Ctx) error {
	return h.list(c, "/products", "search", "status", "type")
}

// GetProduct returns one product.
func (h *ResourceHandler) GetProduct(c *fiber.Ctx) error {
	return h.forward(c, http.MethodGet, "/products/"+url.PathEscape(c.Params("id")), nil)
}

// CreateProduct forwards a product form, multipart when images are attached.
func (h *ResourceHandler) CreateProduct(c *fiber.Ctx) error {
	return h.forwardBody(c, http.MethodPost, "/products")
}

// UpdateProduct forwards product changes.
func (h *ResourceHandler) UpdateProduct(c *fiber.Ctx) error {
	return h.forwardBody(c, http.MethodPut, "/products/"+url.PathEscape(c.Params("id")))
}

// DeleteProduct removes a product.
func (h *ResourceHandler) DeleteProduct(c *fiber.Ctx) error {
	return h.forward(c, http.MethodDelete, "/products/"+url.PathEscape(c.Params("id")), nil)
}

// ListTransactions returns a page of transactions.
func (h *ResourceHandler) ListTransactions(c *fiber.Ctx) error {
	return h.list(c, "/finance/transactions", "search", "status", "fromDate", "toDate")
}

// GetTransaction returns one transaction.
func (h *ResourceHandler) GetTransaction(c *fiber.Ctx) error {
	return h.forward(c, http.MethodGet, "/finance/transactions", map[string]string{"id": c.Params("id")})
}

// RefundTransaction requests a refund.
func (h *ResourceHandler) RefundTransaction(c *fiber.Ctx) error {
	return h.forwardBody(c, http.MethodPost, "/finance/transactions/"+url.PathEscape(c.Params("id"))+"/refund")
}

// Balance returns the merchant balance.
func (h *ResourceHandler) Balance(c *fiber.Ctx) error {
	return h.forward(c, http.MethodGet, "/finance/balance", nil)
}

// ListPayouts returns a page of payouts.
func (h *ResourceHandler) ListPayouts(c *fiber.Ctx) error {
	return h.list(c, "/payouts", "status")
}

// GetPayout returns one payout.
func (h *ResourceHandler) GetPayout(c *fiber.Ctx) error {
	return h.forward(c, http.MethodGet, "/payouts/"+url.PathEscape(c.Params("id")), nil)
}

// PayoutAccounts lists the accounts payouts can go to.
func (h *ResourceHandler) PayoutAccounts(c *fiber.Ctx) error {
	return h.forward(c, http.MethodGet, "/payouts/accounts", nil)
}

// ListAccounts lists bank and crypto accounts.
func (h *ResourceHandler) ListAccounts(c *fiber.Ctx) error {
	return h.forward(c, http.MethodGet, "/finance/accounts", nil)
}

// AddAccount adds a bank or crypto account.
func (h *ResourceHandler) AddAccount(c *fiber.Ctx) error {
	kind := c.Params("kind")
	if kind != "bank" && kind != "crypto" {
		return fiber.NewError(fiber.StatusNotFound, "unknown account type")
	}
	return h.forwardBody(c, http.MethodPost, "/finance/accounts/"+kind)
}

// Notifications lists the merchant's notifications.
func (h *ResourceHandler) Notifications(c *fiber.Ctx) error {
	return h.list(c, "/notifications")
}

func (h *ResourceHandler) list(c *fiber.Ctx, path string, filters ...string) error {
	query := utils.ParsePagination(c).Query()
	for _, name := range filters {
		if v := strings.TrimSpace(c.Query(name)); v != "" {
			query[name] = v
		}
	}
	return h.forward(c, http.MethodGet, path, query)
}

func (h *ResourceHandler) forwardBody(c *fiber.Ctx, method, path string) error {
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		form, err := multipartFromRequest(c)
		if err != nil {
			return err
		}
		return h.send(c, services.APIRequest{Method: method, Path: path, Form: form})
	}

	var body map[string]any
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
	}
	return h.send(c, services.APIRequest{Method: method, Path: path, Body: body})
}

func (h *ResourceHandler) forward(c *fiber.Ctx, method, path string, query map[string]string) error {
	return h.send(c, services.APIRequest{Method: method, Path: path, Query: query})
}

// send relays a backend call. A rejected credential ends the session here
// too, since the backend is the only authority on it.
func (h *ResourceHandler) send(c *fiber.Ctx, req services.APIRequest) error {
	session, ok := middleware.GetSession(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "not authenticated")
	}
	req.Token = session.Token

	resp, err := h.api.Do(c.UserContext(), req)
	if err != nil {
		return err
	}

	if resp.Unauthorized() {
		if id, ok := middleware.GetClientID(c); ok {
			if err := h.guard.Clear(c.UserContext(), id); err != nil {
				h.log.Error().Err(err).Str("client_id", id).Msg("failed to clear session")
			}
		}
		middleware.ClearTokenCookie(c, h.cfg)
		return fiber.NewError(fiber.StatusUnauthorized, resp.Message("session expired"))
	}

	c.Status(resp.Status)
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(resp.Body)
}

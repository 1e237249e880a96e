package routes

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/arkuspay/internal/config"
	"github.com/example/arkuspay/internal/database"
	"github.com/example/arkuspay/internal/handlers"
	"github.com/example/arkuspay/internal/middleware"
)

type backendReply struct {
	status int
	body   string
}

type backend struct {
	srv     *httptest.Server
	mu      sync.Mutex
	replies map[string]backendReply
	queries map[string]url.Values
	auth    map[string]string
	types   map[string]string
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{
		replies: make(map[string]backendReply),
		queries: make(map[string]url.Values),
		auth:    make(map[string]string),
		types:   make(map[string]string),
	}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + strings.TrimPrefix(r.URL.Path, "/api")
		b.mu.Lock()
		b.queries[key] = r.URL.Query()
		b.auth[key] = r.Header.Get("Authorization")
		b.types[key] = r.Header.Get("Content-Type")
		reply, ok := b.replies[key]
		b.mu.Unlock()
		if !ok {
			reply = backendReply{status: http.StatusNotFound, body: `{"success":false,"message":"not found"}`}
		}
		w.WriteHeader(reply.status)
		_, _ = w.Write([]byte(reply.body))
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *backend) on(method, path string, status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.replies[method+" "+path] = backendReply{status: status, body: body}
}

func (b *backend) seen(method, path string) (url.Values, string, string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := method + " " + path
	return b.queries[key], b.auth[key], b.types[key]
}

const (
	meIncomplete = `{"success":true,"data":{"user":{"id":"u1","onboardingComplete":false},"merchant":{"id":"m1"}}}`
	meComplete   = `{"success":true,"data":{"user":{"id":"u1","onboardingComplete":true},"merchant":{"id":"m1"}}}`
)

type harness struct {
	app      *fiber.App
	backend  *backend
	clientID string
	token    string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	b := newBackend(t)
	cfg := &config.Config{
		AppEnv:             "development",
		APIBaseURL:         b.srv.URL + "/api",
		APITimeout:         2 * time.Second,
		StatusThrottle:     5 * time.Second,
		StatusPollInterval: time.Minute,
		CookieMaxAge:       24 * time.Hour,
	}

	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler(zerolog.Nop())})
	registry := Register(app, database.NewMemoryStore(), cfg, zerolog.Nop())
	t.Cleanup(registry.Close)

	return &harness{app: app, backend: b, clientID: uuid.NewString()}
}

func (h *harness) do(t *testing.T, method, path, contentType string, body io.Reader) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.AddCookie(&http.Cookie{Name: middleware.ClientCookie, Value: h.clientID})
	if h.token != "" {
		req.AddCookie(&http.Cookie{Name: middleware.TokenCookie, Value: h.token})
	}

	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)

	for _, c := range resp.Cookies() {
		if c.Name == middleware.TokenCookie {
			h.token = c.Value
		}
	}
	return resp
}

func (h *harness) postJSON(t *testing.T, path, body string) *http.Response {
	t.Helper()
	return h.do(t, http.MethodPost, path, "application/json", strings.NewReader(body))
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func TestSignupThroughOnboardingToDashboard(t *testing.T) {
	h := newHarness(t)
	b := h.backend
	b.on(http.MethodPost, "/auth/register", http.StatusCreated, `{"success":true,"data":{"token":"tok","user":{"id":"u1"}}}`)
	b.on(http.MethodPost, "/auth/send-verification-email", http.StatusOK, `{"success":true}`)
	b.on(http.MethodGet, "/auth/me", http.StatusOK, meIncomplete)
	b.on(http.MethodPost, "/onboarding/business", http.StatusOK, `{"success":true}`)
	b.on(http.MethodPost, "/onboarding/address", http.StatusOK, `{"success":true}`)
	b.on(http.MethodPost, "/onboarding/selling-method", http.StatusOK, `{"success":true,"data":{"user":{"id":"u1","onboardingComplete":true}}}`)
	b.on(http.MethodGet, "/verification/status", http.StatusOK, `{"success":true,"data":{"status":"pending"}}`)

	resp := h.postJSON(t, "/signup", `{"email":"jo@example.com","password":"Secret123","confirmPassword":"Secret123"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, readBody(t, resp))
	assert.Equal(t, "tok", h.token)

	resp = h.do(t, http.MethodGet, "/onboarding/address", "", nil)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/onboarding/business", resp.Header.Get("Location"))

	resp = h.do(t, http.MethodGet, "/onboarding/business", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), `"country":"US"`)

	resp = h.postJSON(t, "/onboarding/business", `{"businessName":"Acme","country":"US","firstName":"Jo","lastName":"Doe"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), `"redirect":"/onboarding/address"`)

	resp = h.postJSON(t, "/onboarding/address", `{"line1":"1 Main St","city":"Austin","state":"TX","postalCode":"73301","phone":"+15125550100","timezone":"America/Chicago"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = h.do(t, http.MethodGet, "/onboarding/selling", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), `"stepIndex":2`)

	resp = h.postJSON(t, "/onboarding/selling", `{"sellingMethod":"integration","integrationTypes":[]}`)
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "integrationTypes")

	resp = h.postJSON(t, "/onboarding/selling", `{"sellingMethod":"hosted_store"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), `"redirect":"/merchant"`)

	b.on(http.MethodGet, "/auth/me", http.StatusOK, meComplete)
	resp = h.do(t, http.MethodGet, "/merchant", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, `"verification":{"status":"pending"`)
	_, auth, _ := b.seen(http.MethodGet, "/verification/status")
	assert.Equal(t, "Bearer tok", auth)
}

func TestOnboardingPostOutOfOrderNeverReachesBackend(t *testing.T) {
	h := newHarness(t)
	signIn(t, h)
	h.backend.on(http.MethodPost, "/onboarding/business", http.StatusOK, `{"success":true}`)
	h.backend.on(http.MethodPost, "/onboarding/address", http.StatusOK, `{"success":true}`)

	resp := h.postJSON(t, "/onboarding/business", `{"businessName":"Acme","country":"US","firstName":"Jo","lastName":"Doe"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), `"redirect":"/merchant"`)
	_, auth, _ := h.backend.seen(http.MethodPost, "/onboarding/business")
	assert.Empty(t, auth)

	h.backend.on(http.MethodGet, "/auth/me", http.StatusOK, meIncomplete)
	resp = h.postJSON(t, "/onboarding/address", `{"line1":"1 Main St","city":"Austin","state":"TX","postalCode":"73301","phone":"+15125550100","timezone":"America/Chicago"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), `"redirect":"/onboarding/business"`)
	_, auth, _ = h.backend.seen(http.MethodPost, "/onboarding/address")
	assert.Empty(t, auth)
}

func TestBrowserFormPostRedirects(t *testing.T) {
	h := newHarness(t)
	h.backend.on(http.MethodPost, "/auth/login", http.StatusOK, `{"success":true,"data":{"token":"tok","user":{"id":"u1"}}}`)

	req := httptest.NewRequest(http.MethodPost, "/signin", strings.NewReader("email=jo%40example.com&password=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: middleware.ClientCookie, Value: h.clientID})

	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/merchant", resp.Header.Get("Location"))
}

func TestDashboardWithoutCookieGoesToSignin(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodGet, "/merchant", "", nil)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/signin", resp.Header.Get("Location"))
}

func TestDashboardWithStaleCookieClearsIt(t *testing.T) {
	h := newHarness(t)
	h.token = "forged"

	resp := h.do(t, http.MethodGet, "/merchant", "", nil)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/signin", resp.Header.Get("Location"))
	assert.Empty(t, h.token)
}

func signIn(t *testing.T, h *harness) {
	t.Helper()
	h.backend.on(http.MethodPost, "/auth/login", http.StatusOK, `{"success":true,"data":{"token":"tok","user":{"id":"u1"}}}`)
	h.backend.on(http.MethodGet, "/auth/me", http.StatusOK, meComplete)
	h.backend.on(http.MethodGet, "/verification/status", http.StatusOK, `{"success":true,"data":{"status":"verified"}}`)
	resp := h.postJSON(t, "/signin", `{"email":"jo@example.com","password":"x"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestProductsListForwardsPagination(t *testing.T) {
	h := newHarness(t)
	signIn(t, h)
	h.backend.on(http.MethodGet, "/products", http.StatusOK, `{"success":true,"data":{"products":[],"total":0}}`)

	resp := h.do(t, http.MethodGet, "/merchant/products?page=2&limit=10&search=mug", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"success":true,"data":{"products":[],"total":0}}`, readBody(t, resp))

	query, auth, _ := h.backend.seen(http.MethodGet, "/products")
	assert.Equal(t, "2", query.Get("page"))
	assert.Equal(t, "10", query.Get("limit"))
	assert.Equal(t, "mug", query.Get("search"))
	assert.Equal(t, "Bearer tok", auth)
}

func TestResourceUnauthorizedEndsSession(t *testing.T) {
	h := newHarness(t)
	signIn(t, h)
	h.backend.on(http.MethodGet, "/payouts", http.StatusUnauthorized, `{"success":false,"message":"jwt expired"}`)

	resp := h.do(t, http.MethodGet, "/merchant/finance/payouts", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "jwt expired")
	assert.Empty(t, h.token)
}

func TestVerificationSubmitForwardsMultipart(t *testing.T) {
	h := newHarness(t)
	signIn(t, h)
	h.backend.on(http.MethodPost, "/verification/submit", http.StatusOK, `{"success":true}`)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("businessDocument", "ein.pdf")
	require.NoError(t, err)
	_, _ = part.Write([]byte("%PDF"))
	require.NoError(t, w.WriteField("country", "US"))
	require.NoError(t, w.Close())

	resp := h.do(t, http.MethodPost, "/merchant/verification/submit", w.FormDataContentType(), &buf)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "Verification documents submitted successfully")

	_, auth, contentType := h.backend.seen(http.MethodPost, "/verification/submit")
	assert.Equal(t, "Bearer tok", auth)
	assert.True(t, strings.HasPrefix(contentType, "multipart/form-data"))
}

func TestUnknownOnboardingStep(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodGet, "/onboarding/payments", "", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), `"success":false`)
}

func TestLogoutClearsCookie(t *testing.T) {
	h := newHarness(t)
	signIn(t, h)
	require.NotEmpty(t, h.token)

	resp := h.postJSON(t, "/logout", `{}`)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Empty(t, h.token)
}

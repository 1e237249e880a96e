package services

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/arkuspay/internal/database"
	"github.com/example/arkuspay/internal/models"
)

type authFixture struct {
	fb       *fakeBackend
	store    *database.MemoryStore
	progress *OnboardingStore
	registry *VerificationRegistry
	auth     *AuthService
}

func newAuthFixture(t *testing.T, store *database.MemoryStore) *authFixture {
	t.Helper()
	fb := newFakeBackend(t)
	api := fb.client()
	guard := NewSessionGuard(store, api, zerolog.Nop())
	progress := NewOnboardingStore(store, zerolog.Nop())
	registry := NewVerificationRegistry(guard, api, 5*time.Second, time.Minute, time.Hour, zerolog.Nop())
	t.Cleanup(registry.Close)
	return &authFixture{
		fb:       fb,
		store:    store,
		progress: progress,
		registry: registry,
		auth:     NewAuthService(guard, progress, registry, api, NewFormValidator(), zerolog.Nop()),
	}
}

var validSignup = models.SignupForm{Email: "jo@example.com", Password: "Secret123", ConfirmPassword: "Secret123"}

func TestSignupEstablishesSessionAndStartsOnboarding(t *testing.T) {
	f := newAuthFixture(t, database.NewMemoryStore())
	ctx := context.Background()
	require.NoError(t, f.progress.Advance(ctx, "c1", validBusiness.Draft(), models.StageSelling))

	var posted map[string]string
	f.fb.handle(http.MethodPost, "/auth/register", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&posted)
		_, _ = w.Write([]byte(`{"success":true,"data":{"token":"new-tok","user":{"id":"u1"}}}`))
	})
	f.fb.on(http.MethodPost, "/auth/send-verification-email", http.StatusOK, `{"success":true}`)

	out, err := f.auth.Signup(ctx, "c1", validSignup)
	require.NoError(t, err)

	assert.Equal(t, PathBusiness, out.Redirect)
	assert.Equal(t, "new-tok", out.Token)
	assert.Equal(t, map[string]string{"email": "jo@example.com", "password": "Secret123"}, posted)
	assert.Equal(t, "Bearer new-tok", f.fb.authHeader(http.MethodPost, "/auth/send-verification-email"))

	token, _, _ := f.store.Get(ctx, "c1", models.KeyToken)
	assert.Equal(t, "new-tok", token)
	p, err := f.progress.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, models.StageBusiness, p.Stage)
	assert.Equal(t, models.Draft{}, p.Data)
}

func TestSignupValidation(t *testing.T) {
	f := newAuthFixture(t, database.NewMemoryStore())

	out, err := f.auth.Signup(context.Background(), "c1", models.SignupForm{
		Email:           "nope",
		Password:        "short",
		ConfirmPassword: "other",
	})
	require.NoError(t, err)

	assert.Contains(t, out.Errors, "email")
	assert.Contains(t, out.Errors, "password")
	assert.Contains(t, out.Errors, "confirmPassword")
	assert.Zero(t, f.fb.count(http.MethodPost, "/auth/register"))
}

func TestSignupBackendErrors(t *testing.T) {
	t.Run("email message attaches to field", func(t *testing.T) {
		f := newAuthFixture(t, database.NewMemoryStore())
		f.fb.on(http.MethodPost, "/auth/register", http.StatusConflict, `{"success":false,"message":"email already in use"}`)

		out, err := f.auth.Signup(context.Background(), "c1", validSignup)
		require.NoError(t, err)
		assert.Equal(t, "email already in use", out.Errors["email"])
		assert.Empty(t, out.Redirect)
	})

	t.Run("other message is form level", func(t *testing.T) {
		f := newAuthFixture(t, database.NewMemoryStore())
		f.fb.on(http.MethodPost, "/auth/register", http.StatusBadRequest, `{"success":false,"message":"Registration closed"}`)

		out, err := f.auth.Signup(context.Background(), "c1", validSignup)
		require.NoError(t, err)
		assert.Equal(t, "Registration closed", out.FormError)
	})
}

func TestSigninRedirects(t *testing.T) {
	cases := []struct {
		name string
		user string
		next string
		want string
	}{
		{name: "merchant", user: `{"id":"u1","role":"merchant"}`, want: PathMerchant},
		{name: "admin", user: `{"id":"u1","role":"admin"}`, next: "/merchant/products", want: PathAdmin},
		{name: "local next", user: `{"id":"u1"}`, next: "/merchant/products", want: "/merchant/products"},
		{name: "foreign next", user: `{"id":"u1"}`, next: "//evil.example", want: PathMerchant},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newAuthFixture(t, database.NewMemoryStore())
			f.fb.on(http.MethodPost, "/auth/login", http.StatusOK, `{"success":true,"data":{"token":"tok","user":`+tc.user+`}}`)

			out, err := f.auth.Signin(context.Background(), "c1", models.SigninForm{Email: "jo@example.com", Password: "x"}, tc.next)
			require.NoError(t, err)
			assert.Equal(t, tc.want, out.Redirect)

			profile, ok, _ := f.store.Get(context.Background(), "c1", models.KeyUserData)
			assert.True(t, ok)
			assert.JSONEq(t, tc.user, profile)
		})
	}
}

func TestSigninFailure(t *testing.T) {
	f := newAuthFixture(t, database.NewMemoryStore())
	f.fb.on(http.MethodPost, "/auth/login", http.StatusUnauthorized, `{"success":false,"message":"Invalid credentials"}`)

	out, err := f.auth.Signin(context.Background(), "c1", models.SigninForm{Email: "jo@example.com", Password: "x"}, "")
	require.NoError(t, err)
	assert.Equal(t, "Invalid credentials", out.FormError)
	_, ok, _ := f.store.Get(context.Background(), "c1", models.KeyToken)
	assert.False(t, ok)
}

func TestVerifyEmail(t *testing.T) {
	f := newAuthFixture(t, database.NewMemoryStore())
	f.fb.on(http.MethodGet, "/auth/verify-email/good", http.StatusOK, `{"success":true}`)
	f.fb.on(http.MethodGet, "/auth/verify-email/old", http.StatusBadRequest, `{"success":false,"message":"Token expired"}`)
	ctx := context.Background()

	assert.Equal(t, "Invalid verification link", f.auth.VerifyEmail(ctx, "").FormError)

	ok := f.auth.VerifyEmail(ctx, "good")
	assert.Equal(t, PathMerchant, ok.Redirect)
	assert.Empty(t, ok.FormError)

	expired := f.auth.VerifyEmail(ctx, "old")
	assert.Equal(t, "Your verification link has expired or is invalid", expired.FormError)
	assert.True(t, expired.Resend)
}

func TestVerifyEmailEscapesToken(t *testing.T) {
	f := newAuthFixture(t, database.NewMemoryStore())
	f.fb.on(http.MethodGet, "/auth/verify-email/abc?next=x#frag", http.StatusOK, `{"success":true}`)
	f.fb.on(http.MethodGet, "/auth/verify-email/abc", http.StatusOK, `{"success":true}`)

	out := f.auth.VerifyEmail(context.Background(), "abc?next=x#frag")

	assert.Equal(t, PathMerchant, out.Redirect)
	assert.Equal(t, 1, f.fb.count(http.MethodGet, "/auth/verify-email/abc?next=x#frag"))
	assert.Zero(t, f.fb.count(http.MethodGet, "/auth/verify-email/abc"))
}

func TestResendVerification(t *testing.T) {
	t.Run("requires credential", func(t *testing.T) {
		f := newAuthFixture(t, database.NewMemoryStore())
		out, err := f.auth.ResendVerification(context.Background(), "c1")
		require.NoError(t, err)
		assert.NotEmpty(t, out.FormError)
		assert.Zero(t, f.fb.count(http.MethodPost, "/auth/send-verification-email"))
	})

	t.Run("returns verification token", func(t *testing.T) {
		f := newAuthFixture(t, signedIn(t))
		f.fb.on(http.MethodPost, "/auth/send-verification-email", http.StatusOK, `{"success":true,"data":{"token":"vt"}}`)

		out, err := f.auth.ResendVerification(context.Background(), "c1")
		require.NoError(t, err)
		assert.Equal(t, "vt", out.VerificationToken)
		assert.Equal(t, "Bearer tok", f.fb.authHeader(http.MethodPost, "/auth/send-verification-email"))
	})
}

func TestLogoutClearsEverything(t *testing.T) {
	store := signedIn(t)
	f := newAuthFixture(t, store)
	f.fb.on(http.MethodGet, "/verification/status", http.StatusOK, `{"success":true,"data":{"status":"pending"}}`)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "c1", models.KeyUserData, `{"id":"u1"}`))
	require.NoError(t, f.progress.Advance(ctx, "c1", validBusiness.Draft(), models.StageAddress))
	f.registry.Visit(ctx, "c1", PathMerchant)
	poller := f.registry.Poller("c1")

	require.NoError(t, f.auth.Logout(ctx, "c1"))

	_, ok, _ := store.Get(ctx, "c1", models.KeyToken)
	assert.False(t, ok)
	_, ok, _ = store.Get(ctx, "c1", models.KeyUserData)
	assert.False(t, ok)
	p, err := f.progress.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, models.StageSignup, p.Stage)
	assert.False(t, poller.Polling())
}

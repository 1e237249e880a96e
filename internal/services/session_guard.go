package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/arkuspay/internal/database"
	"github.com/example/arkuspay/internal/models"
	"github.com/example/arkuspay/internal/utils"
)

// ErrUnauthenticated is returned for any failed session check.
var ErrUnauthenticated = errors.New("not authenticated")

// Page paths the guard redirects between.
const (
	PathSignup   = "/signup"
	PathSignin   = "/signin"
	PathMerchant = "/merchant"
	PathBusiness = "/onboarding/business"
	PathAddress  = "/onboarding/address"
	PathSelling  = "/onboarding/selling"
)

// Session is a validated backend session.
type Session struct {
	Token              string
	OnboardingComplete bool
	User               json.RawMessage
	Merchant           json.RawMessage
	Flags              models.UserFlags
}

// Redirects names where an entry point sends each kind of visitor.
// An empty target means the visitor may render.
type Redirects struct {
	Unauthenticated string
	Complete        string
	Incomplete      string
}

// Entry is the outcome of an entry check.
type Entry struct {
	Session         Session
	Redirect        string
	Unauthenticated bool
}

// SessionGuard is the authoritative check every protected view runs.
type SessionGuard struct {
	store database.Store
	api   *APIClient
	log   zerolog.Logger
	now   func() time.Time
}

// NewSessionGuard constructs a SessionGuard.
func NewSessionGuard(store database.Store, api *APIClient, log zerolog.Logger) *SessionGuard {
	return &SessionGuard{
		store: store,
		api:   api,
		log:   log.With().Str("component", "session_guard").Logger(),
		now:   time.Now,
	}
}

// Token returns the stored bearer credential.
func (g *SessionGuard) Token(ctx context.Context, clientID string) (string, bool, error) {
	token, ok, err := g.store.Get(ctx, clientID, models.KeyToken)
	if err != nil {
		return "", false, fmt.Errorf("read credential: %w", err)
	}
	return token, ok && token != "", nil
}

// Validate checks the stored credential against GET /auth/me. Every failure
// clears the credential and profile and returns ErrUnauthenticated.
func (g *SessionGuard) Validate(ctx context.Context, clientID string) (Session, error) {
	token, ok, err := g.Token(ctx, clientID)
	if err != nil {
		return Session{}, err
	}
	if !ok {
		return Session{}, g.reject(ctx, clientID, "no credential")
	}
	if utils.TokenExpired(token, g.now()) {
		return Session{}, g.reject(ctx, clientID, "credential expired")
	}

	resp, err := g.api.Do(ctx, APIRequest{Method: http.MethodGet, Path: "/auth/me", Token: token})
	if err != nil {
		return Session{}, g.reject(ctx, clientID, err.Error())
	}
	if !resp.OK() {
		return Session{}, g.reject(ctx, clientID, fmt.Sprintf("status %d: %s", resp.Status, resp.Message("unsuccessful")))
	}

	var identity models.Identity
	if err := resp.DecodeData(&identity); err != nil {
		return Session{}, g.reject(ctx, clientID, "malformed identity: "+err.Error())
	}

	var flags models.UserFlags
	if len(identity.User) > 0 {
		if err := json.Unmarshal(identity.User, &flags); err != nil {
			return Session{}, g.reject(ctx, clientID, "malformed user: "+err.Error())
		}
	}

	return Session{
		Token:              token,
		OnboardingComplete: flags.OnboardingComplete,
		User:               identity.User,
		Merchant:           identity.Merchant,
		Flags:              flags,
	}, nil
}

// Enter validates the session and resolves where the visitor belongs.
func (g *SessionGuard) Enter(ctx context.Context, clientID string, r Redirects) (Entry, error) {
	session, err := g.Validate(ctx, clientID)
	if errors.Is(err, ErrUnauthenticated) {
		return Entry{Redirect: r.Unauthenticated, Unauthenticated: true}, nil
	}
	if err != nil {
		return Entry{}, err
	}

	entry := Entry{Session: session}
	if session.OnboardingComplete {
		entry.Redirect = r.Complete
	} else {
		entry.Redirect = r.Incomplete
	}
	return entry, nil
}

// Establish stores a freshly issued credential and profile.
func (g *SessionGuard) Establish(ctx context.Context, clientID, token string, user json.RawMessage) error {
	if err := g.store.Set(ctx, clientID, models.KeyToken, token); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	if len(user) > 0 {
		if err := g.store.Set(ctx, clientID, models.KeyUserData, string(user)); err != nil {
			return fmt.Errorf("store profile: %w", err)
		}
	}
	return nil
}

// SaveProfile replaces the cached profile.
func (g *SessionGuard) SaveProfile(ctx context.Context, clientID string, user json.RawMessage) error {
	if len(user) == 0 {
		return nil
	}
	return g.store.Set(ctx, clientID, models.KeyUserData, string(user))
}

// Clear removes the credential and cached profile.
func (g *SessionGuard) Clear(ctx context.Context, clientID string) error {
	return g.store.Remove(ctx, clientID, models.KeyToken, models.KeyUserData)
}

func (g *SessionGuard) reject(ctx context.Context, clientID, reason string) error {
	g.log.Info().Str("client_id", clientID).Str("reason", reason).Msg("session rejected")
	if err := g.Clear(ctx, clientID); err != nil {
		g.log.Error().Err(err).Str("client_id", clientID).Msg("failed to clear session")
	}
	return fmt.Errorf("%w: %s", ErrUnauthenticated, reason)
}

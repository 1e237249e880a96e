package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/example/arkuspay/internal/models"
)

// PathAdmin is where administrators land after signing in.
const PathAdmin = "/admin/index.html"

// AuthOutcome is the result of an auth form action.
type AuthOutcome struct {
	Redirect          string      `json:"redirect,omitempty"`
	Errors            FieldErrors `json:"errors,omitempty"`
	FormError         string      `json:"formError,omitempty"`
	Message           string      `json:"message,omitempty"`
	VerificationToken string      `json:"verificationToken,omitempty"`
	Resend            bool        `json:"resend,omitempty"`
	Token             string      `json:"-"`
}

// AuthService runs signup, signin, email verification and logout.
type AuthService struct {
	guard        *SessionGuard
	progress     *OnboardingStore
	verification *VerificationRegistry
	api          *APIClient
	validator    *FormValidator
	log          zerolog.Logger
}

// NewAuthService constructs an AuthService.
func NewAuthService(guard *SessionGuard, progress *OnboardingStore, verification *VerificationRegistry, api *APIClient, validator *FormValidator, log zerolog.Logger) *AuthService {
	return &AuthService{
		guard:        guard,
		progress:     progress,
		verification: verification,
		api:          api,
		validator:    validator,
		log:          log.With().Str("component", "auth").Logger(),
	}
}

// Signup registers an account and starts onboarding at the business step.
func (s *AuthService) Signup(ctx context.Context, clientID string, form models.SignupForm) (AuthOutcome, error) {
	if errs := s.validator.Validate(form); errs != nil {
		return AuthOutcome{Errors: errs}, nil
	}

	if err := s.progress.Abandon(ctx, clientID); err != nil {
		return AuthOutcome{}, err
	}

	resp, err := s.api.Do(ctx, APIRequest{
		Method: http.MethodPost,
		Path:   "/auth/register",
		Body:   map[string]string{"email": form.Email, "password": form.Password},
	})
	if err != nil {
		return AuthOutcome{FormError: networkErrorMessage}, nil
	}
	if !resp.OK() {
		msg := resp.Message("Something went wrong")
		if strings.Contains(msg, "email") {
			return AuthOutcome{Errors: FieldErrors{"email": msg}}, nil
		}
		return AuthOutcome{FormError: msg}, nil
	}

	var payload models.AuthPayload
	if err := resp.DecodeData(&payload); err != nil || payload.Token == "" {
		s.log.Warn().Err(err).Msg("register response without credential")
		return AuthOutcome{FormError: "Something went wrong"}, nil
	}

	if err := s.guard.Establish(ctx, clientID, payload.Token, payload.User); err != nil {
		return AuthOutcome{}, err
	}
	if err := s.progress.SetStage(ctx, clientID, models.StageBusiness); err != nil {
		return AuthOutcome{}, err
	}

	if _, err := s.sendVerificationEmail(ctx, payload.Token); err != nil {
		s.log.Warn().Err(err).Str("client_id", clientID).Msg("verification email not sent")
	}

	s.log.Info().Str("client_id", clientID).Msg("account registered")
	return AuthOutcome{Redirect: PathBusiness, Token: payload.Token}, nil
}

// Signin logs in and resolves the landing page. next is honoured only when
// it is a local path.
func (s *AuthService) Signin(ctx context.Context, clientID string, form models.SigninForm, next string) (AuthOutcome, error) {
	if errs := s.validator.Validate(form); errs != nil {
		return AuthOutcome{Errors: errs}, nil
	}

	resp, err := s.api.Do(ctx, APIRequest{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Body:   map[string]string{"email": form.Email, "password": form.Password},
	})
	if err != nil {
		return AuthOutcome{FormError: "Cannot connect to server. Please try again later."}, nil
	}
	if !resp.OK() {
		return AuthOutcome{FormError: resp.Message("Login failed")}, nil
	}

	var payload models.AuthPayload
	if err := resp.DecodeData(&payload); err != nil || payload.Token == "" {
		return AuthOutcome{FormError: "Login failed"}, nil
	}
	if err := s.guard.Establish(ctx, clientID, payload.Token, payload.User); err != nil {
		return AuthOutcome{}, err
	}

	var flags models.UserFlags
	if len(payload.User) > 0 {
		_ = json.Unmarshal(payload.User, &flags)
	}

	out := AuthOutcome{Redirect: PathMerchant, Token: payload.Token}
	switch {
	case flags.Role == "admin":
		out.Redirect = PathAdmin
	case localPath(next):
		out.Redirect = next
	}

	s.log.Info().Str("client_id", clientID).Str("redirect", out.Redirect).Msg("signed in")
	return out, nil
}

// VerifyEmail confirms an emailed verification token.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) AuthOutcome {
	if token == "" {
		return AuthOutcome{FormError: "Invalid verification link"}
	}

	resp, err := s.api.Do(ctx, APIRequest{Method: http.MethodGet, Path: "/auth/verify-email/" + url.PathEscape(token)})
	if err != nil {
		return AuthOutcome{FormError: "An error occurred during verification"}
	}
	if resp.OK() {
		return AuthOutcome{Message: "Email verified successfully!", Redirect: PathMerchant}
	}

	msg := resp.Message("Verification failed")
	if strings.Contains(msg, "expired") || strings.Contains(msg, "invalid") {
		return AuthOutcome{FormError: "Your verification link has expired or is invalid", Resend: true}
	}
	return AuthOutcome{FormError: msg, Resend: resp.Status < 300}
}

// ResendVerification asks the backend to send another verification email.
func (s *AuthService) ResendVerification(ctx context.Context, clientID string) (AuthOutcome, error) {
	token, ok, err := s.guard.Token(ctx, clientID)
	if err != nil {
		return AuthOutcome{}, err
	}
	if !ok {
		return AuthOutcome{FormError: "You need to be logged in to request a new verification email"}, nil
	}

	resp, err := s.sendVerificationEmail(ctx, token)
	if err != nil || !resp.OK() {
		if resp.Unauthorized() {
			return AuthOutcome{FormError: "Your session has expired", Redirect: PathSignin}, nil
		}
		return AuthOutcome{FormError: "Failed to send verification email"}, nil
	}

	var data struct {
		Token string `json:"token"`
	}
	_ = resp.DecodeData(&data)
	return AuthOutcome{Message: "Verification email sent successfully!", VerificationToken: data.Token}, nil
}

// Logout drops the credential, profile and onboarding draft and stops polling.
func (s *AuthService) Logout(ctx context.Context, clientID string) error {
	if s.verification != nil {
		s.verification.Leave(clientID)
	}
	if err := s.guard.Clear(ctx, clientID); err != nil {
		return err
	}
	if err := s.progress.Abandon(ctx, clientID); err != nil {
		return err
	}
	s.log.Info().Str("client_id", clientID).Msg("signed out")
	return nil
}

func (s *AuthService) sendVerificationEmail(ctx context.Context, token string) (*APIResponse, error) {
	return s.api.Do(ctx, APIRequest{
		Method: http.MethodPost,
		Path:   "/auth/send-verification-email",
		Body:   map[string]string{},
		Token:  token,
	})
}

func localPath(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") && !strings.Contains(p, "\\")
}

package models

import "encoding/json"

// Envelope is the response shape of every backend API call.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Identity is the data payload of GET /auth/me.
type Identity struct {
	User     json.RawMessage `json:"user"`
	Merchant json.RawMessage `json:"merchant"`
}

// UserFlags holds the user fields the gateway acts on.
type UserFlags struct {
	OnboardingComplete bool   `json:"onboardingComplete"`
	EmailVerified      bool   `json:"emailVerified"`
	Role               string `json:"role"`
}

// AuthPayload is the data payload of register and login.
type AuthPayload struct {
	Token string          `json:"token"`
	User  json.RawMessage `json:"user"`
}

// SignupForm is the account creation form.
type SignupForm struct {
	Email           string `json:"email" form:"email" validate:"required,email"`
	Password        string `json:"password" form:"password" validate:"min=8,password"`
	ConfirmPassword string `json:"confirmPassword" form:"confirmPassword" validate:"required,eqfield=Password"`
}

// SigninForm is the login form.
type SigninForm struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required"`
}

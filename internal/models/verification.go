package models

import "encoding/json"

// Verification statuses.
const (
	VerificationPending  = "pending"
	VerificationVerified = "verified"
	VerificationRejected = "rejected"
)

// VerificationPayload is the data payload of GET /verification/status.
type VerificationPayload struct {
	Status       string            `json:"status"`
	Verification map[string]any    `json:"verification"`
	Country      string            `json:"country"`
	PaymentRates []json.RawMessage `json:"paymentRates"`
	Requirements json.RawMessage   `json:"requirements"`
}

// VerificationState is the snapshot exposed to dashboard views.
type VerificationState struct {
	Status           string            `json:"status"`
	Loading          bool              `json:"isLoading"`
	Country          string            `json:"country,omitempty"`
	Verification     map[string]any    `json:"verificationData"`
	Requirements     json.RawMessage   `json:"countryRequirements"`
	PaymentRates     []json.RawMessage `json:"paymentRates"`
	RejectedFields   []string          `json:"rejectedFields"`
	RejectionReasons map[string]string `json:"rejectionReasons"`
}

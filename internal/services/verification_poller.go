package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/arkuspay/internal/models"
)

// plainPrefix marks backend values that are shown as-is; it never reaches views.
const plainPrefix = "PLAIN:"

type trackedDocument struct {
	field  string
	reason string
}

var trackedDocuments = []trackedDocument{
	{field: "businessDocument", reason: "Business document was rejected"},
	{field: "personalDocument", reason: "Personal document was rejected"},
	{field: "bankDetails", reason: "Bank details were rejected"},
}

// TokenSource yields the bearer credential for the poller's client.
type TokenSource func(ctx context.Context) (string, bool, error)

// VerificationPoller holds one client's verification state and refreshes it.
type VerificationPoller struct {
	statusCall *APICall
	submitCall *APICall
	token      TokenSource
	throttle   time.Duration
	now        func() time.Time
	log        zerolog.Logger

	mu        sync.Mutex
	lastRun   time.Time
	issued    uint64
	applied   uint64
	state     models.VerificationState
	stopPoll  context.CancelFunc
	lastVisit time.Time
}

// NewVerificationPoller constructs a poller. throttle bounds how often
// FetchStatus may run, measured between invocations.
func NewVerificationPoller(api *APIClient, token TokenSource, throttle time.Duration, log zerolog.Logger) *VerificationPoller {
	return &VerificationPoller{
		statusCall: NewAPICall(api, http.MethodGet, "/verification/status"),
		submitCall: NewAPICall(api, http.MethodPost, "/verification/submit"),
		token:      token,
		throttle:   throttle,
		now:        time.Now,
		log:        log,
		state: models.VerificationState{
			Status:           models.VerificationPending,
			RejectedFields:   []string{},
			RejectionReasons: map[string]string{},
			PaymentRates:     []json.RawMessage{},
		},
	}
}

// FetchStatus refreshes the verification state. It is a no-op when the
// previous invocation was less than the throttle window ago.
func (p *VerificationPoller) FetchStatus(ctx context.Context) error {
	p.mu.Lock()
	now := p.now()
	if !p.lastRun.IsZero() && now.Sub(p.lastRun) < p.throttle {
		p.mu.Unlock()
		return nil
	}
	p.lastRun = now
	p.issued++
	generation := p.issued
	p.mu.Unlock()

	token, ok, err := p.token(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	resp, err := p.statusCall.Send(ctx, token, "", nil)
	if err != nil {
		p.log.Warn().Err(err).Msg("failed to load verification status")
		return err
	}
	if !resp.OK() {
		p.log.Info().Int("status", resp.Status).Str("message", resp.Message("")).Msg("verification status unavailable")
		return nil
	}

	var payload models.VerificationPayload
	if err := resp.DecodeData(&payload); err != nil {
		return fmt.Errorf("decode verification status: %w", err)
	}

	next := buildState(payload)

	p.mu.Lock()
	defer p.mu.Unlock()
	if generation < p.applied {
		p.log.Debug().Uint64("generation", generation).Uint64("applied", p.applied).Msg("dropping stale verification status")
		return nil
	}
	p.applied = generation
	p.state = next
	return nil
}

// SubmitDocuments uploads verification documents. On success the status
// becomes pending and a refresh is attempted, subject to the throttle.
func (p *VerificationPoller) SubmitDocuments(ctx context.Context, form *Multipart) (bool, string) {
	ok, message := p.submit(ctx, form)
	if ok {
		p.mu.Lock()
		p.state.Status = models.VerificationPending
		p.mu.Unlock()

		if err := p.FetchStatus(ctx); err != nil {
			p.log.Warn().Err(err).Msg("refresh after submission failed")
		}
	}
	return ok, message
}

func (p *VerificationPoller) submit(ctx context.Context, form *Multipart) (bool, string) {
	token, ok, err := p.token(ctx)
	if err != nil || !ok {
		return false, "An error occurred while submitting verification"
	}

	resp, err := p.submitCall.Send(ctx, token, "", form)
	if err != nil {
		p.log.Warn().Err(err).Msg("verification submission failed")
		return false, "An error occurred while submitting verification"
	}
	if !resp.OK() {
		return false, resp.Message("Failed to submit verification")
	}
	return true, "Verification documents submitted successfully"
}

// Snapshot returns a copy of the current state.
func (p *VerificationPoller) Snapshot() models.VerificationState {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := p.state
	out.Loading = p.statusCall.Loading() || p.submitCall.Loading()
	out.RejectedFields = append([]string{}, p.state.RejectedFields...)
	out.RejectionReasons = make(map[string]string, len(p.state.RejectionReasons))
	for k, v := range p.state.RejectionReasons {
		out.RejectionReasons[k] = v
	}
	return out
}

// StartPolling fetches every interval until StopPolling, or until no visit
// has been recorded for idle. A running poll is left as is.
func (p *VerificationPoller) StartPolling(interval, idle time.Duration) {
	p.mu.Lock()
	p.lastVisit = p.now()
	if p.stopPoll != nil {
		p.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.stopPoll = cancel
	p.mu.Unlock()

	go p.poll(ctx, interval, idle)
}

// StopPolling ends the interval. In-flight requests are not cancelled.
func (p *VerificationPoller) StopPolling() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopPoll != nil {
		p.stopPoll()
		p.stopPoll = nil
	}
}

// Touch records a visit without starting the interval.
func (p *VerificationPoller) Touch() {
	p.mu.Lock()
	p.lastVisit = p.now()
	p.mu.Unlock()
}

// Idle reports whether the interval is stopped and no visit arrived within d.
func (p *VerificationPoller) Idle(d time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopPoll == nil && p.now().Sub(p.lastVisit) > d
}

// Polling reports whether the interval is running.
func (p *VerificationPoller) Polling() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopPoll != nil
}

func (p *VerificationPoller) poll(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.stopIfIdle(ctx, idle) {
				return
			}
			if ctx.Err() != nil {
				return
			}
			// Requests outlive the interval; StopPolling does not cancel them.
			if err := p.FetchStatus(context.Background()); err != nil {
				p.log.Debug().Err(err).Msg("scheduled verification fetch failed")
			}
		}
	}
}

// stopIfIdle ends the interval owned by ctx when no visit arrived within idle.
// The check and the stop happen under one lock so a concurrent StartPolling
// either refreshes the visit first or starts a fresh interval afterwards.
func (p *VerificationPoller) stopIfIdle(ctx context.Context, idle time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if idle <= 0 || ctx.Err() != nil || p.now().Sub(p.lastVisit) <= idle {
		return false
	}
	p.stopPoll()
	p.stopPoll = nil
	return true
}

func buildState(payload models.VerificationPayload) models.VerificationState {
	verification, _ := sanitize(payload.Verification).(map[string]any)

	state := models.VerificationState{
		Status:           payload.Status,
		Country:          payload.Country,
		Verification:     verification,
		Requirements:     payload.Requirements,
		PaymentRates:     payload.PaymentRates,
		RejectedFields:   []string{},
		RejectionReasons: map[string]string{},
	}
	if state.PaymentRates == nil {
		state.PaymentRates = []json.RawMessage{}
	}
	if verification == nil {
		return state
	}

	for _, doc := range trackedDocuments {
		entry, ok := verification[doc.field].(map[string]any)
		if !ok || entry["status"] != models.VerificationRejected {
			continue
		}
		state.RejectedFields = append(state.RejectedFields, doc.field)
		reason, _ := entry["rejectionReason"].(string)
		if reason == "" {
			reason = doc.reason
		}
		state.RejectionReasons[doc.field] = reason
	}

	if note, ok := verification["rejectionNote"].(string); ok && note != "" {
		state.RejectionReasons["overall"] = note
	}
	return state
}

// sanitize strips the plaintext marker from every string in a decoded JSON value.
func sanitize(value any) any {
	switch v := value.(type) {
	case string:
		return strings.TrimPrefix(v, plainPrefix)
	case map[string]any:
		for k, inner := range v {
			v[k] = sanitize(inner)
		}
		return v
	case []any:
		for i, inner := range v {
			v[i] = sanitize(inner)
		}
		return v
	default:
		return v
	}
}

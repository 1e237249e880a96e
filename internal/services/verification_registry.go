package services

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/arkuspay/internal/models"
)

// VerificationRegistry owns one VerificationPoller per browser client.
type VerificationRegistry struct {
	guard    *SessionGuard
	api      *APIClient
	throttle time.Duration
	interval time.Duration
	idle     time.Duration
	log      zerolog.Logger

	mu      sync.Mutex
	pollers map[string]*VerificationPoller
	stop    context.CancelFunc
}

// NewVerificationRegistry constructs a registry. Pollers fetch at most once
// per throttle, poll every interval on the landing page and stop after idle
// without a visit; stopped pollers are swept once they have been idle as long.
func NewVerificationRegistry(guard *SessionGuard, api *APIClient, throttle, interval, idle time.Duration, log zerolog.Logger) *VerificationRegistry {
	ctx, cancel := context.WithCancel(context.Background())
	r := &VerificationRegistry{
		guard:    guard,
		api:      api,
		throttle: throttle,
		interval: interval,
		idle:     idle,
		log:      log.With().Str("component", "verification").Logger(),
		pollers:  make(map[string]*VerificationPoller),
		stop:     cancel,
	}
	if idle > 0 {
		go r.sweepEvery(ctx, idle)
	}
	return r
}

// Poller returns the client's poller, creating it on first use. Each call
// counts as a visit for the idle sweep.
func (r *VerificationRegistry) Poller(clientID string) *VerificationPoller {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.poller(clientID)
}

func (r *VerificationRegistry) poller(clientID string) *VerificationPoller {
	if p, ok := r.pollers[clientID]; ok {
		p.Touch()
		return p
	}
	token := func(ctx context.Context) (string, bool, error) {
		return r.guard.Token(ctx, clientID)
	}
	p := NewVerificationPoller(r.api, token, r.throttle, r.log.With().Str("client_id", clientID).Logger())
	p.Touch()
	r.pollers[clientID] = p
	return p
}

// Sweep drops pollers that are not polling and saw no visit within the idle
// period. It returns how many were removed.
func (r *VerificationRegistry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, p := range r.pollers {
		if p.Idle(r.idle) {
			delete(r.pollers, id)
			removed++
		}
	}
	if removed > 0 {
		r.log.Debug().Int("removed", removed).Int("remaining", len(r.pollers)).Msg("idle verification pollers swept")
	}
	return removed
}

func (r *VerificationRegistry) sweepEvery(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Len reports how many clients currently hold a poller.
func (r *VerificationRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pollers)
}

// Visit records that a signed-in client opened route. The landing route keeps
// an interval running; any other route stops it and fetches once.
func (r *VerificationRegistry) Visit(ctx context.Context, clientID, route string) models.VerificationState {
	r.mu.Lock()
	p := r.poller(clientID)
	if route == PathMerchant {
		p.StartPolling(r.interval, r.idle)
	} else {
		p.StopPolling()
	}
	r.mu.Unlock()

	if err := p.FetchStatus(ctx); err != nil {
		r.log.Warn().Err(err).Str("client_id", clientID).Msg("verification fetch failed")
	}
	return p.Snapshot()
}

// Leave stops and forgets the client's poller, as on sign-out.
func (r *VerificationRegistry) Leave(clientID string) {
	r.mu.Lock()
	p, ok := r.pollers[clientID]
	delete(r.pollers, clientID)
	r.mu.Unlock()

	if ok {
		p.StopPolling()
	}
}

// Close stops the sweeper and every interval. In-flight requests finish on
// their own.
func (r *VerificationRegistry) Close() {
	r.stop()

	r.mu.Lock()
	pollers := r.pollers
	r.pollers = make(map[string]*VerificationPoller)
	r.mu.Unlock()

	for _, p := range pollers {
		p.StopPolling()
	}
	r.log.Info().Int("pollers", len(pollers)).Msg("verification pollers stopped")
}

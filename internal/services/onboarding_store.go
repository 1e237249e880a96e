package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/example/arkuspay/internal/database"
	"github.com/example/arkuspay/internal/models"
)

// OnboardingStore persists each client's onboarding progress under the
// onboarding-storage key. Every mutation loads, applies and saves the whole value.
type OnboardingStore struct {
	store database.Store
	log   zerolog.Logger
}

// NewOnboardingStore constructs an OnboardingStore.
func NewOnboardingStore(store database.Store, log zerolog.Logger) *OnboardingStore {
	return &OnboardingStore{
		store: store,
		log:   log.With().Str("component", "onboarding_store").Logger(),
	}
}

// Get loads the client's progress. A client with nothing stored starts at signup.
func (s *OnboardingStore) Get(ctx context.Context, clientID string) (models.Progress, error) {
	raw, ok, err := s.store.Get(ctx, clientID, models.KeyOnboarding)
	if err != nil {
		return models.Progress{}, fmt.Errorf("load onboarding progress: %w", err)
	}
	if !ok {
		return models.Progress{Stage: models.StageSignup}, nil
	}

	var progress models.Progress
	if err := json.Unmarshal([]byte(raw), &progress); err != nil {
		s.log.Warn().Err(err).Str("client_id", clientID).Msg("discarding unreadable onboarding progress")
		return models.Progress{Stage: models.StageSignup}, nil
	}
	if progress.Stage == "" {
		progress.Stage = models.StageSignup
	}
	return progress, nil
}

// SetStage moves the wizard to stage without touching the draft.
func (s *OnboardingStore) SetStage(ctx context.Context, clientID string, stage models.Stage) error {
	return s.update(ctx, clientID, func(p *models.Progress) {
		p.Stage = stage
	})
}

// MergeDraft shallow-merges partial into the stored draft.
func (s *OnboardingStore) MergeDraft(ctx context.Context, clientID string, partial models.Draft) error {
	return s.update(ctx, clientID, func(p *models.Progress) {
		p.Data = p.Data.Merge(partial)
	})
}

// Advance merges partial and moves to stage in a single write.
func (s *OnboardingStore) Advance(ctx context.Context, clientID string, partial models.Draft, stage models.Stage) error {
	return s.update(ctx, clientID, func(p *models.Progress) {
		p.Data = p.Data.Merge(partial)
		p.Stage = stage
	})
}

// Abandon empties the draft and returns the wizard to signup.
func (s *OnboardingStore) Abandon(ctx context.Context, clientID string) error {
	return s.save(ctx, clientID, models.Progress{Stage: models.StageSignup})
}

// Complete empties the draft and marks onboarding finished.
func (s *OnboardingStore) Complete(ctx context.Context, clientID string) error {
	return s.save(ctx, clientID, models.Progress{Stage: models.StageComplete})
}

// Reset is the legacy name for Complete.
func (s *OnboardingStore) Reset(ctx context.Context, clientID string) error {
	return s.Complete(ctx, clientID)
}

func (s *OnboardingStore) update(ctx context.Context, clientID string, apply func(*models.Progress)) error {
	progress, err := s.Get(ctx, clientID)
	if err != nil {
		return err
	}
	apply(&progress)
	return s.save(ctx, clientID, progress)
}

func (s *OnboardingStore) save(ctx context.Context, clientID string, progress models.Progress) error {
	raw, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("encode onboarding progress: %w", err)
	}
	if err := s.store.Set(ctx, clientID, models.KeyOnboarding, string(raw)); err != nil {
		return fmt.Errorf("save onboarding progress: %w", err)
	}
	return nil
}

// StepIndex is the zero-based wizard step for stage, or -1 outside the wizard.
func StepIndex(stage models.Stage) int {
	switch stage {
	case models.StageBusiness:
		return 0
	case models.StageAddress:
		return 1
	case models.StageSelling:
		return 2
	default:
		return -1
	}
}

// IsComplete reports whether progress has reached the complete stage.
func IsComplete(progress models.Progress) bool {
	return progress.Stage == models.StageComplete
}

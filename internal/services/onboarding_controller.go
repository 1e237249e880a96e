package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/example/arkuspay/internal/models"
)

// ErrUnknownStep is returned for a step outside business, address and selling.
var ErrUnknownStep = errors.New("unknown onboarding step")

const networkErrorMessage = "Network error. Please try again."

// StepForm is a submitted onboarding step.
type StepForm interface {
	Draft() models.Draft
}

type stepSpec struct {
	path     string
	endpoint string
	next     models.Stage
	previous models.Stage
	requires []string
}

var steps = map[models.Stage]stepSpec{
	models.StageBusiness: {
		path:     PathBusiness,
		endpoint: "/onboarding/business",
		next:     models.StageAddress,
		previous: models.StageBusiness,
	},
	models.StageAddress: {
		path:     PathAddress,
		endpoint: "/onboarding/address",
		next:     models.StageSelling,
		previous: models.StageBusiness,
		requires: []string{"businessName", "country"},
	},
	models.StageSelling: {
		path:     PathSelling,
		endpoint: "/onboarding/selling-method",
		next:     models.StageComplete,
		previous: models.StageAddress,
		requires: []string{"businessName", "country", "line1"},
	},
}

// StepPath returns the page path of an onboarding step.
func StepPath(step models.Stage) string {
	return steps[step].path
}

// OnboardingView is what a step page renders, or where it redirects.
type OnboardingView struct {
	Step            models.Stage `json:"step"`
	StepIndex       int          `json:"stepIndex"`
	Stage           models.Stage `json:"stage"`
	Draft           models.Draft `json:"draft"`
	Redirect        string       `json:"-"`
	Unauthenticated bool         `json:"-"`
}

// StepOutcome is the result of a submit or back action.
type StepOutcome struct {
	Redirect     string      `json:"redirect,omitempty"`
	Errors       FieldErrors `json:"errors,omitempty"`
	FormError    string      `json:"formError,omitempty"`
	ClearSession bool        `json:"-"`
}

// OnboardingController drives the business, address and selling steps.
type OnboardingController struct {
	guard     *SessionGuard
	progress  *OnboardingStore
	api       *APIClient
	validator *FormValidator
	log       zerolog.Logger
}

// NewOnboardingController constructs an OnboardingController.
func NewOnboardingController(guard *SessionGuard, progress *OnboardingStore, api *APIClient, validator *FormValidator, log zerolog.Logger) *OnboardingController {
	return &OnboardingController{
		guard:     guard,
		progress:  progress,
		api:       api,
		validator: validator,
		log:       log.With().Str("component", "onboarding").Logger(),
	}
}

// Enter runs the session and prerequisite checks for a step page.
func (c *OnboardingController) Enter(ctx context.Context, clientID string, step models.Stage) (OnboardingView, error) {
	spec, ok := steps[step]
	if !ok {
		return OnboardingView{}, ErrUnknownStep
	}

	progress, redirect, err := c.admit(ctx, clientID, spec)
	if err != nil {
		return OnboardingView{}, err
	}
	if redirect.Redirect != "" {
		return OnboardingView{Redirect: redirect.Redirect, Unauthenticated: redirect.ClearSession}, nil
	}

	return OnboardingView{
		Step:      step,
		StepIndex: StepIndex(step),
		Stage:     progress.Stage,
		Draft:     withFormDefaults(progress.Data),
	}, nil
}

// Submit validates form, posts it to the backend and advances on success.
func (c *OnboardingController) Submit(ctx context.Context, clientID string, step models.Stage, form StepForm) (StepOutcome, error) {
	spec, ok := steps[step]
	if !ok {
		return StepOutcome{}, ErrUnknownStep
	}

	_, redirect, err := c.admit(ctx, clientID, spec)
	if err != nil {
		return StepOutcome{}, err
	}
	if redirect.Redirect != "" {
		return redirect, nil
	}

	if errs := c.validator.Validate(form); errs != nil {
		return StepOutcome{Errors: errs}, nil
	}

	token, ok, err := c.guard.Token(ctx, clientID)
	if err != nil {
		return StepOutcome{}, err
	}
	if !ok {
		return StepOutcome{Redirect: PathSignup}, nil
	}

	resp, err := c.api.Do(ctx, APIRequest{
		Method: http.MethodPost,
		Path:   spec.endpoint,
		Body:   form,
		Token:  token,
	})
	if err != nil {
		c.log.Warn().Err(err).Str("client_id", clientID).Str("step", string(step)).Msg("onboarding submit failed")
		return StepOutcome{FormError: networkErrorMessage}, nil
	}

	if !resp.OK() {
		if step == models.StageSelling && resp.Unauthorized() {
			return c.dropSession(ctx, clientID)
		}
		return StepOutcome{FormError: resp.Message("Something went wrong")}, nil
	}

	if spec.next != models.StageComplete {
		if err := c.progress.Advance(ctx, clientID, form.Draft(), spec.next); err != nil {
			return StepOutcome{}, err
		}
		c.log.Info().Str("client_id", clientID).Str("stage", string(spec.next)).Msg("onboarding advanced")
		return StepOutcome{Redirect: steps[spec.next].path}, nil
	}

	if err := c.progress.Complete(ctx, clientID); err != nil {
		return StepOutcome{}, err
	}

	var data models.AuthPayload
	if err := resp.DecodeData(&data); err == nil && len(data.User) > 0 {
		if err := c.guard.SaveProfile(ctx, clientID, data.User); err != nil {
			c.log.Warn().Err(err).Str("client_id", clientID).Msg("failed to cache profile")
		}
	}

	c.log.Info().Str("client_id", clientID).Msg("onboarding complete")
	return StepOutcome{Redirect: PathMerchant}, nil
}

// Back keeps whatever the visible form holds and returns to the previous step.
func (c *OnboardingController) Back(ctx context.Context, clientID string, step models.Stage, form StepForm) (StepOutcome, error) {
	spec, ok := steps[step]
	if !ok {
		return StepOutcome{}, ErrUnknownStep
	}
	_, redirect, err := c.admit(ctx, clientID, spec)
	if err != nil {
		return StepOutcome{}, err
	}
	if redirect.Redirect != "" {
		return redirect, nil
	}
	if err := c.progress.MergeDraft(ctx, clientID, form.Draft()); err != nil {
		return StepOutcome{}, err
	}
	return StepOutcome{Redirect: steps[spec.previous].path}, nil
}

// admit runs the session and prerequisite checks shared by every step entry
// point. A non-empty Redirect in the outcome means the visitor does not belong
// on the step; ClearSession is set when the credential was rejected.
func (c *OnboardingController) admit(ctx context.Context, clientID string, spec stepSpec) (models.Progress, StepOutcome, error) {
	entry, err := c.guard.Enter(ctx, clientID, Redirects{
		Unauthenticated: PathSignup,
		Complete:        PathMerchant,
	})
	if err != nil {
		return models.Progress{}, StepOutcome{}, err
	}
	if entry.Redirect != "" {
		return models.Progress{}, StepOutcome{Redirect: entry.Redirect, ClearSession: entry.Unauthenticated}, nil
	}

	progress, err := c.progress.Get(ctx, clientID)
	if err != nil {
		return models.Progress{}, StepOutcome{}, err
	}
	if !progress.Data.Has(spec.requires...) {
		return progress, StepOutcome{Redirect: PathBusiness}, nil
	}
	return progress, StepOutcome{}, nil
}

func (c *OnboardingController) dropSession(ctx context.Context, clientID string) (StepOutcome, error) {
	if err := c.guard.Clear(ctx, clientID); err != nil {
		return StepOutcome{}, fmt.Errorf("clear session: %w", err)
	}
	if err := c.progress.Abandon(ctx, clientID); err != nil {
		return StepOutcome{}, err
	}
	c.log.Info().Str("client_id", clientID).Msg("credential rejected on final step")
	return StepOutcome{Redirect: PathSignup, ClearSession: true}, nil
}

// withFormDefaults fills the values a fresh form starts with.
func withFormDefaults(d models.Draft) models.Draft {
	defaults := models.Draft{}
	if d.Country == nil {
		us := "US"
		defaults.Country = &us
	}
	if d.SellingMethod == nil {
		hosted := models.SellingHostedStore
		defaults.SellingMethod = &hosted
	}
	return d.Merge(defaults)
}

package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/example/arkuspay/internal/config"
	"github.com/example/arkuspay/internal/middleware"
	"github.com/example/arkuspay/internal/models"
	"github.com/example/arkuspay/internal/services"
)

// OnboardingHandler serves the business, address and selling steps.
type OnboardingHandler struct {
	controller *services.OnboardingController
	cfg        *config.Config
}

// NewOnboardingHandler constructs an OnboardingHandler.
func NewOnboardingHandler(controller *services.OnboardingController, cfg *config.Config) *OnboardingHandler {
	return &OnboardingHandler{controller: controller, cfg: cfg}
}

// Page renders a step, or redirects when the visitor does not belong there.
func (h *OnboardingHandler) Page(c *fiber.Ctx) error {
	id, err := clientID(c)
	if err != nil {
		return err
	}
	step, err := stepParam(c)
	if err != nil {
		return err
	}

	view, err := h.controller.Enter(c.UserContext(), id, step)
	if err != nil {
		return err
	}
	if view.Unauthenticated {
		middleware.ClearTokenCookie(c, h.cfg)
	}
	if view.Redirect != "" {
		return c.Redirect(view.Redirect, fiber.StatusFound)
	}
	return renderPage(c, "onboarding", view)
}

// Submit validates and posts a step.
func (h *OnboardingHandler) Submit(c *fiber.Ctx) error {
	return h.act(c, h.controller.Submit)
}

// Back keeps the visible values and returns to the previous step.
func (h *OnboardingHandler) Back(c *fiber.Ctx) error {
	return h.act(c, h.controller.Back)
}

type stepAction func(ctx context.Context, clientID string, step models.Stage, form services.StepForm) (services.StepOutcome, error)

func (h *OnboardingHandler) act(c *fiber.Ctx, action stepAction) error {
	id, err := clientID(c)
	if err != nil {
		return err
	}
	step, err := stepParam(c)
	if err != nil {
		return err
	}
	form, err := bindStepForm(c, step)
	if err != nil {
		return err
	}

	out, err := action(c.UserContext(), id, step, form)
	if err != nil {
		return err
	}
	if out.ClearSession {
		middleware.ClearTokenCookie(c, h.cfg)
	}
	return formResult(c, out.Redirect, out.Errors, out.FormError, nil)
}

func stepParam(c *fiber.Ctx) (models.Stage, error) {
	step := models.Stage(c.Params("step"))
	if services.StepPath(step) == "" {
		return "", fiber.NewError(fiber.StatusNotFound, services.ErrUnknownStep.Error())
	}
	return step, nil
}

func bindStepForm(c *fiber.Ctx, step models.Stage) (services.StepForm, error) {
	var (
		form services.StepForm
		err  error
	)
	switch step {
	case models.StageBusiness:
		var f models.BusinessForm
		err = c.BodyParser(&f)
		form = f
	case models.StageAddress:
		var f models.AddressForm
		err = c.BodyParser(&f)
		form = f
	case models.StageSelling:
		var f models.SellingForm
		err = c.BodyParser(&f)
		form = f
	default:
		return nil, errors.New("no form for step " + string(step))
	}
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	return form, nil
}

package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/example/arkuspay/internal/config"
	"github.com/example/arkuspay/internal/database"
	"github.com/example/arkuspay/internal/handlers"
	"github.com/example/arkuspay/internal/middleware"
	"github.com/example/arkuspay/internal/services"
)

// idleVisitorsFactor scales the poll interval into how long a landing-page
// poller keeps running without a visit.
const idleVisitorsFactor = 3

// Register wires up all HTTP routes. The returned registry owns the
// verification pollers and must be closed on shutdown.
func Register(app *fiber.App, store database.Store, cfg *config.Config, log zerolog.Logger) *services.VerificationRegistry {
	api := services.NewAPIClient(cfg.APIBaseURL, cfg.APITimeout, log)
	validator := services.NewFormValidator()
	guard := services.NewSessionGuard(store, api, log)
	progress := services.NewOnboardingStore(store, log)
	registry := services.NewVerificationRegistry(guard, api,
		cfg.StatusThrottle, cfg.StatusPollInterval, idleVisitorsFactor*cfg.StatusPollInterval, log)
	auth := services.NewAuthService(guard, progress, registry, api, validator, log)
	onboarding := services.NewOnboardingController(guard, progress, api, validator, log)

	authHandler := handlers.NewAuthHandler(auth, guard, cfg)
	onboardingHandler := handlers.NewOnboardingHandler(onboarding, cfg)
	merchantHandler := handlers.NewMerchantHandler(registry)
	resourceHandler := handlers.NewResourceHandler(api, guard, cfg, log)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"success": true})
	})

	app.Use(middleware.ClientID(cfg))
	app.Use(middleware.CookiePrefilter())

	// Auth pages
	app.Get("/signup", authHandler.SignupPage)
	app.Post("/signup", authHandler.Signup)
	app.Get("/signin", authHandler.SigninPage)
	app.Post("/signin", authHandler.Signin)
	app.Get("/verify-email", authHandler.VerifyEmail)
	app.Post("/verify-email/resend", authHandler.ResendVerification)
	app.Post("/logout", authHandler.Logout)

	// Onboarding wizard
	onboardingGroup := app.Group("/onboarding")
	onboardingGroup.Get("/:step", onboardingHandler.Page)
	onboardingGroup.Post("/:step", onboardingHandler.Submit)
	onboardingGroup.Post("/:step/back", onboardingHandler.Back)

	// Dashboard
	merchant := app.Group("/merchant", middleware.RequireSession(guard, services.Redirects{
		Unauthenticated: services.PathSignin,
		Incomplete:      services.PathBusiness,
	}, cfg))
	merchant.Get("/", merchantHandler.Landing)

	verification := merchant.Group("/verification")
	verification.Get("/", merchantHandler.Verification)
	verification.Post("/refresh", merchantHandler.RefreshVerification)
	verification.Post("/submit", merchantHandler.SubmitVerification)

	products := merchant.Group("/products", merchantHandler.TrackVisit)
	products.Get("/", resourceHandler.ListProducts)
	products.Post("/", resourceHandler.CreateProduct)
	products.Get("/:id", resourceHandler.GetProduct)
	products.Put("/:id", resourceHandler.UpdateProduct)
	products.Delete("/:id", resourceHandler.DeleteProduct)

	transactions := merchant.Group("/transactions", merchantHandler.TrackVisit)
	transactions.Get("/", resourceHandler.ListTransactions)
	transactions.Get("/:id", resourceHandler.GetTransaction)
	transactions.Post("/:id/refund", resourceHandler.RefundTransaction)

	finance := merchant.Group("/finance", merchantHandler.TrackVisit)
	finance.Get("/balance", resourceHandler.Balance)
	finance.Get("/payouts", resourceHandler.ListPayouts)
	finance.Get("/payouts/accounts", resourceHandler.PayoutAccounts)
	finance.Get("/payouts/:id", resourceHandler.GetPayout)
	finance.Get("/accounts", resourceHandler.ListAccounts)
	finance.Post("/accounts/:kind", resourceHandler.AddAccount)

	merchant.Get("/notifications", merchantHandler.TrackVisit, resourceHandler.Notifications)

	return registry
}

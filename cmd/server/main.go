package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/example/arkuspay/internal/config"
	"github.com/example/arkuspay/internal/database"
	"github.com/example/arkuspay/internal/handlers"
	applog "github.com/example/arkuspay/internal/logger"
	"github.com/example/arkuspay/internal/routes"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := applog.New("info", false)
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}
	log := applog.New(cfg.LogLevel, cfg.LogPretty)

	store := openStore(cfg, log)

	app := fiber.New(fiber.Config{
		AppName:      "ArkusPay Dashboard",
		ErrorHandler: handlers.ErrorHandler(log),
		ReadTimeout:  30 * time.Second,
	})

	app.Use(recover.New())
	app.Use(logger.New())

	registry := routes.Register(app, store, cfg, log)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		log.Info().Msg("shutting down")
		registry.Close()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error().Err(err).Msg("shutdown failed")
		}
	}()

	log.Info().Str("port", cfg.AppPort).Str("api", cfg.APIBaseURL).Msg("starting server")
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Fatal().Err(err).Msg("fiber.Listen error")
	}
}

func openStore(cfg *config.Config, log zerolog.Logger) database.Store {
	if cfg.DatabaseURL == "" {
		log.Warn().Msg("DATABASE_URL not set, client storage is in memory")
		return database.NewMemoryStore()
	}

	db, err := database.Connect(cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	return database.NewGormStore(db)
}

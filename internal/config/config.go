package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration values.
type Config struct {
	AppPort            string        `yaml:"app_port"`
	AppEnv             string        `yaml:"app_env"`
	DatabaseURL        string        `yaml:"database_url"`
	APIBaseURL         string        `yaml:"api_base_url"`
	APITimeout         time.Duration `yaml:"api_timeout"`
	LogLevel           string        `yaml:"log_level"`
	LogPretty          bool          `yaml:"log_pretty"`
	StatusThrottle     time.Duration `yaml:"status_throttle"`
	StatusPollInterval time.Duration `yaml:"status_poll_interval"`
	CookieMaxAge       time.Duration `yaml:"cookie_max_age"`
}

// Load reads .env, environment variables and the optional CONFIG_FILE overlay.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppPort:            getEnv("APP_PORT", "3000"),
		AppEnv:             getEnv("APP_ENV", "development"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		APIBaseURL:         strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:5000/api"), "/"),
		APITimeout:         getEnvDuration("API_TIMEOUT_SECONDS", 15) * time.Second,
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogPretty:          getEnv("LOG_PRETTY", "false") == "true",
		StatusThrottle:     getEnvDuration("STATUS_THROTTLE_SECONDS", 5) * time.Second,
		StatusPollInterval: getEnvDuration("STATUS_POLL_SECONDS", 60) * time.Second,
		CookieMaxAge:       getEnvDuration("COOKIE_MAX_AGE_HOURS", 24) * time.Hour,
	}

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Production reports whether cookies must carry the Secure attribute.
func (c *Config) Production() bool {
	return c.AppEnv == "production"
}

func (c *Config) validate() error {
	if c.AppPort == "" {
		return errors.New("APP_PORT must be set")
	}
	if _, err := url.ParseRequestURI(c.APIBaseURL); err != nil {
		return fmt.Errorf("API_BASE_URL is invalid: %w", err)
	}
	if c.StatusThrottle <= 0 || c.StatusPollInterval <= 0 {
		return errors.New("status throttle and poll interval must be positive")
	}
	return nil
}

// applyFile overlays non-zero values from a YAML file onto cfg.
func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var overlay Config
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if overlay.AppPort != "" {
		cfg.AppPort = overlay.AppPort
	}
	if overlay.AppEnv != "" {
		cfg.AppEnv = overlay.AppEnv
	}
	if overlay.DatabaseURL != "" {
		cfg.DatabaseURL = overlay.DatabaseURL
	}
	if overlay.APIBaseURL != "" {
		cfg.APIBaseURL = strings.TrimRight(overlay.APIBaseURL, "/")
	}
	if overlay.APITimeout > 0 {
		cfg.APITimeout = overlay.APITimeout
	}
	if overlay.LogLevel != "" {
		cfg.LogLevel = overlay.LogLevel
	}
	if overlay.LogPretty {
		cfg.LogPretty = true
	}
	if overlay.StatusThrottle > 0 {
		cfg.StatusThrottle = overlay.StatusThrottle
	}
	if overlay.StatusPollInterval > 0 {
		cfg.StatusPollInterval = overlay.StatusPollInterval
	}
	if overlay.CookieMaxAge > 0 {
		cfg.CookieMaxAge = overlay.CookieMaxAge
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback int) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return time.Duration(parsed)
		}
	}
	return time.Duration(fallback)
}

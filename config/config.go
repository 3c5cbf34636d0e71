package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Env      string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	Port     string `env:"PORT" envDefault:"8080" validate:"required"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`
	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`

	JWTSecret    string `env:"JWT_SECRET,required"   validate:"required,min=32"`
	ResendAPIKey string `env:"RESEND_API_KEY"         validate:"required_if=Env production,required_if=Env staging"`
	ResendFrom   string `env:"RESEND_FROM"            validate:"required_if=Env production,required_if=Env staging"`
	AppBaseURL   string `env:"APP_BASE_URL"           envDefault:"http://localhost:8080" validate:"url"`

	// TickUnit is the base cadence: reminders run every unit, the other jobs every five.
	TickUnit time.Duration `env:"TICK_UNIT" envDefault:"1m" validate:"min=1s"`

	ReminderBatchSize  int           `env:"REMINDER_BATCH_SIZE"  envDefault:"100" validate:"min=1,max=1000"`
	ReminderClaimLease time.Duration `env:"REMINDER_CLAIM_LEASE" envDefault:"5m"  validate:"min=1s"`

	DigestCooldown time.Duration `env:"DIGEST_COOLDOWN" envDefault:"4m" validate:"min=0"`
	// DigestHorizon limits digests to tasks due within this window. Zero disables the limit.
	DigestHorizon time.Duration `env:"DIGEST_HORIZON" envDefault:"0s" validate:"min=0"`

	TokenIssueCooldown   time.Duration `env:"TOKEN_ISSUE_COOLDOWN"   envDefault:"60s" validate:"min=0"`
	VerificationTokenTTL time.Duration `env:"VERIFICATION_TOKEN_TTL" envDefault:"24h" validate:"min=1s"`
	ResetTokenTTL        time.Duration `env:"RESET_TOKEN_TTL"        envDefault:"1h"  validate:"min=1s"`
	LoginTokenTTL        time.Duration `env:"LOGIN_TOKEN_TTL"        envDefault:"15m" validate:"min=1s"`

	DeliveryTimeout time.Duration `env:"DELIVERY_TIMEOUT" envDefault:"10s" validate:"min=1s"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

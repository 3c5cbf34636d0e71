// Package app wires repositories, delivery and use cases from config. Every binary
// builds the same graph so the HTTP server and the scheduler agree on behaviour.
package app

import (
	"log/slog"
	"time"

	"github.com/ErlanBelekov/task-notifier/config"
	"github.com/ErlanBelekov/task-notifier/internal/domain"
	"github.com/ErlanBelekov/task-notifier/internal/email"
	"github.com/ErlanBelekov/task-notifier/internal/infrastructure/postgres"
	"github.com/ErlanBelekov/task-notifier/internal/notify"
	"github.com/ErlanBelekov/task-notifier/internal/scheduler"
	"github.com/ErlanBelekov/task-notifier/internal/usecase"
)

type App struct {
	Users     *postgres.UserRepository
	Tasks     *postgres.TaskRepository
	Reminders *postgres.ReminderRepository
	Tokens    *postgres.TokenRepository

	Dispatcher *notify.Dispatcher

	TokenUsecase    *usecase.TokenUsecase
	AuthUsecase     *usecase.AuthUsecase
	ReminderUsecase *usecase.ReminderUsecase
	DigestUsecase   *usecase.DigestUsecase
	TaskUsecase     *usecase.TaskUsecase
}

func New(cfg *config.Config, db postgres.DB, logger *slog.Logger) *App {
	a := &App{
		Users:     postgres.NewUserRepository(db),
		Tasks:     postgres.NewTaskRepository(db),
		Reminders: postgres.NewReminderRepository(db),
		Tokens:    postgres.NewTokenRepository(db),
	}

	sender := email.NewSender(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, logger)
	a.Dispatcher = notify.NewDispatcher(sender, cfg.DeliveryTimeout, logger)

	a.TokenUsecase = usecase.NewTokenUsecase(a.Tokens, usecase.TokenConfig{
		TTL: map[domain.TokenKind]time.Duration{
			domain.TokenVerification: cfg.VerificationTokenTTL,
			domain.TokenReset:        cfg.ResetTokenTTL,
			domain.TokenLogin:        cfg.LoginTokenTTL,
		},
		IssueCooldown: cfg.TokenIssueCooldown,
	}, logger)
	a.AuthUsecase = usecase.NewAuthUsecase(a.Users, a.TokenUsecase, a.Dispatcher, []byte(cfg.JWTSecret), cfg.AppBaseURL, logger)
	a.ReminderUsecase = usecase.NewReminderUsecase(a.Reminders, a.Tasks, a.Users, a.Dispatcher, usecase.ReminderConfig{
		BatchSize:  cfg.ReminderBatchSize,
		ClaimLease: cfg.ReminderClaimLease,
	}, logger)
	a.DigestUsecase = usecase.NewDigestUsecase(a.Tasks, a.Dispatcher, usecase.DigestConfig{
		Cooldown: cfg.DigestCooldown,
		Horizon:  cfg.DigestHorizon,
	}, logger)
	a.TaskUsecase = usecase.NewTaskUsecase(a.Tasks, a.Users, a.ReminderUsecase, a.Dispatcher, logger)

	return a
}

// Services exposes the background jobs' dependencies to the scheduler.
func (a *App) Services() scheduler.Services {
	return scheduler.Services{
		Reminders: a.ReminderUsecase,
		Digests:   a.DigestUsecase,
		Tokens:    a.TokenUsecase,
	}
}

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ErlanBelekov/task-notifier/config"
	"github.com/ErlanBelekov/task-notifier/internal/app"
	"github.com/ErlanBelekov/task-notifier/internal/health"
	"github.com/ErlanBelekov/task-notifier/internal/infrastructure/postgres"
	ctxlog "github.com/ErlanBelekov/task-notifier/internal/log"
	"github.com/ErlanBelekov/task-notifier/internal/metrics"
	"github.com/ErlanBelekov/task-notifier/internal/scheduler"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := ctxlog.New(cfg.Env, cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	logger.Info("db connected")

	a := app.New(cfg, pool, logger)

	sched := scheduler.New(logger)
	if err := scheduler.RegisterDefaults(sched, a.Services(), cfg.TickUnit, logger); err != nil {
		stop()
		pool.Close()
		log.Fatalf("register jobs: %v", err)
	}

	metrics.Register()
	checker := health.NewChecker(logger, prometheus.DefaultRegisterer,
		health.Dependency{Name: "postgres", Pinger: pool},
		health.Dependency{Name: "scheduler", Pinger: sched},
	)

	if err := sched.Start(ctx); err != nil {
		stop()
		pool.Close()
		log.Fatalf("start scheduler: %v", err)
	}

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)
	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()

	// Stop waits for in-flight runs so claimed reminders are confirmed or released
	// before the pool closes.
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}

	logger.Info("scheduler shut down")
}

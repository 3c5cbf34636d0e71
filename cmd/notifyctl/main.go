// notifyctl is the operator tool: schema migrations, dev seeding, one-off job runs
// and manual token issue.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ErlanBelekov/task-notifier/config"
	"github.com/ErlanBelekov/task-notifier/internal/app"
	"github.com/ErlanBelekov/task-notifier/internal/domain"
	"github.com/ErlanBelekov/task-notifier/internal/infrastructure/postgres"
	ctxlog "github.com/ErlanBelekov/task-notifier/internal/log"
	"github.com/ErlanBelekov/task-notifier/internal/scheduler"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

// env bundles what every subcommand needs.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	pool   *pgxpool.Pool
}

func setup(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := ctxlog.New(cfg.Env, cfg.SlogLevel())

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	return &env{cfg: cfg, logger: logger, pool: pool}, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:           "notifyctl",
		Short:         "task notifier operator tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(migrateCmd(), seedCmd(), runCmd(), jobsCmd(), issueTokenCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer e.pool.Close()

			if err := postgres.Migrate(cmd.Context(), e.pool); err != nil {
				return err
			}
			e.logger.Info("migrations applied")
			return nil
		},
	}
}

// newScheduler builds a scheduler with the default job set without starting it.
func newScheduler(e *env) (*scheduler.Scheduler, error) {
	a := app.New(e.cfg, e.pool, e.logger)
	s := scheduler.New(e.logger)
	if err := scheduler.RegisterDefaults(s, a.Services(), e.cfg.TickUnit, e.logger); err != nil {
		return nil, err
	}
	return s, nil
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <job>",
		Short: "run one background job now and exit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer e.pool.Close()

			s, err := newScheduler(e)
			if err != nil {
				return err
			}
			return s.RunOnce(cmd.Context(), args[0])
		},
	}
}

func jobsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "list background jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Registration only stores the job funcs, so no store or config is needed
			// to read the default set back.
			logger := slog.New(slog.DiscardHandler)
			s := scheduler.New(logger)
			if err := scheduler.RegisterDefaults(s, scheduler.Services{}, time.Minute, logger); err != nil {
				return err
			}
			for _, n := range s.Jobs() {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
}

func issueTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "issue-token <user-id> <verification|reset|login>",
		Short: "issue a single-use token and print its link without emailing it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := domain.ParseTokenKind(args[1])
			if err != nil {
				return err
			}

			e, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer e.pool.Close()

			a := app.New(e.cfg, e.pool, e.logger)
			secret, tok, err := a.TokenUsecase.Issue(cmd.Context(), args[0], kind)
			if err != nil {
				return err
			}
			policy, _ := a.TokenUsecase.Policy(kind)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "link:    %s%s?token=%s\n", e.cfg.AppBaseURL, policy.Path, secret)
			fmt.Fprintf(out, "expires: %s\n", tok.ExpiresAt.UTC().Format("2006-01-02 15:04:05 MST"))
			return nil
		},
	}
}

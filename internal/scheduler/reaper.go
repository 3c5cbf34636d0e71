package scheduler

import (
	"context"
	"log/slog"
	"time"
)

type ClaimReconciler interface {
	Reconcile(ctx context.Context, now time.Time) (int, error)
}

type TokenSweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

// ReconcileReminders hands back reminder claims left behind by an interrupted dispatch.
func ReconcileReminders(svc ClaimReconciler, logger *slog.Logger) JobFunc {
	return func(ctx context.Context, tick Tick) error {
		n, err := svc.Reconcile(ctx, tick.Now)
		if err != nil {
			return err
		}
		logger.DebugContext(ctx, "reminder claims reconciled", "released", n)
		return nil
	}
}

// SweepTokens deletes expired tokens.
func SweepTokens(svc TokenSweeper, logger *slog.Logger) JobFunc {
	return func(ctx context.Context, tick Tick) error {
		n, err := svc.SweepExpired(ctx, tick.Now)
		if err != nil {
			return err
		}
		logger.DebugContext(ctx, "tokens swept", "deleted", n)
		return nil
	}
}

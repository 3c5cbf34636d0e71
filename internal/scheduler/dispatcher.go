package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/task-notifier/internal/usecase"
)

type ReminderDispatcher interface {
	PollAndDispatch(ctx context.Context, now time.Time) (usecase.DispatchSummary, error)
}

type DigestDispatcher interface {
	MaybeDispatchDigests(ctx context.Context, now time.Time, marks usecase.Marks) (usecase.DigestSummary, error)
}

// DispatchReminders delivers reminders that have come due.
func DispatchReminders(svc ReminderDispatcher, logger *slog.Logger) JobFunc {
	return func(ctx context.Context, tick Tick) error {
		sum, err := svc.PollAndDispatch(ctx, tick.Now)
		if err != nil {
			return err
		}
		if sum.Claimed > 0 {
			logger.InfoContext(ctx, "reminders dispatched",
				"claimed", sum.Claimed, "sent", sum.Sent, "failed", sum.Failed, "skipped", sum.Skipped)
		}
		return nil
	}
}

// DispatchDigests sends the outstanding-task digest, subject to its cool-down which is
// tracked in the scheduler state.
func DispatchDigests(svc DigestDispatcher, logger *slog.Logger) JobFunc {
	return func(ctx context.Context, tick Tick) error {
		sum, err := svc.MaybeDispatchDigests(ctx, tick.Now, tick.State)
		if err != nil {
			return err
		}
		if sum.Ran {
			logger.InfoContext(ctx, "digests dispatched", "owners", sum.Owners, "sent", sum.Sent, "failed", sum.Failed)
		}
		return nil
	}
}

package scheduler

import (
	"log/slog"
	"time"
)

const (
	JobReminderDispatch  = "reminders.dispatch"
	JobReminderReconcile = "reminders.reconcile"
	JobDigest            = "digest.outstanding"
	JobTokenSweep        = "tokens.sweep"

	// slowJobFactor is the cadence of the housekeeping jobs, in tick units.
	slowJobFactor = 5
)

type Services struct {
	Reminders interface {
		ReminderDispatcher
		ClaimReconciler
	}
	Digests DigestDispatcher
	Tokens  TokenSweeper
}

// RegisterDefaults schedules the standard job set: reminders every unit, everything
// else every five units.
func RegisterDefaults(s *Scheduler, svc Services, unit time.Duration, logger *slog.Logger) error {
	slow := slowJobFactor * unit
	jobs := []struct {
		name     string
		interval time.Duration
		fn       JobFunc
	}{
		{JobReminderDispatch, unit, DispatchReminders(svc.Reminders, logger)},
		{JobDigest, slow, DispatchDigests(svc.Digests, logger)},
		{JobTokenSweep, slow, SweepTokens(svc.Tokens, logger)},
		{JobReminderReconcile, slow, ReconcileReminders(svc.Reminders, logger)},
	}
	for _, j := range jobs {
		if err := s.Schedule(j.name, j.interval, j.fn); err != nil {
			return err
		}
	}
	return nil
}

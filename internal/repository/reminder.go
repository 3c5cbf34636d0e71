package repository

import (
	"context"
	"time"

	"github.com/ErlanBelekov/task-notifier/internal/domain"
)

type ReminderRepository interface {
	// CreateUnlessNear inserts r unless a reminder for the same user and source key has a
	// due time within window of r.DueAt. The check and insert are one unit of work.
	// created is false when an existing reminder was found.
	CreateUnlessNear(ctx context.Context, r *domain.Reminder, window time.Duration) (created bool, err error)
	DeleteBySourceKey(ctx context.Context, userID, sourceKey string) (int, error)

	// ClaimDue leases up to limit unsent, unclaimed reminders with due_at <= now.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*domain.Reminder, error)
	// MarkSent flips sent only if it is still false. Returns false if it was already sent.
	MarkSent(ctx context.Context, id string, at time.Time) (bool, error)
	// Release drops the lease so the next tick retries the reminder.
	Release(ctx context.Context, id string) error
	// Park keeps the claim on a reminder that cannot be delivered and excludes it from
	// ReleaseStale, so it is neither sent nor retried.
	Park(ctx context.Context, id string, at time.Time) error
	// ReleaseStale drops leases older than cutoff on unsent, unparked reminders.
	ReleaseStale(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

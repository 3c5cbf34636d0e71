package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ErlanBelekov/task-notifier/internal/domain"
	"github.com/ErlanBelekov/task-notifier/internal/metrics"
	"github.com/ErlanBelekov/task-notifier/internal/repository"
)

const (
	// ReminderLead is how long before a timed task its reminder fires.
	ReminderLead = 15 * time.Minute
	// DateOnlyReminderHour is the UTC hour used for tasks scheduled without a time.
	DateOnlyReminderHour = 9
	// DedupWindow is the tolerance within which two reminders for one task are the same reminder.
	DedupWindow = time.Minute

	taskKeyPrefix = "task:"

	defaultBatchSize  = 100
	defaultClaimLease = 5 * time.Minute
)

// SourceKey derives the reminder key for a task.
func SourceKey(taskID string) string {
	return taskKeyPrefix + taskID
}

// DeriveDueAt computes when a task's reminder is due. A task with date and time is
// reminded ReminderLead before; a date-only task at DateOnlyReminderHour UTC that day.
// ok is false when the task has no schedule.
func DeriveDueAt(task *domain.Task) (due time.Time, ok bool) {
	at, hasTime, ok := task.ScheduledAt()
	if !ok {
		return time.Time{}, false
	}
	if hasTime {
		return at.Add(-ReminderLead), true
	}
	return at.Add(DateOnlyReminderHour * time.Hour), true
}

type ReminderConfig struct {
	BatchSize int
	// ClaimLease is how long a claimed, unconfirmed reminder stays claimed before
	// Reconcile hands it back.
	ClaimLease time.Duration
	Now        func() time.Time
}

// DispatchSummary counts the outcome of one PollAndDispatch pass.
type DispatchSummary struct {
	Claimed int
	Sent    int
	Failed  int
	Skipped int
}

type ReminderUsecase struct {
	reminders repository.ReminderRepository
	tasks     repository.TaskRepository
	users     repository.UserRepository
	notifier  Notifier
	batchSize int
	lease     time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

func NewReminderUsecase(
	reminders repository.ReminderRepository,
	tasks repository.TaskRepository,
	users repository.UserRepository,
	notifier Notifier,
	cfg ReminderConfig,
	logger *slog.Logger,
) *ReminderUsecase {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.ClaimLease <= 0 {
		cfg.ClaimLease = defaultClaimLease
	}
	return &ReminderUsecase{
		reminders: reminders,
		tasks:     tasks,
		users:     users,
		notifier:  notifier,
		batchSize: cfg.BatchSize,
		lease:     cfg.ClaimLease,
		now:       clockOrDefault(cfg.Now),
		logger:    logger.With("component", "reminders"),
	}
}

// UpsertReminder schedules the task's reminder unless it has no schedule, is not in the
// future, or an equivalent reminder already exists. Reports whether one was created.
func (u *ReminderUsecase) UpsertReminder(ctx context.Context, task *domain.Task) (bool, error) {
	due, ok := DeriveDueAt(task)
	if !ok || !due.After(u.now()) {
		return false, nil
	}

	rem := &domain.Reminder{
		UserID:    task.UserID,
		SourceKey: SourceKey(task.ID),
		Message:   "Reminder: " + task.Title,
		DueAt:     due,
	}
	created, err := u.reminders.CreateUnlessNear(ctx, rem, DedupWindow)
	if err != nil {
		return false, fmt.Errorf("upsert reminder: %w", err)
	}
	if created {
		u.logger.DebugContext(ctx, "reminder scheduled", "task_id", task.ID, "due_at", due)
	}
	return created, nil
}

// ReplaceReminder drops the task's reminders and schedules a fresh one. Used after edits.
func (u *ReminderUsecase) ReplaceReminder(ctx context.Context, task *domain.Task) (bool, error) {
	if _, err := u.RemoveReminders(ctx, task.UserID, task.ID); err != nil {
		return false, err
	}
	return u.UpsertReminder(ctx, task)
}

// RemoveReminders deletes every reminder derived from the task.
func (u *ReminderUsecase) RemoveReminders(ctx context.Context, userID, taskID string) (int, error) {
	n, err := u.reminders.DeleteBySourceKey(ctx, userID, SourceKey(taskID))
	if err != nil {
		return 0, fmt.Errorf("remove reminders: %w", err)
	}
	return n, nil
}

// PollAndDispatch claims due reminders and delivers them. A reminder is marked sent only
// after a successful delivery; a failed one is released for the next tick. Per-reminder
// failures are counted and never abort the batch.
func (u *ReminderUsecase) PollAndDispatch(ctx context.Context, now time.Time) (DispatchSummary, error) {
	var sum DispatchSummary

	claimed, err := u.reminders.ClaimDue(ctx, now, u.batchSize)
	if err != nil {
		return sum, fmt.Errorf("claim due reminders: %w", err)
	}
	sum.Claimed = len(claimed)

	for i, rem := range claimed {
		if ctx.Err() != nil {
			u.releaseAll(context.WithoutCancel(ctx), claimed[i:])
			sum.Failed += len(claimed) - i
			break
		}

		switch u.dispatchOne(ctx, rem, now) {
		case outcomeSent:
			sum.Sent++
		case outcomeSkipped:
			sum.Skipped++
		default:
			sum.Failed++
		}
	}

	metrics.RemindersTotal.WithLabelValues("sent").Add(float64(sum.Sent))
	metrics.RemindersTotal.WithLabelValues("failed").Add(float64(sum.Failed))
	metrics.RemindersTotal.WithLabelValues("skipped").Add(float64(sum.Skipped))
	return sum, nil
}

type outcome int

const (
	outcomeSent outcome = iota
	outcomeFailed
	outcomeSkipped
)

func (u *ReminderUsecase) dispatchOne(ctx context.Context, rem *domain.Reminder, now time.Time) outcome {
	log := u.logger.With("reminder_id", rem.ID, "user_id", rem.UserID)

	user, err := u.users.FindByID(ctx, rem.UserID)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		log.ErrorContext(ctx, "load reminder owner", "error", err)
		u.release(ctx, rem)
		return outcomeFailed
	}
	// No address to deliver to. Parked rather than sent; editing the task schedules a
	// fresh reminder.
	if !user.Deliverable() {
		log.WarnContext(ctx, "reminder owner has no email address, parking")
		if err := u.reminders.Park(context.WithoutCancel(ctx), rem.ID, now); err != nil {
			log.ErrorContext(ctx, "park reminder", "error", err)
		}
		return outcomeSkipped
	}

	n, err := u.buildReminder(ctx, rem, user)
	if err != nil {
		log.ErrorContext(ctx, "build reminder", "error", err)
		u.release(ctx, rem)
		return outcomeFailed
	}

	if err := u.notifier.Deliver(ctx, n); err != nil {
		log.WarnContext(ctx, "reminder delivery failed", "error", err)
		u.release(ctx, rem)
		return outcomeFailed
	}

	ok, err := u.reminders.MarkSent(ctx, rem.ID, now)
	if err != nil {
		// Delivered but unconfirmed: Reconcile will release it and it may go out twice.
		log.ErrorContext(ctx, "mark reminder sent", "error", err)
		return outcomeFailed
	}
	if !ok {
		log.InfoContext(ctx, "reminder already confirmed by another pass")
		return outcomeSkipped
	}

	metrics.ReminderLag.Observe(now.Sub(rem.DueAt).Seconds())
	return outcomeSent
}

func (u *ReminderUsecase) buildReminder(ctx context.Context, rem *domain.Reminder, user *domain.User) (domain.Notification, error) {
	n := domain.Notification{
		Kind:    domain.NotificationReminder,
		To:      user.Email,
		Subject: rem.Message,
	}

	var task *domain.Task
	if taskID, ok := strings.CutPrefix(rem.SourceKey, taskKeyPrefix); ok {
		t, err := u.tasks.FindByID(ctx, taskID)
		switch {
		case err == nil:
			task = t
		case errors.Is(err, domain.ErrTaskNotFound):
		default:
			return n, fmt.Errorf("load task: %w", err)
		}
	}

	if task == nil {
		n.Body = fmt.Sprintf("Hi %s,\n\n%s\n\nDue at %s.\n",
			greetingName(user), rem.Message, rem.DueAt.UTC().Format(timeLayout))
		return n, nil
	}

	at, hasTime, _ := task.ScheduledAt()
	when := at.Format("2006-01-02")
	if hasTime {
		when = at.Format(timeLayout)
	}
	n.Subject = "Reminder: " + task.Title
	n.Body = fmt.Sprintf("Hi %s,\n\n**%s** is scheduled for %s.\n\n- Priority: %s\n- Status: %s\n",
		greetingName(user), task.Title, when, task.Priority, task.Status)
	return n, nil
}

func (u *ReminderUsecase) release(ctx context.Context, rem *domain.Reminder) {
	if err := u.reminders.Release(context.WithoutCancel(ctx), rem.ID); err != nil {
		u.logger.WarnContext(ctx, "release reminder claim", "reminder_id", rem.ID, "error", err)
	}
}

func (u *ReminderUsecase) releaseAll(ctx context.Context, rems []*domain.Reminder) {
	for _, rem := range rems {
		u.release(ctx, rem)
	}
}

// Reconcile releases claims older than the lease, left behind by a pass that stopped
// between claiming and confirming.
func (u *ReminderUsecase) Reconcile(ctx context.Context, now time.Time) (int, error) {
	n, err := u.reminders.ReleaseStale(ctx, now.Add(-u.lease), u.batchSize)
	if err != nil {
		return 0, fmt.Errorf("release stale claims: %w", err)
	}
	metrics.RemindersReleasedTotal.Add(float64(n))
	if n > 0 {
		u.logger.WarnContext(ctx, "released stale reminder claims", "count", n)
	}
	return n, nil
}

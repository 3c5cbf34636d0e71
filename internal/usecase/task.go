package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/task-notifier/internal/domain"
	"github.com/ErlanBelekov/task-notifier/internal/repository"
)

// TaskUsecase manages a user's tasks and keeps their reminders in step.
// Reminder bookkeeping is best effort: a failure is logged and the task change stands.
type TaskUsecase struct {
	tasks     repository.TaskRepository
	users     repository.UserRepository
	reminders *ReminderUsecase
	notifier  Notifier
	logger    *slog.Logger
}

func NewTaskUsecase(
	tasks repository.TaskRepository,
	users repository.UserRepository,
	reminders *ReminderUsecase,
	notifier Notifier,
	logger *slog.Logger,
) *TaskUsecase {
	return &TaskUsecase{
		tasks:     tasks,
		users:     users,
		reminders: reminders,
		notifier:  notifier,
		logger:    logger.With("component", "tasks"),
	}
}

type TaskInput struct {
	UserID        string
	Title         string
	Status        domain.Status
	Priority      domain.Priority
	ScheduledDate *time.Time
	ScheduledTime *time.Duration
}

func (in TaskInput) apply(t *domain.Task) {
	t.Title = in.Title
	if in.Status != "" {
		t.Status = in.Status
	}
	if in.Priority != 0 {
		t.Priority = in.Priority
	}
	t.ScheduledDate = in.ScheduledDate
	t.ScheduledTime = in.ScheduledTime
	if t.ScheduledDate == nil {
		t.ScheduledTime = nil
	}
}

func (u *TaskUsecase) Create(ctx context.Context, in TaskInput) (*domain.Task, error) {
	task := &domain.Task{
		UserID:   in.UserID,
		Status:   domain.StatusPending,
		Priority: domain.PriorityMedium,
	}
	in.apply(task)

	created, err := u.tasks.Create(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	if _, err := u.reminders.UpsertReminder(ctx, created); err != nil {
		u.logger.ErrorContext(ctx, "schedule reminder", "task_id", created.ID, "error", err)
	}
	return created, nil
}

func (u *TaskUsecase) Update(ctx context.Context, id string, in TaskInput) (*domain.Task, error) {
	task, err := u.tasks.GetByID(ctx, id, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	in.apply(task)

	updated, err := u.tasks.Update(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}

	if _, err := u.reminders.ReplaceReminder(ctx, updated); err != nil {
		u.logger.ErrorContext(ctx, "replace reminder", "task_id", updated.ID, "error", err)
	}
	return updated, nil
}

func (u *TaskUsecase) GetByID(ctx context.Context, id, userID string) (*domain.Task, error) {
	task, err := u.tasks.GetByID(ctx, id, userID)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

func (u *TaskUsecase) List(ctx context.Context, userID string) ([]*domain.Task, error) {
	tasks, err := u.tasks.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// Toggle advances the task along Pending -> In Progress -> Completed -> Pending.
// The schedule does not change, so reminders are left alone.
func (u *TaskUsecase) Toggle(ctx context.Context, id, userID string) (*domain.Task, error) {
	task, err := u.tasks.GetByID(ctx, id, userID)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	task.Status = task.Status.Next()

	updated, err := u.tasks.Update(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("toggle task: %w", err)
	}
	return updated, nil
}

func (u *TaskUsecase) Delete(ctx context.Context, id, userID string) error {
	if err := u.tasks.Delete(ctx, id, userID); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if _, err := u.reminders.RemoveReminders(ctx, userID, id); err != nil {
		u.logger.ErrorContext(ctx, "remove reminders", "task_id", id, "error", err)
	}
	return nil
}

// DeleteAll removes every task of the user and their reminders. Returns how many tasks went.
func (u *TaskUsecase) DeleteAll(ctx context.Context, userID string) (int, error) {
	ids, err := u.tasks.DeleteAllByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("delete tasks: %w", err)
	}
	for _, id := range ids {
		if _, err := u.reminders.RemoveReminders(ctx, userID, id); err != nil {
			u.logger.ErrorContext(ctx, "remove reminders", "task_id", id, "error", err)
		}
	}
	return len(ids), nil
}

// NotifyMe sends the user a personal test notification.
func (u *TaskUsecase) NotifyMe(ctx context.Context, userID string) error {
	user, err := u.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}

	n := domain.Notification{
		Kind:    domain.NotificationPersonal,
		To:      user.Email,
		Subject: "Hello from Task Notifier",
		Body:    fmt.Sprintf("Hi %s,\n\nThis is your personal notification.\n", greetingName(user)),
	}
	if err := u.notifier.Deliver(ctx, n); err != nil {
		return fmt.Errorf("notify user: %w", err)
	}
	return nil
}

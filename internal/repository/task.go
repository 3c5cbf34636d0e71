package repository

import (
	"context"

	"github.com/ErlanBelekov/task-notifier/internal/domain"
)

type TaskRepository interface {
	Create(ctx context.Context, task *domain.Task) (*domain.Task, error)
	Update(ctx context.Context, task *domain.Task) (*domain.Task, error)
	GetByID(ctx context.Context, id, userID string) (*domain.Task, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Task, error)
	Delete(ctx context.Context, id, userID string) error
	// DeleteAllByUser removes every task of the user and returns the removed IDs.
	DeleteAllByUser(ctx context.Context, userID string) ([]string, error)

	// FindByID looks a task up without an ownership check. Used by background jobs.
	FindByID(ctx context.Context, id string) (*domain.Task, error)
	// ListOutstanding returns every non-terminal task with its owner's contact details.
	ListOutstanding(ctx context.Context) ([]*domain.OutstandingTask, error)
}

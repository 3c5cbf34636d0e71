package usecase

import (
	"context"
	"time"

	"github.com/ErlanBelekov/task-notifier/internal/domain"
)

// Notifier delivers a notification. Implemented by *notify.Dispatcher.
type Notifier interface {
	Deliver(ctx context.Context, n domain.Notification) error
}

func clockOrDefault(now func() time.Time) func() time.Time {
	if now == nil {
		return func() time.Time { return time.Now().UTC() }
	}
	return now
}

const timeLayout = "2006-01-02 15:04 MST"

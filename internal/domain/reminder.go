package domain

import (
	"errors"
	"time"
)

var ErrReminderNotFound = errors.New("reminder not found")

type Reminder struct {
	ID        string
	UserID    string
	SourceKey string // identifies the originating task, e.g. "task:<id>"
	Message   string
	DueAt     time.Time
	Sent      bool
	SentAt    *time.Time
	ClaimedAt *time.Time
	CreatedAt time.Time
}

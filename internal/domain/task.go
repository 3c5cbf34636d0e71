package domain

import (
	"errors"
	"time"
)

var (
	ErrTaskNotFound  = errors.New("task not found")
	ErrInvalidStatus = errors.New("invalid task status")
)

type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
)

// Terminal reports whether tasks in this status are finished work.
func (s Status) Terminal() bool {
	return s == StatusCompleted
}

// Next returns the status that follows s in the toggle cycle.
func (s Status) Next() Status {
	switch s {
	case StatusPending:
		return StatusInProgress
	case StatusInProgress:
		return StatusCompleted
	default:
		return StatusPending
	}
}

type Priority int

const (
	PriorityLow    Priority = 1
	PriorityMedium Priority = 2
	PriorityHigh   Priority = 3
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "Low"
	case PriorityMedium:
		return "Medium"
	case PriorityHigh:
		return "High"
	default:
		return "Unknown"
	}
}

type Task struct {
	ID       string
	UserID   string
	Title    string
	Status   Status
	Priority Priority

	// ScheduledDate is a calendar date at UTC midnight. ScheduledTime is an offset from
	// midnight and only has meaning together with a date.
	ScheduledDate *time.Time
	ScheduledTime *time.Duration

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ScheduledAt returns the task's scheduled instant and whether it carries a time of day.
func (t *Task) ScheduledAt() (at time.Time, hasTime bool, ok bool) {
	if t.ScheduledDate == nil {
		return time.Time{}, false, false
	}
	d := t.ScheduledDate.UTC()
	day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	if t.ScheduledTime == nil {
		return day, false, true
	}
	return day.Add(*t.ScheduledTime), true, true
}

// OutstandingTask is a non-terminal task joined with its owner's contact details.
type OutstandingTask struct {
	Task
	OwnerEmail     string
	OwnerFirstName string
}

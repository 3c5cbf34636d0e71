package domain

import (
	"errors"
	"fmt"
)

var ErrDeliveryFailed = errors.New("notification delivery failed")

type NotificationKind string

const (
	NotificationReminder NotificationKind = "reminder"
	NotificationDigest   NotificationKind = "digest"
	NotificationToken    NotificationKind = "token"
	NotificationPersonal NotificationKind = "personal"
)

// Notification is one outbound message. Body is Markdown.
type Notification struct {
	Kind    NotificationKind
	To      string
	Subject string
	Body    string
}

// DeliveryError is returned when the mail transport rejects or fails a message.
// It is transient: the next tick retries.
type DeliveryError struct {
	Kind NotificationKind
	To   string
	Err  error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver %s to %s: %v", e.Kind, e.To, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

func (e *DeliveryError) Is(target error) bool { return target == ErrDeliveryFailed }

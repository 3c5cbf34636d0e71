package domain

import (
	"errors"
	"time"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrTooManyRequests    = errors.New("too many requests")
	ErrStoreUnavailable   = errors.New("store unavailable")
)

type User struct {
	ID            string
	Username      string
	FirstName     string
	LastName      string
	Email         string
	PhoneNo       string
	PasswordHash  string
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Deliverable reports whether the user has a contact address notifications can go to.
func (u *User) Deliverable() bool {
	return u != nil && u.Email != ""
}

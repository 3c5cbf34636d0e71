package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrTokenNotFound    = errors.New("token not found")
	ErrTokenExpired     = errors.New("token expired")
	ErrTokenAlreadyUsed = errors.New("token already used")
	ErrDuplicateSecret  = errors.New("token secret already exists")
	ErrUnknownTokenKind = errors.New("unknown token kind")
)

type TokenKind string

const (
	TokenVerification TokenKind = "verification"
	TokenReset        TokenKind = "reset"
	TokenLogin        TokenKind = "login"
)

func ParseTokenKind(s string) (TokenKind, error) {
	switch k := TokenKind(s); k {
	case TokenVerification, TokenReset, TokenLogin:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTokenKind, s)
}

// TokenPolicy holds the kind-specific parameters of a token.
type TokenPolicy struct {
	TTL     time.Duration
	Subject string
	// Path is appended to the public base URL to build the link sent to the owner.
	Path string
}

// TokenPolicies is the default policy table. Config may override TTLs.
var TokenPolicies = map[TokenKind]TokenPolicy{
	TokenVerification: {TTL: 24 * time.Hour, Subject: "Confirm your email address", Path: "/auth/verify-email"},
	TokenReset:        {TTL: time.Hour, Subject: "Reset your password", Path: "/auth/password-reset/confirm"},
	TokenLogin:        {TTL: 15 * time.Minute, Subject: "Your sign-in link", Path: "/auth/verify"},
}

type Token struct {
	ID         string
	UserID     string
	Kind       TokenKind
	SecretHash string
	ExpiresAt  time.Time
	Used       bool
	UsedAt     *time.Time
	CreatedAt  time.Time
}

// Check returns the reason the token cannot be consumed at now, or nil.
// Expiry is reported before use so a stale link always reads as expired.
func (t *Token) Check(now time.Time) error {
	if !now.Before(t.ExpiresAt) {
		return ErrTokenExpired
	}
	if t.Used {
		return ErrTokenAlreadyUsed
	}
	return nil
}

func (t *Token) IsValid(now time.Time) bool {
	return t.Check(now) == nil
}

// TokenEffect is the state change a consumed token authorizes. It is applied in the
// same transaction that marks the token used.
type TokenEffect struct {
	MarkEmailVerified bool
	PasswordHash      string
}

func (e TokenEffect) IsZero() bool {
	return !e.MarkEmailVerified && e.PasswordHash == ""
}

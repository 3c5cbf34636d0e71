package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/task-notifier/internal/domain"
	"github.com/ErlanBelekov/task-notifier/internal/repository"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const defaultJWTTTL = 24 * time.Hour

type AuthUsecase struct {
	users    repository.UserRepository
	tokens   *TokenUsecase
	notifier Notifier
	jwtKey   []byte
	jwtTTL   time.Duration
	baseURL  string
	now      func() time.Time
	logger   *slog.Logger
}

func NewAuthUsecase(
	users repository.UserRepository,
	tokens *TokenUsecase,
	notifier Notifier,
	jwtKey []byte,
	baseURL string,
	logger *slog.Logger,
) *AuthUsecase {
	return &AuthUsecase{
		users:    users,
		tokens:   tokens,
		notifier: notifier,
		jwtKey:   jwtKey,
		jwtTTL:   defaultJWTTTL,
		baseURL:  baseURL,
		now:      tokens.now,
		logger:   logger.With("component", "auth"),
	}
}

// Login checks username and password and returns a signed session JWT.
func (u *AuthUsecase) Login(ctx context.Context, username, password string) (string, error) {
	user, err := u.users.FindByUsername(ctx, username)
	if errors.Is(err, domain.ErrUserNotFound) {
		return "", domain.ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", domain.ErrInvalidCredentials
	}
	return u.sign(user)
}

// RequestLoginLink emails a sign-in link to the owner of addr. Unknown addresses are
// ignored so callers cannot probe which accounts exist.
func (u *AuthUsecase) RequestLoginLink(ctx context.Context, addr string) error {
	return u.requestByEmail(ctx, addr, domain.TokenLogin)
}

// RedeemLoginLink consumes a login token and returns a signed session JWT.
func (u *AuthUsecase) RedeemLoginLink(ctx context.Context, secret string) (string, error) {
	t, err := u.tokens.ValidateAndConsume(ctx, secret, domain.TokenLogin, domain.TokenEffect{})
	if err != nil {
		return "", err
	}

	user, err := u.users.FindByID(ctx, t.UserID)
	if err != nil {
		return "", fmt.Errorf("find user: %w", err)
	}
	return u.sign(user)
}

// RequestEmailVerification emails a verification link to the user. Already verified
// users get nothing.
func (u *AuthUsecase) RequestEmailVerification(ctx context.Context, userID string) error {
	user, err := u.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	if user.EmailVerified {
		return nil
	}
	return u.issueAndSend(ctx, user, domain.TokenVerification)
}

func (u *AuthUsecase) VerifyEmail(ctx context.Context, secret string) error {
	_, err := u.tokens.ValidateAndConsume(ctx, secret, domain.TokenVerification,
		domain.TokenEffect{MarkEmailVerified: true})
	return err
}

// RequestPasswordReset emails a reset link to the owner of addr. Unknown addresses are ignored.
func (u *AuthUsecase) RequestPasswordReset(ctx context.Context, addr string) error {
	return u.requestByEmail(ctx, addr, domain.TokenReset)
}

// ResetPassword consumes a reset token and stores the new password hash with it.
func (u *AuthUsecase) ResetPassword(ctx context.Context, secret, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	_, err = u.tokens.ValidateAndConsume(ctx, secret, domain.TokenReset,
		domain.TokenEffect{PasswordHash: string(hash)})
	return err
}

func (u *AuthUsecase) requestByEmail(ctx context.Context, addr string, kind domain.TokenKind) error {
	user, err := u.users.FindByEmail(ctx, addr)
	if errors.Is(err, domain.ErrUserNotFound) {
		u.logger.InfoContext(ctx, "token requested for unknown address", "kind", kind)
		return nil
	}
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	return u.issueAndSend(ctx, user, kind)
}

func (u *AuthUsecase) issueAndSend(ctx context.Context, user *domain.User, kind domain.TokenKind) error {
	if !user.Deliverable() {
		return fmt.Errorf("send %s link: user %s has no email address", kind, user.ID)
	}

	secret, t, err := u.tokens.Issue(ctx, user.ID, kind)
	if err != nil {
		return err
	}

	policy, _ := u.tokens.Policy(kind)
	n := domain.Notification{
		Kind:    domain.NotificationToken,
		To:      user.Email,
		Subject: policy.Subject,
		Body:    tokenBody(user, kind, u.baseURL+policy.Path+"?token="+secret, t.ExpiresAt),
	}
	if err := u.notifier.Deliver(ctx, n); err != nil {
		return fmt.Errorf("send %s link: %w", kind, err)
	}
	return nil
}

func tokenBody(user *domain.User, kind domain.TokenKind, link string, expiresAt time.Time) string {
	var action string
	switch kind {
	case domain.TokenVerification:
		action = "Confirm your email address with the link below."
	case domain.TokenReset:
		action = "Use the link below to choose a new password. If you did not ask for this, ignore this email."
	default:
		action = "Use the link below to sign in."
	}
	return fmt.Sprintf("Hi %s,\n\n%s\n\n[%s](%s)\n\nThe link works once and expires at %s.\n",
		greetingName(user), action, link, link, expiresAt.UTC().Format(timeLayout))
}

func greetingName(user *domain.User) string {
	if user.FirstName != "" {
		return user.FirstName
	}
	return user.Username
}

func (u *AuthUsecase) sign(user *domain.User) (string, error) {
	now := u.now()
	claims := jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(u.jwtTTL).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(u.jwtKey)
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}

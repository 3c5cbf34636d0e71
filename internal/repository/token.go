package repository

import (
	"context"
	"time"

	"github.com/ErlanBelekov/task-notifier/internal/domain"
)

type TokenRepository interface {
	// Issue supersedes every unused token of the same user and kind and stores t,
	// in one transaction. Returns domain.ErrDuplicateSecret on a hash collision.
	Issue(ctx context.Context, t *domain.Token) (*domain.Token, error)

	// Consume locks the token with the given hash, checks it against now and kind,
	// marks it used and applies effect to the owner, all in one transaction.
	// Errors: domain.ErrTokenNotFound, domain.ErrTokenExpired, domain.ErrTokenAlreadyUsed.
	Consume(ctx context.Context, secretHash string, kind domain.TokenKind, now time.Time, effect domain.TokenEffect) (*domain.Token, error)

	// DeleteExpired removes tokens with expires_at < now, used or not.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

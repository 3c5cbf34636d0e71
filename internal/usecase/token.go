package usecase

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ErlanBelekov/task-notifier/internal/domain"
	"github.com/ErlanBelekov/task-notifier/internal/metrics"
	"github.com/ErlanBelekov/task-notifier/internal/repository"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	secretBytes       = 32
	maxSecretAttempts = 3
	cooldownCacheSize = 10_000
)

// SecretGenerator returns a hex-encoded random secret of n bytes.
type SecretGenerator func(n int) (string, error)

func RandomSecret(n int) (string, error) {
	raw := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

// HashSecret is the at-rest form of a token secret.
func HashSecret(secret string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(secret)))
}

type TokenConfig struct {
	// TTL overrides the default lifetime per kind.
	TTL map[domain.TokenKind]time.Duration
	// IssueCooldown is the minimum gap between two issues for the same owner and kind.
	// Zero disables it.
	IssueCooldown time.Duration

	Now    func() time.Time
	Secret SecretGenerator
}

// TokenUsecase issues, validates and expires single-use tokens.
type TokenUsecase struct {
	tokens   repository.TokenRepository
	policies map[domain.TokenKind]domain.TokenPolicy
	now      func() time.Time
	secret   SecretGenerator
	logger   *slog.Logger

	mu     sync.Mutex
	recent *expirable.LRU[string, time.Time]
}

func NewTokenUsecase(tokens repository.TokenRepository, cfg TokenConfig, logger *slog.Logger) *TokenUsecase {
	policies := make(map[domain.TokenKind]domain.TokenPolicy, len(domain.TokenPolicies))
	for kind, p := range domain.TokenPolicies {
		if ttl, ok := cfg.TTL[kind]; ok && ttl > 0 {
			p.TTL = ttl
		}
		policies[kind] = p
	}

	u := &TokenUsecase{
		tokens:   tokens,
		policies: policies,
		now:      clockOrDefault(cfg.Now),
		secret:   cfg.Secret,
		logger:   logger.With("component", "tokens"),
	}
	if u.secret == nil {
		u.secret = RandomSecret
	}
	if cfg.IssueCooldown > 0 {
		u.recent = expirable.NewLRU[string, time.Time](cooldownCacheSize, nil, cfg.IssueCooldown)
	}
	return u
}

func (u *TokenUsecase) Policy(kind domain.TokenKind) (domain.TokenPolicy, bool) {
	p, ok := u.policies[kind]
	return p, ok
}

// Issue creates a token of kind for userID, superseding that owner's outstanding tokens
// of the same kind, and returns the raw secret. Only the hash is stored.
func (u *TokenUsecase) Issue(ctx context.Context, userID string, kind domain.TokenKind) (string, *domain.Token, error) {
	policy, ok := u.policies[kind]
	if !ok {
		return "", nil, fmt.Errorf("issue token: %w: %q", domain.ErrUnknownTokenKind, kind)
	}

	key := userID + "|" + string(kind)
	if !u.reserve(key) {
		return "", nil, domain.ErrTooManyRequests
	}

	for attempt := 1; attempt <= maxSecretAttempts; attempt++ {
		secret, err := u.secret(secretBytes)
		if err != nil {
			u.unreserve(key)
			return "", nil, err
		}

		created, err := u.tokens.Issue(ctx, &domain.Token{
			UserID:     userID,
			Kind:       kind,
			SecretHash: HashSecret(secret),
			ExpiresAt:  u.now().Add(policy.TTL),
		})
		if errors.Is(err, domain.ErrDuplicateSecret) {
			u.logger.WarnContext(ctx, "secret collision, regenerating", "kind", kind, "attempt", attempt)
			continue
		}
		if err != nil {
			u.unreserve(key)
			return "", nil, fmt.Errorf("store token: %w", err)
		}

		metrics.TokensIssuedTotal.WithLabelValues(string(kind)).Inc()
		return secret, created, nil
	}

	u.unreserve(key)
	return "", nil, fmt.Errorf("issue token: %w", domain.ErrDuplicateSecret)
}

// ValidateAndConsume redeems secret for kind and applies effect in the same unit of work.
// Errors, in precedence order: domain.ErrTokenNotFound, domain.ErrTokenExpired,
// domain.ErrTokenAlreadyUsed.
func (u *TokenUsecase) ValidateAndConsume(
	ctx context.Context,
	secret string,
	kind domain.TokenKind,
	effect domain.TokenEffect,
) (*domain.Token, error) {
	if secret == "" {
		u.observeConsume(kind, domain.ErrTokenNotFound)
		return nil, domain.ErrTokenNotFound
	}

	t, err := u.tokens.Consume(ctx, HashSecret(secret), kind, u.now(), effect)
	u.observeConsume(kind, err)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// SweepExpired deletes tokens whose expiry is before now, used or not.
func (u *TokenUsecase) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	n, err := u.tokens.DeleteExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("sweep expired tokens: %w", err)
	}
	metrics.TokensSweptTotal.Add(float64(n))
	if n > 0 {
		u.logger.InfoContext(ctx, "expired tokens swept", "count", n)
	}
	return n, nil
}

func (u *TokenUsecase) observeConsume(kind domain.TokenKind, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrTokenNotFound):
		result = "not_found"
	case errors.Is(err, domain.ErrTokenExpired):
		result = "expired"
	case errors.Is(err, domain.ErrTokenAlreadyUsed):
		result = "already_used"
	default:
		result = "error"
	}
	metrics.TokensConsumedTotal.WithLabelValues(string(kind), result).Inc()
}

func (u *TokenUsecase) reserve(key string) bool {
	if u.recent == nil {
		return true
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.recent.Contains(key) {
		return false
	}
	u.recent.Add(key, u.now())
	return true
}

func (u *TokenUsecase) unreserve(key string) {
	if u.recent != nil {
		u.recent.Remove(key)
	}
}

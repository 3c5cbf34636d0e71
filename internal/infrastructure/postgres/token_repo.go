package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/ErlanBelekov/task-notifier/internal/domain"
	"github.com/jackc/pgx/v5"
)

const tokenColumns = `id, user_id, kind, secret_hash, expires_at, used, used_at, created_at`

type TokenRepository struct {
	db DB
}

func NewTokenRepository(db DB) *TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) Issue(ctx context.Context, t *domain.Token) (*domain.Token, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, mapErr("begin tx", err, nil)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Serialises concurrent issues for the same (user, kind) so at most one survives.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, issueLockKey(t)); err != nil {
		return nil, mapErr("lock token kind", err, nil)
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM tokens WHERE user_id = $1 AND kind = $2 AND NOT used`,
		t.UserID, t.Kind,
	); err != nil {
		return nil, mapErr("supersede tokens", err, nil)
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO tokens (user_id, kind, secret_hash, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING `+tokenColumns,
		t.UserID, t.Kind, t.SecretHash, t.ExpiresAt,
	)
	created, err := scanToken(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrDuplicateSecret
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapErr("commit token", err, nil)
	}
	return created, nil
}

func issueLockKey(t *domain.Token) string {
	return "token|" + t.UserID + "|" + string(t.Kind)
}

func (r *TokenRepository) Consume(
	ctx context.Context,
	secretHash string,
	kind domain.TokenKind,
	now time.Time,
	effect domain.TokenEffect,
) (*domain.Token, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, mapErr("begin tx", err, nil)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// The row lock makes concurrent redemptions of one secret serialise; the loser sees used = true.
	row := tx.QueryRow(ctx, `
		SELECT `+tokenColumns+`
		FROM   tokens
		WHERE  secret_hash = $1 AND kind = $2
		FOR UPDATE`, secretHash, kind)
	t, err := scanToken(row)
	if err != nil {
		return nil, err
	}
	if err := t.Check(now); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE tokens SET used = TRUE, used_at = $2 WHERE id = $1`, t.ID, now,
	); err != nil {
		return nil, mapErr("mark token used", err, nil)
	}

	if effect.MarkEmailVerified {
		tag, err := tx.Exec(ctx,
			`UPDATE users SET email_verified = TRUE, updated_at = NOW() WHERE id = $1`, t.UserID)
		if err != nil {
			return nil, mapErr("verify email", err, nil)
		}
		if tag.RowsAffected() == 0 {
			return nil, domain.ErrUserNotFound
		}
	}
	if effect.PasswordHash != "" {
		tag, err := tx.Exec(ctx,
			`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, t.UserID, effect.PasswordHash)
		if err != nil {
			return nil, mapErr("reset password", err, nil)
		}
		if tag.RowsAffected() == 0 {
			return nil, domain.ErrUserNotFound
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapErr("commit consume", err, nil)
	}

	t.Used = true
	t.UsedAt = &now
	return t, nil
}

func (r *TokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, mapErr("delete expired tokens", err, nil)
	}
	return int(tag.RowsAffected()), nil
}

func scanToken(row rowScanner) (*domain.Token, error) {
	var t domain.Token
	err := row.Scan(
		&t.ID, &t.UserID, &t.Kind, &t.SecretHash, &t.ExpiresAt,
		&t.Used, &t.UsedAt, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTokenNotFound
		}
		if isUniqueViolation(err) {
			return nil, err
		}
		return nil, mapErr("scan token", err, nil)
	}
	return &t, nil
}

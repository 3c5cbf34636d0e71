package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/ErlanBelekov/task-notifier/internal/domain"
	"github.com/jackc/pgx/v5"
)

const reminderColumns = `id, user_id, source_key, message, due_at, sent, sent_at, claimed_at, created_at`

type ReminderRepository struct {
	db DB
}

func NewReminderRepository(db DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

func (r *ReminderRepository) CreateUnlessNear(ctx context.Context, rem *domain.Reminder, window time.Duration) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, mapErr("begin tx", err, nil)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Serialises concurrent upserts for the same (user, source key) until commit.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, rem.UserID+"|"+rem.SourceKey); err != nil {
		return false, mapErr("lock reminder key", err, nil)
	}

	var exists bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM reminders
			WHERE  user_id = $1 AND source_key = $2
			  AND  due_at BETWEEN $3 AND $4
		)`,
		rem.UserID, rem.SourceKey, rem.DueAt.Add(-window), rem.DueAt.Add(window),
	).Scan(&exists)
	if err != nil {
		return false, mapErr("check reminder", err, nil)
	}
	if exists {
		return false, nil
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO reminders (user_id, source_key, message, due_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, sent, created_at`,
		rem.UserID, rem.SourceKey, rem.Message, rem.DueAt,
	).Scan(&rem.ID, &rem.Sent, &rem.CreatedAt)
	if err != nil {
		return false, mapErr("insert reminder", err, nil)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, mapErr("commit reminder", err, nil)
	}
	return true, nil
}

func (r *ReminderRepository) DeleteBySourceKey(ctx context.Context, userID, sourceKey string) (int, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM reminders WHERE user_id = $1 AND source_key = $2`, userID, sourceKey)
	if err != nil {
		return 0, mapErr("delete reminders", err, nil)
	}
	return int(tag.RowsAffected()), nil
}

func (r *ReminderRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*domain.Reminder, error) {
	// FOR UPDATE SKIP LOCKED keeps concurrent engines off each other's rows.
	query := `
		UPDATE reminders
		SET    claimed_at = $1
		WHERE id IN (
			SELECT id FROM reminders
			WHERE  NOT sent
			  AND  claimed_at IS NULL
			  AND  due_at <= $1
			ORDER BY due_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + reminderColumns

	rows, err := r.db.Query(ctx, query, now, limit)
	if err != nil {
		return nil, mapErr("claim reminders", err, nil)
	}
	defer rows.Close()

	var out []*domain.Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rem)
	}
	return out, mapErr("claim reminders", rows.Err(), nil)
}

func (r *ReminderRepository) MarkSent(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE reminders
		SET    sent = TRUE, sent_at = $2, claimed_at = NULL
		WHERE  id = $1 AND NOT sent`, id, at)
	if err != nil {
		return false, mapErr("mark reminder sent", err, nil)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ReminderRepository) Release(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE reminders SET claimed_at = NULL WHERE id = $1 AND NOT sent`, id)
	return mapErr("release reminder", err, nil)
}

func (r *ReminderRepository) Park(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE reminders SET skipped_at = $2 WHERE id = $1 AND NOT sent`, id, at)
	return mapErr("park reminder", err, nil)
}

func (r *ReminderRepository) ReleaseStale(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	query := `
		UPDATE reminders
		SET    claimed_at = NULL
		WHERE id IN (
			SELECT id FROM reminders
			WHERE  NOT sent
			  AND  skipped_at IS NULL
			  AND  claimed_at < $1
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)`

	tag, err := r.db.Exec(ctx, query, cutoff, limit)
	if err != nil {
		return 0, mapErr("release stale reminders", err, nil)
	}
	return int(tag.RowsAffected()), nil
}

func scanReminder(row rowScanner) (*domain.Reminder, error) {
	var rem domain.Reminder
	err := row.Scan(
		&rem.ID, &rem.UserID, &rem.SourceKey, &rem.Message, &rem.DueAt,
		&rem.Sent, &rem.SentAt, &rem.ClaimedAt, &rem.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrReminderNotFound
		}
		return nil, mapErr("scan reminder", err, nil)
	}
	return &rem, nil
}

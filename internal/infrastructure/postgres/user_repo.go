package postgres

import (
	"context"
	"errors"

	"github.com/ErlanBelekov/task-notifier/internal/domain"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, username, first_name, last_name, email, phone_no,
	password_hash, email_verified, created_at, updated_at`

type UserRepository struct {
	db DB
}

func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	return scanUser(row)
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return scanUser(row)
}

// Create inserts a user. Used by the seed command.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	query := `
		INSERT INTO users (username, first_name, last_name, email, phone_no, password_hash, email_verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (username) DO UPDATE SET updated_at = NOW()
		RETURNING ` + userColumns

	row := r.db.QueryRow(ctx, query,
		u.Username, u.FirstName, u.LastName, u.Email, u.PhoneNo, u.PasswordHash, u.EmailVerified,
	)
	return scanUser(row)
}

func scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.Email, &u.PhoneNo,
		&u.PasswordHash, &u.EmailVerified, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, mapErr("scan user", err, nil)
	}
	return &u, nil
}


package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/ErlanBelekov/task-notifier/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const taskColumns = `t.id, t.user_id, t.title, t.status, t.priority,
	t.scheduled_date, t.scheduled_time, t.created_at, t.updated_at`

type TaskRepository struct {
	db DB
}

func NewTaskRepository(db DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	query := `
		INSERT INTO tasks AS t (user_id, title, status, priority, scheduled_date, scheduled_time)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + taskColumns

	row := r.db.QueryRow(ctx, query,
		task.UserID,
		task.Title,
		task.Status,
		task.Priority,
		task.ScheduledDate,
		encodeTime(task.ScheduledTime),
	)
	return scanTask(row)
}

func (r *TaskRepository) Update(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	query := `
		UPDATE tasks AS t
		SET    title          = $3,
		       status         = $4,
		       priority       = $5,
		       scheduled_date = $6,
		       scheduled_time = $7,
		       updated_at     = NOW()
		WHERE  t.id = $1 AND t.user_id = $2
		RETURNING ` + taskColumns

	row := r.db.QueryRow(ctx, query,
		task.ID,
		task.UserID,
		task.Title,
		task.Status,
		task.Priority,
		task.ScheduledDate,
		encodeTime(task.ScheduledTime),
	)
	return scanTask(row)
}

func (r *TaskRepository) GetByID(ctx context.Context, id, userID string) (*domain.Task, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks t WHERE t.id = $1 AND t.user_id = $2`, id, userID)
	return scanTask(row)
}

func (r *TaskRepository) FindByID(ctx context.Context, id string) (*domain.Task, error) {
	row := r.db.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks t WHERE t.id = $1`, id)
	return scanTask(row)
}

func (r *TaskRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM   tasks t
		WHERE  t.user_id = $1
		ORDER BY t.scheduled_date ASC NULLS LAST, t.scheduled_time ASC NULLS LAST, t.created_at ASC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, mapErr("list tasks", err, nil)
	}
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, mapErr("list tasks", rows.Err(), nil)
}

func (r *TaskRepository) Delete(ctx context.Context, id, userID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return mapErr("delete task", err, nil)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func (r *TaskRepository) DeleteAllByUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.Query(ctx, `DELETE FROM tasks WHERE user_id = $1 RETURNING id`, userID)
	if err != nil {
		return nil, mapErr("delete tasks", err, nil)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, mapErr("scan task id", err, nil)
		}
		ids = append(ids, id)
	}
	return ids, mapErr("delete tasks", rows.Err(), nil)
}

func (r *TaskRepository) ListOutstanding(ctx context.Context) ([]*domain.OutstandingTask, error) {
	query := `
		SELECT ` + taskColumns + `, u.email, u.first_name
		FROM   tasks t
		JOIN   users u ON u.id = t.user_id
		WHERE  t.status <> 'Completed'
		ORDER BY t.user_id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, mapErr("list outstanding tasks", err, nil)
	}
	defer rows.Close()

	var out []*domain.OutstandingTask
	for rows.Next() {
		var (
			ot domain.OutstandingTask
			tm pgtype.Time
		)
		err := rows.Scan(
			&ot.ID, &ot.UserID, &ot.Title, &ot.Status, &ot.Priority,
			&ot.ScheduledDate, &tm, &ot.CreatedAt, &ot.UpdatedAt,
			&ot.OwnerEmail, &ot.OwnerFirstName,
		)
		if err != nil {
			return nil, mapErr("scan outstanding task", err, nil)
		}
		ot.ScheduledTime = decodeTime(tm)
		out = append(out, &ot)
	}
	return out, mapErr("list outstanding tasks", rows.Err(), nil)
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		t  domain.Task
		tm pgtype.Time
	)
	err := row.Scan(
		&t.ID, &t.UserID, &t.Title, &t.Status, &t.Priority,
		&t.ScheduledDate, &tm, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, mapErr("scan task", err, nil)
	}
	t.ScheduledTime = decodeTime(tm)
	return &t, nil
}

// TIME columns travel as microseconds since midnight.
func encodeTime(d *time.Duration) pgtype.Time {
	if d == nil {
		return pgtype.Time{}
	}
	return pgtype.Time{Microseconds: d.Microseconds(), Valid: true}
}

func decodeTime(t pgtype.Time) *time.Duration {
	if !t.Valid {
		return nil
	}
	d := time.Duration(t.Microseconds) * time.Microsecond
	return &d
}

// Package db stores tasks in SQLite.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/efish/efish/internal/db"
	"github.com/efish/efish/internal/errorz"
	"github.com/efish/efish/internal/task"
)

type Store struct {
	write *sqlx.DB
	read  *sqlx.DB
}

// New creates a new Store. Writes go to the write pool, lookups to the
// read pool. Both may be the same pool.
func New(write, read *sql.DB) *Store {
	return &Store{
		write: db.SQLX(write),
		read:  db.SQLX(read),
	}
}

func (s *Store) CreateTask(ctx context.Context, t *task.Task) error {
	if t.ID == uuid.Nil {
		return fmt.Errorf("zero uuid provided: %w", errorz.ErrConstraintViolated)
	}

	const query = `
		INSERT INTO tasks (id, user_id, title, description, completed, created_at, updated_at)
		VALUES (:id, :user_id, :title, :description, :completed, :created_at, :updated_at)`

	_, err := s.write.NamedExecContext(ctx, query, rowFromTask(t))
	return errorz.MapDBErr(err)
}

func (s *Store) UpdateTask(ctx context.Context, t *task.Task) error {
	const query = `
		UPDATE tasks
		SET title = :title, description = :description, completed = :completed, updated_at = :updated_at
		WHERE id = :id AND user_id = :user_id`

	result, err := s.write.NamedExecContext(ctx, query, rowFromTask(t))
	if err != nil {
		return errorz.MapDBErr(err)
	}

	return oneRow(result)
}

func (s *Store) DeleteTask(ctx context.Context, userID, id uuid.UUID) error {
	result, err := s.write.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return errorz.MapDBErr(err)
	}

	return oneRow(result)
}

func (s *Store) FindTask(ctx context.Context, userID, id uuid.UUID) (task.Task, error) {
	var r taskRow
	err := s.read.GetContext(ctx, &r, selectTask+`WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return task.Task{}, errorz.MapDBErr(err)
	}

	return r.toTask(), nil
}

func (s *Store) ListTasks(ctx context.Context, userID uuid.UUID, limit, offset int) ([]task.Task, error) {
	var rows []taskRow
	err := s.read.SelectContext(ctx, &rows,
		selectTask+`WHERE user_id = ? ORDER BY created_at DESC, id ASC LIMIT ? OFFSET ?`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, errorz.MapDBErr(err)
	}

	out := make([]task.Task, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toTask())
	}

	return out, nil
}

func (s *Store) CountTasks(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := s.read.GetContext(ctx, &n, `SELECT COUNT(*) FROM tasks WHERE user_id = ?`, userID)
	if err != nil {
		return 0, errorz.MapDBErr(err)
	}

	return n, nil
}

const selectTask = `SELECT id, user_id, title, description, completed, created_at, updated_at FROM tasks `

type taskRow struct {
	ID          uuid.UUID `db:"id"`
	UserID      uuid.UUID `db:"user_id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	Completed   bool      `db:"completed"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func rowFromTask(t *task.Task) taskRow {
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()

	return taskRow{
		ID:          t.ID,
		UserID:      t.UserID,
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func (r taskRow) toTask() task.Task {
	return task.Task{
		ID:          r.ID,
		UserID:      r.UserID,
		Title:       r.Title,
		Description: r.Description,
		Completed:   r.Completed,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func oneRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return errorz.MapDBErr(err)
	}

	if rows == 0 {
		return fmt.Errorf("task not found: %w", errorz.ErrNotFound)
	}

	return nil
}

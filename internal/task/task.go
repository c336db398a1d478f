// Package task manages the personal task lists of users.
package task

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Task is an item on the task list of a single user.
type Task struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Title       string
	Description string
	Completed   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Input contains the fields of a task a user can edit.
type Input struct {
	Title       string
	Description string
	Completed   bool
}

// Page is a single page of the task list of a user, newest first.
type Page struct {
	Tasks   []Task
	Number  int
	PerPage int
	Total   int
}

// Pages is the total number of pages, at least 1.
func (p Page) Pages() int {
	if p.Total == 0 || p.PerPage <= 0 {
		return 1
	}
	return (p.Total + p.PerPage - 1) / p.PerPage
}

func (p Page) HasPrev() bool {
	return p.Number > 1
}

func (p Page) HasNext() bool {
	return p.Number < p.Pages()
}

// Store persists tasks. Every method is scoped to a single user, tasks
// of other users are reported as errorz.ErrNotFound.
type Store interface {
	CreateTask(ctx context.Context, t *Task) error
	UpdateTask(ctx context.Context, t *Task) error
	DeleteTask(ctx context.Context, userID, id uuid.UUID) error
	FindTask(ctx context.Context, userID, id uuid.UUID) (Task, error)
	ListTasks(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Task, error)
	CountTasks(ctx context.Context, userID uuid.UUID) (int, error)
}

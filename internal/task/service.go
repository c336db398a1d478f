package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/efish/efish/internal/errorz"
)

var (
	ErrAlreadyCompleted = errors.New("task is already completed")
	ErrTitleRequired    = errors.New("title is required")
	ErrFieldTooLong     = errors.New("too long")
)

const (
	DefaultPerPage = 10

	maxTitleRunes       = 100
	maxDescriptionRunes = 500
)

type ServiceConfig struct {
	// PerPage is the number of tasks on a page, DefaultPerPage if zero.
	PerPage int
}

// Service implements the task rules.
type Service struct {
	store   Store
	perPage int

	// NowFunc is used to get the current time.
	// Exposed for testing purposes.
	NowFunc func() time.Time
}

func NewService(store Store, cfg ServiceConfig) *Service {
	perPage := cfg.PerPage
	if perPage <= 0 {
		perPage = DefaultPerPage
	}

	return &Service{
		store:   store,
		perPage: perPage,
		NowFunc: time.Now,
	}
}

// List returns page number of the tasks of the user. Pages start at 1,
// lower numbers are treated as the first page. Numbers beyond the last
// page yield the empty page right after it.
func (s *Service) List(ctx context.Context, userID uuid.UUID, number int) (Page, error) {
	if number < 1 {
		number = 1
	}

	total, err := s.store.CountTasks(ctx, userID)
	if err != nil {
		return Page{}, err
	}

	pastLast := Page{Total: total, PerPage: s.perPage}.Pages() + 1
	if number > pastLast {
		number = pastLast
	}

	tasks, err := s.store.ListTasks(ctx, userID, s.perPage, (number-1)*s.perPage)
	if err != nil {
		return Page{}, err
	}

	return Page{
		Tasks:   tasks,
		Number:  number,
		PerPage: s.perPage,
		Total:   total,
	}, nil
}

// Create adds a task for the user.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, in Input) (Task, error) {
	in, err := validate(in)
	if err != nil {
		return Task{}, err
	}

	now := s.NowFunc()
	t := Task{
		ID:          uuid.New(),
		UserID:      userID,
		Title:       in.Title,
		Description: in.Description,
		Completed:   in.Completed,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.store.CreateTask(ctx, &t)
	if err != nil {
		return Task{}, err
	}

	return t, nil
}

// Get returns a task of the user.
func (s *Service) Get(ctx context.Context, userID, id uuid.UUID) (Task, error) {
	return s.store.FindTask(ctx, userID, id)
}

// Update replaces the editable fields of a task of the user.
func (s *Service) Update(ctx context.Context, userID, id uuid.UUID, in Input) (Task, error) {
	in, err := validate(in)
	if err != nil {
		return Task{}, err
	}

	t, err := s.store.FindTask(ctx, userID, id)
	if err != nil {
		return Task{}, err
	}

	t.Title = in.Title
	t.Description = in.Description
	t.Completed = in.Completed
	t.UpdatedAt = s.NowFunc()

	err = s.store.UpdateTask(ctx, &t)
	if err != nil {
		return Task{}, err
	}

	return t, nil
}

// Delete removes a task of the user.
func (s *Service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return s.store.DeleteTask(ctx, userID, id)
}

// Complete marks a task of the user as completed. It returns
// ErrAlreadyCompleted if it was.
func (s *Service) Complete(ctx context.Context, userID, id uuid.UUID) (Task, error) {
	t, err := s.store.FindTask(ctx, userID, id)
	if err != nil {
		return Task{}, err
	}

	if t.Completed {
		return t, ErrAlreadyCompleted
	}

	t.Completed = true
	t.UpdatedAt = s.NowFunc()

	err = s.store.UpdateTask(ctx, &t)
	if err != nil {
		return Task{}, err
	}

	return t, nil
}

func validate(in Input) (Input, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)

	var invalid errorz.InvalidInput
	switch {
	case in.Title == "":
		invalid = append(invalid, errorz.Keyed{Key: "Title", Err: ErrTitleRequired})
	case utf8.RuneCountInString(in.Title) > maxTitleRunes:
		invalid = append(invalid, errorz.Keyed{Key: "Title", Err: fmt.Errorf("%w, at most %d characters", ErrFieldTooLong, maxTitleRunes)})
	}

	if utf8.RuneCountInString(in.Description) > maxDescriptionRunes {
		invalid = append(invalid, errorz.Keyed{Key: "Description", Err: fmt.Errorf("%w, at most %d characters", ErrFieldTooLong, maxDescriptionRunes)})
	}

	if len(invalid) > 0 {
		return Input{}, invalid
	}

	return in, nil
}

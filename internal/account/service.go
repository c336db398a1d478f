package account

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

var ErrFieldTooLong = errors.New("too long")

const maxFieldRunes = 100

// Service implements the account rules.
type Service struct {
	store Store

	// NowFunc is used to get the current time.
	// Exposed for testing purposes.
	NowFunc func() time.Time
}

func NewService(store Store) *Service {
	return &Service{
		store:   store,
		NowFunc: time.Now,
	}
}

// Create creates a new account with the next account number.
func (s *Service) Create(ctx context.Context) (Account, error) {
	seq, err := s.store.NextSequence(ctx, NumberCounter)
	if err != nil {
		return Account{}, fmt.Errorf("failed to get next account number: %w", err)
	}

	a := Account{
		ID:        uuid.New(),
		Number:    FormatNumber(seq),
		Name:      NewAccountName,
		PlanType:  DefaultPlan,
		Addons:    []string{},
		CreatedAt: s.NowFunc(),
	}

	err = s.store.CreateAccount(ctx, &a)
	if err != nil {
		return Account{}, err
	}

	return a, nil
}

// Assign returns the account a new user should join.
//
// The requested account is reused if it exists. An empty request,
// RequestNew, an invalid ID or an unknown account all result in a new
// account.
func (s *Service) Assign(ctx context.Context, requested string) (Account, error) {
	requested = strings.TrimSpace(requested)
	if requested == "" || requested == RequestNew {
		return s.Create(ctx)
	}

	id, err := uuid.Parse(requested)
	if err != nil {
		return s.Create(ctx)
	}

	a, err := s.store.FindAccount(ctx, id)
	if errors.Is(err, errorz.ErrNotFound) {
		return s.Create(ctx)
	}
	if err != nil {
		return Account{}, err
	}

	return a, nil
}

// Get returns the account with the given ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Account, error) {
	return s.store.FindAccount(ctx, id)
}

// Update changes the name and plan of an account.
// A blank plan resets it to DefaultPlan.
func (s *Service) Update(ctx context.Context, u AccountUpdate) (Account, error) {
	name := strings.TrimSpace(u.Name)
	plan := strings.TrimSpace(u.PlanType)
	if plan == "" {
		plan = DefaultPlan
	}

	var invalid errorz.InvalidInput
	if utf8.RuneCountInString(name) > maxFieldRunes {
		invalid = append(invalid, errorz.Keyed{Key: "Name", Err: fmt.Errorf("%w, at most %d characters", ErrFieldTooLong, maxFieldRunes)})
	}
	if utf8.RuneCountInString(plan) > maxFieldRunes {
		invalid = append(invalid, errorz.Keyed{Key: "PlanType", Err: fmt.Errorf("%w, at most %d characters", ErrFieldTooLong, maxFieldRunes)})
	}
	if len(invalid) > 0 {
		return Account{}, invalid
	}

	a, err := s.store.FindAccount(ctx, u.ID)
	if err != nil {
		return Account{}, err
	}

	now := s.NowFunc()
	a.Name = name
	a.PlanType = plan
	a.UpdatedAt = &now

	err = s.store.UpdateAccount(ctx, &a)
	if err != nil {
		return Account{}, err
	}

	return a, nil
}

// FormatNumber formats a counter value as an account number.
func FormatNumber(seq int64) string {
	return fmt.Sprintf("efish-%07d", seq)
}

// Package account manages the accounts (tenants) users belong to.
package account

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	// NewAccountName is the name of accounts created for new users.
	NewAccountName = "New Account"
	// DefaultPlan is the plan of new accounts and of accounts edited
	// without a plan.
	DefaultPlan = "free"
	// RequestNew asks Assign for a new account.
	RequestNew = "NEW"

	// NumberCounter is the name of the counter account numbers are taken from.
	NumberCounter = "account_counter"
)

// Account is a tenant, every user belongs to exactly one.
type Account struct {
	ID        uuid.UUID
	Number    string
	Name      string
	TenantID  string
	PlanType  string
	Addons    []string
	CreatedAt time.Time
	// UpdatedAt is nil until the account is first updated.
	UpdatedAt *time.Time
}

// AccountUpdate contains the fields of an account a user can edit.
type AccountUpdate struct {
	ID       uuid.UUID
	Name     string
	PlanType string
}

// Store persists accounts.
//
// Find and update return errorz.ErrNotFound when there is no such account.
type Store interface {
	// NextSequence atomically increments the named counter and returns
	// its new value. The first value of a counter is 1.
	NextSequence(ctx context.Context, counter string) (int64, error)
	CreateAccount(ctx context.Context, a *Account) error
	UpdateAccount(ctx context.Context, a *Account) error
	FindAccount(ctx context.Context, id uuid.UUID) (Account, error)
}

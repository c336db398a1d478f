package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/efish/efish/internal/email"
	"github.com/efish/efish/internal/krypto"
)

// Store persists users.
//
// Find methods return errorz.ErrNotFound when there is no such user.
// Create and update return errorz.ErrDuplicate when the email address
// is already in use by another user.
type Store interface {
	CreateUser(ctx context.Context, u *User) error
	UpdateUser(ctx context.Context, u *User) error
	// UpdateCredential only replaces the password hash of the user.
	UpdateCredential(ctx context.Context, id uuid.UUID, hash krypto.Argon2Hash, at time.Time) error
	FindUserByEmail(ctx context.Context, addr email.Address) (User, error)
	FindUserByID(ctx context.Context, id uuid.UUID) (User, error)
}

// TokenLedger remembers which single-use tokens were redeemed.
type TokenLedger interface {
	// Consume marks the token with id as used. It reports false if it was
	// used before. The ledger may forget the token after expiresAt.
	Consume(ctx context.Context, id string, expiresAt time.Time) (bool, error)
}

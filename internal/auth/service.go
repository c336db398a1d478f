package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/efish/efish/internal/account"
	"github.com/efish/efish/internal/email"
	"github.com/efish/efish/internal/errorz"
	"github.com/efish/efish/internal/krypto"
)

var (
	ErrDuplicateUser      = errors.New("email already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrFieldTooLong       = errors.New("too long")
)

const (
	// PasswordResetPurpose separates password reset tokens from tokens
	// signed for anything else.
	PasswordResetPurpose = "password-reset"

	maxNameRunes    = 100
	maxAboutMeRunes = 500
)

// Mailer is used to send templated emails.
type Mailer interface {
	Send(ctx context.Context, template string, to email.Address, data any) error
}

// LinkBuilder creates the absolute URLs that are put in emails.
type LinkBuilder interface {
	PasswordResetLink(token string) string
}

// AccountAssigner finds or creates the account a new user joins.
type AccountAssigner interface {
	Assign(ctx context.Context, requested string) (account.Account, error)
}

// ErrFunc is a function that handles errors.
type ErrFunc func(error)

// ServiceConfig is the configuration for the Service.
type ServiceConfig struct {
	// ResetTokenExpiry is the duration a password reset token is valid.
	ResetTokenExpiry time.Duration
	// SingleUseResetTokens rejects a reset token after its first use.
	// When false, a token can be used until it expires.
	SingleUseResetTokens bool
}

// ServiceDeps are the dependencies of the Service.
type ServiceDeps struct {
	Store    Store
	Accounts AccountAssigner
	Mailer   Mailer
	Links    LinkBuilder
	Signer   *krypto.TimedSigner
	// Ledger is only required for single-use reset tokens.
	Ledger  TokenLedger
	ErrFunc ErrFunc
}

// Service is the type that provides the main rules for
// authentication.
type Service struct {
	store      Store
	accounts   AccountAssigner
	mailer     Mailer
	links      LinkBuilder
	signer     *krypto.TimedSigner
	ledger     TokenLedger
	errHandler ErrFunc
	cfg        ServiceConfig

	// comparisonHash is used to compare passwords when no user was found.
	comparisonHash krypto.Argon2Hash

	// NowFunc is used to get the current time.
	// Exposed for testing purposes.
	NowFunc func() time.Time
}

func NewService(deps ServiceDeps, cfg ServiceConfig) (*Service, error) {
	if deps.Store == nil || deps.Accounts == nil || deps.Mailer == nil || deps.Links == nil || deps.Signer == nil {
		return nil, errors.New("auth: missing dependency")
	}

	if cfg.ResetTokenExpiry <= 0 {
		return nil, errors.New("auth: reset token expiry must be positive")
	}

	if cfg.SingleUseResetTokens && deps.Ledger == nil {
		return nil, errors.New("auth: single-use reset tokens require a token ledger")
	}

	errHandler := deps.ErrFunc
	if errHandler == nil {
		errHandler = func(error) {}
	}

	// A random throwaway password, only ever used to spend the same time
	// on unknown users as on known ones.
	hash, err := krypto.HashArgon2([]byte(uuid.NewString()))
	if err != nil {
		return nil, err
	}

	return &Service{
		store:          deps.Store,
		accounts:       deps.Accounts,
		mailer:         deps.Mailer,
		links:          deps.Links,
		signer:         deps.Signer,
		ledger:         deps.Ledger,
		errHandler:     errHandler,
		cfg:            cfg,
		comparisonHash: hash,
		NowFunc:        time.Now,
	}, nil
}

// RegisterUser creates a new user in the requested account, or in a new
// account if the requested one can't be joined.
func (s *Service) RegisterUser(ctx context.Context, r Registration) (User, error) {
	var invalid errorz.InvalidInput
	if !r.Password.Equal(r.ConfirmPassword) {
		invalid = append(invalid, errorz.Keyed{Key: "ConfirmPassword", Err: ErrPasswordMismatch})
	}

	invalid = append(invalid, validateNames(r.FirstName, r.LastName, "", "", "", "")...)
	if len(invalid) > 0 {
		return User{}, invalid
	}

	_, err := s.store.FindUserByEmail(ctx, r.Email)
	if err == nil {
		return User{}, ErrDuplicateUser
	}
	if !errors.Is(err, errorz.ErrNotFound) {
		return User{}, err
	}

	pwdHash, err := r.Password.Hash()
	if err != nil {
		return User{}, err
	}

	acct, err := s.accounts.Assign(ctx, r.AccountID)
	if err != nil {
		return User{}, fmt.Errorf("failed to assign account: %w", err)
	}

	now := s.NowFunc()
	u := User{
		ID:           uuid.New(),
		AccountID:    acct.ID,
		Email:        r.Email,
		PasswordHash: pwdHash,
		FirstName:    strings.TrimSpace(r.FirstName),
		LastName:     strings.TrimSpace(r.LastName),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.store.CreateUser(ctx, &u)
	if errors.Is(err, errorz.ErrDuplicate) {
		return User{}, ErrDuplicateUser
	}
	if err != nil {
		return User{}, err
	}

	return u, nil
}

// Authenticate returns the user with the given credentials, or
// ErrInvalidCredentials if there is no such user or the password is wrong.
func (s *Service) Authenticate(ctx context.Context, c Credentials) (User, error) {
	u, err := s.store.FindUserByEmail(ctx, c.Email)
	if errors.Is(err, errorz.ErrNotFound) {
		// Even if no user is found we compare to a hash to prevent timing differences
		// that could result in user enumeration attacks.
		_ = c.Password.Match(s.comparisonHash)
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}

	if !c.Password.Match(u.PasswordHash) {
		return User{}, ErrInvalidCredentials
	}

	return u, nil
}

// GetUser returns the user with the given ID.
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	return s.store.FindUserByID(ctx, id)
}

// UpdateProfile replaces the editable fields of a user.
func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, p Profile) (User, error) {
	invalid := validateNames(p.FirstName, p.LastName, p.Username, p.Phone, p.TimeZone, p.AboutMe)
	if len(invalid) > 0 {
		return User{}, invalid
	}

	u, err := s.store.FindUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}

	if p.Email != u.Email {
		other, err := s.store.FindUserByEmail(ctx, p.Email)
		if err == nil && other.ID != u.ID {
			return User{}, ErrDuplicateUser
		}
		if err != nil && !errors.Is(err, errorz.ErrNotFound) {
			return User{}, err
		}
	}

	u.Email = p.Email
	u.FirstName = strings.TrimSpace(p.FirstName)
	u.LastName = strings.TrimSpace(p.LastName)
	u.Username = strings.TrimSpace(p.Username)
	u.Phone = strings.TrimSpace(p.Phone)
	u.TimeZone = strings.TrimSpace(p.TimeZone)
	u.AboutMe = strings.TrimSpace(p.AboutMe)
	u.UpdatedAt = s.NowFunc()

	err = s.store.UpdateUser(ctx, &u)
	if errors.Is(err, errorz.ErrDuplicate) {
		return User{}, ErrDuplicateUser
	}
	if err != nil {
		return User{}, err
	}

	return u, nil
}

func validateNames(first, last, username, phone, timeZone, aboutMe string) errorz.InvalidInput {
	var invalid errorz.InvalidInput
	fields := []struct {
		key   string
		value string
		max   int
	}{
		{"FirstName", first, maxNameRunes},
		{"LastName", last, maxNameRunes},
		{"Username", username, maxNameRunes},
		{"Phone", phone, maxNameRunes},
		{"TimeZone", timeZone, maxNameRunes},
		{"AboutMe", aboutMe, maxAboutMeRunes},
	}

	for _, f := range fields {
		if utf8.RuneCountInString(strings.TrimSpace(f.value)) > f.max {
			invalid = append(invalid, errorz.Keyed{
				Key: f.key,
				Err: fmt.Errorf("%w, at most %d characters", ErrFieldTooLong, f.max),
			})
		}
	}

	return invalid
}

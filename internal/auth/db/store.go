// Package db stores users in SQLite.
//
// Email addresses are encrypted at rest. Lookups by email use a blind
// index, an argon2 hash of the address keyed with a secret salt.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/efish/efish/internal/auth"
	"github.com/efish/efish/internal/db"
	"github.com/efish/efish/internal/email"
	"github.com/efish/efish/internal/errorz"
	"github.com/efish/efish/internal/krypto"
)

// Store is responsible for interacting with a database.
type Store struct {
	write         *sql.DB
	read          *sql.DB
	encryptor     *krypto.Encryptor
	blindIndexKey krypto.Key
}

// New creates a new Store. Writes go to the write pool, lookups to the
// read pool. Both may be the same pool.
func New(write, read *sql.DB, encryptor *krypto.Encryptor, blindIndexKey krypto.Key) *Store {
	return &Store{
		write:         write,
		read:          read,
		encryptor:     encryptor,
		blindIndexKey: blindIndexKey,
	}
}

func (s *Store) query() *db.Query {
	return db.NewQuery(s.encryptor, s.blindIndexKey)
}

// CreateUser inserts a new user.
func (s *Store) CreateUser(ctx context.Context, u *auth.User) error {
	if u.ID == uuid.Nil {
		return fmt.Errorf("zero uuid provided: %w", errorz.ErrConstraintViolated)
	}

	normalizeTimes(u)

	q := s.query()
	q.Unsafe(`INSERT INTO users (id, account_id, email_encrypted, email_blind_index, password_hash, first_name, last_name, username, phone, time_zone, about_me, created_at, updated_at) VALUES (`)
	q.Params(u.ID, u.AccountID)
	q.Unsafe(`, `)
	q.ParamEncrypted([]byte(u.Email))
	q.Unsafe(`, `)
	q.ParamBlindIndex([]byte(u.Email))
	q.Unsafe(`, `)
	q.Params(u.PasswordHash.String(), u.FirstName, u.LastName, u.Username, u.Phone, u.TimeZone, u.AboutMe, u.CreatedAt, u.UpdatedAt)
	q.Unsafe(`)`)

	return s.exec(ctx, q)
}

// UpdateUser replaces all fields of an existing user, except its ID,
// account and creation time.
func (s *Store) UpdateUser(ctx context.Context, u *auth.User) error {
	normalizeTimes(u)

	q := s.query()
	q.Unsafe(`UPDATE users SET `)

	q.Unsafe(`email_encrypted = `)
	q.ParamEncrypted([]byte(u.Email))

	q.Unsafe(`, email_blind_index = `)
	q.ParamBlindIndex([]byte(u.Email))

	q.Unsafe(`, password_hash = `)
	q.Param(u.PasswordHash.String())

	q.Unsafe(`, first_name = `)
	q.Param(u.FirstName)

	q.Unsafe(`, last_name = `)
	q.Param(u.LastName)

	q.Unsafe(`, username = `)
	q.Param(u.Username)

	q.Unsafe(`, phone = `)
	q.Param(u.Phone)

	q.Unsafe(`, time_zone = `)
	q.Param(u.TimeZone)

	q.Unsafe(`, about_me = `)
	q.Param(u.AboutMe)

	q.Unsafe(`, updated_at = `)
	q.Param(u.UpdatedAt)

	q.Unsafe(` WHERE id = `)
	q.Param(u.ID)

	return s.execOne(ctx, q)
}

// UpdateCredential replaces the password hash of the user with id.
func (s *Store) UpdateCredential(ctx context.Context, id uuid.UUID, hash krypto.Argon2Hash, at time.Time) error {
	q := s.query()
	q.Unsafe(`UPDATE users SET password_hash = `)
	q.Param(hash.String())
	q.Unsafe(`, updated_at = `)
	q.Param(at.UTC())
	q.Unsafe(` WHERE id = `)
	q.Param(id)

	return s.execOne(ctx, q)
}

// FindUserByEmail finds the user with the given address.
func (s *Store) FindUserByEmail(ctx context.Context, addr email.Address) (auth.User, error) {
	q := s.query()
	q.Unsafe(selectUser)
	q.Unsafe(`WHERE email_blind_index = `)
	q.ParamBlindIndex([]byte(addr))

	return s.selectOne(ctx, q)
}

// FindUserByID finds the user with the given ID.
func (s *Store) FindUserByID(ctx context.Context, id uuid.UUID) (auth.User, error) {
	q := s.query()
	q.Unsafe(selectUser)
	q.Unsafe(`WHERE id = `)
	q.Param(id)

	return s.selectOne(ctx, q)
}

const selectUser = `SELECT id, account_id, email_encrypted, password_hash, first_name, last_name, username, phone, time_zone, about_me, created_at, updated_at FROM users `

func (s *Store) selectOne(ctx context.Context, q *db.Query) (auth.User, error) {
	query, params, err := q.Get()
	if err != nil {
		return auth.User{}, err
	}

	var u auth.User
	emailBytes := q.DecryptionTarget()
	err = s.read.QueryRowContext(ctx, query, params...).Scan(
		&u.ID, &u.AccountID, emailBytes, &u.PasswordHash,
		&u.FirstName, &u.LastName, &u.Username, &u.Phone, &u.TimeZone, &u.AboutMe,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return auth.User{}, errorz.MapDBErr(err)
	}

	u.Email, err = email.ParseAddress(string(emailBytes.Data))
	if err != nil {
		return auth.User{}, err
	}

	normalizeTimes(&u)

	return u, nil
}

func (s *Store) exec(ctx context.Context, q *db.Query) error {
	query, params, err := q.Get()
	if err != nil {
		return err
	}

	_, err = s.write.ExecContext(ctx, query, params...)
	return errorz.MapDBErr(err)
}

// execOne is like exec but reports errorz.ErrNotFound if no row changed.
func (s *Store) execOne(ctx context.Context, q *db.Query) error {
	query, params, err := q.Get()
	if err != nil {
		return err
	}

	result, err := s.write.ExecContext(ctx, query, params...)
	if err != nil {
		return errorz.MapDBErr(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errorz.MapDBErr(err)
	}

	if rows == 0 {
		return fmt.Errorf("user not found: %w", errorz.ErrNotFound)
	}

	return nil
}

func normalizeTimes(u *auth.User) {
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
}

// Ledger records consumed single-use tokens.
type Ledger struct {
	db *sqlx.DB

	// NowFunc is used to prune tokens that expired.
	NowFunc func() time.Time
}

// NewLedger creates a ledger that writes to the given pool.
func NewLedger(write *sql.DB) *Ledger {
	return &Ledger{
		db:      db.SQLX(write),
		NowFunc: time.Now,
	}
}

// Consume implements auth.TokenLedger.
func (l *Ledger) Consume(ctx context.Context, id string, expiresAt time.Time) (bool, error) {
	_, err := l.db.ExecContext(ctx, `DELETE FROM consumed_tokens WHERE expires_at < ?`, l.NowFunc().UTC())
	if err != nil {
		return false, errorz.MapDBErr(err)
	}

	result, err := l.db.NamedExecContext(ctx,
		`INSERT INTO consumed_tokens (id, expires_at) VALUES (:id, :expires_at) ON CONFLICT (id) DO NOTHING`,
		consumedToken{ID: id, ExpiresAt: expiresAt.UTC()},
	)
	if err != nil {
		return false, errorz.MapDBErr(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, errorz.MapDBErr(err)
	}

	return rows == 1, nil
}

type consumedToken struct {
	ID        string    `db:"id"`
	ExpiresAt time.Time `db:"expires_at"`
}

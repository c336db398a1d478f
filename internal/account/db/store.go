// Package db stores accounts and counters in SQLite.
package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/efish/efish/internal/account"
	"github.com/efish/efish/internal/db"
	"github.com/efish/efish/internal/errorz"
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

func (s *Store) NextSequence(ctx context.Context, counter string) (int64, error) {
	const query = `
		INSERT INTO counters (name, seq) VALUES (?, 1)
		ON CONFLICT (name) DO UPDATE SET seq = seq + 1
		RETURNING seq`

	var seq int64
	err := s.write.GetContext(ctx, &seq, query, counter)
	if err != nil {
		return 0, errorz.MapDBErr(err)
	}

	return seq, nil
}

func (s *Store) CreateAccount(ctx context.Context, a *account.Account) error {
	if a.ID == uuid.Nil {
		return fmt.Errorf("zero uuid provided: %w", errorz.ErrConstraintViolated)
	}

	const query = `
		INSERT INTO accounts (id, number, name, tenant_id, plan_type, addons, created_at, updated_at)
		VALUES (:id, :number, :name, :tenant_id, :plan_type, :addons, :created_at, :updated_at)`

	_, err := s.write.NamedExecContext(ctx, query, rowFromAccount(a))
	return errorz.MapDBErr(err)
}

func (s *Store) UpdateAccount(ctx context.Context, a *account.Account) error {
	const query = `
		UPDATE accounts
		SET name = :name, tenant_id = :tenant_id, plan_type = :plan_type, addons = :addons, updated_at = :updated_at
		WHERE id = :id`

	result, err := s.write.NamedExecContext(ctx, query, rowFromAccount(a))
	if err != nil {
		return errorz.MapDBErr(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errorz.MapDBErr(err)
	}

	if rows == 0 {
		return fmt.Errorf("account not found: %w", errorz.ErrNotFound)
	}

	return nil
}

func (s *Store) FindAccount(ctx context.Context, id uuid.UUID) (account.Account, error) {
	const query = `
		SELECT id, number, name, tenant_id, plan_type, addons, created_at, updated_at
		FROM accounts WHERE id = ?`

	var r accountRow
	err := s.read.GetContext(ctx, &r, query, id)
	if err != nil {
		return account.Account{}, errorz.MapDBErr(err)
	}

	return r.toAccount(), nil
}

type accountRow struct {
	ID        uuid.UUID    `db:"id"`
	Number    string       `db:"number"`
	Name      string       `db:"name"`
	TenantID  string       `db:"tenant_id"`
	PlanType  string       `db:"plan_type"`
	Addons    stringList   `db:"addons"`
	CreatedAt time.Time    `db:"created_at"`
	UpdatedAt sql.NullTime `db:"updated_at"`
}

func rowFromAccount(a *account.Account) accountRow {
	a.CreatedAt = a.CreatedAt.UTC()

	r := accountRow{
		ID:        a.ID,
		Number:    a.Number,
		Name:      a.Name,
		TenantID:  a.TenantID,
		PlanType:  a.PlanType,
		Addons:    stringList(a.Addons),
		CreatedAt: a.CreatedAt,
	}

	if a.UpdatedAt != nil {
		updated := a.UpdatedAt.UTC()
		a.UpdatedAt = &updated
		r.UpdatedAt = sql.NullTime{Time: updated, Valid: true}
	}

	return r
}

func (r accountRow) toAccount() account.Account {
	a := account.Account{
		ID:        r.ID,
		Number:    r.Number,
		Name:      r.Name,
		TenantID:  r.TenantID,
		PlanType:  r.PlanType,
		Addons:    []string(r.Addons),
		CreatedAt: r.CreatedAt.UTC(),
	}

	if a.Addons == nil {
		a.Addons = []string{}
	}

	if r.UpdatedAt.Valid {
		updated := r.UpdatedAt.Time.UTC()
		a.UpdatedAt = &updated
	}

	return a
}

// stringList is stored as a JSON array.
type stringList []string

func (l stringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}

	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}

	return string(b), nil
}

func (l *stringList) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case string:
		b = []byte(v)
	case []byte:
		b = v
	case nil:
		*l = nil
		return nil
	default:
		return errors.New("unsupported type for string list")
	}

	return json.Unmarshal(b, (*[]string)(l))
}

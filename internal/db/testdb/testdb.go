// Package testdb provides in-memory SQLite databases for tests.
package testdb

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/efish/efish/internal/db"
	"github.com/efish/efish/internal/db/migrate"
	"github.com/efish/efish/migrations"
)

// RunWhile runs a database while the provided test is executing.
// It returns an empty database with all migrations applied.
func RunWhile(t *testing.T, write bool) *sql.DB {
	t.Helper()

	testDB := RunUnmigratedWhile(t, write)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := migrate.RunFS(ctx, testDB, migrations.FS, migrate.Metadata{
		AppVersion: "test",
		Timestamp:  time.Now(),
	})
	if err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return testDB
}

// RunUnmigratedWhile runs a database while the provided test is executing.
// It returns an empty database without any migrations applied.
//
// The database lives in memory and disappears when its last connection
// closes, so the returned pool is limited to a single connection.
func RunUnmigratedWhile(t *testing.T, write bool) *sql.DB {
	t.Helper()

	testDB, err := db.OpenSQLite(":memory:", write)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	testDB.SetMaxOpenConns(1)
	testDB.SetMaxIdleConns(1)
	testDB.SetConnMaxLifetime(0)
	testDB.SetConnMaxIdleTime(0)

	t.Cleanup(func() {
		err := testDB.Close()
		if err != nil {
			t.Errorf("failed to close database: %v", err)
		}
	})

	return testDB
}

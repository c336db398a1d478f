// Package db opens SQLite databases and helps building queries on them.
package db

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const (
	driverName = "sqlite3"

	// Both pools use WAL mode so reads and writes don't block each other,
	// enforce foreign keys and wait up to 5 seconds for a lock.
	// The write pool starts its transactions immediately to prevent
	// SQLITE_BUSY on lock upgrades, the read pool is query only.
	writeOptions = "?_foreign_keys=on&_journal_mode=wal&_busy_timeout=5000&_txlock=immediate"
	readOptions  = "?_foreign_keys=on&_journal_mode=wal&_busy_timeout=5000&_query_only=true"
)

// OpenSQLite opens a pool of SQLite connections. Different settings
// are appropriate for reading and writing, so this function needs to know
// what the sql.DB will be used for.
//
// See this comment for more information:
// https://github.com/mattn/go-sqlite3/issues/1179#issuecomment-1638083995
func OpenSQLite(dbFile string, write bool) (*sql.DB, error) {
	optsPostfix := readOptions
	if write {
		optsPostfix = writeOptions
	}

	db, err := sql.Open(driverName, dbFile+optsPostfix)
	if err != nil {
		return nil, err
	}

	if write {
		// use only a single connection for writing.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)

		// don't close this connection.
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	}

	return db, nil
}

// SQLX wraps a pool opened by OpenSQLite for use with sqlx.
func SQLX(db *sql.DB) *sqlx.DB {
	return sqlx.NewDb(db, driverName)
}

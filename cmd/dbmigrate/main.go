// Command dbmigrate applies the efish schema migrations to a SQLite file.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/efish/efish/internal"
	"github.com/efish/efish/internal/db"
	"github.com/efish/efish/internal/db/migrate"
	"github.com/efish/efish/migrations"
)

const helpText = `Usage: dbmigrate [sqlite_file]`

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, helpText)
		os.Exit(1)
	}

	os.Exit(run(os.Args[1]))
}

func run(dbFile string) int {
	sqlDB, err := db.OpenSQLite(dbFile, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		return 1
	}
	defer sqlDB.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*60)
	defer cancel()

	meta := migrate.Metadata{
		AppVersion: internal.Version(),
		Timestamp:  time.Now(),
	}

	ran, err := migrate.RunFS(ctx, sqlDB, migrations.FS, meta)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		return 1
	}

	if len(ran) == 0 {
		fmt.Println("database is up to date")
	}

	for _, m := range ran {
		fmt.Printf("%d: %s\n", m.Sequence, m.Filename)
	}

	return 0
}

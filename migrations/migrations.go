// Package migrations embeds the SQLite schema migrations of efish.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

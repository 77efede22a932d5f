// Package migrations embeds the Postgres schema for tickets, users and workflow runs.
package migrations

import "embed"

// FS holds the ordered *.sql migration files.
//
//go:embed *.sql
var FS embed.FS

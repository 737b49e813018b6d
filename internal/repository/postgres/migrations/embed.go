package migrations

import "embed"

// FS holds the goose-formatted SQL migrations for Postgres.
//
//go:embed *.sql
var FS embed.FS

// Package postgres embeds the goose SQL migrations for postgres.
package postgres

import "embed"

// FS contains the migration files (goose format, {version}_{name}.sql).
//
//go:embed *.sql
var FS embed.FS

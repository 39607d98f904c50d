// Package sqlite embeds the goose SQL migrations for sqlite.
package sqlite

import "embed"

// FS contains the migration files (goose format, {version}_{name}.sql).
//
//go:embed *.sql
var FS embed.FS

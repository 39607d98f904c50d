// Package mysql embeds the goose SQL migrations for mysql.
package mysql

import "embed"

// FS contains the migration files (goose format, {version}_{name}.sql).
//
//go:embed *.sql
var FS embed.FS

package store

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"

	migmysql "github.com/dropDatabas3/clinicauth/migrations/mysql"
	migpg "github.com/dropDatabas3/clinicauth/migrations/postgres"
	migsqlite "github.com/dropDatabas3/clinicauth/migrations/sqlite"
)

// MigrationResult resume una corrida de migraciones.
type MigrationResult struct {
	Applied []int64
}

func migrationsFor(d database.Dialect) (fs.FS, error) {
	switch d {
	case database.DialectPostgres:
		return migpg.FS, nil
	case database.DialectMySQL:
		return migmysql.FS, nil
	case database.DialectSQLite3:
		return migsqlite.FS, nil
	default:
		return nil, fmt.Errorf("migrate: dialect %q sin migraciones", d)
	}
}

// Migrate aplica las migraciones embebidas pendientes. Las conexiones que no
// son SQL (memory) no tienen esquema y retornan un resultado vacío.
func Migrate(ctx context.Context, conn AdapterConnection) (*MigrationResult, error) {
	mc, ok := conn.(MigratableConnection)
	if !ok {
		return &MigrationResult{}, nil
	}
	db, dialect := mc.MigrationDB()
	fsys, err := migrationsFor(dialect)
	if err != nil {
		return nil, err
	}

	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("migrate: goose provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return nil, fmt.Errorf("migrate: up: %w", err)
	}

	out := &MigrationResult{}
	for _, r := range results {
		out.Applied = append(out.Applied, r.Source.Version)
	}
	return out, nil
}

// Package pg implementa el adapter PostgreSQL.
// Usa pgxpool directamente; las migraciones corren sobre un *sql.DB
// construido con stdlib.OpenDBFromPool sobre el mismo pool.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3/database"

	"github.com/dropDatabas3/clinicauth/internal/domain/repository"
	"github.com/dropDatabas3/clinicauth/internal/store"
)

func init() {
	store.RegisterAdapter(&postgresAdapter{})
}

// nullIfEmpty returns nil if the string is empty, otherwise returns the string pointer.
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// isUniqueViolation detecta SQLSTATE 23505.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// postgresAdapter implementa store.Adapter para PostgreSQL.
type postgresAdapter struct{}

func (a *postgresAdapter) Name() string { return "postgres" }

func (a *postgresAdapter) Connect(ctx context.Context, cfg store.AdapterConfig) (store.AdapterConnection, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("pg: dsn requerido")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pg: parse DSN: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxOpenConns) // #nosec G115 -- valor de config
	} else {
		poolCfg.MaxConns = 10
	}
	if cfg.MaxIdleConns > 0 {
		poolCfg.MinConns = int32(cfg.MaxIdleConns) // #nosec G115 -- valor de config
	} else {
		poolCfg.MinConns = 2
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("pg: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg: ping failed: %w", err)
	}
	return &pgConnection{pool: pool}, nil
}

// pgConnection representa una conexión activa a PostgreSQL.
type pgConnection struct {
	pool  *pgxpool.Pool
	sqlDB *sql.DB // lazy, solo para migraciones
}

func (c *pgConnection) Name() string { return "postgres" }

func (c *pgConnection) Ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

func (c *pgConnection) Close() error {
	if c.sqlDB != nil {
		_ = c.sqlDB.Close()
	}
	c.pool.Close()
	return nil
}

// MigrationDB implementa store.MigratableConnection.
func (c *pgConnection) MigrationDB() (*sql.DB, database.Dialect) {
	if c.sqlDB == nil {
		c.sqlDB = stdlib.OpenDBFromPool(c.pool)
	}
	return c.sqlDB, database.DialectPostgres
}

// ─── Repositorios ───

func (c *pgConnection) Clients() repository.ClientRepository { return &clientRepo{pool: c.pool} }
func (c *pgConnection) Users() repository.UserRepository     { return &userRepo{pool: c.pool} }
func (c *pgConnection) Codes() repository.CodeRepository     { return &codeRepo{pool: c.pool} }
func (c *pgConnection) Tokens() repository.TokenRepository   { return &tokenRepo{pool: c.pool} }

// Package sqldb implementa los adapters MySQL y SQLite sobre database/sql.
//
// Ambos motores comparten las queries (placeholders "?") y el esquema: los
// timestamps de users, clients y codes se guardan como epoch en milisegundos
// y las listas (redirect URIs, scopes) separadas por espacio.
//
// Drivers:
//   - mysql: github.com/go-sql-driver/mysql, DSN user:pass@tcp(host:3306)/db
//   - sqlite: modernc.org/sqlite (sin cgo), DSN file:clinic.db o file::memory:
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/pressly/goose/v3/database"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/dropDatabas3/clinicauth/internal/domain/repository"
	"github.com/dropDatabas3/clinicauth/internal/store"
)

func init() {
	store.RegisterAdapter(&sqlAdapter{d: mysqlDialect})
	store.RegisterAdapter(&sqlAdapter{d: sqliteDialect})
}

// dialect agrupa lo que cambia entre motores.
type dialect struct {
	name     string
	driver   string
	goose    database.Dialect
	isUnique func(error) bool
	// maxConns fija el pool; sqlite serializa escrituras con una sola conexión.
	maxConns int
}

var mysqlDialect = dialect{
	name:   "mysql",
	driver: "mysql",
	goose:  database.DialectMySQL,
	isUnique: func(err error) bool {
		var me *mysql.MySQLError
		return errors.As(err, &me) && me.Number == 1062 // ER_DUP_ENTRY
	},
}

var sqliteDialect = dialect{
	name:   "sqlite",
	driver: "sqlite",
	goose:  database.DialectSQLite3,
	isUnique: func(err error) bool {
		var se *sqlite.Error
		if !errors.As(err, &se) {
			return false
		}
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	},
	maxConns: 1,
}

type sqlAdapter struct{ d dialect }

func (a *sqlAdapter) Name() string { return a.d.name }

func (a *sqlAdapter) Connect(ctx context.Context, cfg store.AdapterConfig) (store.AdapterConnection, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("%s: dsn requerido", a.d.name)
	}
	db, err := sql.Open(a.d.driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", a.d.name, err)
	}

	switch {
	case a.d.maxConns > 0:
		db.SetMaxOpenConns(a.d.maxConns)
	case cfg.MaxOpenConns > 0:
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	default:
		db.SetMaxOpenConns(10)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	} else {
		db.SetMaxIdleConns(2)
	}
	if a.d.maxConns == 0 {
		db.SetConnMaxLifetime(30 * time.Minute)
		db.SetConnMaxIdleTime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: ping failed: %w", a.d.name, err)
	}
	return Open(db, a.d.name)
}

// Open envuelve un *sql.DB ya abierto. dialectName: "mysql" | "sqlite".
func Open(db *sql.DB, dialectName string) (*Conn, error) {
	switch dialectName {
	case mysqlDialect.name:
		return &Conn{db: db, d: mysqlDialect}, nil
	case sqliteDialect.name:
		return &Conn{db: db, d: sqliteDialect}, nil
	default:
		return nil, fmt.Errorf("sqldb: dialect %q no soportado", dialectName)
	}
}

// Conn es una conexión activa. Implementa store.AdapterConnection y
// store.MigratableConnection.
type Conn struct {
	db *sql.DB
	d  dialect
}

func (c *Conn) Name() string                   { return c.d.name }
func (c *Conn) Ping(ctx context.Context) error { return c.db.PingContext(ctx) }
func (c *Conn) Close() error                   { return c.db.Close() }

func (c *Conn) MigrationDB() (*sql.DB, database.Dialect) { return c.db, c.d.goose }

func (c *Conn) Clients() repository.ClientRepository { return &clientRepo{db: c.db, d: c.d} }
func (c *Conn) Users() repository.UserRepository     { return &userRepo{db: c.db, d: c.d} }
func (c *Conn) Codes() repository.CodeRepository     { return &codeRepo{db: c.db, d: c.d} }
func (c *Conn) Tokens() repository.TokenRepository   { return &tokenRepo{db: c.db, d: c.d} }

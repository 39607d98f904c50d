// Package store provee el registry de adaptadores de persistencia y el
// wrapper que aplica timeouts y reintentos a cada llamada.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/pressly/goose/v3/database"

	"github.com/dropDatabas3/clinicauth/internal/domain/repository"
)

// Adapter representa un backend capaz de abrir conexiones.
type Adapter interface {
	// Name retorna el nombre del driver (ej: "memory", "postgres", "mysql", "sqlite").
	Name() string

	// Connect establece conexión con el almacenamiento.
	Connect(ctx context.Context, cfg AdapterConfig) (AdapterConnection, error)
}

// AdapterConnection representa una conexión activa con sus repositorios.
type AdapterConnection interface {
	Name() string
	Ping(ctx context.Context) error
	Close() error

	Clients() repository.ClientRepository
	Users() repository.UserRepository
	Codes() repository.CodeRepository
	Tokens() repository.TokenRepository
}

// MigratableConnection la implementan las conexiones SQL. Expone un *sql.DB
// y el dialecto goose para correr las migraciones embebidas.
type MigratableConnection interface {
	MigrationDB() (*sql.DB, database.Dialect)
}

// AdapterConfig configuración para conectar a un almacenamiento.
type AdapterConfig struct {
	// Name del adapter: "memory", "postgres", "mysql", "sqlite"
	Name string

	// DSN connection string (para DBs)
	DSN string

	MaxOpenConns int
	MaxIdleConns int
}

// ─── Registry ───

// ErrUnknownAdapter: storage.driver no corresponde a ningún adapter importado.
var ErrUnknownAdapter = errors.New("store: unknown adapter")

var (
	registryMu sync.RWMutex
	adapters   = map[string]Adapter{}
)

// RegisterAdapter se llama desde el init() de cada adapter; un nombre
// repetido es un error de programación y hace panic.
func RegisterAdapter(a Adapter) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := adapters[a.Name()]; dup {
		panic(fmt.Sprintf("store: adapter %q registered twice", a.Name()))
	}
	adapters[a.Name()] = a
}

func GetAdapter(name string) (Adapter, bool) {
	registryMu.RLock()
	a, ok := adapters[name]
	registryMu.RUnlock()
	return a, ok
}

// ListAdapters retorna los drivers disponibles, ordenados.
func ListAdapters() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return slices.Sorted(maps.Keys(adapters))
}

// OpenAdapter conecta con el driver cfg.Name.
func OpenAdapter(ctx context.Context, cfg AdapterConfig) (AdapterConnection, error) {
	a, ok := GetAdapter(cfg.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownAdapter, cfg.Name, strings.Join(ListAdapters(), ", "))
	}
	conn, err := a.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: connect %s: %w", cfg.Name, err)
	}
	return conn, nil
}

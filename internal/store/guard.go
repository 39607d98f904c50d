package store

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/dropDatabas3/clinicauth/internal/domain/repository"
	"github.com/dropDatabas3/clinicauth/internal/observability/logger"
)

// GuardConfig controla timeout y reintentos de cada llamada al store.
type GuardConfig struct {
	// Timeout por intento. Default 3s.
	Timeout time.Duration
	// ReadTries es el total de intentos de una lectura (incluye el primero). Default 3.
	ReadTries int
	// InitialInterval del backoff exponencial entre lecturas. Default 50ms.
	InitialInterval time.Duration
}

// Guard envuelve una conexión: cada llamada corre con context.WithTimeout y
// las lecturas reintentan fallas transitorias con backoff exponencial acotado.
// Las escrituras (Create, Consume, DeleteExpired) nunca se reintentan.
type Guard struct {
	AdapterConnection
	cfg GuardConfig
}

// NewGuard aplica defaults y envuelve conn.
func NewGuard(conn AdapterConnection, cfg GuardConfig) *Guard {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.ReadTries < 1 {
		cfg.ReadTries = 3
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 50 * time.Millisecond
	}
	return &Guard{AdapterConnection: conn, cfg: cfg}
}

func (g *Guard) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()
	return g.AdapterConnection.Ping(ctx)
}

func (g *Guard) Clients() repository.ClientRepository {
	return &guardedClients{g: g, next: g.AdapterConnection.Clients()}
}
func (g *Guard) Users() repository.UserRepository {
	return &guardedUsers{g: g, next: g.AdapterConnection.Users()}
}
func (g *Guard) Codes() repository.CodeRepository {
	return &guardedCodes{g: g, next: g.AdapterConnection.Codes()}
}
func (g *Guard) Tokens() repository.TokenRepository {
	return &guardedTokens{g: g, next: g.AdapterConnection.Tokens()}
}

// WithCodes reemplaza el repositorio de codes (ej: redis) manteniendo el resto.
func (g *Guard) WithCodes(codes repository.CodeRepository) *Guard {
	return &Guard{AdapterConnection: &codesOverride{AdapterConnection: g.AdapterConnection, codes: codes}, cfg: g.cfg}
}

type codesOverride struct {
	AdapterConnection
	codes repository.CodeRepository
}

func (c *codesOverride) Codes() repository.CodeRepository { return c.codes }

// permanent: errores de dominio que no tiene sentido reintentar.
func permanent(err error) bool {
	return errors.Is(err, repository.ErrNotFound) ||
		errors.Is(err, repository.ErrConflict) ||
		errors.Is(err, repository.ErrInvalidInput) ||
		errors.Is(err, context.Canceled)
}

func read[T any](ctx context.Context, g *Guard, op string, fn func(context.Context) (T, error)) (T, error) {
	attempt := func() (T, error) {
		cctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
		v, err := fn(cctx)
		if err != nil && permanent(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = g.cfg.InitialInterval
	exp.MaxInterval = 20 * g.cfg.InitialInterval
	exp.Reset()

	return backoff.Retry(ctx, attempt,
		backoff.WithBackOff(exp),
		backoff.WithMaxTries(uint(g.cfg.ReadTries)), // #nosec G115 -- validado >= 1
		backoff.WithNotify(func(err error, d time.Duration) {
			logger.From(ctx).Warn("store read retry",
				logger.Layer("store"), logger.Op(op), zap.Duration("backoff", d), logger.Err(err))
		}),
	)
}

func write[T any](ctx context.Context, g *Guard, fn func(context.Context) (T, error)) (T, error) {
	cctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()
	return fn(cctx)
}

// ─── Repos envueltos ───

type guardedClients struct {
	g    *Guard
	next repository.ClientRepository
}

func (r *guardedClients) Get(ctx context.Context, clientID string) (*repository.Client, error) {
	return read(ctx, r.g, "clients.get", func(ctx context.Context) (*repository.Client, error) {
		return r.next.Get(ctx, clientID)
	})
}

func (r *guardedClients) List(ctx context.Context) ([]repository.Client, error) {
	return read(ctx, r.g, "clients.list", r.next.List)
}

func (r *guardedClients) Create(ctx context.Context, c repository.Client) error {
	_, err := write(ctx, r.g, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.next.Create(ctx, c)
	})
	return err
}

type guardedUsers struct {
	g    *Guard
	next repository.UserRepository
}

func (r *guardedUsers) GetByID(ctx context.Context, id int64) (*repository.User, error) {
	return read(ctx, r.g, "users.get", func(ctx context.Context) (*repository.User, error) {
		return r.next.GetByID(ctx, id)
	})
}

func (r *guardedUsers) Create(ctx context.Context, username, role string) (*repository.User, error) {
	return write(ctx, r.g, func(ctx context.Context) (*repository.User, error) {
		return r.next.Create(ctx, username, role)
	})
}

func (r *guardedUsers) List(ctx context.Context) ([]repository.User, error) {
	return read(ctx, r.g, "users.list", r.next.List)
}

type guardedCodes struct {
	g    *Guard
	next repository.CodeRepository
}

func (r *guardedCodes) Create(ctx context.Context, c repository.AuthorizationCode) error {
	_, err := write(ctx, r.g, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.next.Create(ctx, c)
	})
	return err
}

func (r *guardedCodes) Consume(ctx context.Context, in repository.ConsumeInput) (*repository.AuthorizationCode, error) {
	return write(ctx, r.g, func(ctx context.Context) (*repository.AuthorizationCode, error) {
		return r.next.Consume(ctx, in)
	})
}

func (r *guardedCodes) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return write(ctx, r.g, func(ctx context.Context) (int64, error) {
		return r.next.DeleteExpired(ctx, now)
	})
}

type guardedTokens struct {
	g    *Guard
	next repository.TokenRepository
}

func (r *guardedTokens) Create(ctx context.Context, t repository.Token) error {
	_, err := write(ctx, r.g, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.next.Create(ctx, t)
	})
	return err
}

func (r *guardedTokens) GetByAccessHash(ctx context.Context, hash string) (*repository.Token, error) {
	return read(ctx, r.g, "tokens.get_access", func(ctx context.Context) (*repository.Token, error) {
		return r.next.GetByAccessHash(ctx, hash)
	})
}

func (r *guardedTokens) GetByRefreshHash(ctx context.Context, hash string) (*repository.Token, error) {
	return read(ctx, r.g, "tokens.get_refresh", func(ctx context.Context) (*repository.Token, error) {
		return r.next.GetByRefreshHash(ctx, hash)
	})
}

func (r *guardedTokens) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return write(ctx, r.g, func(ctx context.Context) (int64, error) {
		return r.next.DeleteExpired(ctx, now)
	})
}

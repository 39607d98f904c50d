// Package app arma el servicio a partir de la config: store, vault,
// registries, engine, sweeper y el http.Handler.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/clinicauth/internal/config"
	healthctrl "github.com/dropDatabas3/clinicauth/internal/http/controllers/health"
	oauthctrl "github.com/dropDatabas3/clinicauth/internal/http/controllers/oauth"
	mw "github.com/dropDatabas3/clinicauth/internal/http/middlewares"
	"github.com/dropDatabas3/clinicauth/internal/http/router"
	"github.com/dropDatabas3/clinicauth/internal/oauth"
	"github.com/dropDatabas3/clinicauth/internal/observability/logger"
	"github.com/dropDatabas3/clinicauth/internal/rate"
	"github.com/dropDatabas3/clinicauth/internal/security/secretbox"
	"github.com/dropDatabas3/clinicauth/internal/store"
	_ "github.com/dropDatabas3/clinicauth/internal/store/adapters/dal"
	redisstore "github.com/dropDatabas3/clinicauth/internal/store/adapters/redis"
)

const sessionKeyLen = 32

// App es el servicio cableado.
type App struct {
	Config *config.Config

	Store   *store.Guard
	Vault   *secretbox.Vault
	Clients *oauth.ClientRegistry
	Codes   *oauth.CodeIssuer
	Tokens  *oauth.TokenStore
	Engine  *oauth.Engine
	Sweeper *oauth.Sweeper

	// Sessions firma y verifica sesiones aunque el authenticator activo sea
	// el estático.
	Sessions      *oauth.SessionAuthenticator
	Authenticator oauth.Authenticator

	Registry *prometheus.Registry
	metrics  *oauth.Metrics

	conn  store.AdapterConnection
	redis *goredis.Client
}

// Options ajustes que no vienen de la config.
type Options struct {
	// Redis permite inyectar un cliente ya creado (tests con miniredis).
	Redis *goredis.Client
	// SkipMigrate ignora storage.migrate (el comando migrate lo maneja aparte).
	SkipMigrate bool
	// Authenticator reemplaza al que elegiría la config.
	Authenticator oauth.Authenticator
}

// New abre conexiones y construye los componentes. Si la master key falta o
// es inválida retorna un *secretbox.ConfigError sin abrir nada.
func New(ctx context.Context, cfg *config.Config, opts Options) (_ *App, err error) {
	log := logger.From(ctx).With(logger.Component("app"))

	vault, sessionKey, err := buildKeys(cfg)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Vault: vault}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.conn, err = store.OpenAdapter(ctx, store.AdapterConfig{
		Name:         cfg.Storage.Driver,
		DSN:          cfg.Storage.DSN,
		MaxOpenConns: cfg.Storage.MaxOpenConns,
		MaxIdleConns: cfg.Storage.MaxIdleConns,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if cfg.Storage.Migrate && !opts.SkipMigrate {
		res, err := store.Migrate(ctx, a.conn)
		if err != nil {
			return nil, err
		}
		log.Info("migrations applied", logger.Int64("count", int64(len(res.Applied))))
	}

	a.Store = store.NewGuard(a.conn, store.GuardConfig{
		Timeout:   cfg.Storage.Timeout,
		ReadTries: cfg.Storage.ReadRetries,
	})

	if needsRedis(cfg) {
		a.redis = opts.Redis
		if a.redis == nil {
			a.redis, err = redisstore.NewClient(ctx, redisstore.Options{
				Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB,
			})
			if err != nil {
				return nil, err
			}
		}
	}
	if cfg.Codes.Driver == "redis" {
		a.Store = a.Store.WithCodes(redisstore.NewCodeStore(a.redis, cfg.Redis.Prefix))
	}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if a.metrics, err = oauth.NewMetrics(a.Registry); err != nil {
		return nil, err
	}

	a.Clients = oauth.NewClientRegistry(a.Store.Clients(), vault, cfg.OAuth.ClientCache)
	a.Codes = oauth.NewCodeIssuer(a.Store.Codes(), cfg.OAuth.CodeTTL, nil)
	a.Tokens = oauth.NewTokenStore(a.Store.Tokens(), cfg.OAuth.RefreshTTL, nil)
	a.Engine = oauth.NewEngine(oauth.EngineDeps{
		Clients:      a.Clients,
		Codes:        a.Codes,
		Tokens:       a.Tokens,
		Metrics:      a.metrics,
		AccessTTL:    cfg.OAuth.AccessTTL,
		IssueRefresh: cfg.OAuth.IssueRefresh,
	})
	a.Sweeper = oauth.NewSweeper(a.Codes, a.Tokens, cfg.OAuth.SweepInterval, a.metrics)

	a.Sessions = oauth.NewSessionAuthenticator(sessionKey, cfg.Auth.SessionCookie, a.Store.Users())
	a.Authenticator = a.Sessions
	if cfg.Auth.StaticUserID > 0 {
		if cfg.IsProd() {
			return nil, errors.New("auth.static_user_id is not allowed in prod")
		}
		u, err := a.Store.Users().GetByID(ctx, cfg.Auth.StaticUserID)
		if err != nil {
			return nil, fmt.Errorf("static user %d: %w", cfg.Auth.StaticUserID, err)
		}
		a.Authenticator = oauth.StaticAuthenticator{Identity: oauth.Identity{UserID: u.ID, Username: u.Username, Role: u.Role}}
		log.Warn("static authenticator enabled", logger.UserID(u.ID))
	}
	if opts.Authenticator != nil {
		a.Authenticator = opts.Authenticator
	}
	return a, nil
}

func needsRedis(cfg *config.Config) bool {
	return cfg.Codes.Driver == "redis" || (cfg.Rate.Enabled && cfg.Rate.Driver == "redis")
}

// buildKeys valida la master key y obtiene la key de sesión (configurada o
// derivada con HKDF).
func buildKeys(cfg *config.Config) (*secretbox.Vault, []byte, error) {
	master, err := secretbox.ParseKey(cfg.Security.SecretboxMasterKey)
	if err != nil {
		return nil, nil, err
	}
	vault, err := secretbox.NewVault(master)
	if err != nil {
		return nil, nil, err
	}
	if k := cfg.Security.SessionSigningKey; k != "" {
		if len(k) < sessionKeyLen {
			return nil, nil, &secretbox.ConfigError{Reason: fmt.Sprintf("session_signing_key debe tener al menos %d bytes", sessionKeyLen)}
		}
		return vault, []byte(k), nil
	}
	sk, err := secretbox.DeriveKey(master, "session", sessionKeyLen)
	if err != nil {
		return nil, nil, err
	}
	return vault, sk, nil
}

// Handler arma el router con rate limit y métricas según la config.
func (a *App) Handler() (http.Handler, error) {
	cfg := a.Config
	deps := router.Deps{
		BasePath: cfg.Server.BasePath,
		OAuth: oauthctrl.NewControllers(oauthctrl.ControllerDeps{
			Engine:        a.Engine,
			Authenticator: a.Authenticator,
			IntrospectAuth: oauthctrl.BasicCredentials{
				User:     cfg.Auth.IntrospectUser,
				Password: cfg.Auth.IntrospectPassword,
			},
		}),
		Health: healthctrl.NewHealthController(a.Store, cfg.Storage.Timeout),
	}
	if cfg.Rate.Enabled {
		l, err := rate.New(cfg.Rate.Driver, a.redis, cfg.Redis.Prefix+"rl:", cfg.Rate.Limit, cfg.Rate.Window)
		if err != nil {
			return nil, err
		}
		deps.Limiter = l
	}
	if cfg.Metrics.Enabled {
		m, err := mw.NewHTTPMetrics(a.Registry)
		if err != nil {
			return nil, err
		}
		deps.HTTPMetrics = m
		deps.MetricsHandler = promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{})
	}
	return router.New(deps), nil
}

// Close libera redis y el store. Es seguro llamarlo con un App a medio armar.
func (a *App) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.conn != nil {
		errs = append(errs, a.conn.Close())
	}
	return errors.Join(errs...)
}

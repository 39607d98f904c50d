package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env  string `yaml:"env"`
		Name string `yaml:"name"`
	} `yaml:"app"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Server struct {
		Addr string `yaml:"addr"`
		// BasePath prefija /authorize, /token e /introspect. "/oauth" replica
		// las rutas del sistema anterior.
		BasePath        string        `yaml:"base_path"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Storage struct {
		// memory | postgres | mysql | sqlite
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`

		MaxOpenConns int           `yaml:"max_open_conns"`
		MaxIdleConns int           `yaml:"max_idle_conns"`
		Timeout      time.Duration `yaml:"timeout"`
		ReadRetries  int           `yaml:"read_retries"`
		// Migrate corre las migraciones embebidas al arrancar serve.
		Migrate bool `yaml:"migrate"`
	} `yaml:"storage"`

	Codes struct {
		// store (mismo backend que storage) | redis
		Driver string `yaml:"driver"`
	} `yaml:"codes"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`

	OAuth struct {
		CodeTTL       time.Duration `yaml:"code_ttl"`
		AccessTTL     time.Duration `yaml:"access_ttl"`
		RefreshTTL    time.Duration `yaml:"refresh_ttl"`
		IssueRefresh  bool          `yaml:"issue_refresh"`
		SweepInterval time.Duration `yaml:"sweep_interval"`
		ClientCache   time.Duration `yaml:"client_cache_ttl"`
	} `yaml:"oauth"`

	Security struct {
		// Preferir SECRETBOX_MASTER_KEY por env; nunca commitear la key.
		SecretboxMasterKey string `yaml:"secretbox_master_key"`
		// Si está vacío se deriva del master key (HKDF, purpose "session").
		SessionSigningKey string `yaml:"session_signing_key"`
	} `yaml:"security"`

	Auth struct {
		SessionCookie      string `yaml:"session_cookie"`
		IntrospectUser     string `yaml:"introspect_basic_user"`
		IntrospectPassword string `yaml:"introspect_basic_pass"`
		// Solo dev/test: toda request autoriza como este usuario.
		StaticUserID int64 `yaml:"static_user_id"`
	} `yaml:"auth"`

	Rate struct {
		Enabled bool `yaml:"enabled"`
		// memory | redis
		Driver string        `yaml:"driver"`
		Limit  int           `yaml:"limit"`
		Window time.Duration `yaml:"window"`
	} `yaml:"rate"`

	Metrics struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"metrics"`
}

// Default retorna la config base; Load la pisa con YAML y luego env.
func Default() *Config {
	c := &Config{}
	c.App.Env = "dev"
	c.App.Name = "clinicauth"
	c.Log.Level = "info"

	c.Server.Addr = ":8080"
	c.Server.ReadTimeout = 10 * time.Second
	c.Server.WriteTimeout = 15 * time.Second
	c.Server.ShutdownTimeout = 10 * time.Second

	c.Storage.Driver = "memory"
	c.Storage.MaxOpenConns = 10
	c.Storage.MaxIdleConns = 5
	c.Storage.Timeout = 3 * time.Second
	c.Storage.ReadRetries = 3

	c.Codes.Driver = "store"
	c.Redis.Addr = "localhost:6379"
	c.Redis.Prefix = "clinicauth:"

	c.OAuth.CodeTTL = 10 * time.Minute
	c.OAuth.AccessTTL = time.Hour
	c.OAuth.RefreshTTL = 720 * time.Hour
	c.OAuth.IssueRefresh = true
	c.OAuth.SweepInterval = 5 * time.Minute
	c.OAuth.ClientCache = 30 * time.Second

	c.Auth.SessionCookie = "clinicauth_session"

	c.Rate.Driver = "memory"
	c.Rate.Limit = 60
	c.Rate.Window = time.Minute

	c.Metrics.Enabled = true
	return c
}

// Load lee el YAML (si path no está vacío), aplica env y valida.
// Un path inexistente no es error: se sigue con defaults + env.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(filepath.Clean(path))
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, c); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	c.applyEnvOverrides()
	c.normalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) IsProd() bool { return c.App.Env == "prod" }

func (c *Config) normalize() {
	c.App.Env = strings.ToLower(strings.TrimSpace(c.App.Env))
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	c.Codes.Driver = strings.ToLower(strings.TrimSpace(c.Codes.Driver))
	c.Rate.Driver = strings.ToLower(strings.TrimSpace(c.Rate.Driver))
	bp := strings.TrimRight(strings.TrimSpace(c.Server.BasePath), "/")
	if bp != "" && !strings.HasPrefix(bp, "/") {
		bp = "/" + bp
	}
	c.Server.BasePath = bp
}

// Validate revisa coherencia. La master key se valida al construir el vault
// (secretbox.LoadVault) para que el error sea un ConfigError tipado.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case "memory":
	case "postgres", "mysql", "sqlite":
		if c.Storage.DSN == "" {
			errs = append(errs, fmt.Errorf("storage.dsn is required for driver %q", c.Storage.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q not supported", c.Storage.Driver))
	}
	switch c.Codes.Driver {
	case "store", "redis":
	default:
		errs = append(errs, fmt.Errorf("codes.driver %q not supported", c.Codes.Driver))
	}
	if c.Rate.Enabled {
		if c.Rate.Driver != "memory" && c.Rate.Driver != "redis" {
			errs = append(errs, fmt.Errorf("rate.driver %q not supported", c.Rate.Driver))
		}
		if c.Rate.Limit <= 0 || c.Rate.Window <= 0 {
			errs = append(errs, errors.New("rate.limit and rate.window must be positive"))
		}
	}
	if c.OAuth.CodeTTL < time.Second || c.OAuth.AccessTTL < time.Second {
		errs = append(errs, errors.New("oauth.code_ttl and oauth.access_ttl must be at least 1s"))
	}
	if c.OAuth.IssueRefresh && c.OAuth.RefreshTTL < time.Second {
		errs = append(errs, errors.New("oauth.refresh_ttl must be at least 1s when issue_refresh is on"))
	}
	if c.Storage.Timeout <= 0 {
		errs = append(errs, errors.New("storage.timeout must be positive"))
	}
	if c.Storage.ReadRetries < 1 {
		errs = append(errs, errors.New("storage.read_retries must be >= 1"))
	}
	if c.IsProd() && c.Auth.StaticUserID != 0 {
		errs = append(errs, errors.New("auth.static_user_id is not allowed in prod"))
	}
	if (c.Auth.IntrospectUser == "") != (c.Auth.IntrospectPassword == "") {
		errs = append(errs, errors.New("auth.introspect_basic_user and _pass must be set together"))
	}
	return errors.Join(errs...)
}

// ─── env helpers ───

func getEnvStr(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	return v, ok
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return n, true
		}
	}
	return 0, false
}
func getEnvInt64(key string) (int64, bool) {
	if s, ok := getEnvStr(key); ok {
		if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}

// applyEnvOverrides: el entorno pisa al YAML.
func (c *Config) applyEnvOverrides() {
	// APP / LOG
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = v
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("SERVER_BASE_PATH"); ok {
		c.Server.BasePath = v
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvInt("STORAGE_MAX_OPEN_CONNS"); ok {
		c.Storage.MaxOpenConns = v
	}
	if v, ok := getEnvInt("STORAGE_MAX_IDLE_CONNS"); ok {
		c.Storage.MaxIdleConns = v
	}
	if v, ok := getEnvDur("STORAGE_TIMEOUT"); ok {
		c.Storage.Timeout = v
	}
	if v, ok := getEnvInt("STORAGE_READ_RETRIES"); ok {
		c.Storage.ReadRetries = v
	}
	if v, ok := getEnvBool("STORAGE_MIGRATE"); ok {
		c.Storage.Migrate = v
	}

	// CODES / REDIS
	if v, ok := getEnvStr("CODES_DRIVER"); ok {
		c.Codes.Driver = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Redis.Prefix = v
	}

	// OAUTH
	if v, ok := getEnvDur("OAUTH_CODE_TTL"); ok {
		c.OAuth.CodeTTL = v
	}
	if v, ok := getEnvDur("OAUTH_ACCESS_TTL"); ok {
		c.OAuth.AccessTTL = v
	}
	if v, ok := getEnvDur("OAUTH_REFRESH_TTL"); ok {
		c.OAuth.RefreshTTL = v
	}
	if v, ok := getEnvBool("OAUTH_ISSUE_REFRESH"); ok {
		c.OAuth.IssueRefresh = v
	}
	if v, ok := getEnvDur("OAUTH_SWEEP_INTERVAL"); ok {
		c.OAuth.SweepInterval = v
	}

	// SECURITY
	if v, ok := getEnvStr("SECRETBOX_MASTER_KEY"); ok {
		c.Security.SecretboxMasterKey = v
	}
	if v, ok := getEnvStr("SESSION_SIGNING_KEY"); ok {
		c.Security.SessionSigningKey = v
	}

	// AUTH
	if v, ok := getEnvStr("AUTH_SESSION_COOKIE"); ok {
		c.Auth.SessionCookie = v
	}
	if v, ok := getEnvStr("INTROSPECT_BASIC_USER"); ok {
		c.Auth.IntrospectUser = v
	}
	if v, ok := getEnvStr("INTROSPECT_BASIC_PASS"); ok {
		c.Auth.IntrospectPassword = v
	}
	if v, ok := getEnvInt64("AUTH_STATIC_USER_ID"); ok {
		c.Auth.StaticUserID = v
	}

	// RATE
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvStr("RATE_DRIVER"); ok {
		c.Rate.Driver = v
	}
	if v, ok := getEnvInt("RATE_LIMIT"); ok {
		c.Rate.Limit = v
	}
	if v, ok := getEnvDur("RATE_WINDOW"); ok {
		c.Rate.Window = v
	}

	// METRICS
	if v, ok := getEnvBool("METRICS_ENABLED"); ok {
		c.Metrics.Enabled = v
	}
}

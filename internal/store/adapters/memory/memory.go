// Package memory implementa un adapter en memoria para desarrollo y tests.
//
// Clients y users viven en maps. Codes y tokens viven en go-cache con una
// expiración algo mayor que la del registro, así el janitor libera memoria
// aunque nadie corra el sweeper. La validez nunca depende de go-cache: se
// decide con los timestamps del registro.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/dropDatabas3/clinicauth/internal/domain/repository"
	"github.com/dropDatabas3/clinicauth/internal/store"
)

// retention es lo que un registro vencido sigue visible antes de que el
// janitor lo borre.
const retention = time.Minute

func init() {
	store.RegisterAdapter(&memoryAdapter{})
}

type memoryAdapter struct{}

func (a *memoryAdapter) Name() string { return "memory" }

func (a *memoryAdapter) Connect(_ context.Context, _ store.AdapterConfig) (store.AdapterConnection, error) {
	return New(), nil
}

// Conn es una conexión en memoria. Se exporta para tests de otros paquetes.
type Conn struct {
	clients *clientRepo
	users   *userRepo
	codes   *codeRepo
	tokens  *tokenRepo
}

// New crea un store vacío.
func New() *Conn {
	return &Conn{
		clients: &clientRepo{m: map[string]repository.Client{}},
		users:   &userRepo{byID: map[int64]repository.User{}},
		codes:   &codeRepo{c: gocache.New(gocache.NoExpiration, time.Minute)},
		tokens: &tokenRepo{
			byAccess:  gocache.New(gocache.NoExpiration, time.Minute),
			byRefresh: gocache.New(gocache.NoExpiration, time.Minute),
		},
	}
}

func (c *Conn) Name() string                         { return "memory" }
func (c *Conn) Ping(context.Context) error           { return nil }
func (c *Conn) Close() error                         { return nil }
func (c *Conn) Clients() repository.ClientRepository { return c.clients }
func (c *Conn) Users() repository.UserRepository     { return c.users }
func (c *Conn) Codes() repository.CodeRepository     { return c.codes }
func (c *Conn) Tokens() repository.TokenRepository   { return c.tokens }

// ttlUntil calcula la expiración go-cache para un registro que vence en exp.
func ttlUntil(exp time.Time) time.Duration {
	d := time.Until(exp) + retention
	if d < retention {
		return retention
	}
	return d
}

// ─── Clients ───

type clientRepo struct {
	mu sync.RWMutex
	m  map[string]repository.Client
}

func cloneClient(c repository.Client) *repository.Client {
	c.RedirectURIs = append([]string(nil), c.RedirectURIs...)
	c.Scopes = append([]string(nil), c.Scopes...)
	return &c
}

func (r *clientRepo) Get(_ context.Context, clientID string) (*repository.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.m[clientID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneClient(c), nil
}

func (r *clientRepo) List(context.Context) ([]repository.Client, error) {
	r.mu.RLock()
	out := make([]repository.Client, 0, len(r.m))
	for _, c := range r.m {
		out = append(out, *cloneClient(c))
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })
	return out, nil
}

func (r *clientRepo) Create(_ context.Context, c repository.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.m[c.ClientID]; exists {
		return repository.ErrConflict
	}
	r.m[c.ClientID] = *cloneClient(c)
	return nil
}

// ─── Users ───

type userRepo struct {
	mu     sync.RWMutex
	byID   map[int64]repository.User
	nextID int64
}

func (r *userRepo) GetByID(_ context.Context, id int64) (*repository.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *userRepo) Create(_ context.Context, username, role string) (*repository.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, repository.ErrInvalidInput
	}
	if role == "" {
		role = repository.DefaultRole
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Username == username {
			return nil, repository.ErrConflict
		}
	}
	r.nextID++
	u := repository.User{ID: r.nextID, Username: username, Role: role, CreatedAt: time.Now().UTC()}
	r.byID[u.ID] = u
	return &u, nil
}

func (r *userRepo) List(context.Context) ([]repository.User, error) {
	r.mu.RLock()
	out := make([]repository.User, 0, len(r.byID))
	for _, u := range r.byID {
		out = append(out, u)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ─── Codes ───

type codeRepo struct {
	// mu serializa el check-and-set de Consume.
	mu sync.Mutex
	c  *gocache.Cache
}

func (r *codeRepo) Create(_ context.Context, code repository.AuthorizationCode) error {
	code.Scope = append([]string(nil), code.Scope...)
	if err := r.c.Add(code.CodeHash, &code, ttlUntil(code.ExpiresAt)); err != nil {
		return repository.ErrConflict
	}
	return nil
}

func (r *codeRepo) Consume(_ context.Context, in repository.ConsumeInput) (*repository.AuthorizationCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.c.Get(in.CodeHash)
	if !ok {
		return nil, repository.ErrNotFound
	}
	code := v.(*repository.AuthorizationCode)
	if code.ConsumedAt != nil ||
		code.ClientID != in.ClientID ||
		code.RedirectURI != in.RedirectURI ||
		!in.Now.Before(code.ExpiresAt) {
		return nil, repository.ErrNotFound
	}
	now := in.Now
	code.ConsumedAt = &now

	out := *code
	out.Scope = append([]string(nil), code.Scope...)
	return &out, nil
}

func (r *codeRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, it := range r.c.Items() {
		code := it.Object.(*repository.AuthorizationCode)
		if code.ConsumedAt != nil || !now.Before(code.ExpiresAt) {
			r.c.Delete(k)
			n++
		}
	}
	return n, nil
}

// ─── Tokens ───

type tokenRepo struct {
	mu        sync.Mutex
	byAccess  *gocache.Cache
	byRefresh *gocache.Cache
}

func tokenExpiry(t *repository.Token) time.Time {
	exp := t.ExpiresAt
	if t.RefreshExpiresAt > exp {
		exp = t.RefreshExpiresAt
	}
	return time.Unix(exp, 0)
}

func (r *tokenRepo) Create(_ context.Context, t repository.Token) error {
	t.Scope = append([]string(nil), t.Scope...)
	ttl := ttlUntil(tokenExpiry(&t))

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byAccess.Get(t.AccessHash); dup {
		return repository.ErrConflict
	}
	if t.RefreshHash != "" {
		if _, dup := r.byRefresh.Get(t.RefreshHash); dup {
			return repository.ErrConflict
		}
		r.byRefresh.Set(t.RefreshHash, &t, ttl)
	}
	r.byAccess.Set(t.AccessHash, &t, ttl)
	return nil
}

func getToken(c *gocache.Cache, hash string) (*repository.Token, error) {
	v, ok := c.Get(hash)
	if !ok {
		return nil, repository.ErrNotFound
	}
	t := *v.(*repository.Token)
	t.Scope = append([]string(nil), t.Scope...)
	return &t, nil
}

func (r *tokenRepo) GetByAccessHash(_ context.Context, hash string) (*repository.Token, error) {
	return getToken(r.byAccess, hash)
}

func (r *tokenRepo) GetByRefreshHash(_ context.Context, hash string) (*repository.Token, error) {
	return getToken(r.byRefresh, hash)
}

func (r *tokenRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, it := range r.byAccess.Items() {
		t := it.Object.(*repository.Token)
		if !now.Before(tokenExpiry(t)) {
			r.byAccess.Delete(k)
			if t.RefreshHash != "" {
				r.byRefresh.Delete(t.RefreshHash)
			}
			n++
		}
	}
	return n, nil
}

package oauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/clinicauth/internal/domain/repository"
	"github.com/dropDatabas3/clinicauth/internal/security/secretbox"
	tokens "github.com/dropDatabas3/clinicauth/internal/security/token"
	"github.com/dropDatabas3/clinicauth/internal/validation"
)

// ClientRegistry resuelve clientes y verifica sus secretos.
type ClientRegistry struct {
	repo  repository.ClientRepository
	vault *secretbox.Vault

	// cache es opcional (nil si cacheTTL == 0). Solo guarda hits.
	cache *gocache.Cache
	sf    singleflight.Group
	now   func() time.Time
}

// NewClientRegistry crea el registry. cacheTTL > 0 habilita un cache de
// lectura; los registros nuevos se ven tras expirar la entrada.
func NewClientRegistry(repo repository.ClientRepository, vault *secretbox.Vault, cacheTTL time.Duration) *ClientRegistry {
	r := &ClientRegistry{repo: repo, vault: vault, now: time.Now}
	if cacheTTL > 0 {
		r.cache = gocache.New(cacheTTL, 2*cacheTTL)
	}
	return r
}

func copyClient(c *repository.Client) *repository.Client {
	cp := *c
	cp.RedirectURIs = append([]string(nil), c.RedirectURIs...)
	cp.Scopes = append([]string(nil), c.Scopes...)
	return &cp
}

// FindByClientID retorna repository.ErrNotFound si el client no existe.
// Lookups concurrentes del mismo id comparten una sola lectura al store, que
// no se cancela si el primer caller abandona.
func (r *ClientRegistry) FindByClientID(ctx context.Context, clientID string) (*repository.Client, error) {
	if clientID == "" {
		return nil, repository.ErrNotFound
	}
	if r.cache != nil {
		if v, ok := r.cache.Get(clientID); ok {
			return copyClient(v.(*repository.Client)), nil
		}
	}

	// La lectura compartida no depende de la cancelación de quien llegó
	// primero; el timeout por llamada lo aplica el Guard.
	shared := context.WithoutCancel(ctx)
	v, err, _ := r.sf.Do(clientID, func() (any, error) {
		c, err := r.repo.Get(shared, clientID)
		if err != nil {
			return nil, err
		}
		if r.cache != nil {
			r.cache.SetDefault(clientID, c)
		}
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return copyClient(v.(*repository.Client)), nil
}

// VerifySecret descifra el secreto guardado y lo compara en tiempo constante.
// Un ciphertext alterado retorna error (envuelve secretbox.ErrIntegrity);
// quien llama lo trata como autenticación fallida.
func (r *ClientRegistry) VerifySecret(c *repository.Client, supplied string) (bool, error) {
	if c == nil || c.SecretEnc == "" {
		return false, nil
	}
	plain, err := r.vault.Decrypt(c.SecretEnc)
	if err != nil {
		return false, err
	}
	return tokens.Equal(plain, supplied), nil
}

// RegisterInput datos de alta de un client. Secret vacío => se genera uno.
type RegisterInput struct {
	ClientID     string
	Name         string
	Secret       string
	RedirectURIs []string
	Scopes       []string
}

// Register valida, cifra el secreto y persiste el client. Retorna el secreto
// en claro una única vez (útil cuando fue generado).
func (r *ClientRegistry) Register(ctx context.Context, in RegisterInput) (*repository.Client, string, error) {
	in.ClientID = strings.TrimSpace(in.ClientID)
	if !validation.ValidClientID(in.ClientID) {
		return nil, "", fmt.Errorf("%w: client_id", repository.ErrInvalidInput)
	}
	if len(in.RedirectURIs) == 0 {
		return nil, "", fmt.Errorf("%w: at least one redirect_uri", repository.ErrInvalidInput)
	}
	for _, u := range in.RedirectURIs {
		if !validation.ValidRedirectURI(u) {
			return nil, "", fmt.Errorf("%w: redirect_uri %q", repository.ErrInvalidInput, u)
		}
	}
	scopes := validation.ParseScope(validation.JoinScope(in.Scopes))
	for _, s := range scopes {
		if !validation.ValidScopeName(s) {
			return nil, "", fmt.Errorf("%w: scope %q", repository.ErrInvalidInput, s)
		}
	}

	secret := in.Secret
	if secret == "" {
		gen, err := tokens.Generate(tokens.DefaultBytes)
		if err != nil {
			return nil, "", fmt.Errorf("generate secret: %w", err)
		}
		secret = gen
	}
	enc, err := r.vault.Encrypt(secret)
	if err != nil {
		return nil, "", fmt.Errorf("encrypt secret: %w", err)
	}

	c := repository.Client{
		ClientID:     in.ClientID,
		Name:         strings.TrimSpace(in.Name),
		SecretEnc:    enc,
		RedirectURIs: append([]string(nil), in.RedirectURIs...),
		Scopes:       scopes,
		CreatedAt:    r.now().UTC(),
	}
	if err := r.repo.Create(ctx, c); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, "", err
		}
		return nil, "", fmt.Errorf("create client: %w", err)
	}
	return &c, secret, nil
}

// List retorna todos los clients (CLI).
func (r *ClientRegistry) List(ctx context.Context) ([]repository.Client, error) {
	return r.repo.List(ctx)
}

package oauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/clinicauth/internal/domain/repository"
	tokens "github.com/dropDatabas3/clinicauth/internal/security/token"
)

// DefaultCodeTTL es la ventana de canje de un authorization code.
const DefaultCodeTTL = 10 * time.Minute

// CodeIssuer emite y canjea authorization codes de un solo uso.
type CodeIssuer struct {
	repo repository.CodeRepository
	ttl  time.Duration
	now  func() time.Time
}

func NewCodeIssuer(repo repository.CodeRepository, ttl time.Duration, now func() time.Time) *CodeIssuer {
	if ttl <= 0 {
		ttl = DefaultCodeTTL
	}
	if now == nil {
		now = time.Now
	}
	return &CodeIssuer{repo: repo, ttl: ttl, now: now}
}

// Issue genera un code de 256 bits, guarda su hash y lo retorna en claro.
func (i *CodeIssuer) Issue(ctx context.Context, clientID string, userID int64, redirectURI string, scope []string) (string, error) {
	code, err := tokens.Generate(tokens.DefaultBytes)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	now := i.now().UTC()
	err = i.repo.Create(ctx, repository.AuthorizationCode{
		CodeHash:    tokens.Hash(code),
		ClientID:    clientID,
		UserID:      userID,
		Scope:       scope,
		RedirectURI: redirectURI,
		CreatedAt:   now,
		ExpiresAt:   now.Add(i.ttl),
	})
	if err != nil {
		return "", fmt.Errorf("store code: %w", err)
	}
	return code, nil
}

// Redeem canjea el code en un solo paso atómico (verificar + marcar usado).
// Inexistente, consumido, vencido o ligado a otro client/redirect: todos
// retornan ErrInvalidGrant sin distinción.
func (i *CodeIssuer) Redeem(ctx context.Context, code, clientID, redirectURI string) (*repository.AuthorizationCode, error) {
	if code == "" {
		return nil, ErrInvalidGrant
	}
	ac, err := i.repo.Consume(ctx, repository.ConsumeInput{
		CodeHash:    tokens.Hash(code),
		ClientID:    clientID,
		RedirectURI: redirectURI,
		Now:         i.now().UTC(),
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidGrant
	}
	if err != nil {
		return nil, fmt.Errorf("consume code: %w", err)
	}
	return ac, nil
}

// Sweep borra codes consumidos o vencidos.
func (i *CodeIssuer) Sweep(ctx context.Context) (int64, error) {
	return i.repo.DeleteExpired(ctx, i.now().UTC())
}

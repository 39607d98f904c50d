package oauth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/clinicauth/internal/domain/repository"
	tokens "github.com/dropDatabas3/clinicauth/internal/security/token"
)

const TokenTypeBearer = "Bearer"

// IssuedToken es lo que se entrega al cliente. Los valores en claro solo
// existen acá; el store guarda sus hashes.
type IssuedToken struct {
	AccessToken  string
	RefreshToken string // vacío si no se emitió
	ExpiresIn    int64
	Record       repository.Token
}

// TokenStore emite y resuelve access/refresh tokens opacos.
type TokenStore struct {
	repo       repository.TokenRepository
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenStore(repo repository.TokenRepository, refreshTTL time.Duration, now func() time.Time) *TokenStore {
	if now == nil {
		now = time.Now
	}
	return &TokenStore{repo: repo, refreshTTL: refreshTTL, now: now}
}

// Issue genera tokens independientes de 256 bits con ExpiresAt = now + ttl.
// withRefresh agrega un refresh token con la vida configurada en el store
// (refreshTTL 0 no emite refresh). Vidas menores a 1s son error.
func (s *TokenStore) Issue(ctx context.Context, clientID string, userID int64, scope []string, ttl time.Duration, withRefresh bool) (*IssuedToken, error) {
	secs := int64(ttl / time.Second)
	if secs <= 0 {
		return nil, fmt.Errorf("token ttl must be at least 1s")
	}
	refreshSecs := int64(s.refreshTTL / time.Second)
	if withRefresh && s.refreshTTL > 0 && refreshSecs <= 0 {
		return nil, fmt.Errorf("refresh ttl must be at least 1s")
	}
	access, err := tokens.Generate(tokens.DefaultBytes)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	now := s.now().Unix()
	rec := repository.Token{
		ID:         uuid.NewString(),
		AccessHash: tokens.Hash(access),
		ClientID:   clientID,
		UserID:     userID,
		Scope:      scope,
		IssuedAt:   now,
		ExpiresAt:  now + secs,
	}

	out := &IssuedToken{AccessToken: access, ExpiresIn: secs}
	if withRefresh && s.refreshTTL > 0 {
		refresh, err := tokens.Generate(tokens.DefaultBytes)
		if err != nil {
			return nil, fmt.Errorf("generate refresh token: %w", err)
		}
		rec.RefreshHash = tokens.Hash(refresh)
		rec.RefreshExpiresAt = now + refreshSecs
		out.RefreshToken = refresh
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("store token: %w", err)
	}
	out.Record = rec
	return out, nil
}

// LookupByAccessToken retorna repository.ErrNotFound si no existe.
// No valida expiración: eso es IsValid.
func (s *TokenStore) LookupByAccessToken(ctx context.Context, token string) (*repository.Token, error) {
	if token == "" {
		return nil, repository.ErrNotFound
	}
	return s.repo.GetByAccessHash(ctx, tokens.Hash(token))
}

// LookupByRefreshToken retorna repository.ErrNotFound si no existe.
func (s *TokenStore) LookupByRefreshToken(ctx context.Context, token string) (*repository.Token, error) {
	if token == "" {
		return nil, repository.ErrNotFound
	}
	return s.repo.GetByRefreshHash(ctx, tokens.Hash(token))
}

// IsValid: now < ExpiresAt, en segundos.
func (s *TokenStore) IsValid(t *repository.Token) bool {
	return t != nil && s.now().Unix() < t.ExpiresAt
}

// RefreshValid: el token tiene refresh y no venció.
func (s *TokenStore) RefreshValid(t *repository.Token) bool {
	return t != nil && t.RefreshHash != "" && s.now().Unix() < t.RefreshExpiresAt
}

// Sweep borra tokens con access y refresh vencidos.
func (s *TokenStore) Sweep(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.now())
}

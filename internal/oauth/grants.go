package oauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/clinicauth/internal/domain/repository"
	"github.com/dropDatabas3/clinicauth/internal/validation"
)

// GrantType es el valor de grant_type en /token.
type GrantType string

const (
	GrantAuthorizationCode GrantType = "authorization_code"
	GrantRefreshToken      GrantType = "refresh_token"
)

// TokenRequest son los parámetros de /token ya extraídos del form (y de
// Basic auth para las credenciales del cliente).
type TokenRequest struct {
	GrantType    string
	ClientID     string
	ClientSecret string
	Code         string
	RedirectURI  string
	RefreshToken string
	Scope        string
}

// Grant es una variante de grant_type. El conjunto es cerrado: solo los
// tipos de este paquete la implementan y el engine los registra por Type().
type Grant interface {
	Type() GrantType
	// Validate revisa parámetros requeridos; su error es ErrInvalidRequest.
	Validate(req TokenRequest) error
	// Exchange corre con el client ya autenticado.
	Exchange(ctx context.Context, client *repository.Client, req TokenRequest) (*IssuedToken, error)

	sealed()
}

// ─── authorization_code ───

type authorizationCodeGrant struct {
	codes        *CodeIssuer
	tokens       *TokenStore
	accessTTL    time.Duration
	issueRefresh bool
}

func (g *authorizationCodeGrant) Type() GrantType { return GrantAuthorizationCode }
func (g *authorizationCodeGrant) sealed()         {}

func (g *authorizationCodeGrant) Validate(req TokenRequest) error {
	if req.Code == "" || req.RedirectURI == "" {
		return ErrInvalidRequest
	}
	return nil
}

func (g *authorizationCodeGrant) Exchange(ctx context.Context, client *repository.Client, req TokenRequest) (*IssuedToken, error) {
	ac, err := g.codes.Redeem(ctx, req.Code, client.ClientID, req.RedirectURI)
	if err != nil {
		return nil, err
	}
	return g.tokens.Issue(ctx, client.ClientID, ac.UserID, ac.Scope, g.accessTTL, g.issueRefresh)
}

// ─── refresh_token (sin rotación) ───

type refreshTokenGrant struct {
	tokens    *TokenStore
	accessTTL time.Duration
}

func (g *refreshTokenGrant) Type() GrantType { return GrantRefreshToken }
func (g *refreshTokenGrant) sealed()         {}

func (g *refreshTokenGrant) Validate(req TokenRequest) error {
	if req.RefreshToken == "" {
		return ErrInvalidRequest
	}
	return nil
}

// Exchange emite un access token nuevo. El refresh token original sigue
// vigente hasta su propia expiración y no se emite uno nuevo.
func (g *refreshTokenGrant) Exchange(ctx context.Context, client *repository.Client, req TokenRequest) (*IssuedToken, error) {
	tok, err := g.tokens.LookupByRefreshToken(ctx, req.RefreshToken)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidGrant
	}
	if err != nil {
		return nil, fmt.Errorf("lookup refresh: %w", err)
	}
	if tok.ClientID != client.ClientID || !g.tokens.RefreshValid(tok) {
		return nil, ErrInvalidGrant
	}

	scope := tok.Scope
	if requested := validation.ParseScope(req.Scope); len(requested) > 0 {
		if !validation.IsSubset(requested, tok.Scope) {
			return nil, ErrInvalidScope
		}
		scope = requested
	}
	return g.tokens.Issue(ctx, client.ClientID, tok.UserID, scope, g.accessTTL, false)
}

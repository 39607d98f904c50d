// Package oauth implementa el ciclo de vida OAuth2 del servicio: emisión de
// authorization codes, canje por tokens (grants authorization_code y
// refresh_token) e introspección.
//
// Estados de una autorización:
//
//	Requested ──Authorize──▶ CodeIssued ──Exchange──▶ Redeemed
//	    │                        │
//	    └──▶ Denied              ├──▶ Expired (ventana vencida)
//	                             └──▶ Denied  (secret, code o redirect inválidos)
//
// Todas las fallas de canje son ErrInvalidGrant, sin distinguir la causa.
package oauth

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/dropDatabas3/clinicauth/internal/audit"
	"github.com/dropDatabas3/clinicauth/internal/domain/repository"
	"github.com/dropDatabas3/clinicauth/internal/observability/logger"
	"github.com/dropDatabas3/clinicauth/internal/validation"
)

// EngineDeps contiene las dependencias del GrantEngine.
type EngineDeps struct {
	Clients *ClientRegistry
	Codes   *CodeIssuer
	Tokens  *TokenStore
	Metrics *Metrics // opcional

	AccessTTL    time.Duration // default 1h
	IssueRefresh bool
}

// Engine es el GrantEngine.
type Engine struct {
	clients *ClientRegistry
	codes   *CodeIssuer
	tokens  *TokenStore
	metrics *Metrics
	grants  map[GrantType]Grant
}

func NewEngine(d EngineDeps) *Engine {
	ttl := d.AccessTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	e := &Engine{
		clients: d.Clients,
		codes:   d.Codes,
		tokens:  d.Tokens,
		metrics: d.Metrics,
		grants:  map[GrantType]Grant{},
	}
	for _, g := range []Grant{
		&authorizationCodeGrant{codes: d.Codes, tokens: d.Tokens, accessTTL: ttl, issueRefresh: d.IssueRefresh},
		&refreshTokenGrant{tokens: d.Tokens, accessTTL: ttl},
	} {
		e.grants[g.Type()] = g
	}
	return e
}

// ─── Authorize ───

type AuthorizeRequest struct {
	ResponseType string // vacío o "code"
	ClientID     string
	RedirectURI  string
	Scope        string
	State        string
}

// AuthorizeResult es un code recién emitido.
type AuthorizeResult struct {
	Code        string
	RedirectURI string
	State       string
	Scope       []string
}

// Location arma redirect_uri?code=...&state=...
func (r *AuthorizeResult) Location() string {
	q := url.Values{}
	q.Set("code", r.Code)
	if r.State != "" {
		q.Set("state", r.State)
	}
	return appendQuery(r.RedirectURI, q)
}

// Authorize valida el pedido y emite un code para userID.
//
// Errores directos (nunca redirigidos): ErrInvalidRequest (faltan parámetros o
// redirect_uri no registrada), ErrUnauthorizedClient, ErrAccessDenied (sin
// usuario), ErrServer. Con redirect verificada, ErrInvalidScope y
// ErrUnsupportedResponse llegan como *RedirectError.
func (e *Engine) Authorize(ctx context.Context, req AuthorizeRequest, userID int64) (*AuthorizeResult, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("GrantEngine.Authorize"), logger.ClientID(req.ClientID))

	if req.ClientID == "" || req.RedirectURI == "" {
		return nil, ErrInvalidRequest
	}

	client, err := e.clients.FindByClientID(ctx, req.ClientID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Debug("unknown client")
		return nil, ErrUnauthorizedClient
	}
	if err != nil {
		log.Error("client lookup failed", logger.Err(err))
		return nil, ErrServer
	}

	if !client.AllowsRedirect(req.RedirectURI) {
		log.Debug("redirect_uri not registered")
		return nil, ErrInvalidRequest
	}

	if req.ResponseType != "" && req.ResponseType != "code" {
		return nil, &RedirectError{Err: ErrUnsupportedResponse, RedirectURI: req.RedirectURI, State: req.State}
	}

	if userID <= 0 {
		return nil, ErrAccessDenied
	}

	scope := validation.ParseScope(req.Scope)
	if len(scope) == 0 {
		scope = append([]string(nil), client.Scopes...)
	}
	if !validation.IsSubset(scope, client.Scopes) {
		log.Debug("scope not allowed", logger.Scope(req.Scope))
		return nil, &RedirectError{Err: ErrInvalidScope, RedirectURI: req.RedirectURI, State: req.State}
	}

	code, err := e.codes.Issue(ctx, client.ClientID, userID, req.RedirectURI, scope)
	if err != nil {
		log.Error("code issue failed", logger.Err(err))
		return nil, ErrServer
	}
	e.metrics.codeIssued()
	log.Debug("auth code issued")
	audit.Log(ctx, audit.EventCodeIssued, logger.ClientID(client.ClientID), logger.UserID(userID),
		logger.Scope(validation.JoinScope(scope)), logger.Fingerprint("code_fp", code))

	return &AuthorizeResult{Code: code, RedirectURI: req.RedirectURI, State: req.State, Scope: scope}, nil
}

// ─── Exchange ───

// TokenResponse es el body JSON de /token.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope"`
}

// Exchange autentica al cliente y despacha al Grant de req.GrantType.
func (e *Engine) Exchange(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("GrantEngine.Exchange"),
		logger.GrantType(req.GrantType), logger.ClientID(req.ClientID))

	resp, err := e.exchange(ctx, req)
	outcome := "ok"
	switch {
	case err == nil:
		audit.Log(ctx, audit.EventTokensIssued, logger.GrantType(req.GrantType), logger.ClientID(req.ClientID),
			logger.Scope(resp.Scope))
	case errors.Is(err, ErrServer):
		outcome = "error"
	default:
		outcome = ErrorCode(err)
		log.Debug("exchange denied", logger.Err(err))
		audit.Log(ctx, audit.EventExchangeDenied, logger.GrantType(req.GrantType), logger.ClientID(req.ClientID),
			logger.String("error", outcome))
	}
	if _, known := e.grants[GrantType(req.GrantType)]; known {
		e.metrics.grant(req.GrantType, outcome)
	} else {
		e.metrics.grant("other", outcome)
	}
	return resp, err
}

func (e *Engine) exchange(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("GrantEngine.Exchange"))

	if req.GrantType == "" {
		return nil, ErrInvalidRequest
	}
	grant, ok := e.grants[GrantType(req.GrantType)]
	if !ok {
		return nil, ErrUnsupportedGrantType
	}
	if req.ClientID == "" {
		return nil, ErrInvalidRequest
	}
	if err := grant.Validate(req); err != nil {
		return nil, err
	}

	client, err := e.authenticateClient(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		return nil, err
	}

	issued, err := grant.Exchange(ctx, client, req)
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidGrant), errors.Is(err, ErrInvalidScope):
		return nil, err
	default:
		log.Error("grant exchange failed", logger.Err(err))
		return nil, ErrServer
	}

	return &TokenResponse{
		AccessToken:  issued.AccessToken,
		TokenType:    TokenTypeBearer,
		ExpiresIn:    issued.ExpiresIn,
		RefreshToken: issued.RefreshToken,
		Scope:        validation.JoinScope(issued.Record.Scope),
	}, nil
}

// authenticateClient: client inexistente, secreto incorrecto o ciphertext
// corrupto dan todos ErrInvalidGrant.
func (e *Engine) authenticateClient(ctx context.Context, clientID, secret string) (*repository.Client, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("GrantEngine.authenticateClient"), logger.ClientID(clientID))

	client, err := e.clients.FindByClientID(ctx, clientID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidGrant
	}
	if err != nil {
		log.Error("client lookup failed", logger.Err(err))
		return nil, ErrServer
	}
	ok, err := e.clients.VerifySecret(client, secret)
	if err != nil {
		log.Error("client secret undecryptable", logger.Err(err))
		return nil, ErrInvalidGrant
	}
	if !ok {
		return nil, ErrInvalidGrant
	}
	return client, nil
}

// ─── Introspect ───

// IntrospectResult es el body JSON de /introspect. Inactivo serializa
// exactamente {"active":false}.
type IntrospectResult struct {
	Active   bool   `json:"active"`
	Scope    string `json:"scope,omitempty"`
	ClientID string `json:"client_id,omitempty"`
	Exp      int64  `json:"exp,omitempty"`
}

// Introspect nunca falla: token desconocido, vencido o un error de store
// dan el mismo resultado inactivo.
func (e *Engine) Introspect(ctx context.Context, token string) IntrospectResult {
	tok, err := e.tokens.LookupByAccessToken(ctx, token)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		logger.From(ctx).Warn("introspection lookup failed",
			logger.Layer("service"), logger.Op("GrantEngine.Introspect"), logger.Err(err))
	}
	if err != nil || !e.tokens.IsValid(tok) {
		e.metrics.introspection(false)
		return IntrospectResult{}
	}
	e.metrics.introspection(true)
	return IntrospectResult{
		Active:   true,
		Scope:    validation.JoinScope(tok.Scope),
		ClientID: tok.ClientID,
		Exp:      tok.ExpiresAt,
	}
}

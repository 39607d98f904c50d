package oauth

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/dropDatabas3/clinicauth/internal/domain/repository"
)

// ErrUnauthenticated: la request no trae una identidad válida.
var ErrUnauthenticated = errors.New("unauthenticated")

const (
	sessionIssuer   = "clinicauth"
	sessionAudience = "clinicauth/authorize"
)

// Identity es el usuario autenticado de la request.
type Identity struct {
	UserID   int64
	Username string
	Role     string
}

// Authenticator provee la identidad del usuario que autoriza en /authorize.
type Authenticator interface {
	Authenticate(r *http.Request) (*Identity, error)
}

// ─── Session (JWT HS256) ───

// SessionAuthenticator acepta un JWT HS256 en "Authorization: Bearer" o en la
// cookie de sesión. sub es el id del usuario, que debe existir.
type SessionAuthenticator struct {
	key        []byte
	cookieName string
	users      repository.UserRepository
	now        func() time.Time
}

func NewSessionAuthenticator(key []byte, cookieName string, users repository.UserRepository) *SessionAuthenticator {
	return &SessionAuthenticator{key: key, cookieName: cookieName, users: users, now: time.Now}
}

func (a *SessionAuthenticator) tokenFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	if a.cookieName != "" {
		if c, err := r.Cookie(a.cookieName); err == nil {
			return c.Value
		}
	}
	return ""
}

func (a *SessionAuthenticator) Authenticate(r *http.Request) (*Identity, error) {
	raw := a.tokenFrom(r)
	if raw == "" {
		return nil, ErrUnauthenticated
	}

	claims := &jwtv5.RegisteredClaims{}
	_, err := jwtv5.ParseWithClaims(raw, claims,
		func(*jwtv5.Token) (any, error) { return a.key, nil },
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
		jwtv5.WithIssuer(sessionIssuer),
		jwtv5.WithAudience(sessionAudience),
		jwtv5.WithExpirationRequired(),
		jwtv5.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	uid, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || uid <= 0 {
		return nil, ErrUnauthenticated
	}
	u, err := a.users.GetByID(r.Context(), uid)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &Identity{UserID: u.ID, Username: u.Username, Role: u.Role}, nil
}

// IssueSessionToken firma una sesión para userID. Lo usa el comando
// "session issue" y los tests.
func (a *SessionAuthenticator) IssueSessionToken(userID int64, ttl time.Duration) (string, error) {
	now := a.now()
	claims := jwtv5.RegisteredClaims{
		Issuer:    sessionIssuer,
		Subject:   strconv.FormatInt(userID, 10),
		Audience:  jwtv5.ClaimStrings{sessionAudience},
		IssuedAt:  jwtv5.NewNumericDate(now),
		NotBefore: jwtv5.NewNumericDate(now),
		ExpiresAt: jwtv5.NewNumericDate(now.Add(ttl)),
	}
	return jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString(a.key)
}

// ─── Static (solo dev/test) ───

// StaticAuthenticator trata toda request como el mismo usuario. La config
// lo rechaza en prod.
type StaticAuthenticator struct {
	Identity Identity
}

func (a StaticAuthenticator) Authenticate(*http.Request) (*Identity, error) {
	if a.Identity.UserID <= 0 {
		return nil, ErrUnauthenticated
	}
	id := a.Identity
	return &id, nil
}

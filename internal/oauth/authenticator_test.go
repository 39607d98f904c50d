package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/clinicauth/internal/domain/repository"
	"github.com/dropDatabas3/clinicauth/internal/store/adapters/memory"
)

var testSessionKey = []byte("0123456789abcdef0123456789abcdef")

func newSessionAuth(t *testing.T) (*SessionAuthenticator, *repository.User) {
	t.Helper()
	users := memory.New().Users()
	u, err := users.Create(context.Background(), "ana", repository.DefaultRole)
	require.NoError(t, err)
	return NewSessionAuthenticator(testSessionKey, "clinic_session", users), u
}

func TestSessionAuthenticator_BearerAndCookie(t *testing.T) {
	a, u := newSessionAuth(t)
	tok, err := a.IssueSessionToken(u.ID, time.Hour)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/authorize", nil)
	r.Header.Set("Authorization", "Bearer "+tok)
	id, err := a.Authenticate(r)
	require.NoError(t, err)
	assert.Equal(t, u.ID, id.UserID)
	assert.Equal(t, "ana", id.Username)
	assert.Equal(t, "nurse", id.Role)

	r = httptest.NewRequest(http.MethodGet, "/authorize", nil)
	r.AddCookie(&http.Cookie{Name: "clinic_session", Value: tok})
	id, err = a.Authenticate(r)
	require.NoError(t, err)
	assert.Equal(t, u.ID, id.UserID)
}

func TestSessionAuthenticator_Rejects(t *testing.T) {
	a, u := newSessionAuth(t)

	expired, err := a.IssueSessionToken(u.ID, time.Minute)
	require.NoError(t, err)
	ghost, err := a.IssueSessionToken(u.ID+100, time.Hour)
	require.NoError(t, err)

	other := NewSessionAuthenticator([]byte("another-key-another-key-another-"), "", nil)
	foreign, err := other.IssueSessionToken(u.ID, time.Hour)
	require.NoError(t, err)

	wrongAud := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, jwtv5.RegisteredClaims{
		Issuer:    sessionIssuer,
		Subject:   "1",
		Audience:  jwtv5.ClaimStrings{"other"},
		ExpiresAt: jwtv5.NewNumericDate(time.Now().Add(time.Hour)),
	})
	wrongAudTok, err := wrongAud.SignedString(testSessionKey)
	require.NoError(t, err)

	a.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	cases := map[string]string{
		"empty":        "",
		"garbage":      "not-a-jwt",
		"expired":      expired,
		"unknown user": ghost,
		"foreign key":  foreign,
		"wrong aud":    wrongAudTok,
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/authorize", nil)
			if tok != "" {
				r.Header.Set("Authorization", "Bearer "+tok)
			}
			_, err := a.Authenticate(r)
			assert.ErrorIs(t, err, ErrUnauthenticated)
		})
	}
}

func TestStaticAuthenticator(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/authorize", nil)

	id, err := StaticAuthenticator{Identity: Identity{UserID: 1, Username: "dev"}}.Authenticate(r)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id.UserID)

	_, err = StaticAuthenticator{}.Authenticate(r)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

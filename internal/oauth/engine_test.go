package oauth

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tokens "github.com/dropDatabas3/clinicauth/internal/security/token"
)

func TestEngine_CodeFlowSingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	code := f.authorize(t, "read")

	resp, err := f.engine.Exchange(ctx, codeRequest(code))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, "read", resp.Scope)

	_, err = f.engine.Exchange(ctx, codeRequest(code))
	require.ErrorIs(t, err, ErrInvalidGrant)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.grants.WithLabelValues("authorization_code", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.grants.WithLabelValues("authorization_code", "invalid_grant")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.codesIssued))
}

func TestEngine_RedirectMismatchDoesNotBurnCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	code := f.authorize(t, "read")

	req := codeRequest(code)
	req.RedirectURI = "https://app/cb2"
	_, err := f.engine.Exchange(ctx, req)
	require.ErrorIs(t, err, ErrInvalidGrant)

	_, err = f.engine.Exchange(ctx, codeRequest(code))
	require.NoError(t, err)
}

func TestEngine_ExchangeFailuresAreUndifferentiated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	code := f.authorize(t, "read")

	cases := map[string]func(*TokenRequest){
		"bad secret":     func(r *TokenRequest) { r.ClientSecret = "s2" },
		"empty secret":   func(r *TokenRequest) { r.ClientSecret = "" },
		"unknown client": func(r *TokenRequest) { r.ClientID = "c9" },
		"unknown code":   func(r *TokenRequest) { r.Code = "fabricated" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := codeRequest(code)
			mutate(&req)
			_, err := f.engine.Exchange(ctx, req)
			assert.ErrorIs(t, err, ErrInvalidGrant)
		})
	}

	// Ninguno de los intentos anteriores consumió el code.
	_, err := f.engine.Exchange(ctx, codeRequest(code))
	require.NoError(t, err)
}

func TestEngine_CodeForAnotherClient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _, err := f.clients.Register(ctx, RegisterInput{
		ClientID: "c2", Secret: "s2", RedirectURIs: []string{testRedirect}, Scopes: []string{"read"},
	})
	require.NoError(t, err)

	code := f.authorize(t, "read")
	req := codeRequest(code)
	req.ClientID, req.ClientSecret = "c2", "s2"
	_, err = f.engine.Exchange(ctx, req)
	require.ErrorIs(t, err, ErrInvalidGrant)
}

func TestEngine_ExpiredCode(t *testing.T) {
	f := newFixture(t)
	code := f.authorize(t, "read")

	f.clock.Advance(DefaultCodeTTL)
	_, err := f.engine.Exchange(context.Background(), codeRequest(code))
	require.ErrorIs(t, err, ErrInvalidGrant)
}

func TestEngine_CodeJustBeforeExpiry(t *testing.T) {
	f := newFixture(t)
	code := f.authorize(t, "read")

	f.clock.Advance(DefaultCodeTTL - time.Second)
	_, err := f.engine.Exchange(context.Background(), codeRequest(code))
	require.NoError(t, err)
}

func TestEngine_TamperedClientSecret(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	enc, err := f.vault.Encrypt("s3")
	require.NoError(t, err)
	require.NoError(t, f.conn.Clients().Create(ctx, clientWithSecret("c3", flipCiphertextByte(t, enc))))

	res, err := f.engine.Authorize(ctx, AuthorizeRequest{ClientID: "c3", RedirectURI: testRedirect}, 1)
	require.NoError(t, err)

	req := codeRequest(res.Code)
	req.ClientID, req.ClientSecret = "c3", "s3"
	_, err = f.engine.Exchange(ctx, req)
	require.ErrorIs(t, err, ErrInvalidGrant)
}

func TestEngine_ConcurrentRedeem(t *testing.T) {
	f := newFixture(t)
	code := f.authorize(t, "read")

	const n = 20
	var ok, denied atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.engine.Exchange(context.Background(), codeRequest(code))
			if err == nil {
				ok.Add(1)
			} else if assert.ErrorIs(t, err, ErrInvalidGrant) {
				denied.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()
	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(n-1), denied.Load())
}

func TestEngine_ExchangeRequestValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Exchange(ctx, TokenRequest{ClientID: testClientID})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = f.engine.Exchange(ctx, TokenRequest{GrantType: "password", ClientID: testClientID})
	assert.ErrorIs(t, err, ErrUnsupportedGrantType)

	_, err = f.engine.Exchange(ctx, TokenRequest{GrantType: "authorization_code", ClientID: testClientID, ClientSecret: testSecret})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = f.engine.Exchange(ctx, TokenRequest{GrantType: "refresh_token", ClientID: testClientID, ClientSecret: testSecret})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestEngine_Authorize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("missing params", func(t *testing.T) {
		_, err := f.engine.Authorize(ctx, AuthorizeRequest{ClientID: testClientID}, 1)
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})
	t.Run("unknown client", func(t *testing.T) {
		_, err := f.engine.Authorize(ctx, AuthorizeRequest{ClientID: "nope", RedirectURI: testRedirect}, 1)
		assert.ErrorIs(t, err, ErrUnauthorizedClient)
	})
	t.Run("redirect not registered", func(t *testing.T) {
		_, err := f.engine.Authorize(ctx, AuthorizeRequest{ClientID: testClientID, RedirectURI: "https://evil/cb", Scope: "admin"}, 1)
		assert.ErrorIs(t, err, ErrInvalidRequest)
		var re *RedirectError
		assert.NotErrorAs(t, err, &re)
	})
	t.Run("scope not allowed", func(t *testing.T) {
		_, err := f.engine.Authorize(ctx, AuthorizeRequest{ClientID: testClientID, RedirectURI: testRedirect, Scope: "read admin", State: "xyz"}, 1)
		require.ErrorIs(t, err, ErrInvalidScope)
		var re *RedirectError
		require.ErrorAs(t, err, &re)
		u, perr := url.Parse(re.Location())
		require.NoError(t, perr)
		assert.Equal(t, "invalid_scope", u.Query().Get("error"))
		assert.Equal(t, "xyz", u.Query().Get("state"))
		assert.Equal(t, "app", u.Host)
	})
	t.Run("unsupported response_type", func(t *testing.T) {
		_, err := f.engine.Authorize(ctx, AuthorizeRequest{ResponseType: "token", ClientID: testClientID, RedirectURI: testRedirect}, 1)
		assert.ErrorIs(t, err, ErrUnsupportedResponse)
	})
	t.Run("no user", func(t *testing.T) {
		_, err := f.engine.Authorize(ctx, AuthorizeRequest{ClientID: testClientID, RedirectURI: testRedirect}, 0)
		assert.ErrorIs(t, err, ErrAccessDenied)
	})
	t.Run("empty scope defaults to client scope", func(t *testing.T) {
		res, err := f.engine.Authorize(ctx, AuthorizeRequest{ClientID: testClientID, RedirectURI: testRedirect, State: "s"}, 7)
		require.NoError(t, err)
		assert.Equal(t, []string{"read"}, res.Scope)

		u, err := url.Parse(res.Location())
		require.NoError(t, err)
		assert.Equal(t, res.Code, u.Query().Get("code"))
		assert.Equal(t, "s", u.Query().Get("state"))

		tok, err := f.engine.Exchange(ctx, codeRequest(res.Code))
		require.NoError(t, err)
		rec, err := f.tokens.LookupByAccessToken(ctx, tok.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, int64(7), rec.UserID)
	})
}

func TestEngine_CodesAreStoredHashed(t *testing.T) {
	f := newFixture(t)
	code := f.authorize(t, "read")

	_, err := f.conn.Codes().Consume(context.Background(), consumeInput(code, f.clock.Now()))
	require.Error(t, err, "el code en claro no debe ser una key válida")

	_, err = f.conn.Codes().Consume(context.Background(), consumeInput(tokens.Hash(code), f.clock.Now()))
	require.NoError(t, err)
}

func TestEngine_Introspect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	resp, err := f.engine.Exchange(ctx, codeRequest(f.authorize(t, "read")))
	require.NoError(t, err)

	res := f.engine.Introspect(ctx, resp.AccessToken)
	assert.True(t, res.Active)
	assert.Equal(t, "read", res.Scope)
	assert.Equal(t, testClientID, res.ClientID)
	assert.Equal(t, f.clock.Now().Unix()+3600, res.Exp)

	// El refresh token no es un access token.
	assert.False(t, f.engine.Introspect(ctx, resp.RefreshToken).Active)

	unknown, err := json.Marshal(f.engine.Introspect(ctx, "fabricated-token"))
	require.NoError(t, err)
	assert.Equal(t, `{"active":false}`, string(unknown))

	f.clock.Advance(time.Hour)
	expired, err := json.Marshal(f.engine.Introspect(ctx, resp.AccessToken))
	require.NoError(t, err)
	assert.Equal(t, unknown, expired)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.introspections.WithLabelValues("true")))
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.introspections.WithLabelValues("false")))
}

func TestEngine_RefreshGrant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first, err := f.engine.Exchange(ctx, codeRequest(f.authorize(t, "read")))
	require.NoError(t, err)

	refresh := TokenRequest{
		GrantType: string(GrantRefreshToken), ClientID: testClientID, ClientSecret: testSecret,
		RefreshToken: first.RefreshToken,
	}

	f.clock.Advance(2 * time.Hour)
	assert.False(t, f.engine.Introspect(ctx, first.AccessToken).Active)

	second, err := f.engine.Exchange(ctx, refresh)
	require.NoError(t, err)
	assert.NotEqual(t, first.AccessToken, second.AccessToken)
	assert.Empty(t, second.RefreshToken, "sin rotación")
	assert.Equal(t, "read", second.Scope)
	assert.True(t, f.engine.Introspect(ctx, second.AccessToken).Active)

	// El refresh original sigue vigente.
	_, err = f.engine.Exchange(ctx, refresh)
	require.NoError(t, err)

	wide := refresh
	wide.Scope = "read write"
	_, err = f.engine.Exchange(ctx, wide)
	assert.ErrorIs(t, err, ErrInvalidScope)

	bad := refresh
	bad.RefreshToken = "nope"
	_, err = f.engine.Exchange(ctx, bad)
	assert.ErrorIs(t, err, ErrInvalidGrant)

	f.clock.Advance(24 * time.Hour)
	_, err = f.engine.Exchange(ctx, refresh)
	assert.ErrorIs(t, err, ErrInvalidGrant)
}

func TestEngine_RefreshBelongsToClient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _, err := f.clients.Register(ctx, RegisterInput{
		ClientID: "c2", Secret: "s2", RedirectURIs: []string{testRedirect}, Scopes: []string{"read"},
	})
	require.NoError(t, err)

	first, err := f.engine.Exchange(ctx, codeRequest(f.authorize(t, "read")))
	require.NoError(t, err)

	_, err = f.engine.Exchange(ctx, TokenRequest{
		GrantType: string(GrantRefreshToken), ClientID: "c2", ClientSecret: "s2", RefreshToken: first.RefreshToken,
	})
	assert.ErrorIs(t, err, ErrInvalidGrant)
}

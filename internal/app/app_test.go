package app

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/clinicauth/internal/config"
	"github.com/dropDatabas3/clinicauth/internal/oauth"
	"github.com/dropDatabas3/clinicauth/internal/security/secretbox"
)

func testConfig() *config.Config {
	c := config.Default()
	c.Security.SecretboxMasterKey = base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))
	return c
}

func newApp(t *testing.T, cfg *config.Config, opts Options) *App {
	t.Helper()
	a, err := New(context.Background(), cfg, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

// runFlow registra c1, autoriza y canjea el code por HTTP.
func runFlow(t *testing.T, a *App) {
	t.Helper()
	ctx := context.Background()
	_, _, err := a.Clients.Register(ctx, oauth.RegisterInput{
		ClientID: "c1", Secret: "s1", RedirectURIs: []string{"https://app/cb"}, Scopes: []string{"read"},
	})
	require.NoError(t, err)

	h, err := a.Handler()
	require.NoError(t, err)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	hc := srv.Client()
	hc.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	base := srv.URL + a.Config.Server.BasePath
	resp, err := hc.Get(base + "/authorize?client_id=c1&redirect_uri=" + url.QueryEscape("https://app/cb") + "&scope=read&state=xyz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	code := loc.Query().Get("code")

	form := url.Values{
		"grant_type": {"authorization_code"}, "code": {code}, "redirect_uri": {"https://app/cb"},
		"client_id": {"c1"}, "client_secret": {"s1"},
	}
	resp, err = hc.PostForm(base+"/token", form)
	require.NoError(t, err)
	var tok oauth.TokenResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tok))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, a.Engine.Introspect(ctx, tok.AccessToken).Active)

	resp, err = hc.PostForm(base+"/token", form)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

var staticNurse = oauth.StaticAuthenticator{Identity: oauth.Identity{UserID: 1, Username: "nurse1"}}

func TestNew_RefusesWithoutMasterKey(t *testing.T) {
	cfg := config.Default()
	_, err := New(context.Background(), cfg, Options{})
	var ce *secretbox.ConfigError
	require.ErrorAs(t, err, &ce)

	cfg.Security.SecretboxMasterKey = "short"
	_, err = New(context.Background(), cfg, Options{})
	require.ErrorAs(t, err, &ce)

	cfg = testConfig()
	cfg.Security.SessionSigningKey = "too-short"
	_, err = New(context.Background(), cfg, Options{})
	require.ErrorAs(t, err, &ce)
}

func TestNew_StaticUserMustExist(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.StaticUserID = 42
	_, err := New(context.Background(), cfg, Options{})
	assert.Error(t, err)
}

func TestFlow_MemoryWithSession(t *testing.T) {
	cfg := testConfig()
	cfg.Server.BasePath = "/oauth"
	a := newApp(t, cfg, Options{})

	u, err := a.Store.Users().Create(context.Background(), "ana", "")
	require.NoError(t, err)
	tok, err := a.Sessions.IssueSessionToken(u.ID, time.Hour)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/oauth/authorize", nil)
	r.AddCookie(&http.Cookie{Name: cfg.Auth.SessionCookie, Value: tok})
	id, err := a.Authenticator.Authenticate(r)
	require.NoError(t, err)
	assert.Equal(t, u.ID, id.UserID)
}

func TestFlow_Memory(t *testing.T) {
	a := newApp(t, testConfig(), Options{Authenticator: staticNurse})
	runFlow(t, a)
}

func TestFlow_SQLiteMigratedWithRedisCodes(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})

	cfg := testConfig()
	cfg.Storage.Driver = "sqlite"
	cfg.Storage.DSN = ":memory:"
	cfg.Storage.Migrate = true
	cfg.Codes.Driver = "redis"
	cfg.Rate.Enabled = true
	cfg.Rate.Driver = "redis"
	a := newApp(t, cfg, Options{Redis: rdb, Authenticator: staticNurse})
	runFlow(t, a)

	var codeKeys, rateKeys int
	for _, k := range mr.Keys() {
		switch {
		case strings.HasPrefix(k, "clinicauth:code:"):
			codeKeys++
		case strings.HasPrefix(k, "clinicauth:rl:"):
			rateKeys++
		}
	}
	assert.Equal(t, 1, codeKeys)
	assert.Positive(t, rateKeys)
}

func TestHandler_Metrics(t *testing.T) {
	a := newApp(t, testConfig(), Options{})
	h, err := a.Handler()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",route="/healthz",status="200"} 1`)
}

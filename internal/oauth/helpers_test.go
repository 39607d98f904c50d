package oauth

import (
	"bytes"
	"context"
	"encoding/base64"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/clinicauth/internal/domain/repository"
	"github.com/dropDatabas3/clinicauth/internal/security/secretbox"
	"github.com/dropDatabas3/clinicauth/internal/store/adapters/memory"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Now().Truncate(time.Second)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	conn    *memory.Conn
	vault   *secretbox.Vault
	clock   *fakeClock
	clients *ClientRegistry
	codes   *CodeIssuer
	tokens  *TokenStore
	metrics *Metrics
	engine  *Engine
}

const (
	testClientID = "c1"
	testSecret   = "s1"
	testRedirect = "https://app/cb"
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	vault, err := secretbox.NewVault(bytes.Repeat([]byte{0x11}, 32))
	require.NoError(t, err)

	f := &fixture{conn: memory.New(), vault: vault, clock: newFakeClock()}
	f.metrics, err = NewMetrics(nil)
	require.NoError(t, err)
	f.clients = NewClientRegistry(f.conn.Clients(), vault, 0)
	f.clients.now = f.clock.Now
	f.codes = NewCodeIssuer(f.conn.Codes(), DefaultCodeTTL, f.clock.Now)
	f.tokens = NewTokenStore(f.conn.Tokens(), 24*time.Hour, f.clock.Now)
	f.engine = NewEngine(EngineDeps{
		Clients:      f.clients,
		Codes:        f.codes,
		Tokens:       f.tokens,
		Metrics:      f.metrics,
		AccessTTL:    time.Hour,
		IssueRefresh: true,
	})

	_, _, err = f.clients.Register(context.Background(), RegisterInput{
		ClientID:     testClientID,
		Secret:       testSecret,
		RedirectURIs: []string{testRedirect},
		Scopes:       []string{"read"},
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) authorize(t *testing.T, scope string) string {
	t.Helper()
	res, err := f.engine.Authorize(context.Background(), AuthorizeRequest{
		ClientID: testClientID, RedirectURI: testRedirect, Scope: scope,
	}, 1)
	require.NoError(t, err)
	require.NotEmpty(t, res.Code)
	return res.Code
}

func codeRequest(code string) TokenRequest {
	return TokenRequest{
		GrantType:    string(GrantAuthorizationCode),
		Code:         code,
		ClientID:     testClientID,
		ClientSecret: testSecret,
		RedirectURI:  testRedirect,
	}
}

func clientWithSecret(id, secretEnc string) repository.Client {
	return repository.Client{
		ClientID:     id,
		SecretEnc:    secretEnc,
		RedirectURIs: []string{testRedirect},
		Scopes:       []string{"read"},
		CreatedAt:    time.Now().UTC(),
	}
}

func consumeInput(hash string, now time.Time) repository.ConsumeInput {
	return repository.ConsumeInput{CodeHash: hash, ClientID: testClientID, RedirectURI: testRedirect, Now: now}
}

// flipCiphertextByte altera un byte del ciphertext manteniendo el formato.
func flipCiphertextByte(t *testing.T, enc string) string {
	t.Helper()
	nonce, ct, ok := strings.Cut(enc, "|")
	require.True(t, ok)
	raw, err := base64.StdEncoding.DecodeString(ct)
	require.NoError(t, err)
	raw[0] ^= 0x01
	return nonce + "|" + base64.StdEncoding.EncodeToString(raw)
}

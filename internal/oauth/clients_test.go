package oauth

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/clinicauth/internal/domain/repository"
	"github.com/dropDatabas3/clinicauth/internal/security/secretbox"
	"github.com/dropDatabas3/clinicauth/internal/store/adapters/memory"
)

type countingClients struct {
	repository.ClientRepository
	gets atomic.Int32
	gate chan struct{}
}

func (c *countingClients) Get(ctx context.Context, id string) (*repository.Client, error) {
	c.gets.Add(1)
	if c.gate != nil {
		<-c.gate
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.ClientRepository.Get(ctx, id)
}

func TestClientRegistry_Register(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.clients.FindByClientID(ctx, testClientID)
	require.NoError(t, err)
	assert.NotContains(t, c.SecretEnc, testSecret)

	ok, err := f.clients.VerifySecret(c, testSecret)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.clients.VerifySecret(c, "s1 ")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = f.clients.Register(ctx, RegisterInput{ClientID: testClientID, Secret: "x", RedirectURIs: []string{testRedirect}})
	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestClientRegistry_GeneratedSecret(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, secret, err := f.clients.Register(ctx, RegisterInput{
		ClientID: "ward-app", Name: " Ward ", RedirectURIs: []string{"http://127.0.0.1:8080/cb"}, Scopes: []string{"read", "write", "read"},
	})
	require.NoError(t, err)
	assert.Len(t, secret, 43)
	assert.Equal(t, "Ward", c.Name)
	assert.Equal(t, []string{"read", "write"}, c.Scopes)

	ok, err := f.clients.VerifySecret(c, secret)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClientRegistry_RegisterValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := map[string]RegisterInput{
		"empty id":        {RedirectURIs: []string{testRedirect}},
		"no redirect":     {ClientID: "x1"},
		"relative":        {ClientID: "x1", RedirectURIs: []string{"/cb"}},
		"plain http":      {ClientID: "x1", RedirectURIs: []string{"http://app/cb"}},
		"fragment":        {ClientID: "x1", RedirectURIs: []string{"https://app/cb#x"}},
		"bad scope token": {ClientID: "x1", RedirectURIs: []string{testRedirect}, Scopes: []string{`a"b`}},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := f.clients.Register(ctx, in)
			assert.ErrorIs(t, err, repository.ErrInvalidInput)
		})
	}
}

func TestClientRegistry_TamperedCiphertext(t *testing.T) {
	f := newFixture(t)
	c, err := f.clients.FindByClientID(context.Background(), testClientID)
	require.NoError(t, err)

	c.SecretEnc = flipCiphertextByte(t, c.SecretEnc)
	ok, err := f.clients.VerifySecret(c, testSecret)
	assert.False(t, ok)
	assert.ErrorIs(t, err, secretbox.ErrIntegrity)
}

func TestClientRegistry_CacheAndSingleflight(t *testing.T) {
	f := newFixture(t)
	repo := &countingClients{ClientRepository: f.conn.Clients(), gate: make(chan struct{})}
	reg := NewClientRegistry(repo, f.vault, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := reg.FindByClientID(context.Background(), testClientID)
			if assert.NoError(t, err) {
				assert.Equal(t, testClientID, c.ClientID)
			}
		}()
	}
	// Dejar que los lookups se acumulen detrás del primero.
	time.Sleep(20 * time.Millisecond)
	close(repo.gate)
	wg.Wait()
	assert.Equal(t, int32(1), repo.gets.Load())

	// Las copias devueltas no comparten estado con el cache.
	c, err := reg.FindByClientID(context.Background(), testClientID)
	require.NoError(t, err)
	c.Scopes[0] = "admin"
	again, err := reg.FindByClientID(context.Background(), testClientID)
	require.NoError(t, err)
	assert.Equal(t, []string{"read"}, again.Scopes)
	assert.Equal(t, int32(1), repo.gets.Load())

	_, err = reg.FindByClientID(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestClientRegistry_NoCacheReadsThrough(t *testing.T) {
	repo := &countingClients{ClientRepository: memory.New().Clients()}
	f := newFixture(t)
	reg := NewClientRegistry(repo, f.vault, 0)
	_, _, err := reg.Register(context.Background(), RegisterInput{ClientID: "c1", Secret: "s1", RedirectURIs: []string{testRedirect}})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := reg.FindByClientID(context.Background(), "c1")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), repo.gets.Load())
}

func TestClientRegistry_SharedLookupSurvivesFirstCallerCancel(t *testing.T) {
	f := newFixture(t)
	repo := &countingClients{ClientRepository: f.conn.Clients(), gate: make(chan struct{})}
	reg := NewClientRegistry(repo, f.vault, 0)

	ctxA, cancelA := context.WithCancel(context.Background())
	doneA := make(chan struct{})
	go func() {
		defer close(doneA)
		_, _ = reg.FindByClientID(ctxA, testClientID)
	}()
	require.Eventually(t, func() bool { return repo.gets.Load() == 1 }, time.Second, time.Millisecond)

	type result struct {
		c   *repository.Client
		err error
	}
	doneB := make(chan result, 1)
	go func() {
		c, err := reg.FindByClientID(context.Background(), testClientID)
		doneB <- result{c, err}
	}()
	// B se suma a la lectura en curso de A.
	time.Sleep(20 * time.Millisecond)
	cancelA()
	close(repo.gate)

	res := <-doneB
	<-doneA
	require.NoError(t, res.err)
	assert.Equal(t, testClientID, res.c.ClientID)
	assert.Equal(t, int32(1), repo.gets.Load())
}

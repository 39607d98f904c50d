// Package storetest contiene la suite de conformidad que todo adapter debe
// pasar. Cada adapter la corre desde su propio _test.go.
package storetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/clinicauth/internal/domain/repository"
	"github.com/dropDatabas3/clinicauth/internal/store"
)

// Run ejecuta la suite. newConn debe devolver una conexión con esquema vacío.
func Run(t *testing.T, newConn func(t *testing.T) store.AdapterConnection) {
	t.Run("Clients", func(t *testing.T) { testClients(t, newConn(t)) })
	t.Run("Users", func(t *testing.T) { testUsers(t, newConn(t)) })
	t.Run("CodeConsume", func(t *testing.T) { testCodeConsume(t, newConn(t).Codes()) })
	t.Run("CodeConsumeRace", func(t *testing.T) { testCodeConsumeRace(t, newConn(t).Codes()) })
	t.Run("CodeDeleteExpired", func(t *testing.T) { testCodeDeleteExpired(t, newConn(t).Codes()) })
	t.Run("Tokens", func(t *testing.T) { testTokens(t, newConn(t)) })
}

// RunCodes ejecuta solo los casos de CodeRepository (code stores alternativos).
func RunCodes(t *testing.T, newCodes func(t *testing.T) repository.CodeRepository) {
	t.Run("CodeConsume", func(t *testing.T) { testCodeConsume(t, newCodes(t)) })
	t.Run("CodeConsumeRace", func(t *testing.T) { testCodeConsumeRace(t, newCodes(t)) })
	t.Run("CodeDeleteExpired", func(t *testing.T) { testCodeDeleteExpired(t, newCodes(t)) })
}

func testClients(t *testing.T, conn store.AdapterConnection) {
	ctx := context.Background()
	repo := conn.Clients()

	_, err := repo.Get(ctx, "c1")
	require.ErrorIs(t, err, repository.ErrNotFound)

	c := repository.Client{
		ClientID:     "c1",
		Name:         "Ward app",
		SecretEnc:    "bm9uY2U=|Y3Q=",
		RedirectURIs: []string{"https://app.example/cb", "https://app.example/cb2"},
		Scopes:       []string{"read", "write"},
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, repo.Create(ctx, c))
	require.ErrorIs(t, repo.Create(ctx, c), repository.ErrConflict)
	require.NoError(t, repo.Create(ctx, repository.Client{ClientID: "a0", SecretEnc: "x|y", RedirectURIs: []string{"https://a/cb"}}))

	got, err := repo.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, c.Name, got.Name)
	assert.Equal(t, c.SecretEnc, got.SecretEnc)
	assert.Equal(t, c.RedirectURIs, got.RedirectURIs)
	assert.Equal(t, c.Scopes, got.Scopes)
	assert.True(t, got.AllowsRedirect("https://app.example/cb"))
	assert.False(t, got.AllowsRedirect("https://app.example/cb/"))

	_, err = repo.Get(ctx, "C1")
	assert.ErrorIs(t, err, repository.ErrNotFound, "client_id es case-sensitive")

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a0", list[0].ClientID)
	assert.Equal(t, "c1", list[1].ClientID)
}

func testUsers(t *testing.T, conn store.AdapterConnection) {
	ctx := context.Background()
	repo := conn.Users()

	u, err := repo.Create(ctx, "ana", "")
	require.NoError(t, err)
	assert.NotZero(t, u.ID)
	assert.Equal(t, repository.DefaultRole, u.Role)

	_, err = repo.Create(ctx, "ana", "doctor")
	require.ErrorIs(t, err, repository.ErrConflict)

	d, err := repo.Create(ctx, "bruno", "doctor")
	require.NoError(t, err)
	assert.NotEqual(t, u.ID, d.ID)

	got, err := repo.GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "bruno", got.Username)
	assert.Equal(t, "doctor", got.Role)

	_, err = repo.GetByID(ctx, 9999)
	require.ErrorIs(t, err, repository.ErrNotFound)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func newCode(hash string, now time.Time, ttl time.Duration) repository.AuthorizationCode {
	return repository.AuthorizationCode{
		CodeHash:    hash,
		ClientID:    "c1",
		UserID:      1,
		Scope:       []string{"read"},
		RedirectURI: "https://app.example/cb",
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
}

func testCodeConsume(t *testing.T, repo repository.CodeRepository) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, repo.Create(ctx, newCode("h1", now, 10*time.Minute)))
	require.ErrorIs(t, repo.Create(ctx, newCode("h1", now, time.Minute)), repository.ErrConflict)

	in := repository.ConsumeInput{CodeHash: "h1", ClientID: "c1", RedirectURI: "https://app.example/cb", Now: now.Add(time.Second)}

	// Un intento con redirect o client distinto no quema el code.
	bad := in
	bad.RedirectURI = "https://evil.example/cb"
	_, err := repo.Consume(ctx, bad)
	require.ErrorIs(t, err, repository.ErrNotFound)
	bad = in
	bad.ClientID = "c2"
	_, err = repo.Consume(ctx, bad)
	require.ErrorIs(t, err, repository.ErrNotFound)

	// La comparación es exacta: sin case folding ni normalización.
	for _, variant := range []string{"https://APP.example/cb", "https://app.example/CB", "https://app.example/cb/"} {
		bad = in
		bad.RedirectURI = variant
		_, err = repo.Consume(ctx, bad)
		require.ErrorIs(t, err, repository.ErrNotFound, variant)
	}
	bad = in
	bad.ClientID = "C1"
	_, err = repo.Consume(ctx, bad)
	require.ErrorIs(t, err, repository.ErrNotFound)

	got, err := repo.Consume(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.UserID)
	assert.Equal(t, []string{"read"}, got.Scope)
	require.NotNil(t, got.ConsumedAt)

	_, err = repo.Consume(ctx, in)
	require.ErrorIs(t, err, repository.ErrNotFound, "single use")

	// Expiración: ExpiresAt es exclusivo.
	require.NoError(t, repo.Create(ctx, newCode("h2", now, time.Minute)))
	late := in
	late.CodeHash = "h2"
	late.Now = now.Add(time.Minute)
	_, err = repo.Consume(ctx, late)
	require.ErrorIs(t, err, repository.ErrNotFound)

	_, err = repo.Consume(ctx, repository.ConsumeInput{CodeHash: "nope", ClientID: "c1", RedirectURI: in.RedirectURI, Now: now})
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func testCodeConsumeRace(t *testing.T, repo repository.CodeRepository) {
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, repo.Create(ctx, newCode("race", now, 10*time.Minute)))

	in := repository.ConsumeInput{CodeHash: "race", ClientID: "c1", RedirectURI: "https://app.example/cb", Now: now}
	const workers = 16
	var wins, misses atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := repo.Consume(ctx, in)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, repository.ErrNotFound):
				misses.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(workers-1), misses.Load())
}

func testCodeDeleteExpired(t *testing.T, repo repository.CodeRepository) {
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, repo.Create(ctx, newCode("live", now, 10*time.Minute)))
	require.NoError(t, repo.Create(ctx, newCode("used", now, 10*time.Minute)))
	require.NoError(t, repo.Create(ctx, newCode("old", now.Add(-time.Hour), time.Minute)))

	_, err := repo.Consume(ctx, repository.ConsumeInput{CodeHash: "used", ClientID: "c1", RedirectURI: "https://app.example/cb", Now: now})
	require.NoError(t, err)

	n, err := repo.DeleteExpired(ctx, now.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = repo.Consume(ctx, repository.ConsumeInput{CodeHash: "live", ClientID: "c1", RedirectURI: "https://app.example/cb", Now: now})
	require.NoError(t, err)
}

func testTokens(t *testing.T, conn store.AdapterConnection) {
	ctx := context.Background()
	repo := conn.Tokens()
	now := time.Now().Unix()

	withRefresh := repository.Token{
		ID: uuid.NewString(), AccessHash: "a1", RefreshHash: "r1",
		ClientID: "c1", UserID: 1, Scope: []string{"read", "write"},
		IssuedAt: now, ExpiresAt: now + 3600, RefreshExpiresAt: now + 7200,
	}
	accessOnly := repository.Token{
		ID: uuid.NewString(), AccessHash: "a2",
		ClientID: "c1", UserID: 1, Scope: []string{"read"},
		IssuedAt: now, ExpiresAt: now + 3600,
	}
	accessOnly2 := accessOnly
	accessOnly2.ID, accessOnly2.AccessHash = uuid.NewString(), "a3"
	expired := repository.Token{
		ID: uuid.NewString(), AccessHash: "a4", RefreshHash: "r4",
		ClientID: "c1", UserID: 1, IssuedAt: now - 7200, ExpiresAt: now - 3600, RefreshExpiresAt: now - 60,
	}
	for _, tok := range []repository.Token{withRefresh, accessOnly, accessOnly2, expired} {
		require.NoError(t, repo.Create(ctx, tok))
	}
	dup := accessOnly
	dup.ID = uuid.NewString()
	require.ErrorIs(t, repo.Create(ctx, dup), repository.ErrConflict)

	got, err := repo.GetByAccessHash(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, withRefresh.ID, got.ID)
	assert.Equal(t, withRefresh.Scope, got.Scope)
	assert.Equal(t, withRefresh.ExpiresAt, got.ExpiresAt)
	assert.Equal(t, withRefresh.RefreshExpiresAt, got.RefreshExpiresAt)

	got, err = repo.GetByRefreshHash(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "a1", got.AccessHash)

	got, err = repo.GetByAccessHash(ctx, "a2")
	require.NoError(t, err)
	assert.Empty(t, got.RefreshHash)
	assert.Zero(t, got.RefreshExpiresAt)

	_, err = repo.GetByAccessHash(ctx, "missing")
	require.ErrorIs(t, err, repository.ErrNotFound)
	_, err = repo.GetByRefreshHash(ctx, "")
	require.ErrorIs(t, err, repository.ErrNotFound)

	n, err := repo.DeleteExpired(ctx, time.Unix(now, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = repo.GetByAccessHash(ctx, "a4")
	require.ErrorIs(t, err, repository.ErrNotFound)
	_, err = repo.GetByAccessHash(ctx, "a1")
	require.NoError(t, err)
}

package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/clinicauth/internal/domain/repository"
	"github.com/dropDatabas3/clinicauth/internal/store"
	"github.com/dropDatabas3/clinicauth/internal/store/adapters/memory"
)

var errTransient = errors.New("connection reset")

// flakyConn falla las primeras N llamadas de cada repo.
type flakyConn struct {
	*memory.Conn
	clients *flakyClients
	codes   *flakyCodes
}

type flakyClients struct {
	repository.ClientRepository
	failures    int
	calls       int
	sawDeadline bool
}

func (f *flakyClients) Get(ctx context.Context, id string) (*repository.Client, error) {
	f.calls++
	if _, ok := ctx.Deadline(); ok {
		f.sawDeadline = true
	}
	if f.calls <= f.failures {
		return nil, errTransient
	}
	return f.ClientRepository.Get(ctx, id)
}

func (f *flakyClients) Create(ctx context.Context, c repository.Client) error {
	f.calls++
	if f.calls <= f.failures {
		return errTransient
	}
	return f.ClientRepository.Create(ctx, c)
}

type flakyCodes struct {
	repository.CodeRepository
	calls int
}

func (f *flakyCodes) Consume(ctx context.Context, in repository.ConsumeInput) (*repository.AuthorizationCode, error) {
	f.calls++
	return nil, errTransient
}

func (c *flakyConn) Clients() repository.ClientRepository { return c.clients }
func (c *flakyConn) Codes() repository.CodeRepository     { return c.codes }

func newFlaky(failures int) *flakyConn {
	mem := memory.New()
	_ = mem.Clients().Create(context.Background(), repository.Client{ClientID: "c1", SecretEnc: "x|y"})
	return &flakyConn{
		Conn:    mem,
		clients: &flakyClients{ClientRepository: mem.Clients(), failures: failures},
		codes:   &flakyCodes{CodeRepository: mem.Codes()},
	}
}

func guardCfg() store.GuardConfig {
	return store.GuardConfig{Timeout: time.Second, ReadTries: 3, InitialInterval: time.Millisecond}
}

func TestGuard_ReadRetriesTransient(t *testing.T) {
	fc := newFlaky(2)
	g := store.NewGuard(fc, guardCfg())

	c, err := g.Clients().Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", c.ClientID)
	assert.Equal(t, 3, fc.clients.calls)
	assert.True(t, fc.clients.sawDeadline)
}

func TestGuard_ReadGivesUp(t *testing.T) {
	fc := newFlaky(10)
	g := store.NewGuard(fc, guardCfg())

	_, err := g.Clients().Get(context.Background(), "c1")
	require.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, fc.clients.calls)
}

func TestGuard_NotFoundIsNotRetried(t *testing.T) {
	fc := newFlaky(0)
	g := store.NewGuard(fc, guardCfg())

	_, err := g.Clients().Get(context.Background(), "missing")
	require.ErrorIs(t, err, repository.ErrNotFound)
	assert.Equal(t, 1, fc.clients.calls)
}

func TestGuard_WritesAreNotRetried(t *testing.T) {
	fc := newFlaky(1)
	g := store.NewGuard(fc, guardCfg())

	err := g.Clients().Create(context.Background(), repository.Client{ClientID: "c2"})
	require.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, fc.clients.calls)

	_, err = g.Codes().Consume(context.Background(), repository.ConsumeInput{CodeHash: "h"})
	require.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, fc.codes.calls)
}

func TestGuard_WithCodes(t *testing.T) {
	fc := newFlaky(0)
	alt := memory.New().Codes()
	g := store.NewGuard(fc, guardCfg()).WithCodes(alt)

	now := time.Now()
	require.NoError(t, g.Codes().Create(context.Background(), repository.AuthorizationCode{
		CodeHash: "h", ClientID: "c1", RedirectURI: "https://a/cb", CreatedAt: now, ExpiresAt: now.Add(time.Minute),
	}))
	_, err := alt.Consume(context.Background(), repository.ConsumeInput{CodeHash: "h", ClientID: "c1", RedirectURI: "https://a/cb", Now: now})
	require.NoError(t, err)
	assert.Zero(t, fc.codes.calls)
}

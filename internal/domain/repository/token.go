package repository

import (
	"context"
	"time"
)

// Token es un access token opaco (y opcionalmente su refresh) ya emitido.
// Los valores se guardan hasheados. Las expiraciones son epoch en segundos.
type Token struct {
	ID               string
	AccessHash       string
	RefreshHash      string // vacío si no se emitió refresh
	ClientID         string
	UserID           int64
	Scope            []string
	IssuedAt         int64
	ExpiresAt        int64
	RefreshExpiresAt int64 // 0 si no hay refresh
}

// TokenRepository persiste tokens emitidos.
type TokenRepository interface {
	Create(ctx context.Context, t Token) error

	// GetByAccessHash retorna ErrNotFound si no existe.
	GetByAccessHash(ctx context.Context, hash string) (*Token, error)

	// GetByRefreshHash retorna ErrNotFound si no existe.
	GetByRefreshHash(ctx context.Context, hash string) (*Token, error)

	// DeleteExpired borra tokens cuyo access y refresh ya vencieron.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

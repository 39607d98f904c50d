package repository

import (
	"context"
	"time"
)

// AuthorizationCode es un code de un solo uso. Solo se persiste su hash.
type AuthorizationCode struct {
	CodeHash    string
	ClientID    string
	UserID      int64
	Scope       []string
	RedirectURI string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	ConsumedAt  *time.Time
}

// ConsumeInput son las condiciones que deben cumplirse para canjear un code.
type ConsumeInput struct {
	CodeHash    string
	ClientID    string
	RedirectURI string
	Now         time.Time
}

// CodeRepository persiste authorization codes.
type CodeRepository interface {
	// Create persiste un code nuevo. Retorna ErrConflict si el hash ya existe.
	Create(ctx context.Context, code AuthorizationCode) error

	// Consume marca el code como usado si y solo si coinciden hash, client y
	// redirect, no fue consumido y no expiró (Now < ExpiresAt). La
	// verificación y la marca son atómicas: ante canjes concurrentes exactamente
	// uno recibe el code. Si no se cumple alguna condición retorna ErrNotFound
	// sin modificar el registro.
	Consume(ctx context.Context, in ConsumeInput) (*AuthorizationCode, error)

	// DeleteExpired borra codes expirados o consumidos antes de now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

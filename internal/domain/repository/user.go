package repository

import (
	"context"
	"time"
)

// DefaultRole es el rol asignado cuando no se indica otro.
const DefaultRole = "nurse"

// User es un usuario clínico que puede autorizar clientes.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// UserRepository define operaciones sobre usuarios.
type UserRepository interface {
	// GetByID retorna ErrNotFound si no existe.
	GetByID(ctx context.Context, id int64) (*User, error)

	// Create asigna el ID. Retorna ErrConflict si el username ya existe.
	Create(ctx context.Context, username, role string) (*User, error)

	List(ctx context.Context) ([]User, error)
}

package repository

import (
	"context"
	"time"
)

// Client es un cliente OAuth confidencial registrado.
type Client struct {
	ClientID     string // identificador público, único
	Name         string
	SecretEnc    string // secretbox: base64(nonce)|base64(ct)
	RedirectURIs []string
	Scopes       []string
	CreatedAt    time.Time
}

// AllowsRedirect compara exacto contra las URIs registradas.
func (c *Client) AllowsRedirect(uri string) bool {
	for _, r := range c.RedirectURIs {
		if r == uri {
			return true
		}
	}
	return false
}

// ClientRepository define operaciones sobre clientes OAuth.
type ClientRepository interface {
	// Get obtiene un client por su client_id.
	// Retorna ErrNotFound si no existe.
	Get(ctx context.Context, clientID string) (*Client, error)

	// List lista todos los clients ordenados por client_id.
	List(ctx context.Context) ([]Client, error)

	// Create persiste un client con el secret ya cifrado.
	// Retorna ErrConflict si el client_id ya existe.
	Create(ctx context.Context, c Client) error
}

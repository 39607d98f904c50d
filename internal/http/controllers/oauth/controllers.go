// Package oauth contiene los controllers de /authorize, /token e /introspect.
// Traducen HTTP a llamadas del GrantEngine; no tienen lógica de protocolo.
package oauth

import (
	svc "github.com/dropDatabas3/clinicauth/internal/oauth"
)

const maxFormBytes = 64 << 10

// BasicCredentials protege /introspect con HTTP Basic. Vacío = sin protección.
type BasicCredentials struct {
	User     string
	Password string
}

func (b BasicCredentials) enabled() bool { return b.User != "" }

// ControllerDeps dependencias de los controllers OAuth.
type ControllerDeps struct {
	Engine         *svc.Engine
	Authenticator  svc.Authenticator
	IntrospectAuth BasicCredentials
}

// Controllers agrupa todos los controllers del dominio OAuth.
type Controllers struct {
	Authorize  *AuthorizeController
	Token      *TokenController
	Introspect *IntrospectController
}

func NewControllers(d ControllerDeps) *Controllers {
	return &Controllers{
		Authorize:  NewAuthorizeController(d.Engine, d.Authenticator),
		Token:      NewTokenController(d.Engine),
		Introspect: NewIntrospectController(d.Engine, d.IntrospectAuth),
	}
}

package oauth

import (
	"errors"
	"net/url"
)

// Errores del protocolo. El controller los traduce al código OAuth2
// correspondiente; la causa interna solo se loguea.
var (
	ErrInvalidRequest       = errors.New("invalid_request")
	ErrUnauthorizedClient   = errors.New("unauthorized_client")
	ErrInvalidScope         = errors.New("invalid_scope")
	ErrInvalidGrant         = errors.New("invalid_grant")
	ErrUnsupportedGrantType = errors.New("unsupported_grant_type")
	ErrUnsupportedResponse  = errors.New("unsupported_response_type")
	ErrAccessDenied         = errors.New("access_denied")
	ErrServer               = errors.New("server_error")
)

var protocolErrors = []error{
	ErrInvalidRequest, ErrUnauthorizedClient, ErrInvalidScope, ErrInvalidGrant,
	ErrUnsupportedGrantType, ErrUnsupportedResponse, ErrAccessDenied, ErrServer,
}

// ErrorCode retorna el código OAuth2 de err. Cualquier error que no sea del
// protocolo es "server_error".
func ErrorCode(err error) string {
	for _, pe := range protocolErrors {
		if errors.Is(err, pe) {
			return pe.Error()
		}
	}
	return ErrServer.Error()
}

// RedirectError es un error de /authorize que se informa redirigiendo al
// cliente. Solo se construye después de verificar redirect_uri contra el
// client, así nunca se redirige a una URI no registrada.
type RedirectError struct {
	Err         error
	RedirectURI string
	State       string
}

func (e *RedirectError) Error() string { return e.Err.Error() }
func (e *RedirectError) Unwrap() error { return e.Err }

// Location arma redirect_uri?error=...&state=...
func (e *RedirectError) Location() string {
	q := url.Values{}
	q.Set("error", ErrorCode(e.Err))
	if e.State != "" {
		q.Set("state", e.State)
	}
	return appendQuery(e.RedirectURI, q)
}

func appendQuery(base string, q url.Values) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	cur := u.Query()
	for k, vs := range q {
		for _, v := range vs {
			cur.Add(k, v)
		}
	}
	u.RawQuery = cur.Encode()
	return u.String()
}

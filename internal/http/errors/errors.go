// Package errors escribe las respuestas de error del surface HTTP.
//
// Los endpoints OAuth responden {"error": "<código>", "error_description": "..."}
// con una descripción fija por código; la causa interna nunca sale al cliente.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/dropDatabas3/clinicauth/internal/oauth"
)

// OAuthError es el body JSON de error.
type OAuthError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

type mapping struct {
	status int
	desc   string
}

var byCode = map[string]mapping{
	"invalid_request":           {http.StatusBadRequest, "The request is missing a required parameter or is malformed."},
	"unauthorized_client":       {http.StatusBadRequest, "The client is not authorized to use this endpoint."},
	"invalid_scope":             {http.StatusBadRequest, "The requested scope is invalid or exceeds what was granted."},
	"invalid_grant":             {http.StatusBadRequest, "The provided grant is invalid, expired or was already used."},
	"unsupported_grant_type":    {http.StatusBadRequest, "The grant type is not supported."},
	"unsupported_response_type": {http.StatusBadRequest, "The response type is not supported."},
	"access_denied":             {http.StatusUnauthorized, "An authenticated user is required."},
	"invalid_client":            {http.StatusUnauthorized, "Client authentication failed."},
	"too_many_requests":         {http.StatusTooManyRequests, "Rate limit exceeded, retry later."},
	"method_not_allowed":        {http.StatusMethodNotAllowed, "Method not allowed."},
	"not_found":                 {http.StatusNotFound, "Not found."},
	"server_error":              {http.StatusInternalServerError, "The server encountered an unexpected condition."},
}

// Códigos que no vienen del engine.
const (
	CodeInvalidClient    = "invalid_client"
	CodeTooManyRequests  = "too_many_requests"
	CodeMethodNotAllowed = "method_not_allowed"
	CodeNotFound         = "not_found"
)

// StatusFor retorna el status HTTP de un código; desconocido => 500.
func StatusFor(code string) int {
	if m, ok := byCode[code]; ok {
		return m.status
	}
	return http.StatusInternalServerError
}

// WriteCode escribe el error con su status y descripción genérica.
func WriteCode(w http.ResponseWriter, code string) {
	m, ok := byCode[code]
	if !ok {
		code, m = "server_error", byCode["server_error"]
	}
	if m.status == http.StatusUnauthorized && code == CodeInvalidClient {
		w.Header().Set("WWW-Authenticate", `Basic realm="clinicauth"`)
	}
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	WriteJSON(w, m.status, OAuthError{Error: code, ErrorDescription: m.desc})
}

// WriteOAuth traduce un error del engine. Cualquier otro error es server_error.
func WriteOAuth(w http.ResponseWriter, err error) {
	var re *oauth.RedirectError
	if stderrors.As(err, &re) {
		err = re.Err
	}
	WriteCode(w, oauth.ErrorCode(err))
}

// WriteJSON serializa v completo antes de escribir headers, así un fallo de
// encoding no deja una respuesta a medias.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"server_error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

package oauth

import (
	"net/http"
	"net/url"
	"strings"

	httperrors "github.com/dropDatabas3/clinicauth/internal/http/errors"
	svc "github.com/dropDatabas3/clinicauth/internal/oauth"
)

// TokenController maneja POST /token.
type TokenController struct {
	engine *svc.Engine
}

func NewTokenController(e *svc.Engine) *TokenController {
	return &TokenController{engine: e}
}

// clientCredentials acepta client_secret_basic o client_secret_post, pero no
// ambos con valores distintos.
func clientCredentials(r *http.Request) (id, secret string, ok bool) {
	formID, formSecret := r.PostForm.Get("client_id"), r.PostForm.Get("client_secret")
	user, pass, hasBasic := r.BasicAuth()
	if !hasBasic {
		return formID, formSecret, true
	}
	// RFC 6749 §2.3.1: las credenciales Basic van form-urlencoded.
	bid, err1 := url.QueryUnescape(user)
	bsecret, err2 := url.QueryUnescape(pass)
	if err1 != nil || err2 != nil {
		return "", "", false
	}
	if (formID != "" && formID != bid) || formSecret != "" {
		return "", "", false
	}
	return bid, bsecret, true
}

func (c *TokenController) Token(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")

	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		httperrors.WriteOAuth(w, svc.ErrInvalidRequest)
		return
	}
	clientID, secret, ok := clientCredentials(r)
	if !ok {
		httperrors.WriteOAuth(w, svc.ErrInvalidRequest)
		return
	}

	resp, err := c.engine.Exchange(r.Context(), svc.TokenRequest{
		GrantType:    strings.TrimSpace(r.PostForm.Get("grant_type")),
		ClientID:     strings.TrimSpace(clientID),
		ClientSecret: secret,
		Code:         r.PostForm.Get("code"),
		RedirectURI:  strings.TrimSpace(r.PostForm.Get("redirect_uri")),
		RefreshToken: r.PostForm.Get("refresh_token"),
		Scope:        r.PostForm.Get("scope"),
	})
	if err != nil {
		httperrors.WriteOAuth(w, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, resp)
}

package oauth

import (
	"errors"
	"net/http"
	"strings"

	httperrors "github.com/dropDatabas3/clinicauth/internal/http/errors"
	svc "github.com/dropDatabas3/clinicauth/internal/oauth"
	"github.com/dropDatabas3/clinicauth/internal/observability/logger"
)

// AuthorizeController maneja GET|POST /authorize.
type AuthorizeController struct {
	engine *svc.Engine
	authn  svc.Authenticator
}

func NewAuthorizeController(e *svc.Engine, authn svc.Authenticator) *AuthorizeController {
	return &AuthorizeController{engine: e, authn: authn}
}

// Authorize emite el code y redirige a redirect_uri?code=…&state=….
// Los errores solo se redirigen cuando el engine ya verificó redirect_uri.
func (c *AuthorizeController) Authorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("AuthorizeController.Authorize"))

	w.Header().Add("Vary", "Cookie")
	w.Header().Add("Vary", "Authorization")
	w.Header().Set("Cache-Control", "no-store")

	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		httperrors.WriteOAuth(w, svc.ErrInvalidRequest)
		return
	}
	req := svc.AuthorizeRequest{
		ResponseType: strings.TrimSpace(r.Form.Get("response_type")),
		ClientID:     strings.TrimSpace(r.Form.Get("client_id")),
		RedirectURI:  strings.TrimSpace(r.Form.Get("redirect_uri")),
		Scope:        strings.TrimSpace(r.Form.Get("scope")),
		State:        r.Form.Get("state"),
	}

	var userID int64
	id, err := c.authn.Authenticate(r)
	switch {
	case err == nil:
		userID = id.UserID
	case errors.Is(err, svc.ErrUnauthenticated):
		log.Debug("no authenticated user")
	default:
		log.Error("authenticate failed", logger.Err(err))
		httperrors.WriteOAuth(w, svc.ErrServer)
		return
	}

	res, err := c.engine.Authorize(ctx, req, userID)
	if err != nil {
		var re *svc.RedirectError
		if errors.As(err, &re) {
			http.Redirect(w, r, re.Location(), http.StatusFound)
			return
		}
		httperrors.WriteOAuth(w, err)
		return
	}
	http.Redirect(w, r, res.Location(), http.StatusFound)
}

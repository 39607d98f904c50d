package oauth

import (
	"net/http"

	httperrors "github.com/dropDatabas3/clinicauth/internal/http/errors"
	svc "github.com/dropDatabas3/clinicauth/internal/oauth"
	tokens "github.com/dropDatabas3/clinicauth/internal/security/token"
)

// IntrospectController maneja POST /introspect.
type IntrospectController struct {
	engine *svc.Engine
	basic  BasicCredentials
}

func NewIntrospectController(e *svc.Engine, basic BasicCredentials) *IntrospectController {
	return &IntrospectController{engine: e, basic: basic}
}

func (c *IntrospectController) authorized(r *http.Request) bool {
	if !c.basic.enabled() {
		return true
	}
	u, p, ok := r.BasicAuth()
	// Evaluar ambos siempre para no filtrar cuál falló por timing.
	uok := tokens.Equal(u, c.basic.User)
	pok := tokens.Equal(p, c.basic.Password)
	return ok && uok && pok
}

// Introspect responde {"active":false} idéntico para token desconocido,
// vencido o ausente.
func (c *IntrospectController) Introspect(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")

	if !c.authorized(r) {
		httperrors.WriteCode(w, httperrors.CodeInvalidClient)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		httperrors.WriteOAuth(w, svc.ErrInvalidRequest)
		return
	}
	res := c.engine.Introspect(r.Context(), r.PostForm.Get("token"))
	httperrors.WriteJSON(w, http.StatusOK, res)
}

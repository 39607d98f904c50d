// Package router arma el http.Handler del servicio sobre chi.
package router

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	healthctrl "github.com/dropDatabas3/clinicauth/internal/http/controllers/health"
	oauthctrl "github.com/dropDatabas3/clinicauth/internal/http/controllers/oauth"
	httperrors "github.com/dropDatabas3/clinicauth/internal/http/errors"
	mw "github.com/dropDatabas3/clinicauth/internal/http/middlewares"
	"github.com/dropDatabas3/clinicauth/internal/rate"
)

// Deps contiene todo lo que el router necesita.
type Deps struct {
	// BasePath prefija los endpoints OAuth ("" o "/oauth"). /healthz y
	// /metrics quedan siempre en la raíz.
	BasePath string

	OAuth  *oauthctrl.Controllers
	Health *healthctrl.HealthController

	// Opcionales.
	Limiter        rate.Limiter
	HTTPMetrics    *mw.HTTPMetrics
	MetricsHandler http.Handler
}

// New registra las rutas:
//
//	GET|POST {base}/authorize
//	POST     {base}/token
//	POST     {base}/introspect
//	GET      /healthz
//	GET      /metrics
func New(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithLogging(),
		d.HTTPMetrics.Middleware(),
		mw.WithSecurityHeaders(),
	)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteCode(w, httperrors.CodeNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteCode(w, httperrors.CodeMethodNotAllowed)
	})

	if d.Health != nil {
		r.Get("/healthz", d.Health.Healthz)
	}
	if d.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", d.MetricsHandler)
	}

	oauthRoutes := func(r chi.Router) {
		r.Use(mw.WithRateLimit(mw.RateLimitConfig{Limiter: d.Limiter}))
		c := d.OAuth
		r.Get("/authorize", c.Authorize.Authorize)
		r.Post("/authorize", c.Authorize.Authorize)
		r.With(mw.WithNoStore()).Post("/token", c.Token.Token)
		r.With(mw.WithNoStore()).Post("/introspect", c.Introspect.Introspect)
	}

	base := strings.TrimRight(d.BasePath, "/")
	if base == "" {
		r.Group(oauthRoutes)
	} else {
		r.Route(base, oauthRoutes)
	}
	return r
}

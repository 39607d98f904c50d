// Package health contiene el controller de /healthz.
package health

import (
	"context"
	"net/http"
	"time"

	httperrors "github.com/dropDatabas3/clinicauth/internal/http/errors"
	"github.com/dropDatabas3/clinicauth/internal/observability/logger"
)

// Pinger es lo que el health check necesita del store.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Response struct {
	Status string `json:"status"`
}

type HealthController struct {
	store   Pinger
	timeout time.Duration
}

func NewHealthController(store Pinger, timeout time.Duration) *HealthController {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HealthController{store: store, timeout: timeout}
}

// Healthz maneja GET /healthz: 200 si el store responde, 503 si no.
func (c *HealthController) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), c.timeout)
	defer cancel()
	w.Header().Set("Cache-Control", "no-store")

	if err := c.store.Ping(ctx); err != nil {
		logger.From(ctx).Warn("health check failed",
			logger.Layer("controller"), logger.Op("HealthController.Healthz"), logger.Err(err))
		httperrors.WriteJSON(w, http.StatusServiceUnavailable, Response{Status: "unavailable"})
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, Response{Status: "ok"})
}

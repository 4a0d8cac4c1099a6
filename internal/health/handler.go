// Package health exposes the liveness/readiness endpoint.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"appregistry/internal/transport/http/shared"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handler serves /healthz. It stays outside the auth chain so load
// balancers can probe without credentials.
type Handler struct {
	logger *slog.Logger
	db     Pinger
}

func New(db Pinger, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, db: db}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	code := http.StatusOK
	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			h.logger.ErrorContext(ctx, "health check failed", "error", err.Error())
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	shared.WriteJSON(w, code, map[string]string{"status": status})
}

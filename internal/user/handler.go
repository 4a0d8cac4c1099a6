package user

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"appregistry/internal/platform/metrics"
	"appregistry/internal/platform/middleware"
	"appregistry/internal/transport/http/shared"
	"appregistry/pkg/requestcontext"
)

// Handler exposes the caller's own directory record.
type Handler struct {
	logger       *slog.Logger
	service      *Service
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

func NewHandler(service *Service, logger *slog.Logger, m *metrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		service:      service,
		metrics:      m,
		jwtValidator: jwtValidator,
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequestID)
		r.Use(middleware.Recovery(h.logger))
		r.Use(middleware.Logger(h.logger))
		r.Use(middleware.Timeout(30 * time.Second))
		r.Use(middleware.Latency(h.metrics))
		r.Use(middleware.RequireAuth(h.jwtValidator, h.service, h.logger))

		r.Get("/users/me", h.handleMe)
	})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.GetByID(r.Context(), requestcontext.UserID(r.Context()))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, u)
}

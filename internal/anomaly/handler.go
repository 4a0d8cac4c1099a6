package anomaly

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"appregistry/internal/platform/metrics"
	"appregistry/internal/platform/middleware"
	"appregistry/internal/transport/http/shared"
	id "appregistry/pkg/domain"
	dErrors "appregistry/pkg/domain-errors"
	"appregistry/pkg/requestcontext"
)

// Handler handles anomaly-notification endpoints.
type Handler struct {
	logger       *slog.Logger
	service      *Service
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
	users        middleware.UserResolver
}

// NewHandler creates a new anomaly Handler.
func NewHandler(
	service *Service,
	logger *slog.Logger,
	m *metrics.Metrics,
	jwtValidator middleware.JWTValidator,
	users middleware.UserResolver) *Handler {
	return &Handler{
		logger:       logger,
		service:      service,
		metrics:      m,
		jwtValidator: jwtValidator,
		users:        users,
	}
}

// Register registers the anomaly routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequestID)
		r.Use(middleware.Recovery(h.logger))
		r.Use(middleware.Logger(h.logger))
		r.Use(middleware.Timeout(30 * time.Second))
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.Latency(h.metrics))
		r.Use(middleware.RequireAuth(h.jwtValidator, h.users, h.logger))

		r.Post("/anomaly-notifications", h.handleCreate)
		r.Get("/anomaly-notifications", h.handleList)
		r.Get("/anomaly-notifications/user-notifications", h.handleListForCaller)
		r.Get("/anomaly-notifications/application/{applicationID}", h.handleListForApplication)
		r.Get("/anomaly-notifications/{notificationID}", h.handleGet)
		r.Patch("/anomaly-notifications/{notificationID}", h.handleUpdate)
		r.Delete("/anomaly-notifications/{notificationID}", h.handleDelete)
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid create notification request",
			"request_id", requestcontext.RequestID(ctx), "error", err.Error())
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	n, err := h.service.Create(ctx, req)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, n)
}

func (h *Handler) handleListForCaller(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.ListForCaller(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, views)
}

func (h *Handler) handleListForApplication(w http.ResponseWriter, r *http.Request) {
	appID, err := id.ParseApplicationID(chi.URLParam(r, "applicationID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	views, err := h.service.ListForApplication(r.Context(), appID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, views)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	notifications, err := h.service.List(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, notifications)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	notificationID, err := id.ParseNotificationID(chi.URLParam(r, "notificationID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	n, err := h.service.Get(r.Context(), notificationID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, n)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	notificationID, err := id.ParseNotificationID(chi.URLParam(r, "notificationID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	n, err := h.service.Update(r.Context(), notificationID, req)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, n)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	notificationID, err := id.ParseNotificationID(chi.URLParam(r, "notificationID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	if err := h.service.Delete(r.Context(), notificationID); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

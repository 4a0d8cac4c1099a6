// Package handler exposes the application registry over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"appregistry/internal/application/models"
	"appregistry/internal/platform/metrics"
	"appregistry/internal/platform/middleware"
	"appregistry/internal/transport/http/shared"
	id "appregistry/pkg/domain"
	dErrors "appregistry/pkg/domain-errors"
	"appregistry/pkg/requestcontext"
)

// Service defines the application operations the handler needs.
type Service interface {
	Create(ctx context.Context, req models.CreateApplicationRequest) (*models.Application, error)
	Update(ctx context.Context, appID id.ApplicationID, req models.PatchApplicationRequest) (*models.Application, error)
	Get(ctx context.Context, appID id.ApplicationID) (*models.Application, error)
	List(ctx context.Context, page, limit int) ([]*models.Application, error)
	Delete(ctx context.Context, appID id.ApplicationID) error
	Search(ctx context.Context, q models.SearchQuery) ([]*models.Application, error)
	ExportCSV(ctx context.Context, w io.Writer) error
}

// Handler handles application endpoints.
type Handler struct {
	logger       *slog.Logger
	applications Service
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
	users        middleware.UserResolver
}

// New creates a new application Handler.
func New(
	applications Service,
	logger *slog.Logger,
	m *metrics.Metrics,
	jwtValidator middleware.JWTValidator,
	users middleware.UserResolver) *Handler {
	return &Handler{
		logger:       logger,
		applications: applications,
		metrics:      m,
		jwtValidator: jwtValidator,
		users:        users,
	}
}

// Register registers the application routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequestID)
		r.Use(middleware.Recovery(h.logger))
		r.Use(middleware.Logger(h.logger))
		r.Use(middleware.Timeout(30 * time.Second))
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.Latency(h.metrics))
		r.Use(middleware.RequireAuth(h.jwtValidator, h.users, h.logger))

		r.Post("/applications", h.handleCreate)
		r.Get("/applications", h.handleList)
		r.Get("/applications/search", h.handleSearch)
		r.Get("/applications/export", h.handleExport)
		r.Get("/applications/{applicationID}", h.handleGet)
		r.Patch("/applications/{applicationID}", h.handleUpdate)
		r.Delete("/applications/{applicationID}", h.handleDelete)
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.CreateApplicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid create application request",
			"request_id", requestcontext.RequestID(ctx), "error", err.Error())
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	app, err := h.applications.Create(ctx, req)
	if err != nil {
		h.writeFailure(ctx, w, err, "failed to create application")
		return
	}
	shared.WriteJSON(w, http.StatusCreated, app)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, limit := pagination(r)

	apps, err := h.applications.List(ctx, page, limit)
	if err != nil {
		h.writeFailure(ctx, w, err, "failed to list applications")
		return
	}
	shared.WriteJSON(w, http.StatusOK, apps)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, limit := pagination(r)

	params := r.URL.Query()
	q := models.SearchQuery{
		Label: params.Get("label"),
		Tags:  splitTags(append(params["tag"], params["tags"]...)),
		Link:  params.Get("link"),
		Page:  page,
		Limit: limit,
	}

	apps, err := h.applications.Search(ctx, q)
	if err != nil {
		h.writeFailure(ctx, w, err, "failed to search applications")
		return
	}
	shared.WriteJSON(w, http.StatusOK, apps)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="applications.csv"`)
	if err := h.applications.ExportCSV(ctx, w); err != nil {
		// Headers are already committed; log instead of rewriting the body.
		h.logger.ErrorContext(ctx, "failed to export applications",
			"request_id", requestcontext.RequestID(ctx), "error", err.Error())
	}
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	appID, err := id.ParseApplicationID(chi.URLParam(r, "applicationID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	app, err := h.applications.Get(ctx, appID)
	if err != nil {
		h.writeFailure(ctx, w, err, "failed to fetch application")
		return
	}
	shared.WriteJSON(w, http.StatusOK, app)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	appID, err := id.ParseApplicationID(chi.URLParam(r, "applicationID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req models.PatchApplicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid update application request",
			"request_id", requestcontext.RequestID(ctx), "error", err.Error())
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	app, err := h.applications.Update(ctx, appID, req)
	if err != nil {
		h.writeFailure(ctx, w, err, "failed to update application")
		return
	}
	shared.WriteJSON(w, http.StatusOK, app)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	appID, err := id.ParseApplicationID(chi.URLParam(r, "applicationID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	if err := h.applications.Delete(ctx, appID); err != nil {
		h.writeFailure(ctx, w, err, "failed to delete application")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeFailure logs server-side failures and keeps client errors at their
// coded status.
func (h *Handler) writeFailure(ctx context.Context, w http.ResponseWriter, err error, msg string) {
	if dErrors.HasCode(err, dErrors.CodeInternal) {
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestcontext.RequestID(ctx), "error", err.Error())
	} else {
		h.logger.WarnContext(ctx, msg,
			"request_id", requestcontext.RequestID(ctx), "error", err.Error())
	}
	shared.WriteError(w, err)
}

func pagination(r *http.Request) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	return page, limit
}

// splitTags accepts repeated tag parameters and comma-separated lists.
func splitTags(raw []string) []string {
	var tags []string
	for _, entry := range raw {
		for _, tag := range strings.Split(entry, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
	}
	return tags
}

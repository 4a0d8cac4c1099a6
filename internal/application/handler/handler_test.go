package handler_test

import (
	"bytes"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appregistry/internal/application/handler"
	"appregistry/internal/application/models"
	"appregistry/internal/application/service"
	"appregistry/internal/application/store"
	"appregistry/internal/platform/middleware"
	"appregistry/internal/user"
	"appregistry/pkg/testutil"
)

// staticValidator accepts one token and maps it to a fixed identity.
type staticValidator struct {
	token  string
	claims middleware.JWTClaims
}

func (v staticValidator) ValidateToken(token string) (*middleware.JWTClaims, error) {
	if token != v.token {
		return nil, assert.AnError
	}
	claims := v.claims
	return &claims, nil
}

func newTestRouter(t *testing.T) chi.Router {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	users := user.NewService(user.NewInMemoryStore(), nil, logger)
	st := store.NewInMemoryStore()
	svc := service.NewService(st, service.PassthroughTx{Store: st}, users, nil, logger)

	validator := staticValidator{
		token:  "good-token",
		claims: middleware.JWTClaims{Subject: "idp-1", Email: "owner@example.org"},
	}

	r := chi.NewRouter()
	handler.New(svc, logger, nil, validator, users).Register(r)
	return r
}

func authed(req *http.Request) *http.Request {
	req.Header.Set("Authorization", "Bearer good-token")
	return req
}

func createBody() map[string]any {
	return map[string]any{
		"label":       "Payroll",
		"description": "salary runs",
		"tags":        []string{"internal"},
		"lifecycle": map[string]any{
			"status":              "in_production",
			"firstProductionDate": "2020-01-15",
		},
	}
}

func TestCreateApplication(t *testing.T) {
	r := newTestRouter(t)

	rr := testutil.DoRequest(r, authed(testutil.NewJSONRequest(t, http.MethodPost, "/applications", createBody())))
	testutil.AssertStatus(t, rr, http.StatusCreated)

	app := testutil.UnmarshalResponse[models.Application](t, rr)
	assert.Equal(t, "Payroll", app.Label)
	require.NotEmpty(t, app.Actors)
	assert.Equal(t, models.OwnerRole, app.Actors[0].Role)
	assert.Equal(t, "owner@example.org", app.Actors[0].Email)
}

func TestCreateApplication_RequiresAuth(t *testing.T) {
	r := newTestRouter(t)

	rr := testutil.DoRequest(r, testutil.NewJSONRequest(t, http.MethodPost, "/applications", createBody()))
	testutil.AssertStatus(t, rr, http.StatusUnauthorized)
}

func TestCreateApplication_RejectsMalformedBody(t *testing.T) {
	r := newTestRouter(t)

	rr := testutil.DoRequest(r, authed(testutil.NewRequestWithBody(t, http.MethodPost, "/applications", "{not json")))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "invalid_input")
}

func TestGetApplication(t *testing.T) {
	r := newTestRouter(t)
	rr := testutil.DoRequest(r, authed(testutil.NewJSONRequest(t, http.MethodPost, "/applications", createBody())))
	created := testutil.UnmarshalResponse[models.Application](t, rr)

	rr = testutil.DoRequest(r, authed(testutil.NewRequest(t, http.MethodGet, "/applications/"+created.ID.String())))
	testutil.AssertStatusOK(t, rr)
	got := testutil.UnmarshalResponse[models.Application](t, rr)
	assert.Equal(t, created.ID, got.ID)
}

func TestGetApplication_UnknownID(t *testing.T) {
	r := newTestRouter(t)

	rr := testutil.DoRequest(r, authed(testutil.NewRequest(t, http.MethodGet, "/applications/5f64e6a2-0000-4000-8000-000000000001")))
	testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
}

func TestGetApplication_MalformedID(t *testing.T) {
	r := newTestRouter(t)

	rr := testutil.DoRequest(r, authed(testutil.NewRequest(t, http.MethodGet, "/applications/not-a-uuid")))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "invalid_input")
}

func TestPatchApplication(t *testing.T) {
	r := newTestRouter(t)
	rr := testutil.DoRequest(r, authed(testutil.NewJSONRequest(t, http.MethodPost, "/applications", createBody())))
	created := testutil.UnmarshalResponse[models.Application](t, rr)

	rr = testutil.DoRequest(r, authed(testutil.NewJSONRequest(t, http.MethodPatch,
		"/applications/"+created.ID.String(), map[string]any{"label": "Payroll v2"})))
	testutil.AssertStatusOK(t, rr)
	updated := testutil.UnmarshalResponse[models.Application](t, rr)
	assert.Equal(t, "Payroll v2", updated.Label)
	assert.Equal(t, created.Description, updated.Description)
}

func TestPatchApplication_LifecycleBackwardsConflicts(t *testing.T) {
	r := newTestRouter(t)
	rr := testutil.DoRequest(r, authed(testutil.NewJSONRequest(t, http.MethodPost, "/applications", createBody())))
	created := testutil.UnmarshalResponse[models.Application](t, rr)

	rr = testutil.DoRequest(r, authed(testutil.NewJSONRequest(t, http.MethodPatch,
		"/applications/"+created.ID.String(),
		map[string]any{"lifecycle": map[string]any{"status": "under_construction"}})))
	testutil.AssertStatusAndError(t, rr, http.StatusConflict, "invariant_violation")
}

func TestDeleteApplication(t *testing.T) {
	r := newTestRouter(t)
	rr := testutil.DoRequest(r, authed(testutil.NewJSONRequest(t, http.MethodPost, "/applications", createBody())))
	created := testutil.UnmarshalResponse[models.Application](t, rr)

	rr = testutil.DoRequest(r, authed(testutil.NewRequest(t, http.MethodDelete, "/applications/"+created.ID.String())))
	testutil.AssertStatus(t, rr, http.StatusNoContent)

	rr = testutil.DoRequest(r, authed(testutil.NewRequest(t, http.MethodGet, "/applications/"+created.ID.String())))
	testutil.AssertStatus(t, rr, http.StatusNotFound)
}

func TestListApplications(t *testing.T) {
	r := newTestRouter(t)
	for i := 0; i < 3; i++ {
		testutil.DoRequest(r, authed(testutil.NewJSONRequest(t, http.MethodPost, "/applications", createBody())))
	}

	rr := testutil.DoRequest(r, authed(testutil.NewRequest(t, http.MethodGet, "/applications?page=1&limit=2")))
	testutil.AssertStatusOK(t, rr)
	apps := testutil.UnmarshalResponse[[]models.Application](t, rr)
	assert.Len(t, *apps, 2)
}

func TestSearchApplications(t *testing.T) {
	r := newTestRouter(t)
	body := createBody()
	body["label"] = "Référentiel"
	testutil.DoRequest(r, authed(testutil.NewJSONRequest(t, http.MethodPost, "/applications", body)))
	testutil.DoRequest(r, authed(testutil.NewJSONRequest(t, http.MethodPost, "/applications", createBody())))

	rr := testutil.DoRequest(r, authed(testutil.NewRequest(t, http.MethodGet, "/applications/search?label=referentiel")))
	testutil.AssertStatusOK(t, rr)
	apps := testutil.UnmarshalResponse[[]models.Application](t, rr)
	require.Len(t, *apps, 1)
	assert.Equal(t, "Référentiel", (*apps)[0].Label)
}

func TestSearchApplications_ByTagParam(t *testing.T) {
	r := newTestRouter(t)
	body := createBody()
	body["label"] = "Tagged"
	body["tags"] = []string{"Sécurité"}
	testutil.DoRequest(r, authed(testutil.NewJSONRequest(t, http.MethodPost, "/applications", body)))
	testutil.DoRequest(r, authed(testutil.NewJSONRequest(t, http.MethodPost, "/applications", createBody())))

	// The singular tag parameter filters, folding case and accents.
	rr := testutil.DoRequest(r, authed(testutil.NewRequest(t, http.MethodGet, "/applications/search?tag=securite")))
	testutil.AssertStatusOK(t, rr)
	apps := testutil.UnmarshalResponse[[]models.Application](t, rr)
	require.Len(t, *apps, 1)
	assert.Equal(t, "Tagged", (*apps)[0].Label)

	rr = testutil.DoRequest(r, authed(testutil.NewRequest(t, http.MethodGet, "/applications/search?tags=securite")))
	testutil.AssertStatusOK(t, rr)
	apps = testutil.UnmarshalResponse[[]models.Application](t, rr)
	require.Len(t, *apps, 1)
	assert.Equal(t, "Tagged", (*apps)[0].Label)
}

func TestExportApplications(t *testing.T) {
	r := newTestRouter(t)
	testutil.DoRequest(r, authed(testutil.NewJSONRequest(t, http.MethodPost, "/applications", createBody())))

	rr := testutil.DoRequest(r, authed(testutil.NewRequest(t, http.MethodGet, "/applications/export")))
	testutil.AssertStatusOK(t, rr)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rr.Body.String(), "Payroll")
}

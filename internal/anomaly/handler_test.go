package anomaly

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appmodels "appregistry/internal/application/models"
	appservice "appregistry/internal/application/service"
	appstore "appregistry/internal/application/store"
	"appregistry/internal/platform/middleware"
	"appregistry/internal/user"
	"appregistry/pkg/requestcontext"
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

func newTestRouter(t *testing.T) (chi.Router, *appmodels.Application) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	users := user.NewService(user.NewInMemoryStore(), nil, logger)

	reporter, err := users.FindOrCreateByEmail(context.Background(), "reporter@example.org", "idp-1")
	require.NoError(t, err)

	st := appstore.NewInMemoryStore()
	apps := appservice.NewService(st, appservice.PassthroughTx{Store: st}, users, nil, logger)

	ctx := requestcontext.WithUserID(context.Background(), reporter.ID)
	ctx = requestcontext.WithUserEmail(ctx, reporter.Email)
	app, err := apps.Create(ctx, appmodels.CreateApplicationRequest{
		Label: "Payroll",
		Lifecycle: appmodels.CreateLifecycle{
			Status:              "in_production",
			FirstProductionDate: "2020-01-15",
		},
	})
	require.NoError(t, err)

	validator := staticValidator{
		token:  "good-token",
		claims: middleware.JWTClaims{Subject: "idp-1", Email: "reporter@example.org"},
	}

	svc := NewService(NewInMemoryStore(), apps, users, nil, logger)
	r := chi.NewRouter()
	NewHandler(svc, logger, nil, validator, users).Register(r)
	return r, app
}

func authed(req *http.Request) *http.Request {
	req.Header.Set("Authorization", "Bearer good-token")
	return req
}

func TestHandleCreate(t *testing.T) {
	r, app := newTestRouter(t)

	rr := testutil.DoRequest(r, authed(testutil.NewJSONRequest(t, http.MethodPost, "/anomaly-notifications",
		map[string]any{"applicationId": app.ID.String(), "description": "login page returns 500"})))
	testutil.AssertStatus(t, rr, http.StatusCreated)

	n := testutil.UnmarshalResponse[Notification](t, rr)
	assert.Equal(t, StatusPending, n.Status)
	assert.Equal(t, app.ID, n.ApplicationID)
}

func TestHandleCreate_RequiresAuth(t *testing.T) {
	r, app := newTestRouter(t)

	rr := testutil.DoRequest(r, testutil.NewJSONRequest(t, http.MethodPost, "/anomaly-notifications",
		map[string]any{"applicationId": app.ID.String(), "description": "broken"}))
	testutil.AssertStatus(t, rr, http.StatusUnauthorized)
}

func TestHandleCreate_RejectsMalformedBody(t *testing.T) {
	r, _ := newTestRouter(t)

	rr := testutil.DoRequest(r, authed(testutil.NewRequestWithBody(t, http.MethodPost, "/anomaly-notifications", "{not json")))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "invalid_input")
}

func TestHandleListForCaller(t *testing.T) {
	r, app := newTestRouter(t)
	testutil.DoRequest(r, authed(testutil.NewJSONRequest(t, http.MethodPost, "/anomaly-notifications",
		map[string]any{"applicationId": app.ID.String(), "description": "broken"})))

	rr := testutil.DoRequest(r, authed(testutil.NewRequest(t, http.MethodGet, "/anomaly-notifications/user-notifications")))
	testutil.AssertStatusOK(t, rr)
	views := testutil.UnmarshalResponse[[]ApplicationView](t, rr)
	require.Len(t, *views, 1)
	assert.Equal(t, "Payroll", (*views)[0].ApplicationLabel)
}

func TestHandleListForApplication(t *testing.T) {
	r, app := newTestRouter(t)
	testutil.DoRequest(r, authed(testutil.NewJSONRequest(t, http.MethodPost, "/anomaly-notifications",
		map[string]any{"applicationId": app.ID.String(), "description": "broken"})))

	rr := testutil.DoRequest(r, authed(testutil.NewRequest(t, http.MethodGet,
		"/anomaly-notifications/application/"+app.ID.String())))
	testutil.AssertStatusOK(t, rr)
	views := testutil.UnmarshalResponse[[]NotifierView](t, rr)
	require.Len(t, *views, 1)
	assert.Equal(t, "reporter@example.org", (*views)[0].NotifierEmail)
}

func TestHandleUpdate(t *testing.T) {
	r, app := newTestRouter(t)
	rr := testutil.DoRequest(r, authed(testutil.NewJSONRequest(t, http.MethodPost, "/anomaly-notifications",
		map[string]any{"applicationId": app.ID.String(), "description": "broken"})))
	created := testutil.UnmarshalResponse[Notification](t, rr)

	rr = testutil.DoRequest(r, authed(testutil.NewJSONRequest(t, http.MethodPatch,
		"/anomaly-notifications/"+created.ID.String(), map[string]any{"status": "in_progress"})))
	testutil.AssertStatusOK(t, rr)
	updated := testutil.UnmarshalResponse[Notification](t, rr)
	assert.Equal(t, StatusInProgress, updated.Status)
}

func TestHandleList(t *testing.T) {
	r, app := newTestRouter(t)
	testutil.DoRequest(r, authed(testutil.NewJSONRequest(t, http.MethodPost, "/anomaly-notifications",
		map[string]any{"applicationId": app.ID.String(), "description": "broken"})))

	rr := testutil.DoRequest(r, authed(testutil.NewRequest(t, http.MethodGet, "/anomaly-notifications")))
	testutil.AssertStatusOK(t, rr)
	all := testutil.UnmarshalResponse[[]Notification](t, rr)
	assert.Len(t, *all, 1)
}

func TestHandleGet(t *testing.T) {
	r, app := newTestRouter(t)
	rr := testutil.DoRequest(r, authed(testutil.NewJSONRequest(t, http.MethodPost, "/anomaly-notifications",
		map[string]any{"applicationId": app.ID.String(), "description": "broken"})))
	created := testutil.UnmarshalResponse[Notification](t, rr)

	rr = testutil.DoRequest(r, authed(testutil.NewRequest(t, http.MethodGet,
		"/anomaly-notifications/"+created.ID.String())))
	testutil.AssertStatusOK(t, rr)
	got := testutil.UnmarshalResponse[Notification](t, rr)
	assert.Equal(t, created.ID, got.ID)
}

func TestHandleDelete(t *testing.T) {
	r, app := newTestRouter(t)
	rr := testutil.DoRequest(r, authed(testutil.NewJSONRequest(t, http.MethodPost, "/anomaly-notifications",
		map[string]any{"applicationId": app.ID.String(), "description": "broken"})))
	created := testutil.UnmarshalResponse[Notification](t, rr)

	rr = testutil.DoRequest(r, authed(testutil.NewRequest(t, http.MethodDelete,
		"/anomaly-notifications/"+created.ID.String())))
	testutil.AssertStatus(t, rr, http.StatusNoContent)

	rr = testutil.DoRequest(r, authed(testutil.NewRequest(t, http.MethodGet,
		"/anomaly-notifications/"+created.ID.String())))
	testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
}

func TestHandleUpdate_MalformedID(t *testing.T) {
	r, _ := newTestRouter(t)

	rr := testutil.DoRequest(r, authed(testutil.NewJSONRequest(t, http.MethodPatch,
		"/anomaly-notifications/not-a-uuid", map[string]any{"status": "done"})))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "invalid_input")
}

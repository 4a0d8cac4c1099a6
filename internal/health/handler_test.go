package health

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"

	"appregistry/pkg/testutil"
)

type stubPinger struct{ err error }

func (p stubPinger) PingContext(context.Context) error { return p.err }

func newRouter(p Pinger) chi.Router {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	r := chi.NewRouter()
	New(p, logger).Register(r)
	return r
}

func TestHealth_OK(t *testing.T) {
	r := newRouter(stubPinger{})
	rr := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/healthz"))
	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "status", "ok")
}

func TestHealth_DatabaseDown(t *testing.T) {
	r := newRouter(stubPinger{err: errors.New("connection refused")})
	rr := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/healthz"))
	testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
	testutil.AssertJSONContains(t, rr, "status", "degraded")
}

// Package httpserver constructs the registry's HTTP server.
package httpserver

import (
	"net/http"
	"time"
)

// New builds the process HTTP server. Read timeouts guard against slow
// clients; there is no write timeout because the catalog export streams
// its response, and per-request deadlines are enforced by the timeout
// middleware instead.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}

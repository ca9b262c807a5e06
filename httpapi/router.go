// Package httpapi implements the HTTP Surface: routing, content
// negotiation, pagination, download disposition, and the error envelope.
//
// Grounded on the teacher's use of chi as the router underneath
// fs/rc/rcserver (wildcard path segments, a router mounted on top of a
// plain net/http.Server) and on cmd/serve/http/http_test.go for the
// httptest.NewServer-driven end-to-end test style adopted by this
// package's own tests.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/SmilyOrg/timeship/storage"
)

// NewRouter builds the full routed handler for the registry reg, mounted
// at whatever prefix the caller mounts it under (the prefix itself is
// applied by the caller via chi's Mount or http.StripPrefix — this router
// only knows about paths relative to the API root).
func NewRouter(reg *storage.Registry, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()
	r.Use(recoverer(logger))
	r.Use(requestLogger(logger))
	// CleanPath collapses "." and ".." segments before routing, so a
	// traversal attempt like "/nodes/../outside.txt" either lands on a
	// route that never existed (404) or on a locator the gateway would
	// have refused anyway — either way outside.txt is never reachable.
	// locator.Normalize still rejects any ".." that reaches it, since the
	// security boundary is the gateway, not this middleware.
	r.Use(middleware.CleanPath)

	h := &handlers{reg: reg, logger: logger}

	r.Get("/storages", h.listStorages)
	r.Get("/storages/{storage}/nodes", h.getNode)
	r.Get("/storages/{storage}/nodes/*", h.getNode)
	r.Get("/storages/{storage}/snapshots", h.getSnapshots)
	r.Get("/storages/{storage}/snapshots/*", h.getSnapshots)

	for _, route := range []string{
		"/storages/{storage}/nodes",
		"/storages/{storage}/nodes/*",
		"/storages/{storage}/copies",
		"/storages/{storage}/copies/*",
		"/storages/{storage}/moves",
		"/storages/{storage}/moves/*",
		"/storages/{storage}/archives",
		"/storages/{storage}/archives/*",
	} {
		r.Delete(route, notSupported)
		r.Patch(route, notSupported)
		r.Post(route, notSupported)
	}

	return r
}

type handlers struct {
	reg    *storage.Registry
	logger *slog.Logger
}

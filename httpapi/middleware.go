package httpapi

import (
	"log/slog"
	"net/http"
	"time"
)

// statusRecorder captures the status code written through it so the
// logging middleware can report it after the handler returns.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// requestLogger logs one line per request on completion: method, URL path,
// status, duration. Grounded on the teacher's request-scoped slog usage in
// fs/log (one structured record per significant event, not one line per
// internal step).
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start),
			)
		})
	}
}

// recoverer turns a panic inside a handler into a 500 with the standard
// envelope instead of crashing the process, matching net/http's own
// per-request panic isolation but giving it timeship's wire shape.
func recoverer(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", "error", rec, "path", r.URL.Path)
					writeError(w, r, errInternal(rec))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

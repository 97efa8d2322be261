package metrics

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// Middleware returns a chi middleware that records request metrics into m.
func (m *HTTP) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		routePattern := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			routePattern = rctx.RoutePattern()
		}
		if routePattern == "" {
			routePattern = "unknown"
		}

		m.ObserveRequest(r.Method, routePattern, ww.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (rw *statusWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

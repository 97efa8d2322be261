package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/memscope/internal/callstat"
	"github.com/JakeFAU/memscope/internal/metrics"
	"github.com/JakeFAU/memscope/internal/vfs"
)

const (
	requestTimeout = 60 * time.Second
	// maxObjectFileSize bounds a single object file read.
	maxObjectFileSize = 16 << 20
	readChunkSize     = 64 << 10
)

// Server wires HTTP handlers to the statistics registry and object renderers.
type Server struct {
	router  chi.Router
	stats   *callstat.Registry
	objects *vfs.Registry
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes. The callstat
// collector and HTTP metrics are registered with reg, which is also served on
// /metrics. scans may be nil when no device is attached.
func NewServer(
	stats *callstat.Registry,
	objects *vfs.Registry,
	scans *ScanHandler,
	reg *prometheus.Registry,
	logger *zap.Logger,
) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if objects == nil {
		objects = vfs.NewRegistry()
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	if err := reg.Register(callstat.NewCollector(stats)); err != nil {
		return nil, fmt.Errorf("register call statistics collector: %w", err)
	}
	httpMetrics, err := metrics.NewHTTP(reg)
	if err != nil {
		return nil, err
	}

	s := &Server{
		stats:   stats,
		objects: objects,
		logger:  logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(httpMetrics.Middleware)
	r.Use(timeoutMiddleware(requestTimeout))

	r.Get("/healthz", s.healthz)
	r.Handle("/metrics", metrics.Handler(reg))

	r.Route("/v1", func(r chi.Router) {
		r.Route("/statistics", func(r chi.Router) {
			r.Get("/", s.getStatistics)
			r.Get("/enabled", s.getEnabled)
			r.Put("/enabled", s.putEnabled)
		})
		r.Get("/files", s.listFiles)
		r.Route("/objects/{type}/{va}", func(r chi.Router) {
			r.Get("/", s.listObject)
			r.Get("/{name}", s.readObject)
		})
		r.Route("/scans", func(r chi.Router) {
			r.Post("/", scans.Start)
			r.Get("/", scans.List)
			r.Get("/{scan_id}", scans.Get)
		})
	})

	s.router = r
	return s, nil
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// getStatistics serves statistics.txt. Range and HEAD requests are honored.
func (s *Server) getStatistics(w http.ResponseWriter, r *http.Request) {
	start := s.stats.Start()
	defer s.stats.End(callstat.KindVfsRead, start)

	file := vfs.StatisticsFile{Source: s.stats}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	http.ServeContent(w, r, vfs.StatisticsFileName, time.Time{}, file.Open())
}

type enabledPayload struct {
	Enabled *bool `json:"enabled"`
}

func (s *Server) getEnabled(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": s.stats.IsEnabled()})
}

func (s *Server) putEnabled(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		writeError(w, http.StatusServiceUnavailable, "call statistics unavailable")
		return
	}
	var req enabledPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		writeError(w, http.StatusBadRequest, "body must be {\"enabled\": bool}")
		return
	}
	s.stats.SetEnabled(*req.Enabled)
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": s.stats.IsEnabled()})
}

func (s *Server) listFiles(w http.ResponseWriter, _ *http.Request) {
	start := s.stats.Start()
	defer s.stats.End(callstat.KindVfsList, start)

	file := vfs.StatisticsFile{Source: s.stats}
	writeJSON(w, http.StatusOK, map[string]any{"files": []vfs.Entry{file.Entry()}})
}

func (s *Server) listObject(w http.ResponseWriter, r *http.Request) {
	start := s.stats.Start()
	defer s.stats.End(callstat.KindVfsList, start)

	t, va, ok := parseObjectPath(w, r)
	if !ok {
		return
	}
	entries, err := s.objects.List(t, va)
	if err != nil {
		s.writeObjectError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": entries})
}

func (s *Server) readObject(w http.ResponseWriter, r *http.Request) {
	start := s.stats.Start()
	defer s.stats.End(callstat.KindVfsRead, start)

	t, va, ok := parseObjectPath(w, r)
	if !ok {
		return
	}
	name := chi.URLParam(r, "name")
	data, err := s.readObjectFile(t, name, va)
	if err != nil {
		s.writeObjectError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Warn("write object file failed", zap.Error(err))
	}
}

func (s *Server) readObjectFile(t vfs.ObjectType, name string, va uint64) ([]byte, error) {
	var out []byte
	buf := make([]byte, readChunkSize)
	for len(out) < maxObjectFileSize {
		n, err := s.objects.Read(t, name, va, buf, int64(len(out)))
		out = append(out, buf[:n]...)
		if errors.Is(err, io.EOF) || (err == nil && n == 0) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read %s/%s: %w", t, name, err)
		}
	}
	return out, nil
}

func (s *Server) writeObjectError(w http.ResponseWriter, err error) {
	if errors.Is(err, vfs.ErrNoRenderer) || errors.Is(err, vfs.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.logger.Error("object request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "object request failed")
}

func parseObjectPath(w http.ResponseWriter, r *http.Request) (vfs.ObjectType, uint64, bool) {
	t, ok := vfs.ParseObjectType(chi.URLParam(r, "type"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown object type")
		return vfs.ObjectUnknown, 0, false
	}
	va, err := parseAddress(chi.URLParam(r, "va"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return vfs.ObjectUnknown, 0, false
	}
	return t, va, true
}

// parseAddress accepts decimal or 0x-prefixed hexadecimal addresses.
func parseAddress(raw string) (uint64, error) {
	va, err := strconv.ParseUint(raw, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q", raw)
	}
	return va, nil
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("request_id", requestID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered",
						zap.String("request_id", requestID(r.Context())),
						zap.Any("error", rec))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

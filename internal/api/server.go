// Package api serves the operator HTTP interface: keyword management,
// scan triggers, browsing of discovered channels and dashboard stats.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/channel-scout/internal/storage"
	"github.com/channel-scout/pkg/logger"
	"github.com/channel-scout/pkg/ratelimit"
)

// ScanRequester accepts fire-and-forget scan pass requests
type ScanRequester interface {
	Request() bool
}

// Server holds the HTTP routes and their dependencies
type Server struct {
	repository storage.Repository
	scans      ScanRequester
	limiter    *ratelimit.MultiLimiter
	gatherer   prometheus.Gatherer
	log        *logger.Logger
	router     chi.Router
}

// Option configures a Server
type Option func(*Server)

// WithLimiter throttles scan triggers through the scan_trigger limiter
func WithLimiter(l *ratelimit.MultiLimiter) Option {
	return func(s *Server) { s.limiter = l }
}

// WithMetrics exposes gatherer on /metrics
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// New creates the API server
func New(repository storage.Repository, scans ScanRequester, log *logger.Logger, opts ...Option) *Server {
	s := &Server{
		repository: repository,
		scans:      scans,
		log:        log.WithComponent("api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/scan/start", s.handleScanStart)

		r.Get("/keywords", s.handleListKeywords)
		r.Post("/keywords", s.handleCreateKeyword)
		r.Patch("/keywords/{id}", s.handleUpdateKeyword)
		r.Delete("/keywords/{id}", s.handleDeleteKeyword)

		r.Get("/channels", s.handleListChannels)
		r.Get("/search", s.handleSearch)

		r.Get("/stats", s.handleStats)
		r.Get("/stats/word-frequency", s.handleWordFrequency)
		r.Get("/logs", s.handleListLogs)
	})

	return r
}

// requestLogger writes one structured line per request
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Str("request_id", middleware.GetReqID(r.Context())).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// errorResponse is the body of every non-2xx reply
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

// writeStoreError maps storage errors to HTTP statuses
func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, storage.ErrDuplicateKeyword):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.log.Error().Err(err).Msg("Store request failed")
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func pathID(r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// queryUint parses an optional positive integer query parameter
func queryUint(r *http.Request, name string) (*uint, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, errors.New("invalid " + name)
	}
	u := uint(v)
	return &u, nil
}

// queryInt parses an optional non-negative integer capped at limit,
// returning def when absent
func queryInt(r *http.Request, name string, def, limit int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.New("invalid " + name)
	}
	if v > limit {
		v = limit
	}
	return v, nil
}

// queryLimit parses the optional limit parameter. Zero means unbounded in
// the store, so values below 1 are rejected.
func queryLimit(r *http.Request, def, limit int) (int, error) {
	v, err := queryInt(r, "limit", def, limit)
	if err != nil {
		return 0, err
	}
	if v < 1 {
		return 0, errors.New("invalid limit")
	}
	return v, nil
}

func queryBool(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return v
}

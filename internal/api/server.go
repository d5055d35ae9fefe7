// Package api is the HTTP surface of the availability service.
package api

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"igrovik/internal/availability"
	"igrovik/internal/cache"
	"igrovik/internal/database"
)

// HTTPServer serves the availability, reservation and admin endpoints.
type HTTPServer struct {
	server  *http.Server
	db      *database.DB
	engine  *availability.Engine
	cache   *cache.Cache
	apiKey  string
	limiter *clientLimiter
	logger  *zerolog.Logger
}

// Options configures the HTTP server.
type Options struct {
	Port      int
	APIKey    string
	RateRPS   float64
	RateBurst int
}

// NewHTTPServer wires handlers onto a mux. The cache may be nil.
func NewHTTPServer(db *database.DB, engine *availability.Engine, c *cache.Cache, opts Options, logger *zerolog.Logger) *HTTPServer {
	s := &HTTPServer{
		db:      db,
		engine:  engine,
		cache:   c,
		apiKey:  opts.APIKey,
		limiter: newClientLimiter(opts.RateRPS, opts.RateBurst),
		logger:  logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/availability", s.handleAvailability)
	mux.HandleFunc("/api/unavailable-dates", s.handleUnavailableDates)
	mux.HandleFunc("/api/reservations", s.handleReservations)
	mux.HandleFunc("/api/reservations/", s.handleReservationByID)
	mux.HandleFunc("/api/admin/schedule", s.requireAPIKey(s.handleReplaceSchedule))
	mux.HandleFunc("/api/admin/reservations/export", s.requireAPIKey(s.handleExportReservations))

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: s.withMiddleware(mux),
	}
	return s
}

// ListenAndServe starts the server and blocks until shutdown.
func (s *HTTPServer) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Handler exposes the wired handler for tests and for main.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// Server returns the underlying http.Server for lifecycle management.
func (s *HTTPServer) Server() *http.Server {
	return s.server
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{"success": false, "error": msg})
}

// writeRawJSON writes a pre-serialized body (cache hits).
func writeRawJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// requireAPIKey guards admin routes with the X-Api-Key header.
func (s *HTTPServer) requireAPIKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" || r.Header.Get("X-Api-Key") != s.apiKey {
			writeError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
		next(w, r)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withMiddleware applies request-ID tagging, access logging and
// per-client rate limiting to every route.
func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		if !s.limiter.allow(clientIP(r)) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Msg("http request")
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// clientLimiter keeps one token bucket per client address.
type clientLimiter struct {
	mu       sync.Mutex
	clients  map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
	disabled bool
}

func newClientLimiter(rps float64, burst int) *clientLimiter {
	return &clientLimiter{
		clients:  make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
		disabled: rps <= 0,
	}
}

func (l *clientLimiter) allow(client string) bool {
	if l.disabled {
		return true
	}
	l.mu.Lock()
	lim, ok := l.clients[client]
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.clients[client] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

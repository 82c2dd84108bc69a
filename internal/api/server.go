package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/smarttrash/smarttrash/internal/model"
	"github.com/smarttrash/smarttrash/internal/store"
)

// maxRequestBody is the maximum allowed request body size (1 MB).
const maxRequestBody int64 = 1 << 20

// Runner runs the capture-to-persist pipeline once.
type Runner interface {
	Run(ctx context.Context) (*model.Item, error)
}

// StatsComputer computes the statistics for a named period.
type StatsComputer interface {
	Compute(ctx context.Context, period string) (model.PeriodStats, error)
}

// Server holds the HTTP handlers and dependencies.
type Server struct {
	items    store.ItemReader
	pipeline Runner
	stats    StatsComputer
	hub      *Hub
	origin   string
	mux      *http.ServeMux

	mu      sync.Mutex
	lidOpen bool
}

// Option configures a Server.
type Option func(*Server)

// WithHub serves the live feed on /ws.
func WithHub(h *Hub) Option {
	return func(s *Server) { s.hub = h }
}

// WithCORSOrigin sets the allowed origin (default "*").
func WithCORSOrigin(origin string) Option {
	return func(s *Server) { s.origin = origin }
}

// New creates a new API server.
func New(items store.ItemReader, pipeline Runner, stats StatsComputer, opts ...Option) *Server {
	srv := &Server{
		items:    items,
		pipeline: pipeline,
		stats:    stats,
		origin:   "*",
		mux:      http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(srv)
	}
	srv.routes()
	return srv
}

// Handler returns the root http.Handler with middleware applied. The
// websocket endpoint bypasses the JSON and body-limit middleware.
func (s *Server) Handler() http.Handler {
	root := http.NewServeMux()
	root.Handle("/api/", limitBody(jsonContent(s.mux)))
	if s.hub != nil {
		root.HandleFunc("GET /ws", s.hub.ServeWS)
	}
	return corsMiddleware(s.origin, root)
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/toggle", s.handleToggle)
	s.mux.HandleFunc("GET /api/state", s.handleState)
	s.mux.HandleFunc("GET /api/stats/{period}", s.handleStats)
	s.mux.HandleFunc("GET /api/summary", s.handleSummary)
	s.mux.HandleFunc("GET /api/search", s.handleSearch)
	s.mux.HandleFunc("GET /api/items", s.handleRecentItems)
	s.mux.HandleFunc("GET /api/items/{id}", s.handleGetItem)
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

// corsMiddleware sets CORS headers for the configured origin.
func corsMiddleware(origin string, next http.Handler) http.Handler {
	if origin == "" {
		origin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// limitBody restricts the request body to maxRequestBody bytes.
func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		next.ServeHTTP(w, r)
	})
}

func jsonContent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

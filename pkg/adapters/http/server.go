// Package http exposes turns, session reads and live response signals over HTTP.
package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/tripflow"
	"github.com/aretw0/tripflow/internal/logging"
	"github.com/aretw0/tripflow/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// DefaultMaxUpload bounds a multipart audio upload.
const DefaultMaxUpload = 25 << 20

// TokenIssuer mints realtime room tokens for callers.
type TokenIssuer interface {
	ParticipantToken(room, name, identity string) (string, error)
}

// Server holds the HTTP handlers.
type Server struct {
	turns     *session.Orchestrator
	hub       *Hub
	tokens    TokenIssuer
	audioDir  string
	metrics   http.Handler
	maxUpload int64
	logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithHub sets the listener hub. The hub should also be registered as a
// notifier on the orchestrator's dispatcher to receive signals.
func WithHub(h *Hub) Option {
	return func(s *Server) {
		s.hub = h
	}
}

// WithTokenIssuer enables GET /token.
func WithTokenIssuer(t TokenIssuer) Option {
	return func(s *Server) {
		s.tokens = t
	}
}

// WithAudioDir serves response assets from dir under GET /audio/{file}.
func WithAudioDir(dir string) Option {
	return func(s *Server) {
		s.audioDir = dir
	}
}

// WithMetrics mounts h on GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithMaxUpload overrides DefaultMaxUpload.
func WithMaxUpload(n int64) Option {
	return func(s *Server) {
		s.maxUpload = n
	}
}

// WithLogger configures request logging.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewHandler creates the HTTP handler for turns.
func NewHandler(turns *session.Orchestrator, opts ...Option) http.Handler {
	s := &Server{
		turns:     turns,
		maxUpload: DefaultMaxUpload,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.hub == nil {
		s.hub = NewHub(s.logger)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Post("/transcribe", s.Transcribe)
	r.Post("/turn", s.Turn)
	r.Get("/trips/{phone}", s.GetTrip)
	r.Get("/token", s.GetToken)
	r.Get("/audio/{file}", s.GetAudio)
	r.Get("/events", s.SubscribeEvents)
	r.Get("/ws", s.SubscribeWS)
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Idempotency-Key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"app":     "tripflow-http",
		"version": strings.TrimSpace(tripflow.Version),
		"assets":  s.turns.Dispatcher().Table(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	service "github.com/okian/xscaffold/internal/app"
	"github.com/okian/xscaffold/internal/domain/model"
)

// Default server configuration.
const (
	defaultRequestTimeout = 30 * time.Second
	defaultMaxBodyBytes   = 4 << 20
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	StatsProvider

	// Score validates and scores one record.
	Score(ctx context.Context, v model.FeatureVector) (service.ScoreResult, error)

	// ScoreBatch scores records independently; per-record failures are
	// reported in the results.
	ScoreBatch(ctx context.Context, records []service.BatchRecord) ([]service.BatchResult, error)

	// Classify maps a score to its mastery level.
	Classify(ctx context.Context, score float64) (model.MasteryLevel, error)
}

// Option configures a Server.
type Option func(*Server)

// WithCORSOrigins sets the origins allowed to call the API.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.origins = origins
		}
	}
}

// WithRequestTimeout bounds the time spent on one request.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithMaxBodyBytes limits request body size.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

// Server wires HTTP routes for the scoring API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	scoreHandler  *ScoreHandler

	origins []string
	timeout time.Duration
	maxBody int64
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(deps),
		origins:       []string{"*"},
		timeout:       defaultRequestTimeout,
		maxBody:       defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.scoreHandler = NewScoreHandler(deps, s.maxBody)
	return s
}

// Router returns a chi router with middleware and every route attached.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Length"},
		MaxAge:         300,
	}))
	s.Register(r)
	return r
}

// Register attaches all API routes to r.
func (s *Server) Register(r chi.Router) {
	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	r.Post("/score", MetricsMiddleware(s.scoreHandler.HandleScore, "score"))
	r.Post("/score/batch", MetricsMiddleware(s.scoreHandler.HandleBatch, "score_batch"))
	r.Post("/classify", MetricsMiddleware(s.scoreHandler.HandleClassify, "classify"))
	r.Method(http.MethodGet, "/metrics", MetricsHandler())
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hansei-ai/hansei/internal/service/feedback"
	"github.com/hansei-ai/hansei/internal/service/insights"
	"github.com/hansei-ai/hansei/internal/service/thoughts"
	"github.com/hansei-ai/hansei/internal/storage"
)

// Server is the Hansei HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// Config holds all dependencies and settings for creating a Server.
type Config struct {
	DB          *storage.DB
	ThoughtSvc  *thoughts.Service
	FeedbackSvc *feedback.Service
	InsightSvc  *insights.Service
	Logger      *slog.Logger

	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	Version             string
	MaxRequestBodyBytes int64
}

// New creates an HTTP server with all routes configured.
func New(cfg Config) *Server {
	h := &Handlers{
		db:                  cfg.DB,
		thoughtSvc:          cfg.ThoughtSvc,
		feedbackSvc:         cfg.FeedbackSvc,
		insightSvc:          cfg.InsightSvc,
		logger:              cfg.Logger,
		startedAt:           time.Now(),
		version:             cfg.Version,
		maxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	}

	mux := http.NewServeMux()

	// Thoughts: versioned decision store.
	mux.HandleFunc("POST /v1/journals/{journal_id}/thoughts", h.HandleCreateThought)
	mux.HandleFunc("GET /v1/journals/{journal_id}/thoughts", h.HandleListThoughts)
	mux.HandleFunc("GET /v1/thoughts/{thought_id}", h.HandleGetThought)
	mux.HandleFunc("GET /v1/thoughts/{thought_id}/evolution", h.HandleEvolution)
	mux.HandleFunc("POST /v1/thoughts/{thought_id}/fork", h.HandleForkThought)

	// Feedback ledger.
	mux.HandleFunc("POST /v1/thoughts/{thought_id}/feedback", h.HandleSubmitFeedback)
	mux.HandleFunc("GET /v1/thoughts/{thought_id}/feedback", h.HandleListFeedback)

	// Analytics.
	mux.HandleFunc("GET /v1/users/{user_id}/stats", h.HandleFeedbackStats)
	mux.HandleFunc("GET /v1/users/{user_id}/bias", h.HandleAdjustmentBias)

	// Health (no envelope dependencies beyond the pool).
	mux.HandleFunc("GET /health", h.HandleHealth)

	// Middleware chain (outermost executes first):
	// request ID → tracing → logging → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler: handler,
		logger:  cfg.Logger,
	}
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}

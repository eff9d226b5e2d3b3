// Package api exposes the Loreweave engine over HTTP: turn evaluation,
// rule and codex management, session state, and activation history.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/loreweave/loreweave/internal/activation"
	"github.com/loreweave/loreweave/internal/composer"
	"github.com/loreweave/loreweave/internal/domain"
	"github.com/loreweave/loreweave/internal/session"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *activation.Engine, codexEngine *activation.CodexEngine, processor *composer.Processor, sessions *session.Service, defaults domain.EngineConfig, version string) *Server {
	handler := NewHandler(repo, cache, bus, engine, codexEngine, processor, sessions, defaults, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints (no campaign required)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// API routes (campaign required)
	router.Route("/", func(r chi.Router) {
		r.Use(CampaignMiddleware)

		// Turn evaluation
		r.Post("/evaluate", handler.Evaluate)

		// Evaluation retrieval
		r.Get("/evaluations/{id}", handler.GetEvaluation)

		// Rule management
		r.Get("/rules", handler.ListRules)
		r.Get("/rules/{id}", handler.GetRule)
		r.Post("/rules", handler.CreateRule)
		r.Post("/rules/reload", handler.ReloadRules)

		// Codex management
		r.Get("/codices", handler.ListCodices)
		r.Get("/codices/{id}", handler.GetCodex)
		r.Post("/codices", handler.CreateCodex)
		r.Put("/codices/{id}", handler.UpdateCodex)
		r.Delete("/codices/{id}", handler.DeleteCodex)
		r.Post("/codices/reload", handler.ReloadCodices)

		// Session state
		r.Post("/sessions", handler.CreateSession)
		r.Get("/sessions/{id}", handler.GetSession)
		r.Post("/sessions/{id}/turns", handler.AppendTurn)
		r.Post("/sessions/{id}/memories", handler.AddMemory)

		// Activation history
		r.Get("/history/stats", handler.HistoryStats)
		r.Post("/history/clear", handler.ClearHistory)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}

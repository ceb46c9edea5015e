package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/engine"
	"github.com/opensource-finance/kestrel/internal/rules"
	"github.com/opensource-finance/kestrel/internal/rulestore"
	"github.com/opensource-finance/kestrel/internal/stream"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, eng *engine.Engine, custom *rules.CustomEngine, store rulestore.Store, bus domain.EventBus, hub *stream.Hub, version string) *Server {
	handler := NewHandler(eng, custom, store, bus, hub, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)    // CORS for browser clients
	router.Use(RecoverMiddleware) // Recover from panics
	router.Use(TracingMiddleware) // OpenTelemetry tracing
	router.Use(LoggingMiddleware) // Request logging
	router.Use(middleware.RealIP) // Extract real IP

	// Health endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// WebSocket feed stays outside the compressed group; the upgrade
	// needs the raw response writer.
	if hub != nil {
		router.Get("/stream", hub.HandleWebSocket)
	}

	router.Group(func(r chi.Router) {
		r.Use(middleware.Compress(5)) // Gzip compression

		// Transaction ingestion and retrieval
		r.Post("/transactions", handler.IngestTransaction)
		r.Get("/transactions", handler.ListTransactions)

		// Alert surface
		r.Get("/alerts", handler.ListAlerts)
		r.Post("/alerts/acknowledge", handler.AcknowledgeAlert)

		// Pattern statistics and compliance export
		r.Get("/patterns", handler.PatternCounts)
		r.Get("/export", handler.Export)

		// Custom rule management
		r.Get("/rules", handler.ListRules)
		r.Get("/rules/{id}", handler.GetRule)
		r.Post("/rules", handler.CreateRule)
		r.Delete("/rules/{id}", handler.DeleteRule)
		r.Post("/rules/reload", handler.ReloadRules)
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

// Package api provides the HTTP ingress: scheduler triggers and webhooks.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gorilla/mux"

	"github.com/stealth-alerts/internal/config"
	"github.com/stealth-alerts/internal/logging"
	"github.com/stealth-alerts/internal/types"
)

// AlertEngine is the pipeline surface the HTTP layer drives.
type AlertEngine interface {
	RunAll(ctx context.Context) error
	HandleActivity(ctx context.Context, payload *types.WebhookPayload) error
	RefreshTopWallets(ctx context.Context) (int, error)
}

// UpdateHandler consumes Telegram webhook updates.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update)
}

// Server represents the HTTP API server.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	engine     AlertEngine
	bot        UpdateHandler
	logger     *logging.Logger
}

// NewServer creates a new API server instance.
func NewServer(cfg config.ServerConfig, engine AlertEngine, bot UpdateHandler, logger *logging.Logger) *Server {
	s := &Server{
		router: mux.NewRouter(),
		engine: engine,
		bot:    bot,
		logger: logger.WithField("component", "api"),
	}

	s.setupRouter(cfg)

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter(cfg config.ServerConfig) {
	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(RecoveryMiddleware(s.logger))

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Scheduler triggers
	api.HandleFunc("/cron", s.handleCron).Methods("GET")
	api.HandleFunc("/wallets", s.handleWallets).Methods("GET")

	// Webhook ingress
	api.HandleFunc("/webhook/address-activity", s.handleAddressActivity).Methods("POST")
	api.HandleFunc("/webhook/telegram", s.handleTelegramUpdate).Methods("POST")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "stealth-alerts",
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Package server exposes the reward engine's HTTP and WebSocket API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/meridianlabs/lpboost/internal/domain"
	"github.com/meridianlabs/lpboost/internal/server/handler"
	"github.com/meridianlabs/lpboost/internal/server/middleware"
	"github.com/meridianlabs/lpboost/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// ClaimRateLimit bounds claim authorization requests per client IP per
	// ClaimRateWindow. Zero disables the limiter.
	ClaimRateLimit  int
	ClaimRateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health       *handler.HealthHandler
	Sessions     *handler.SessionHandler
	Transactions *handler.TransactionHandler
	Positions    *handler.PositionHandler
	Rewards      *handler.RewardsHandler
	Ranking      *handler.RankingHandler
	Claims       *handler.ClaimHandler
	Settings     *handler.SettingsHandler
}

// Server is the headless HTTP + WebSocket API server of the reward engine.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, auth) and attaches the WebSocket
// hub. The rate limiter, when present, guards only the claim authorization
// route; the rest of the API is read-heavy and left unthrottled.
func NewServer(cfg Config, handlers Handlers, limiter domain.RateLimiter, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Session endpoints.
	mux.HandleFunc("POST /api/sessions", handlers.Sessions.Create)
	mux.HandleFunc("GET /api/sessions/{id}", handlers.Sessions.Validate)
	mux.HandleFunc("DELETE /api/sessions/{id}", handlers.Sessions.Invalidate)

	// Transaction provenance endpoints.
	mux.HandleFunc("POST /api/transactions", handlers.Transactions.Record)
	mux.HandleFunc("POST /api/transactions/{id}/verify", handlers.Transactions.Verify)

	// Position endpoints.
	mux.HandleFunc("GET /api/positions", handlers.Positions.ListByUser)
	mux.HandleFunc("POST /api/positions/register", handlers.Positions.Register)
	mux.HandleFunc("POST /api/positions/{id}/eligibility", handlers.Positions.RegisterEligibility)

	// Reward and ranking endpoints.
	mux.HandleFunc("GET /api/rewards/{userId}", handlers.Rewards.Summary)
	mux.HandleFunc("GET /api/ranking", handlers.Ranking.Board)
	mux.HandleFunc("GET /api/ranking/replacement", handlers.Ranking.Replacement)

	// Claim endpoints. Authorization is the only route doing signing work,
	// so it alone sits behind the rate limiter.
	authorize := http.HandlerFunc(handlers.Claims.Authorize)
	if limiter != nil && cfg.ClaimRateLimit > 0 {
		mux.Handle("POST /api/claims/authorize",
			middleware.RateLimit(limiter, cfg.ClaimRateLimit, cfg.ClaimRateWindow)(authorize))
	} else {
		mux.Handle("POST /api/claims/authorize", authorize)
	}
	mux.HandleFunc("POST /api/claims/{id}/confirm", handlers.Claims.Confirm)
	mux.HandleFunc("POST /api/claims/{id}/reject", handlers.Claims.Reject)

	// Admin settings endpoints.
	mux.HandleFunc("GET /api/settings", handlers.Settings.Get)
	mux.HandleFunc("PUT /api/settings", handlers.Settings.Update)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux

	// Apply auth middleware (skips if APIKey is empty).
	h = middleware.Auth(cfg.APIKey)(h)

	// Apply request logging middleware.
	h = middleware.Logging(logger)(h)

	// Apply CORS middleware.
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

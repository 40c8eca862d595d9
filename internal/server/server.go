// Package server assembles the HTTP + WebSocket API for the market engine.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/outcomelabs/marketd/internal/domain"
	"github.com/outcomelabs/marketd/internal/server/handler"
	"github.com/outcomelabs/marketd/internal/server/middleware"
	"github.com/outcomelabs/marketd/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKeyHash  string // bcrypt hash; if empty, authentication is disabled

	// Rate limiting is applied only when NewServer receives a limiter.
	RateLimit       int
	RateLimitWindow time.Duration
}

// Handlers aggregates the HTTP handlers the server registers. Optional
// handlers (Events, Archive) may be nil; their routes are then omitted.
type Handlers struct {
	Health     *handler.HealthHandler
	Markets    *handler.MarketHandler
	Trades     *handler.TradeHandler
	Settlement *handler.SettlementHandler
	Accounts   *handler.AccountHandler
	Events     *handler.EventsHandler
	Archive    *handler.ArchiveHandler
	Admin      *handler.AdminHandler
}

// Server is the headless HTTP + WebSocket API server for the market engine.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on the ServeMux.
// It wires up middleware (rate limiting, CORS, logging, auth) and attaches
// the WebSocket hub when one is provided. limiter may be nil to disable
// rate limiting.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Market registry.
	mux.HandleFunc("POST /api/markets", handlers.Markets.CreateMarket)
	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
	mux.HandleFunc("GET /api/markets/{id}/balances/{account}", handlers.Markets.GetBalance)
	mux.HandleFunc("GET /api/markets/{id}/redemption", handlers.Markets.GetRedemptionInfo)
	mux.HandleFunc("GET /api/markets/{id}/fees", handlers.Markets.GetFees)

	// Trading.
	mux.HandleFunc("POST /api/markets/{id}/mint", handlers.Trades.MintSet)
	mux.HandleFunc("POST /api/markets/{id}/burn", handlers.Trades.BurnSet)
	mux.HandleFunc("POST /api/markets/{id}/swap", handlers.Trades.Swap)
	mux.HandleFunc("POST /api/markets/{id}/buy", handlers.Trades.Buy)
	mux.HandleFunc("POST /api/markets/{id}/sell", handlers.Trades.Sell)

	// Settlement.
	mux.HandleFunc("POST /api/markets/{id}/resolve", handlers.Settlement.Resolve)
	mux.HandleFunc("POST /api/markets/{id}/cancel", handlers.Settlement.Cancel)
	mux.HandleFunc("POST /api/markets/{id}/redeem", handlers.Settlement.Redeem)
	mux.HandleFunc("POST /api/markets/{id}/refund", handlers.Settlement.Refund)

	// Collateral funding.
	mux.HandleFunc("GET /api/accounts/{account}", handlers.Accounts.GetCollateral)
	mux.HandleFunc("GET /api/accounts/{account}/collateral", handlers.Accounts.GetCollateral)
	mux.HandleFunc("POST /api/accounts/{account}/deposit", handlers.Accounts.Deposit)
	mux.HandleFunc("POST /api/accounts/{account}/withdraw", handlers.Accounts.Withdraw)

	// Durable event history (requires Redis streams).
	if handlers.Events != nil {
		mux.HandleFunc("GET /api/events", handlers.Events.List)
	}

	// Manual archive sweep (requires blob storage).
	if handlers.Archive != nil {
		mux.HandleFunc("POST /api/archive/trigger", handlers.Archive.Trigger)
		mux.HandleFunc("POST /api/archive/export", handlers.Archive.Export)
	}

	// Manual oracle controls (static oracle source only).
	if handlers.Admin != nil {
		mux.HandleFunc("POST /api/admin/height", handlers.Admin.SetHeight)
		mux.HandleFunc("POST /api/admin/feeds/{id}", handlers.Admin.SetFeed)
	}

	// WebSocket event feed.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux

	h = middleware.Auth(cfg.APIKeyHash)(h)
	h = middleware.Logging(logger)(h)
	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateLimitWindow)(h)
	}
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

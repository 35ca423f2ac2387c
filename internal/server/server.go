// Package server exposes the HTTP and WebSocket API over the lookup,
// discovery, and statistics services.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/duelcast/betwatch/internal/server/handler"
	"github.com/duelcast/betwatch/internal/server/middleware"
	"github.com/duelcast/betwatch/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health  *handler.HealthHandler
	Bets    *handler.BetHandler
	Address *handler.AddressHandler
}

// Server is the headless HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Server with all routes registered on the ServeMux and wires
// up the logging and CORS middleware. wsHub may be nil, in which case the /ws
// route is not registered.
func New(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	mux.HandleFunc("GET /api/bets/{variant}/{id}", handlers.Bets.GetBet)
	mux.HandleFunc("GET /api/bets/{id}", handlers.Bets.FindBet)
	mux.HandleFunc("GET /api/labels/{variant}/{id}", handlers.Bets.GetLabel)
	mux.HandleFunc("PUT /api/labels/{variant}/{id}", handlers.Bets.PutLabel)

	mux.HandleFunc("GET /api/address/{addr}/bets", handlers.Address.ListBets)
	mux.HandleFunc("GET /api/address/{addr}/stats", handlers.Address.GetStats)
	mux.HandleFunc("GET /api/trending", handlers.Address.Trending)

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger.With(slog.String("component", "server")),
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
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

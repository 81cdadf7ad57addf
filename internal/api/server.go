// Package api is the operator-facing HTTP surface: message inspection,
// intent relabeling, auto-reply drafting and review, staff notifications,
// pipeline control, and the WebSocket event feed.
package api

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hostops/concierge/internal/config"
	"github.com/hostops/concierge/internal/events"
)

// Server wraps the HTTP server and its graceful lifecycle.
type Server struct {
	cfg     config.ServerConfig
	handler http.Handler
	server  *http.Server
	hub     *events.Hub
}

// NewServer builds the server around the wired handlers.
func NewServer(cfg config.ServerConfig, h *Handlers, hub *events.Hub) *Server {
	return &Server{
		cfg:     cfg,
		handler: SetupRoutes(h, hub),
		hub:     hub,
	}
}

// Start begins serving; it blocks until the listener fails or is shut down.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.GetHost(), s.cfg.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("[API] listening on %s", addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and closes every event client.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.hub != nil {
		s.hub.Shutdown()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Pinger reports backend health for the health endpoint.
type Pinger struct {
	DB    *sql.DB
	Redis *redis.Client
}

// Check pings each configured backend with a short deadline.
func (p Pinger) Check(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	out := map[string]string{}
	if p.DB != nil {
		if err := p.DB.PingContext(ctx); err != nil {
			out["database"] = "down: " + err.Error()
		} else {
			out["database"] = "ok"
		}
	}
	if p.Redis != nil {
		if err := p.Redis.Ping(ctx).Err(); err != nil {
			out["redis"] = "down: " + err.Error()
		} else {
			out["redis"] = "ok"
		}
	}
	return out
}

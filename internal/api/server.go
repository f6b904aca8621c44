// Package api exposes the control plane over HTTP. The endpoint shapes are
// the contract the HomeKit automations and the drift checker already speak,
// so they stay stable even where a fresh design would choose differently.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"gitlab.bluewillows.net/root/netwarden/internal/engine"
	"gitlab.bluewillows.net/root/netwarden/internal/status"
)

// Engine is the control surface the HTTP layer drives. Implemented by
// *engine.Engine.
type Engine interface {
	Get(ctx context.Context, name string) (status.Status, error)
	Apply(ctx context.Context, name string, enable bool) error
	GlobalStatus(ctx context.Context) (status.Status, error)
	SetGlobal(ctx context.Context, enable bool, timer time.Duration) (status.Status, error)
	Lookup(name string) (engine.BlockDefinition, bool)
	LookupRule(name string) (engine.BlockDefinition, bool)
}

// Server is the control-plane HTTP server.
type Server struct {
	engine     Engine
	logger     *slog.Logger
	httpServer *http.Server
}

// Option is a functional option for configuring the Server.
type Option func(*Server)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates the control-plane server listening on addr.
func NewServer(eng Engine, addr string, opts ...Option) *Server {
	s := &Server{
		engine: eng,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Routes builds the router. Exposed for tests.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(Recovery(s.logger))
	r.Use(Logger(s.logger))

	r.Get("/alldns/", s.handleGlobalStatus)
	r.Post("/alldns/{direction}", s.handleGlobalChange)

	r.Get("/pihole/status/{name}", s.handleBlockStatus)
	r.Post("/pihole/{direction}/{name}", s.handleBlockChange)

	r.Get("/ubiquiti/status_rule/{name}", s.handleRuleStatus)
	r.Post("/ubiquiti/change_rule/{direction}/{name}", s.handleRuleChange)
	r.Post("/ubiquiti/change_device/{state}/{name}", s.handleDeviceChange)

	return r
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info("control API listening", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

var _ Engine = (*engine.Engine)(nil)

// Package server exposes the chat API: chat and message CRUD plus the
// streaming agent endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/agent"
	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/auth"
	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/config"
	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/store"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// Options are the collaborators a Server is built from.
type Options struct {
	Config      config.ServerConfig
	RateLimit   config.RateLimitConfig
	Store       store.Store
	Auth        auth.Authenticator
	Loop        *agent.Loop
	Checkpoints *agent.Checkpoints
	// Services lists which optional collaborators are configured, for /api/health.
	Services map[string]bool
	Logger   *slog.Logger
}

type Server struct {
	cfg         config.ServerConfig
	store       store.Store
	auth        auth.Authenticator
	loop        *agent.Loop
	checkpoints *agent.Checkpoints
	limiter     *userLimiter
	services    map[string]bool
	logger      *slog.Logger
	now         func() time.Time

	httpServer *http.Server
	listener   net.Listener
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	checkpoints := opts.Checkpoints
	if checkpoints == nil {
		checkpoints = agent.NewCheckpoints(opts.Config.MaxActiveChats)
	}
	authenticator := opts.Auth
	if authenticator == nil {
		authenticator = auth.None{User: "local"}
	}
	return &Server{
		cfg:         opts.Config,
		store:       opts.Store,
		auth:        authenticator,
		loop:        opts.Loop,
		checkpoints: checkpoints,
		limiter:     newUserLimiter(opts.RateLimit.RequestsPerMinute, opts.RateLimit.Burst),
		services:    opts.Services,
		logger:      logger,
		now:         time.Now,
	}
}

// Handler returns the routed API with request-id and CORS middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/health", s.handleHealth)

	mux.HandleFunc("POST /api/chat/stream", s.authenticate(s.limited(s.handleChatStream)))

	mux.HandleFunc("GET /api/chats", s.authenticate(s.handleListChats))
	mux.HandleFunc("POST /api/chats", s.authenticate(s.limited(s.handleCreateChat)))
	mux.HandleFunc("DELETE /api/chats/{id}", s.authenticate(s.handleDeleteChat))
	mux.HandleFunc("GET /api/chats/{id}/messages", s.authenticate(s.handleListMessages))
	mux.HandleFunc("POST /api/chats/{id}/messages", s.authenticate(s.limited(s.handleSendMessage)))
	mux.HandleFunc("GET /api/chats/{id}/messages/last", s.authenticate(s.handleLastMessage))

	return withRequestID(s.cors(mux))
}

// Start binds the listener and serves in the background. Bind errors are
// returned directly.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped", "error", err)
		}
	}()
	s.logger.Info("server listening", "addr", ln.Addr().String(), "environment", s.cfg.Environment)
	return nil
}

// Addr returns the bound address once Start succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop refuses new chat streams and waits for in-flight requests until ctx ends.
func (s *Server) Stop(ctx context.Context) error {
	s.checkpoints.Close()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	timestamp := s.now().UTC().Format(time.RFC3339Nano)
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			s.logger.Error("health check failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"status":    "unhealthy",
				"error":     err.Error(),
				"timestamp": timestamp,
			})
			return
		}
	}

	services := make(map[string]bool, len(s.services)+1)
	for name, ok := range s.services {
		services[name] = ok
	}
	services["store"] = s.store != nil
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "healthy",
		"timestamp":   timestamp,
		"environment": s.cfg.Environment,
		"version":     Version,
		"services":    services,
	})
}

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/llm"
	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/server"
	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/signal"
)

var (
	serveHost     string
	servePort     int
	serveProvider string
	serveProfile  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat API server",
	Long: `Run the HTTP server.

Endpoints:
  POST   /api/chat/stream
  GET    /api/chats
  POST   /api/chats
  DELETE /api/chats/{id}
  GET    /api/chats/{id}/messages
  POST   /api/chats/{id}/messages
  GET    /api/chats/{id}/messages/last
  GET    /api/health
  GET    /healthz`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "Bind host (overrides server.host)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Bind port (overrides server.port)")
	serveCmd.Flags().StringVar(&serveProfile, "profile", "", "Agent profile from agent.profiles_file")
	AddProviderFlag(serveCmd, &serveProvider)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(serveProvider)
	if err != nil {
		return err
	}
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
	}
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d (must be 0-65535)", cfg.Server.Port)
	}
	if serveProfile != "" {
		cfg.Agent.Profile = serveProfile
	}

	logger, err := setupLogger(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context())
	defer stop()

	a, err := buildApp(ctx, cfg, llm.NewProvider, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := server.New(a.opts)
	if err := srv.Start(); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

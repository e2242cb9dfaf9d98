package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/agent"
	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/auth"
	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/config"
	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/history"
	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/llm"
	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/mcp"
	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/prompt"
	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/server"
	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/store"
	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/tools"
)

const mcpStartTimeout = 30 * time.Second

// app holds the collaborators behind the HTTP server.
type app struct {
	store store.Store
	mcp   *mcp.Manager
	opts  server.Options
}

// buildApp wires provider, store, tools and agent from cfg. The provider is
// built by newProvider so tests can substitute a mock.
func buildApp(ctx context.Context, cfg *config.Config, newProvider func(*config.Config) (llm.Provider, error), logger *slog.Logger) (*app, error) {
	provider, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}
	profile, err := prompt.Resolve(cfg.Agent, time.Now())
	if err != nil {
		return nil, err
	}
	filter, err := tools.NewFilter(profile.AllowedTools)
	if err != nil {
		return nil, err
	}
	registry, err := tools.NewRegistry(cfg.Agent.Builtins)
	if err != nil {
		return nil, err
	}
	authenticator, err := auth.New(cfg.Auth)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Store)
	if err != nil {
		return nil, err
	}

	manager := mcp.NewManager(cfg.MCP, logger)
	manager.SetSampler(mcp.NewSampler(provider, cfg.ActiveModel(), logger))
	if len(cfg.MCP.Servers) > 0 {
		manager.StartAll(ctx, mcpStartTimeout)
		n := manager.Register(registry)
		logger.Info("mcp tools registered", "count", n)
	}

	hist := history.NewManager(profile.SystemPrompt)
	hist.Policy = history.Policy{
		MaxUnits:      cfg.History.MaxUnits,
		Unit:          history.Unit(cfg.History.Unit),
		IncludeSystem: cfg.History.IncludeSystem,
		Strategy:      history.Strategy(cfg.History.Strategy),
	}
	hist.Hints = history.DefaultCacheHints{System: cfg.Agent.CacheSystem}

	loop := agent.New(provider, registry, hist, agent.Options{
		Model:      cfg.ActiveModel(),
		MaxTurns:   profile.MaxTurns,
		ToolErrors: agent.ToolErrorMode(cfg.Agent.ToolErrors),
		Allowed:    filter,
		Logger:     logger,
	})
	logger.Info("agent ready",
		"provider", provider.Name(),
		"model", cfg.ActiveModel(),
		"profile", profile.Name,
		"tools", len(loop.Specs()),
		"max_turns", profile.MaxTurns)

	return &app{
		store: st,
		mcp:   manager,
		opts: server.Options{
			Config:      cfg.Server,
			RateLimit:   cfg.RateLimit,
			Store:       st,
			Auth:        authenticator,
			Loop:        loop,
			Checkpoints: agent.NewCheckpoints(cfg.Server.MaxActiveChats),
			Services:    services(cfg, manager),
			Logger:      logger,
		},
	}, nil
}

// services reports which optional collaborators are configured, for /api/health.
func services(cfg *config.Config, manager *mcp.Manager) map[string]bool {
	return map[string]bool{
		"anthropic": cfg.Anthropic.APIKey != "",
		"openai":    cfg.OpenAI.APIKey != "" || cfg.OpenAI.BaseURL != "",
		"gemini":    cfg.Gemini.APIKey != "",
		"bedrock":   cfg.Provider == "bedrock",
		"mcp":       manager.Ready(),
		"auth":      cfg.Auth.Mode != "none",
	}
}

func (a *app) Close() error {
	a.mcp.StopAll()
	if err := a.store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}

package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/config"
	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/logging"
)

// loadConfig reads the config file and applies the global flag overrides.
// providerFlag is "provider" or "provider:model".
func loadConfig(providerFlag string) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if providerFlag != "" {
		cfg.ApplyOverrides(parseProviderFlag(providerFlag))
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// setupLogger installs the configured logger as the slog default.
func setupLogger(cfg *config.Config) (*slog.Logger, error) {
	logger, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}

func parseProviderFlag(value string) (provider, model string) {
	provider, model, _ = strings.Cut(value, ":")
	return strings.TrimSpace(provider), strings.TrimSpace(model)
}

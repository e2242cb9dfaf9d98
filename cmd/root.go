package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "syntra",
	Short: "AI assistant server that streams model output and tool calls",
	Long: `syntra runs an agent loop behind an HTTP API and streams each reply,
token by token and tool call by tool call, as server-sent events.

Examples:
  syntra serve --port 8080
  syntra ask "what is 17 * 23?"
  syntra chats list --user alice
  syntra token --user alice --ttl 1h`,
	Version:           server.Version,
	SilenceUsage:      true,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
}

var (
	configPath string
	logLevel   string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/syntra/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/ui"
)

var (
	askServer   string
	askToken    string
	askChat     string
	askMarkdown bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a running server a question and stream the reply",
	Long: `Send a message to a running syntra server and print the reply as it
streams. Tool calls are shown as they start and finish.

With --chat the conversation continues: earlier messages of that chat are
sent as history.

Examples:
  syntra ask "what time is it in Tokyo?"
  syntra ask --chat 01JC3... "and in Paris?"
  syntra ask --markdown "explain goroutines"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().StringVar(&askServer, "server", "", "Server URL (default from server.host and server.port)")
	askCmd.Flags().StringVar(&askToken, "token", "", "Bearer token (default $SYNTRA_TOKEN)")
	askCmd.Flags().StringVar(&askChat, "chat", "", "Continue an existing chat")
	askCmd.Flags().BoolVar(&askMarkdown, "markdown", false, "Render the reply as markdown once it completes")
}

func runAsk(cmd *cobra.Command, args []string) error {
	base := askServer
	if base == "" {
		cfg, err := loadConfig("")
		if err != nil {
			return err
		}
		base = "http://" + cfg.Server.Addr()
	}
	token := askToken
	if token == "" {
		token = os.Getenv("SYNTRA_TOKEN")
	}
	client := newAPIClient(base, token)

	ctx := cmd.Context()
	req := streamRequest{NewMessage: strings.Join(args, " "), ChatID: askChat}
	if askChat != "" {
		prior, err := client.history(ctx, askChat)
		if err != nil {
			return fmt.Errorf("load chat %s: %w", askChat, err)
		}
		req.Messages = prior
	}

	out := cmd.OutOrStdout()
	printer := ui.NewPrinter(out, ui.NewStyles(out, nil), askMarkdown, ui.TerminalWidth(out))
	chatID, err := client.stream(ctx, req, printer.Handle)
	if chatID != "" && askChat == "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "chat: %s\n", chatID)
	}
	return err
}

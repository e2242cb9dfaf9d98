package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/store"
	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/ui"
)

var (
	chatsUser     string
	chatsMarkdown bool
)

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "Inspect and delete stored chats",
	Long: `Administer the local chat store directly, without a running server.

Examples:
  syntra chats list --user alice
  syntra chats show 01jc3... --user alice
  syntra chats delete 01jc3... --user alice`,
}

var chatsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a user's chats, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(st store.Store) error {
			return listChats(cmd.Context(), st, cmd.OutOrStdout(), chatsUser)
		})
	},
}

var chatsShowCmd = &cobra.Command{
	Use:   "show <chat-id>",
	Short: "Print a chat's messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(st store.Store) error {
			return showChat(cmd.Context(), st, cmd.OutOrStdout(), chatsUser, args[0], chatsMarkdown)
		})
	},
}

var chatsDeleteCmd = &cobra.Command{
	Use:   "delete <chat-id>",
	Short: "Delete a chat and its messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(st store.Store) error {
			if err := st.DeleteChat(cmd.Context(), chatsUser, args[0]); err != nil {
				return chatError(args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(chatsCmd)
	chatsCmd.AddCommand(chatsListCmd, chatsShowCmd, chatsDeleteCmd)

	chatsCmd.PersistentFlags().StringVarP(&chatsUser, "user", "u", "", "User id that owns the chats")
	if err := chatsCmd.MarkPersistentFlagRequired("user"); err != nil {
		panic(err)
	}
	chatsShowCmd.Flags().BoolVar(&chatsMarkdown, "markdown", false, "Render assistant messages as markdown")
}

func withStore(fn func(store.Store) error) error {
	cfg, err := loadConfig("")
	if err != nil {
		return err
	}
	st, err := store.Open(cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(st)
}

func chatError(chatID string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("chat %s not found", chatID)
	case errors.Is(err, store.ErrForbidden):
		return fmt.Errorf("chat %s belongs to another user", chatID)
	}
	return err
}

func listChats(ctx context.Context, st store.Store, out io.Writer, user string) error {
	chats, err := st.ListChats(ctx, user)
	if err != nil {
		return err
	}
	if len(chats) == 0 {
		fmt.Fprintln(out, "no chats")
		return nil
	}
	rows := make([][]string, 0, len(chats))
	for _, c := range chats {
		rows = append(rows, []string{c.ID, c.CreatedAt.Local().Format("2006-01-02 15:04"), c.Title})
	}
	fmt.Fprint(out, ui.Table(ui.NewStyles(out, nil), []string{"ID", "CREATED", "TITLE"}, rows, ui.TerminalWidth(out)))
	return nil
}

func showChat(ctx context.Context, st store.Store, out io.Writer, user, chatID string, markdown bool) error {
	chat, err := st.GetChat(ctx, chatID)
	if err == nil {
		err = store.Owned(chat, user)
	}
	if err != nil {
		return chatError(chatID, err)
	}
	msgs, err := st.List(ctx, chatID)
	if err != nil {
		return err
	}

	styles := ui.NewStyles(out, nil)
	width := ui.TerminalWidth(out)
	fmt.Fprintln(out, styles.Title.Render(chat.Title))
	for _, m := range msgs {
		fmt.Fprintf(out, "\n%s %s\n", styles.Header.Render(string(m.Role)), styles.Muted.Render(m.CreatedAt.Local().Format("15:04:05")))
		content := m.Content
		if m.Role == store.RoleAssistant {
			content = ui.RenderTranscript(styles, content, markdown, width)
		}
		fmt.Fprint(out, content)
		if len(content) > 0 && content[len(content)-1] != '\n' {
			fmt.Fprintln(out)
		}
	}
	return nil
}

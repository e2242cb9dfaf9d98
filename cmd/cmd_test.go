package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/agent"
	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/auth"
	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/config"
	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/history"
	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/llm"
	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/server"
	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/sse"
	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/store"
	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/testutil"
	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/tools"
	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/ui"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseProviderFlag(t *testing.T) {
	tests := []struct {
		in, provider, model string
	}{
		{"openai", "openai", ""},
		{"openai:gpt-4.1", "openai", "gpt-4.1"},
		{" gemini : gemini-2.5-pro ", "gemini", "gemini-2.5-pro"},
	}
	for _, tt := range tests {
		provider, model := parseProviderFlag(tt.in)
		if provider != tt.provider || model != tt.model {
			t.Errorf("parseProviderFlag(%q) = %q, %q", tt.in, provider, model)
		}
	}
}

// startServer runs the API over httptest with a mock provider and static auth.
func startServer(t *testing.T, provider *testutil.MockProvider) (*httptest.Server, *store.MemoryStore) {
	t.Helper()
	registry, err := tools.NewRegistry(nil)
	if err != nil {
		t.Fatal(err)
	}
	st := store.NewMemoryStore()
	srv := server.New(server.Options{
		Store:  st,
		Auth:   auth.NewStatic(map[string]string{"tok-alice": "alice"}),
		Loop:   agent.New(provider, registry, history.NewManager("test"), agent.Options{MaxTurns: 5, Logger: discardLogger()}),
		Logger: discardLogger(),
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, st
}

func TestClientStreamAndHistory(t *testing.T) {
	provider := testutil.NewMockProvider("mock")
	provider.AddToolCall("call-1", "calc", map[string]any{"expr": "2+2"})
	provider.AddTextResponse("It is 4.")
	ts, _ := startServer(t, provider)

	client := newAPIClient(ts.URL+"/", "tok-alice")
	var out bytes.Buffer
	printer := ui.NewPrinter(&out, nil, false, 80)
	chatID, err := client.stream(context.Background(), streamRequest{NewMessage: "what is 2+2?"}, printer.Handle)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if chatID == "" {
		t.Fatal("server did not report a chat id")
	}
	if !strings.Contains(out.String(), "▸ calc") || !strings.Contains(out.String(), "It is 4.") {
		t.Fatalf("unexpected output:\n%s", out.String())
	}

	prior, err := client.history(context.Background(), chatID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(prior) != 2 || prior[0].Role != "user" || prior[0].Content != "what is 2+2?" {
		t.Fatalf("unexpected history: %+v", prior)
	}
	if prior[1].Role != "assistant" || !strings.Contains(prior[1].Content, "It is 4.") {
		t.Fatalf("unexpected assistant turn: %+v", prior[1])
	}
}

func TestClientStreamErrorFrame(t *testing.T) {
	provider := testutil.NewMockProvider("mock")
	provider.AddError(errors.New("model unavailable"))
	ts, _ := startServer(t, provider)

	client := newAPIClient(ts.URL, "tok-alice")
	printer := ui.NewPrinter(io.Discard, nil, false, 80)
	_, err := client.stream(context.Background(), streamRequest{NewMessage: "hi", ChatID: "c1"}, printer.Handle)
	var streamErr *ui.StreamError
	if !errors.As(err, &streamErr) {
		t.Fatalf("expected StreamError, got %v", err)
	}
}

func TestClientRejected(t *testing.T) {
	ts, _ := startServer(t, testutil.NewMockProvider("mock"))

	client := newAPIClient(ts.URL, "wrong")
	_, err := client.stream(context.Background(), streamRequest{NewMessage: "hi"}, func(sse.Event) error { return nil })
	if err == nil || !strings.Contains(err.Error(), "401") || !strings.Contains(err.Error(), "Unauthorized") {
		t.Fatalf("expected 401 error, got %v", err)
	}
}

func TestClientStreamWithoutTerminal(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"type\":\"connected\"}\n\ndata: {\"type\":\"token\",\"token\":\"par\"}\n\n")
	}))
	defer ts.Close()

	var got []sse.Type
	_, err := newAPIClient(ts.URL, "").stream(context.Background(), streamRequest{NewMessage: "hi"}, func(e sse.Event) error {
		got = append(got, e.Type)
		return nil
	})
	if !errors.Is(err, errNoTerminal) {
		t.Fatalf("expected errNoTerminal, got %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("events = %v", got)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBuildApp(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	cfg, err := config.Load(writeConfig(t, "store:\n  driver: memory\nagent:\n  allowed_tools: [\"calc\"]\n"))
	if err != nil {
		t.Fatal(err)
	}
	provider := testutil.NewMockProvider("mock")
	a, err := buildApp(context.Background(), cfg, func(*config.Config) (llm.Provider, error) {
		return provider, nil
	}, discardLogger())
	if err != nil {
		t.Fatalf("buildApp: %v", err)
	}
	defer a.Close()

	specs := a.opts.Loop.Specs()
	if len(specs) != 1 || specs[0].Name != "calc" {
		t.Fatalf("allow-list not applied: %+v", specs)
	}
	if a.opts.Services["anthropic"] || a.opts.Services["mcp"] || a.opts.Services["auth"] {
		t.Fatalf("unexpected services: %v", a.opts.Services)
	}
	if got := a.opts.Loop.History().Policy.MaxUnits; got != 10 {
		t.Fatalf("history max units = %d", got)
	}
	if !strings.Contains(a.opts.Loop.History().SystemPrompt, "Syntra") {
		t.Fatalf("default system prompt not used: %q", a.opts.Loop.History().SystemPrompt)
	}
}

func TestBuildAppProviderError(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, "store:\n  driver: memory\n"))
	if err != nil {
		t.Fatal(err)
	}
	_, err = buildApp(context.Background(), cfg, func(*config.Config) (llm.Provider, error) {
		return nil, errors.New("no key")
	}, discardLogger())
	if err == nil || err.Error() != "no key" {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestListAndShowChats(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	chat, err := st.CreateChat(ctx, "alice", "Arithmetic")
	if err != nil {
		t.Fatal(err)
	}
	st.Append(ctx, chat.ID, store.RoleUser, "what is 2+2?")
	st.Append(ctx, chat.ID, store.RoleAssistant, "---START---\n$ calc\n$ Input\n2+2\n$ Output\n4\n---END---\nIt is 4.")

	var out bytes.Buffer
	if err := listChats(ctx, st, &out, "alice"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), chat.ID) || !strings.Contains(out.String(), "Arithmetic") {
		t.Fatalf("list output:\n%s", out.String())
	}

	out.Reset()
	if err := listChats(ctx, st, &out, "bob"); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out.String()) != "no chats" {
		t.Fatalf("bob should have no chats: %q", out.String())
	}

	out.Reset()
	if err := showChat(ctx, st, &out, "alice", chat.ID, false); err != nil {
		t.Fatal(err)
	}
	got := out.String()
	for _, want := range []string{"Arithmetic", "user", "what is 2+2?", "assistant", "$ calc", "It is 4."} {
		if !strings.Contains(got, want) {
			t.Errorf("show output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "---START---") {
		t.Errorf("markers should not be printed:\n%s", got)
	}

	err = showChat(ctx, st, &out, "bob", chat.ID, false)
	if err == nil || !strings.Contains(err.Error(), "another user") {
		t.Fatalf("expected ownership error, got %v", err)
	}
	err = showChat(ctx, st, &out, "alice", "missing", false)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestTokenCommand(t *testing.T) {
	path := writeConfig(t, "auth:\n  mode: jwt\n  secret: 0123456789abcdef0123\n")
	old := configPath
	configPath = path
	t.Cleanup(func() { configPath = old })

	var out bytes.Buffer
	tokenCmd.SetOut(&out)
	tokenUser, tokenTTL = "alice", 0
	if err := runToken(tokenCmd, nil); err != nil {
		t.Fatalf("runToken: %v", err)
	}

	verifier, err := auth.NewJWT("0123456789abcdef0123", "syntra", 0)
	if err != nil {
		t.Fatal(err)
	}
	user, err := verifier.Verify(strings.TrimSpace(out.String()))
	if err != nil || user != "alice" {
		t.Fatalf("Verify = %q, %v", user, err)
	}
}

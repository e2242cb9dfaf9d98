package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/history"
	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/llm"
	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/testutil"
	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/tools"
)

type recorder struct {
	events []Event
	failOn int // 1-based event index whose emit fails; 0 never
}

func (r *recorder) emit(e Event) error {
	r.events = append(r.events, e)
	if r.failOn > 0 && len(r.events) == r.failOn {
		return errors.New("client went away")
	}
	return nil
}

func (r *recorder) kinds() string {
	var parts []string
	for _, e := range r.events {
		switch e.Type {
		case EventToken:
			parts = append(parts, "token")
		case EventToolStart:
			parts = append(parts, "start:"+e.Tool)
		case EventToolEnd:
			parts = append(parts, "end:"+e.Tool)
		}
	}
	return strings.Join(parts, ",")
}

func newTestLoop(provider llm.Provider, registry *llm.ToolRegistry, opts Options) *Loop {
	return New(provider, registry, history.NewManager("You are a test assistant."), opts)
}

func begin(t *testing.T, message string) *Checkpoint {
	t.Helper()
	cps := NewCheckpoints(0)
	cp, err := cps.Begin("chat-1", history.NewManager("You are a test assistant.").Initial(nil, message))
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	return cp
}

func calcRegistry() *llm.ToolRegistry {
	registry := llm.NewToolRegistry()
	registry.Register(tools.NewCalcTool())
	return registry
}

func TestRunWithoutTools(t *testing.T) {
	provider := testutil.NewMockProvider("mock").AddTextResponse("Hello", " there", "!")
	loop := newTestLoop(provider, nil, Options{})
	cp := begin(t, "Hi")
	rec := &recorder{}

	if err := loop.Run(context.Background(), cp, rec.emit); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := rec.kinds(); got != "token,token,token" {
		t.Fatalf("events=%s", got)
	}
	if cp.Snapshot.State != Done || cp.Snapshot.Turn != 1 {
		t.Fatalf("snapshot=%+v", cp.Snapshot)
	}
	last := cp.Messages[len(cp.Messages)-1]
	if last.Role != llm.RoleAssistant || last.Text() != "Hello there!" {
		t.Fatalf("last message=%+v", last)
	}

	reqs := provider.Requests()
	if len(reqs) != 1 {
		t.Fatalf("requests=%d", len(reqs))
	}
	if len(reqs[0].Tools) != 0 || reqs[0].ToolChoice.Mode != "" {
		t.Fatalf("tools offered without a registry: %+v", reqs[0].Tools)
	}
	if len(history.Hinted(reqs[0].Messages)) == 0 {
		t.Fatal("request carries no cache hints")
	}
}

func TestRunCalcTool(t *testing.T) {
	provider := testutil.NewMockProvider("mock").
		AddToolCall("call_1", "calc", map[string]string{"expr": "2+2"}).
		AddTextResponse("The answer is ", "4.")
	loop := newTestLoop(provider, calcRegistry(), Options{})
	cp := begin(t, "What is 2+2?")
	rec := &recorder{}

	if err := loop.Run(context.Background(), cp, rec.emit); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := rec.kinds(); got != "start:calc,end:calc,token,token" {
		t.Fatalf("events=%s", got)
	}
	start, end := rec.events[0], rec.events[1]
	if string(start.Input) != `{"expr":"2+2"}` || start.CallID != "call_1" {
		t.Fatalf("tool start=%+v", start)
	}
	if end.Output != "4" || end.IsError {
		t.Fatalf("tool end=%+v", end)
	}
	if cp.Snapshot.Turn != 3 {
		t.Fatalf("turns=%d, want 3", cp.Snapshot.Turn)
	}

	// The second model call sees the tool exchange.
	reqs := provider.Requests()
	if len(reqs) != 2 {
		t.Fatalf("requests=%d", len(reqs))
	}
	if len(reqs[0].Tools) != 1 || reqs[0].Tools[0].Name != "calc" || reqs[0].ToolChoice.Mode != llm.ToolChoiceAuto {
		t.Fatalf("tools=%+v choice=%+v", reqs[0].Tools, reqs[0].ToolChoice)
	}
	msgs := reqs[1].Messages
	result := msgs[len(msgs)-1]
	if result.Role != llm.RoleTool || result.Parts[0].ToolResult.ID != "call_1" || result.Parts[0].ToolResult.Content != "4" {
		t.Fatalf("last message of second request=%+v", result)
	}
}

func TestRunToolFailure(t *testing.T) {
	boom := errors.New("backend unavailable")
	registry := llm.NewToolRegistry()
	registry.Register(testutil.NewFailingTool("lookup", boom))
	provider := testutil.NewMockProvider("mock").
		AddToolCall("call_1", "lookup", map[string]string{}).
		AddTextResponse("never reached")
	loop := newTestLoop(provider, registry, Options{})
	cp := begin(t, "look it up")
	rec := &recorder{}

	err := loop.Run(context.Background(), cp, rec.emit)
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v, want %v", err, boom)
	}
	var capErr *CapabilityError
	var toolErr *ToolInvocationError
	if !errors.As(err, &capErr) || capErr.Capability != "tool" || !errors.As(err, &toolErr) || toolErr.Tool != "lookup" {
		t.Fatalf("err=%#v", err)
	}
	if got := rec.kinds(); got != "start:lookup" {
		t.Fatalf("events=%s", got)
	}
	if len(provider.Requests()) != 1 {
		t.Fatal("model called again after tool failure")
	}
}

func TestRunToolFailureReported(t *testing.T) {
	registry := llm.NewToolRegistry()
	registry.Register(testutil.NewFailingTool("lookup", errors.New("not found")))
	provider := testutil.NewMockProvider("mock").
		AddToolCall("call_1", "lookup", map[string]string{}).
		AddTextResponse("Sorry, nothing found.")
	loop := newTestLoop(provider, registry, Options{ToolErrors: ToolErrorsReport})
	cp := begin(t, "look it up")
	rec := &recorder{}

	if err := loop.Run(context.Background(), cp, rec.emit); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := rec.kinds(); got != "start:lookup,end:lookup,token" {
		t.Fatalf("events=%s", got)
	}
	if !rec.events[1].IsError || !strings.Contains(rec.events[1].Output, "not found") {
		t.Fatalf("tool end=%+v", rec.events[1])
	}
}

func TestRunTurnBound(t *testing.T) {
	provider := testutil.NewMockProvider("mock").AddToolCall("", "calc", map[string]string{"expr": "1+1"})
	provider.Repeat = true
	loop := newTestLoop(provider, calcRegistry(), Options{MaxTurns: 5})
	cp := begin(t, "loop forever")
	rec := &recorder{}

	err := loop.Run(context.Background(), cp, rec.emit)
	var bound *BoundExceededError
	if !errors.As(err, &bound) || bound.MaxTurns != 5 {
		t.Fatalf("err=%v, want BoundExceededError", err)
	}
	if cp.Snapshot.Turn != 5 {
		t.Fatalf("stopped at turn %d", cp.Snapshot.Turn)
	}
	// Model turns 1, 3, 5 and tool turns 2, 4.
	if n := len(provider.Requests()); n != 3 {
		t.Fatalf("model calls=%d, want 3", n)
	}
	if got := rec.kinds(); got != "start:calc,end:calc,start:calc,end:calc" {
		t.Fatalf("events=%s", got)
	}
	if rec.events[0].CallID == "" {
		t.Fatal("missing tool call id was not filled in")
	}
}

func TestRunUnknownTool(t *testing.T) {
	provider := testutil.NewMockProvider("mock").AddToolCall("c1", "missing", map[string]string{})
	loop := newTestLoop(provider, calcRegistry(), Options{})
	err := loop.Run(context.Background(), begin(t, "hi"), (&recorder{}).emit)
	if !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("err=%v, want ErrUnknownTool", err)
	}
}

func TestRunInvalidToolInput(t *testing.T) {
	provider := testutil.NewMockProvider("mock").AddToolCall("c1", "calc", map[string]int{"expr": 4})
	loop := newTestLoop(provider, calcRegistry(), Options{})
	err := loop.Run(context.Background(), begin(t, "hi"), (&recorder{}).emit)
	var toolErr *tools.ToolError
	if !errors.As(err, &toolErr) || toolErr.Type != tools.ErrInvalidParams {
		t.Fatalf("err=%v, want invalid params", err)
	}
}

func TestRunToolNotAllowed(t *testing.T) {
	registry := calcRegistry()
	registry.Register(testutil.NewMockTool("secret", "classified"))
	filter, err := tools.NewFilter([]string{"calc"})
	if err != nil {
		t.Fatal(err)
	}
	provider := testutil.NewMockProvider("mock").AddToolCall("c1", "secret", map[string]string{})
	loop := newTestLoop(provider, registry, Options{Allowed: filter})

	if specs := loop.Specs(); len(specs) != 1 || specs[0].Name != "calc" {
		t.Fatalf("specs=%+v", specs)
	}
	runErr := loop.Run(context.Background(), begin(t, "hi"), (&recorder{}).emit)
	if !errors.Is(runErr, ErrToolNotAllowed) {
		t.Fatalf("err=%v, want ErrToolNotAllowed", runErr)
	}
}

func TestRunModelFailure(t *testing.T) {
	boom := errors.New("overloaded")
	provider := testutil.NewMockProvider("mock").AddTurn(testutil.MockTurn{Text: []string{"partial"}, Err: boom})
	loop := newTestLoop(provider, nil, Options{})
	rec := &recorder{}

	err := loop.Run(context.Background(), begin(t, "hi"), rec.emit)
	var capErr *CapabilityError
	if !errors.As(err, &capErr) || capErr.Capability != "model" || !errors.Is(err, boom) {
		t.Fatalf("err=%v", err)
	}
	if got := rec.kinds(); got != "token" {
		t.Fatalf("events=%s", got)
	}
}

func TestRunTransportFailureStops(t *testing.T) {
	provider := testutil.NewMockProvider("mock").
		AddToolCall("c1", "calc", map[string]string{"expr": "2+2"}).
		AddTextResponse("4")
	tool := testutil.NewMockToolWithSchema("calc", "calc", nil, func(ctx context.Context, args json.RawMessage) (string, error) {
		return "4", nil
	})
	registry := llm.NewToolRegistry()
	registry.Register(tool)
	loop := newTestLoop(provider, registry, Options{})
	rec := &recorder{failOn: 1}

	err := loop.Run(context.Background(), begin(t, "hi"), rec.emit)
	if !IsTransport(err) {
		t.Fatalf("err=%v, want transport error", err)
	}
	if tool.InvocationCount() != 0 {
		t.Fatal("tool ran after the client went away")
	}
}

func TestRunCanceledContext(t *testing.T) {
	provider := testutil.NewMockProvider("mock").AddTextResponse("hi")
	loop := newTestLoop(provider, nil, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := loop.Run(ctx, begin(t, "hi"), (&recorder{}).emit)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v", err)
	}
	if n := len(provider.Requests()); n != 0 {
		t.Fatalf("model called %d times", n)
	}
}

func TestRunTrimsHistoryPerModelCall(t *testing.T) {
	var prior []history.Prior
	for i := 0; i < 20; i++ {
		prior = append(prior, history.Prior{Role: "user", Content: fmt.Sprintf("q%d", i)}, history.Prior{Role: "assistant", Content: fmt.Sprintf("a%d", i)})
	}
	manager := history.NewManager("sys")
	provider := testutil.NewMockProvider("mock").AddTextResponse("ok")
	loop := New(provider, nil, manager, Options{})
	cp, _ := NewCheckpoints(0).Begin("chat", manager.Initial(prior, "latest"))

	if err := loop.Run(context.Background(), cp, (&recorder{}).emit); err != nil {
		t.Fatalf("Run: %v", err)
	}
	sent := provider.Requests()[0].Messages
	if len(sent) > 10 || sent[0].Role != llm.RoleSystem || sent[1].Role != llm.RoleUser {
		t.Fatalf("sent %d messages starting %s, %s", len(sent), sent[0].Role, sent[1].Role)
	}
	if len(cp.Messages) != 43 {
		t.Fatalf("working history has %d messages, want 43", len(cp.Messages))
	}
}

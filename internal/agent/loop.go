package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/history"
	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/llm"
	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/tools"
)

const (
	DefaultMaxTurns = 10
	tracerName      = "github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/agent"
)

// ToolErrorMode selects what happens when a tool call fails.
type ToolErrorMode string

const (
	// ToolErrorsFail ends the loop with the tool's error.
	ToolErrorsFail ToolErrorMode = "fail"
	// ToolErrorsReport sends the error back to the model as the tool result.
	ToolErrorsReport ToolErrorMode = "report"
)

// EventType identifies an event emitted by the loop.
type EventType int

const (
	EventToken EventType = iota
	EventToolStart
	EventToolEnd
)

// Event is an observable step of a running loop.
type Event struct {
	Type   EventType
	Text   string
	Tool   string
	CallID string
	Input  json.RawMessage
	Output string
	// IsError marks a ToolEnd whose output is an error reported back to the model.
	IsError bool
}

// Emitter delivers events to the client. A returned error stops the loop.
type Emitter func(Event) error

// Options configures a Loop.
type Options struct {
	Model           string
	MaxTurns        int
	MaxOutputTokens int
	Temperature     float32
	ToolErrors      ToolErrorMode
	// Allowed restricts which registered tools are offered and executed.
	Allowed   *tools.Filter
	Validator *tools.Validator
	Tracer    trace.Tracer
	Logger    *slog.Logger
}

// Loop alternates model and tool turns until the model stops requesting tools.
type Loop struct {
	provider llm.Provider
	tools    *llm.ToolRegistry
	history  *history.Manager
	opts     Options
}

// New returns a loop. A nil registry means no tools are offered.
func New(provider llm.Provider, registry *llm.ToolRegistry, manager *history.Manager, opts Options) *Loop {
	if registry == nil {
		registry = llm.NewToolRegistry()
	}
	if manager == nil {
		manager = history.NewManager("")
	}
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = DefaultMaxTurns
	}
	if opts.ToolErrors == "" {
		opts.ToolErrors = ToolErrorsFail
	}
	if opts.Validator == nil {
		opts.Validator = tools.NewValidator()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Loop{provider: provider, tools: registry, history: manager, opts: opts}
}

// History returns the manager used to prepare model requests.
func (l *Loop) History() *history.Manager {
	return l.history
}

// Run drives the state machine over cp until Done. The returned error is nil on
// success, a *TransportError when emit failed, or the loop's terminal error.
func (l *Loop) Run(ctx context.Context, cp *Checkpoint, emit Emitter) error {
	runID := uuid.NewString()
	logger := l.opts.Logger.With("run_id", runID, "chat_id", cp.ConversationID)
	ctx, span := l.opts.Tracer.Start(ctx, "agent.run", trace.WithAttributes(
		attribute.String("agent.run_id", runID),
		attribute.String("agent.chat_id", cp.ConversationID),
		attribute.String("agent.provider", l.provider.Name()),
		attribute.Int("agent.max_turns", l.opts.MaxTurns),
	))
	defer span.End()

	cp.Snapshot = Start(l.opts.MaxTurns)
	for cp.Snapshot.State != Done {
		if err := ctx.Err(); err != nil {
			cp.Snapshot = Transition(cp.Snapshot, Outcome{Err: err})
			break
		}

		var outcome Outcome
		switch cp.Snapshot.State {
		case AgentTurn:
			msg, err := l.modelTurn(ctx, cp, emit)
			if IsTransport(err) {
				return l.finish(span, logger, cp, err)
			}
			if err == nil {
				cp.Messages = append(cp.Messages, msg)
				outcome.Calls = msg.ToolCalls()
			}
			outcome.Err = err
		case ToolTurn:
			results, err := l.toolTurn(ctx, cp.Snapshot.Pending, emit)
			if IsTransport(err) {
				return l.finish(span, logger, cp, err)
			}
			cp.Messages = append(cp.Messages, results...)
			outcome.Err = err
		}
		prev := cp.Snapshot.State
		cp.Snapshot = Transition(cp.Snapshot, outcome)
		logger.Debug("agent transition", "from", prev, "to", cp.Snapshot.State, "turn", cp.Snapshot.Turn)
	}
	return l.finish(span, logger, cp, cp.Snapshot.Err)
}

func (l *Loop) finish(span trace.Span, logger *slog.Logger, cp *Checkpoint, err error) error {
	span.SetAttributes(attribute.Int("agent.turns", cp.Snapshot.Turn))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "agent run failed")
		logger.Warn("agent run failed", "turn", cp.Snapshot.Turn, "error", err)
		return err
	}
	span.SetStatus(codes.Ok, "")
	logger.Info("agent run completed",
		"turns", cp.Snapshot.Turn,
		"input_tokens", cp.Usage.InputTokens,
		"output_tokens", cp.Usage.OutputTokens,
		"cached_tokens", cp.Usage.CachedInputTokens,
	)
	return nil
}

// Specs returns the tool specs offered to the model.
func (l *Loop) Specs() []llm.ToolSpec {
	var specs []llm.ToolSpec
	for _, spec := range l.tools.AllSpecs() {
		if l.opts.Allowed.Allows(spec.Name) {
			specs = append(specs, spec)
		}
	}
	return specs
}

func (l *Loop) modelTurn(ctx context.Context, cp *Checkpoint, emit Emitter) (llm.Message, error) {
	ctx, span := l.opts.Tracer.Start(ctx, "agent.model_turn", trace.WithAttributes(
		attribute.Int("agent.turn", cp.Snapshot.Turn),
		attribute.String("agent.model", l.opts.Model),
	))
	defer span.End()

	req := llm.Request{
		Model:           l.opts.Model,
		Messages:        l.history.Prepare(cp.Messages),
		MaxOutputTokens: l.opts.MaxOutputTokens,
		Temperature:     l.opts.Temperature,
	}
	if specs := l.Specs(); len(specs) > 0 {
		req.Tools = specs
		req.ToolChoice = llm.ToolChoice{Mode: llm.ToolChoiceAuto}
	}
	span.SetAttributes(attribute.Int("agent.messages", len(req.Messages)))

	msg, err := l.streamTurn(ctx, req, cp, emit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "model turn failed")
	}
	return msg, err
}

func (l *Loop) streamTurn(ctx context.Context, req llm.Request, cp *Checkpoint, emit Emitter) (llm.Message, error) {
	stream, err := l.provider.Stream(ctx, req)
	if err != nil {
		return llm.Message{}, &CapabilityError{Capability: "model", Err: err}
	}
	defer stream.Close()

	var text strings.Builder
	var calls []llm.ToolCall
	for {
		event, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return llm.Message{}, &CapabilityError{Capability: "model", Err: err}
		}
		switch event.Type {
		case llm.EventTextDelta:
			if event.Text == "" {
				continue
			}
			text.WriteString(event.Text)
			if err := emit(Event{Type: EventToken, Text: event.Text}); err != nil {
				return llm.Message{}, &TransportError{Err: err}
			}
		case llm.EventToolCall:
			if event.Tool != nil {
				calls = append(calls, *event.Tool)
			}
		case llm.EventUsage:
			if event.Use != nil {
				cp.Usage.InputTokens += event.Use.InputTokens
				cp.Usage.OutputTokens += event.Use.OutputTokens
				cp.Usage.CachedInputTokens += event.Use.CachedInputTokens
			}
		case llm.EventError:
			if event.Err != nil {
				return llm.Message{}, &CapabilityError{Capability: "model", Err: event.Err}
			}
		}
	}
	return llm.AssistantMessage(text.String(), ensureToolCallIDs(calls, cp.Snapshot.Turn)), nil
}

// ensureToolCallIDs fills in ids for backends that omit them.
func ensureToolCallIDs(calls []llm.ToolCall, turn int) []llm.ToolCall {
	for i := range calls {
		if calls[i].ID == "" {
			calls[i].ID = fmt.Sprintf("call_%d_%d", turn, i)
		}
	}
	return calls
}

// toolTurn executes calls sequentially in request order. It returns the result
// messages produced before any failure.
func (l *Loop) toolTurn(ctx context.Context, calls []llm.ToolCall, emit Emitter) ([]llm.Message, error) {
	results := make([]llm.Message, 0, len(calls))
	for _, call := range calls {
		input := call.Arguments
		if len(bytes.TrimSpace(input)) == 0 {
			input = json.RawMessage(`{}`)
		}
		if err := emit(Event{Type: EventToolStart, Tool: call.Name, CallID: call.ID, Input: input}); err != nil {
			return results, &TransportError{Err: err}
		}

		output, err := l.invokeTool(ctx, call)
		if err != nil {
			if l.opts.ToolErrors != ToolErrorsReport {
				return results, &CapabilityError{Capability: "tool", Err: err}
			}
			msg := "Error: " + err.Error()
			results = append(results, llm.ToolErrorMessage(call.ID, call.Name, msg))
			if err := emit(Event{Type: EventToolEnd, Tool: call.Name, CallID: call.ID, Output: msg, IsError: true}); err != nil {
				return results, &TransportError{Err: err}
			}
			continue
		}

		results = append(results, llm.ToolResultMessage(call.ID, call.Name, output))
		if err := emit(Event{Type: EventToolEnd, Tool: call.Name, CallID: call.ID, Output: output}); err != nil {
			return results, &TransportError{Err: err}
		}
	}
	return results, nil
}

func (l *Loop) invokeTool(ctx context.Context, call llm.ToolCall) (string, error) {
	ctx, span := l.opts.Tracer.Start(ctx, "agent.tool_call", trace.WithAttributes(
		attribute.String("agent.tool", call.Name),
		attribute.String("agent.tool_call_id", call.ID),
	))
	defer span.End()

	output, err := l.executeTool(ctx, call)
	if err != nil {
		err = &ToolInvocationError{Tool: call.Name, CallID: call.ID, Err: err}
		span.RecordError(err)
		span.SetStatus(codes.Error, "tool call failed")
		return "", err
	}
	span.SetAttributes(attribute.Int("agent.tool_output_bytes", len(output)))
	return output, nil
}

func (l *Loop) executeTool(ctx context.Context, call llm.ToolCall) (string, error) {
	if !l.opts.Allowed.Allows(call.Name) {
		return "", ErrToolNotAllowed
	}
	tool, ok := l.tools.Get(call.Name)
	if !ok {
		return "", ErrUnknownTool
	}
	if err := l.opts.Validator.Validate(tool.Spec(), call.Arguments); err != nil {
		return "", err
	}
	return tool.Execute(ctx, call.Arguments)
}

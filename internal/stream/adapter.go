// Package stream bridges a running agent loop to an event-stream response.
package stream

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/agent"
	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/sse"
	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/transcript"
)

// InterruptedSuffix marks a partially streamed reply saved after a failure.
const InterruptedSuffix = "\n\n[Response interrupted due to error]"

// EventWriter is the output channel. *sse.Writer implements it.
type EventWriter interface {
	Send(sse.Event) error
	Close() error
}

// RunFunc drives the agent loop, reporting progress through emit.
type RunFunc func(ctx context.Context, emit agent.Emitter) error

// SaveFunc persists the assistant reply for the conversation.
type SaveFunc func(ctx context.Context, content string) error

// Adapter writes one request's events to its output channel.
type Adapter struct {
	Writer EventWriter
	// Save is optional. It receives the full transcript on success, and the
	// partial transcript plus InterruptedSuffix on failure.
	Save SaveFunc
	// OnConnected, when set, runs once the connected event has been written.
	OnConnected func()
	Logger      *slog.Logger
}

type session struct {
	a          *Adapter
	logger     *slog.Logger
	transcript transcript.Builder
	// broken is set once a write failed; nothing more is written.
	broken   bool
	terminal bool
}

// Run emits connected, streams the loop's events, then exactly one of done or
// error. The writer is closed on every path. The loop's error is returned.
func (a *Adapter) Run(ctx context.Context, run RunFunc) (err error) {
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &session{a: a, logger: logger}

	defer func() {
		if closeErr := a.Writer.Close(); closeErr != nil {
			logger.Debug("close stream writer", "error", closeErr)
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stream panic: %v", r)
			logger.Error("panic while streaming", "panic", r)
			s.fail(ctx, err)
		}
	}()

	if !s.send(sse.Connected()) {
		return &agent.TransportError{Err: fmt.Errorf("send connected event")}
	}
	if a.OnConnected != nil {
		a.OnConnected()
	}

	err = run(ctx, s.emit)
	switch {
	case err == nil:
		s.save(ctx, s.transcript.String())
		s.finish(sse.Done())
	case agent.IsTransport(err):
		logger.Info("client disconnected, stopping stream", "error", err)
		s.broken = true
		s.saveInterrupted(ctx)
	default:
		s.fail(ctx, err)
	}
	return err
}

func (s *session) emit(e agent.Event) error {
	var frame sse.Event
	switch e.Type {
	case agent.EventToken:
		s.transcript.AppendText(e.Text)
		frame = sse.Token(e.Text)
	case agent.EventToolStart:
		s.transcript.BeginTool(e.Tool, e.Input)
		frame = sse.ToolStart(e.Tool, e.Input)
	case agent.EventToolEnd:
		s.transcript.EndTool(e.Tool, e.Output)
		frame = sse.ToolEndText(e.Tool, e.Output)
	default:
		return nil
	}
	if s.broken {
		return sse.ErrClosed
	}
	if err := s.a.Writer.Send(frame); err != nil {
		s.broken = true
		return err
	}
	return nil
}

func (s *session) send(e sse.Event) bool {
	if s.broken || s.terminal {
		return false
	}
	if err := s.a.Writer.Send(e); err != nil {
		s.broken = true
		s.logger.Info("stream write failed", "event", e.Type, "error", err)
		return false
	}
	return true
}

func (s *session) finish(e sse.Event) {
	s.send(e)
	s.terminal = true
}

func (s *session) fail(ctx context.Context, err error) {
	if s.terminal {
		return
	}
	s.saveInterrupted(ctx)
	s.logger.Warn("chat stream failed", "error", err)
	s.finish(sse.Failure("Processing error: " + err.Error()))
}

func (s *session) saveInterrupted(ctx context.Context) {
	if s.transcript.Len() == 0 {
		return
	}
	s.save(ctx, s.transcript.String()+InterruptedSuffix)
}

func (s *session) save(ctx context.Context, content string) {
	if s.a.Save == nil || content == "" {
		return
	}
	// The request context is canceled when the client leaves; the save must still happen.
	if err := s.a.Save(context.WithoutCancel(ctx), content); err != nil {
		s.logger.Error("save assistant message", "error", err)
	}
}

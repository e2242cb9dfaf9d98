package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/llm"
)

// MockTurn scripts one model response: streamed text chunks, then tool calls.
// A non-nil Err fails the turn after Text has been streamed.
type MockTurn struct {
	Text  []string
	Calls []llm.ToolCall
	Err   error
}

// MockProvider replays scripted turns in order and records every request.
type MockProvider struct {
	name string

	mu       sync.Mutex
	turns    []MockTurn
	requests []llm.Request
	// Repeat replays the last turn once the script is exhausted.
	Repeat bool
}

func NewMockProvider(name string) *MockProvider {
	return &MockProvider{name: name}
}

// AddTurn appends a scripted turn.
func (p *MockProvider) AddTurn(turn MockTurn) *MockProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.turns = append(p.turns, turn)
	return p
}

// AddTextResponse appends a turn that streams text split into the given chunks.
func (p *MockProvider) AddTextResponse(chunks ...string) *MockProvider {
	return p.AddTurn(MockTurn{Text: chunks})
}

// AddToolCall appends a turn that requests a single tool call.
func (p *MockProvider) AddToolCall(id, name string, args any) *MockProvider {
	raw, err := json.Marshal(args)
	if err != nil {
		panic(err)
	}
	return p.AddTurn(MockTurn{Calls: []llm.ToolCall{{ID: id, Name: name, Arguments: raw}}})
}

// AddError appends a turn that fails.
func (p *MockProvider) AddError(err error) *MockProvider {
	return p.AddTurn(MockTurn{Err: err})
}

func (p *MockProvider) Name() string {
	return p.name
}

// Requests returns copies of the requests received so far.
func (p *MockProvider) Requests() []llm.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]llm.Request, len(p.requests))
	for i, req := range p.requests {
		req.Messages = llm.CloneMessages(req.Messages)
		out[i] = req
	}
	return out
}

func (p *MockProvider) Stream(ctx context.Context, req llm.Request) (llm.Stream, error) {
	p.mu.Lock()
	req.Messages = llm.CloneMessages(req.Messages)
	p.requests = append(p.requests, req)
	index := len(p.requests) - 1
	if index >= len(p.turns) {
		if !p.Repeat || len(p.turns) == 0 {
			p.mu.Unlock()
			return nil, fmt.Errorf("mock provider %s: no scripted turn %d", p.name, index+1)
		}
		index = len(p.turns) - 1
	}
	turn := p.turns[index]
	p.mu.Unlock()

	var events []llm.Event
	for _, chunk := range turn.Text {
		events = append(events, llm.Event{Type: llm.EventTextDelta, Text: chunk})
	}
	for i := range turn.Calls {
		call := turn.Calls[i]
		events = append(events, llm.Event{Type: llm.EventToolCall, Tool: &call})
	}
	if turn.Err == nil {
		events = append(events, llm.Event{Type: llm.EventDone})
	}
	return &mockStream{ctx: ctx, events: events, err: turn.Err}, nil
}

type mockStream struct {
	ctx    context.Context
	events []llm.Event
	err    error
	pos    int
}

func (s *mockStream) Recv() (llm.Event, error) {
	if err := s.ctx.Err(); err != nil {
		return llm.Event{}, err
	}
	if s.pos < len(s.events) {
		event := s.events[s.pos]
		s.pos++
		return event, nil
	}
	if s.err != nil {
		return llm.Event{}, s.err
	}
	return llm.Event{}, io.EOF
}

func (s *mockStream) Close() error { return nil }

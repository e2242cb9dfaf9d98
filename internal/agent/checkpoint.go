package agent

import (
	"errors"
	"sync"
	"time"

	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/llm"
)

var (
	// ErrBusy means another loop is already running for the conversation.
	ErrBusy = errors.New("conversation busy")
	// ErrCapacity means the registry holds its maximum number of active loops.
	ErrCapacity = errors.New("too many active conversations")
	ErrClosed   = errors.New("checkpoint registry closed")
)

// Checkpoint is the in-memory state of one conversation's running loop.
// It is owned by a single goroutine between Begin and Dispose.
type Checkpoint struct {
	ConversationID string
	Messages       []llm.Message
	Snapshot       Snapshot
	Usage          llm.Usage
	Started        time.Time
}

// Checkpoints scopes agent state by conversation id.
type Checkpoints struct {
	mu       sync.Mutex
	active   map[string]*Checkpoint
	capacity int
	closed   bool
}

// NewCheckpoints returns a registry admitting at most capacity concurrent loops.
// A capacity <= 0 means unbounded.
func NewCheckpoints(capacity int) *Checkpoints {
	return &Checkpoints{active: make(map[string]*Checkpoint), capacity: capacity}
}

// Begin creates the checkpoint for a conversation's first turn.
func (c *Checkpoints) Begin(conversationID string, messages []llm.Message) (*Checkpoint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if _, ok := c.active[conversationID]; ok {
		return nil, ErrBusy
	}
	if c.capacity > 0 && len(c.active) >= c.capacity {
		return nil, ErrCapacity
	}
	cp := &Checkpoint{
		ConversationID: conversationID,
		Messages:       messages,
		Started:        time.Now(),
	}
	c.active[conversationID] = cp
	return cp, nil
}

// Dispose releases a checkpoint once its loop reached a terminal state.
func (c *Checkpoints) Dispose(cp *Checkpoint) {
	if cp == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active[cp.ConversationID] == cp {
		delete(c.active, cp.ConversationID)
	}
}

// Active returns the number of running loops.
func (c *Checkpoints) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.active)
}

// Close rejects further Begin calls. Running loops keep their checkpoints until disposed.
func (c *Checkpoints) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

package agent

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownTool    = errors.New("tool not registered")
	ErrToolNotAllowed = errors.New("tool not allowed")
)

// ToolInvocationError reports a tool call that could not produce output.
type ToolInvocationError struct {
	Tool   string
	CallID string
	Err    error
}

func (e *ToolInvocationError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ToolInvocationError) Unwrap() error { return e.Err }

// BoundExceededError is returned when the loop would run more than MaxTurns turns.
type BoundExceededError struct {
	MaxTurns int
}

func (e *BoundExceededError) Error() string {
	return fmt.Sprintf("agent loop exceeded max turns (%d)", e.MaxTurns)
}

// CapabilityError wraps a failed model or tool invocation.
type CapabilityError struct {
	Capability string // "model" or "tool"
	Err        error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s invocation failed: %v", e.Capability, e.Err)
}

func (e *CapabilityError) Unwrap() error { return e.Err }

// TransportError wraps a failure to deliver an event to the client.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "emit event: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err stopped the loop because the client went away.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

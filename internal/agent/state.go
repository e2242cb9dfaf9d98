// Package agent drives the model/tool conversation loop for one request.
package agent

import "github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/llm"

// State is a node of the agent state machine.
type State int

const (
	AgentTurn State = iota
	ToolTurn
	Done
)

func (s State) String() string {
	switch s {
	case AgentTurn:
		return "agent_turn"
	case ToolTurn:
		return "tool_turn"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Snapshot is the control state threaded through the loop.
// Turn is the 1-based index of the pass currently being executed.
type Snapshot struct {
	State    State
	Turn     int
	MaxTurns int
	// Pending holds the tool calls a ToolTurn must execute.
	Pending []llm.ToolCall
	// Err is set when the loop finished with a failure.
	Err error
}

// Outcome is what the driver observed while executing the current state.
type Outcome struct {
	// Calls are the tool calls requested by the model (AgentTurn only).
	Calls []llm.ToolCall
	Err   error
}

// Start returns the initial snapshot for a loop bounded by maxTurns.
func Start(maxTurns int) Snapshot {
	return Snapshot{State: AgentTurn, Turn: 1, MaxTurns: maxTurns}
}

// Transition computes the next snapshot. It is pure: the driver performs all effects.
//
//	AgentTurn + calls    -> ToolTurn
//	AgentTurn + no calls -> Done
//	ToolTurn             -> AgentTurn
//	any + error          -> Done
//
// Entering a non-terminal state beyond MaxTurns ends the loop with BoundExceededError.
func Transition(s Snapshot, o Outcome) Snapshot {
	if s.State == Done {
		return s
	}
	next := Snapshot{State: Done, Turn: s.Turn, MaxTurns: s.MaxTurns}
	if o.Err != nil {
		next.Err = o.Err
		return next
	}

	switch s.State {
	case AgentTurn:
		if len(o.Calls) == 0 {
			return next
		}
		next.State = ToolTurn
		next.Pending = o.Calls
	case ToolTurn:
		next.State = AgentTurn
	}

	if s.MaxTurns > 0 && s.Turn+1 > s.MaxTurns {
		return Snapshot{State: Done, Turn: s.Turn, MaxTurns: s.MaxTurns, Err: &BoundExceededError{MaxTurns: s.MaxTurns}}
	}
	next.Turn = s.Turn + 1
	return next
}

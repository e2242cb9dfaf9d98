// Package history builds, trims and cache-annotates the conversation sent to the model.
package history

import (
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/llm"
)

// Prior is a stored message as supplied by the client.
type Prior struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ValidateRole reports whether role may appear in client-supplied history.
func ValidateRole(role string) error {
	switch role {
	case "user", "assistant":
		return nil
	default:
		return fmt.Errorf("invalid message role %q", role)
	}
}

// BuildInitialHistory maps prior messages onto model roles and appends the new
// user message. Messages with other roles are dropped.
func BuildInitialHistory(prior []Prior, newMessage string) []llm.Message {
	out := make([]llm.Message, 0, len(prior)+1)
	for _, msg := range prior {
		switch msg.Role {
		case "user", "human":
			out = append(out, llm.UserText(msg.Content))
		case "assistant", "ai":
			out = append(out, llm.AssistantText(msg.Content))
		}
	}
	return append(out, llm.UserText(newMessage))
}

// Unit selects how Policy.MaxUnits is measured.
type Unit string

const (
	UnitMessageCount  Unit = "messageCount"
	UnitTokenEstimate Unit = "tokenEstimate"
)

// Strategy selects which messages survive trimming.
type Strategy string

const StrategyMostRecent Strategy = "mostRecent"

// Policy bounds the history sent to the model.
type Policy struct {
	MaxUnits      int
	Unit          Unit
	IncludeSystem bool
	Strategy      Strategy
}

// DefaultPolicy keeps the ten most recent messages plus the system prompt.
func DefaultPolicy() Policy {
	return Policy{MaxUnits: 10, Unit: UnitMessageCount, IncludeSystem: true, Strategy: StrategyMostRecent}
}

const (
	charsPerToken   = 3.5
	messageOverhead = 4
)

// EstimateTokens approximates the token cost of a message.
func EstimateTokens(msg llm.Message) int {
	chars := 0
	for _, part := range msg.Parts {
		switch part.Type {
		case llm.PartText:
			chars += utf8.RuneCountInString(part.Text)
		case llm.PartToolCall:
			if part.ToolCall != nil {
				chars += utf8.RuneCountInString(part.ToolCall.Name) + utf8.RuneCount(part.ToolCall.Arguments)
			}
		case llm.PartToolResult:
			if part.ToolResult != nil {
				chars += utf8.RuneCountInString(part.ToolResult.Content)
			}
		}
	}
	return int(math.Ceil(float64(chars)/charsPerToken)) + messageOverhead
}

func (p Policy) cost(msg llm.Message) int {
	if p.Unit == UnitTokenEstimate {
		return EstimateTokens(msg)
	}
	return 1
}

// Trim keeps the most recent messages that fit the budget. The kept slice always
// starts on a user message; when the budget cuts inside an exchange, the
// exchange's user message is kept as well. The leading system message survives
// when IncludeSystem is set. Non-empty input never yields an empty result.
func Trim(history []llm.Message, p Policy) []llm.Message {
	if len(history) == 0 {
		return nil
	}
	if p.MaxUnits <= 0 {
		return llm.CloneMessages(history)
	}

	var system []llm.Message
	body := history
	if history[0].Role == llm.RoleSystem {
		if p.IncludeSystem {
			system = history[:1]
		}
		body = history[1:]
	}

	budget := p.MaxUnits
	for _, msg := range system {
		budget -= p.cost(msg)
	}

	start := len(body)
	used := 0
	for i := len(body) - 1; i >= 0; i-- {
		c := p.cost(body[i])
		if used+c > budget {
			break
		}
		used += c
		start = i
	}
	start = userBoundary(body, start)

	kept := make([]llm.Message, 0, len(system)+len(body)-start)
	kept = append(kept, system...)
	kept = append(kept, body[start:]...)
	out := llm.SanitizeToolHistory(kept)
	if len(out) == 0 {
		return llm.CloneMessages(history)
	}
	return out
}

// userBoundary moves start forward to the next user message, or back to the
// closest earlier one when none follows. Without any user message everything is kept.
func userBoundary(body []llm.Message, start int) int {
	for i := start; i < len(body); i++ {
		if body[i].Role == llm.RoleUser {
			return i
		}
	}
	for i := min(start, len(body)) - 1; i >= 0; i-- {
		if body[i].Role == llm.RoleUser {
			return i
		}
	}
	return 0
}

package llm

import (
	"fmt"
	"strings"
)

type toolCallRef struct {
	messageIndex int
	partIndex    int
}

// SanitizeToolHistory removes orphan tool results and turns tool calls that never got a
// result into plain text, so every tool result in the output follows its request.
func SanitizeToolHistory(messages []Message) []Message {
	if len(messages) == 0 {
		return nil
	}

	sanitized := make([]Message, 0, len(messages))
	pending := make(map[string][]toolCallRef)
	matched := make(map[int]map[int]bool)

	for _, msg := range messages {
		switch msg.Role {
		case RoleAssistant:
			index := len(sanitized)
			parts := make([]Part, 0, len(msg.Parts))
			for _, part := range msg.Parts {
				cloned, ok := clonePart(part)
				if !ok {
					continue
				}
				if cloned.Type == PartToolCall {
					id := strings.TrimSpace(cloned.ToolCall.ID)
					if id == "" {
						continue
					}
					pending[id] = append(pending[id], toolCallRef{messageIndex: index, partIndex: len(parts)})
				}
				parts = append(parts, cloned)
			}
			if len(parts) > 0 {
				sanitized = append(sanitized, Message{Role: msg.Role, Parts: parts})
			}

		case RoleTool:
			parts := make([]Part, 0, len(msg.Parts))
			for _, part := range msg.Parts {
				cloned, ok := clonePart(part)
				if !ok {
					continue
				}
				if cloned.Type != PartToolResult {
					parts = append(parts, cloned)
					continue
				}
				id := strings.TrimSpace(cloned.ToolResult.ID)
				refs := pending[id]
				if id == "" || len(refs) == 0 {
					continue
				}
				ref := refs[0]
				if len(refs) == 1 {
					delete(pending, id)
				} else {
					pending[id] = refs[1:]
				}
				if matched[ref.messageIndex] == nil {
					matched[ref.messageIndex] = make(map[int]bool)
				}
				matched[ref.messageIndex][ref.partIndex] = true
				parts = append(parts, cloned)
			}
			if len(parts) > 0 {
				sanitized = append(sanitized, Message{Role: msg.Role, Parts: parts})
			}

		default:
			sanitized = append(sanitized, Message{Role: msg.Role, Parts: cloneParts(msg.Parts)})
		}
	}

	out := make([]Message, 0, len(sanitized))
	for msgIndex, msg := range sanitized {
		if msg.Role != RoleAssistant {
			out = append(out, msg)
			continue
		}
		matches := matched[msgIndex]
		parts := make([]Part, 0, len(msg.Parts))
		for partIndex, part := range msg.Parts {
			if part.Type == PartToolCall && !matches[partIndex] {
				// Anthropic rejects a tool_use block without its tool_result.
				text := fmt.Sprintf("[tool call interrupted: id:%s name:%s args:%s]",
					part.ToolCall.ID, part.ToolCall.Name, string(part.ToolCall.Arguments))
				parts = append(parts, Part{Type: PartText, Text: text, CacheHint: part.CacheHint})
				continue
			}
			parts = append(parts, part)
		}
		if len(parts) > 0 {
			out = append(out, Message{Role: msg.Role, Parts: parts})
		}
	}
	return out
}

func cloneParts(parts []Part) []Part {
	cloned := make([]Part, 0, len(parts))
	for _, part := range parts {
		if c, ok := clonePart(part); ok {
			cloned = append(cloned, c)
		}
	}
	return cloned
}

func clonePart(part Part) (Part, bool) {
	cloned := part
	switch part.Type {
	case PartToolCall:
		if part.ToolCall == nil {
			return Part{}, false
		}
		call := *part.ToolCall
		if len(call.Arguments) > 0 {
			call.Arguments = append([]byte(nil), call.Arguments...)
		}
		cloned.ToolCall = &call
	case PartToolResult:
		if part.ToolResult == nil {
			return Part{}, false
		}
		result := *part.ToolResult
		cloned.ToolResult = &result
	}
	return cloned, true
}

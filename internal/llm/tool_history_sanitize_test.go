package llm

import (
	"strings"
	"testing"
)

func TestSanitizeToolHistoryDropsOrphanResults(t *testing.T) {
	out := SanitizeToolHistory([]Message{
		ToolResultMessage("gone", "calculator", "4"),
		UserText("hi"),
	})
	if len(out) != 1 || out[0].Role != RoleUser {
		t.Fatalf("out=%+v", out)
	}
}

func TestSanitizeToolHistoryRewritesDanglingCalls(t *testing.T) {
	call := AssistantMessage("checking", []ToolCall{{ID: "c1", Name: "calculator", Arguments: []byte(`{"expr":"1"}`)}})
	call.Parts[1].CacheHint = true
	out := SanitizeToolHistory([]Message{UserText("q"), call})

	if len(out) != 2 {
		t.Fatalf("out=%d messages", len(out))
	}
	parts := out[1].Parts
	if len(parts) != 2 || parts[1].Type != PartText {
		t.Fatalf("parts=%+v", parts)
	}
	if !strings.Contains(parts[1].Text, "tool call interrupted") || !parts[1].CacheHint {
		t.Fatalf("rewritten part=%+v", parts[1])
	}
}

func TestSanitizeToolHistoryKeepsMatchedPairs(t *testing.T) {
	in := []Message{
		UserText("q"),
		AssistantMessage("", []ToolCall{{ID: "c1", Name: "calculator"}}),
		ToolResultMessage("c1", "calculator", "4"),
		AssistantText("4"),
	}
	out := SanitizeToolHistory(in)
	if len(out) != 4 || out[1].Parts[0].Type != PartToolCall {
		t.Fatalf("out=%+v", out)
	}
	out[1].Parts[0].ToolCall.Name = "mutated"
	if in[1].Parts[0].ToolCall.Name != "calculator" {
		t.Fatal("sanitize must not alias input tool calls")
	}
}

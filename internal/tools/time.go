package tools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/llm"
)

// TimeTool reports the current time, optionally in a named time zone.
type TimeTool struct {
	now func() time.Time
}

func NewTimeTool() *TimeTool {
	return &TimeTool{now: time.Now}
}

func (t *TimeTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        TimeToolName,
		Description: "Return the current date and time in RFC 3339 format.",
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"timezone": map[string]interface{}{
					"type":        "string",
					"description": "IANA time zone name such as Europe/Paris. Defaults to UTC.",
				},
			},
			"additionalProperties": false,
		},
	}
}

func (t *TimeTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a struct {
		Timezone string `json:"timezone"`
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &a); err != nil {
			return "", NewToolErrorf(ErrInvalidParams, "parse arguments: %v", err)
		}
	}
	loc := time.UTC
	if a.Timezone != "" {
		l, err := time.LoadLocation(a.Timezone)
		if err != nil {
			return "", NewToolErrorf(ErrInvalidParams, "unknown time zone %q", a.Timezone)
		}
		loc = l
	}
	return t.now().In(loc).Format(time.RFC3339), nil
}

package mcp

import (
	"context"
	"encoding/json"

	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/llm"
)

// Tool exposes one MCP server tool as an llm.Tool.
type Tool struct {
	manager *Manager
	spec    ToolSpec
}

func NewTool(manager *Manager, spec ToolSpec) *Tool {
	return &Tool{manager: manager, spec: spec}
}

func (t *Tool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        t.spec.Name,
		Description: t.spec.Description,
		Schema:      t.spec.Schema,
	}
}

func (t *Tool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	return t.manager.CallTool(ctx, t.spec.Name, args)
}

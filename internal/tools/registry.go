package tools

import (
	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/llm"
)

// NewBuiltinTool constructs a built-in tool by name.
func NewBuiltinTool(name string) (llm.Tool, error) {
	switch name {
	case CalcToolName:
		return NewCalcTool(), nil
	case TimeToolName:
		return NewTimeTool(), nil
	default:
		return nil, NewToolErrorf(ErrInvalidParams, "unknown tool: %s", name)
	}
}

// NewRegistry returns a registry holding the named built-in tools, or all of
// them when names is empty.
func NewRegistry(names []string) (*llm.ToolRegistry, error) {
	if len(names) == 0 {
		names = BuiltinToolNames
	}
	registry := llm.NewToolRegistry()
	for _, name := range names {
		tool, err := NewBuiltinTool(name)
		if err != nil {
			return nil, err
		}
		registry.Register(tool)
	}
	return registry, nil
}

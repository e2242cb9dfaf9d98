package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/llm"
)

// Validator checks tool-call arguments against the tool's JSON schema.
// Compiled schemas are cached per tool name and schema document.
type Validator struct {
	mu    sync.Mutex
	cache map[string]compiledSchema
}

type compiledSchema struct {
	source string
	schema *jsonschema.Schema
}

func NewValidator() *Validator {
	return &Validator{cache: make(map[string]compiledSchema)}
}

// Validate returns an ErrInvalidParams ToolError when args do not satisfy spec.Schema.
// Tools without a schema accept any JSON object.
func (v *Validator) Validate(spec llm.ToolSpec, args json.RawMessage) error {
	if len(bytes.TrimSpace(args)) == 0 {
		args = json.RawMessage(`{}`)
	}
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(args))
	if err != nil {
		return NewToolErrorf(ErrInvalidParams, "arguments are not valid JSON: %v", err)
	}
	if len(spec.Schema) == 0 {
		if _, ok := instance.(map[string]any); !ok {
			return NewToolError(ErrInvalidParams, "arguments must be a JSON object")
		}
		return nil
	}

	schema, err := v.compile(spec)
	if err != nil {
		return err
	}
	if err := schema.Validate(instance); err != nil {
		return NewToolErrorf(ErrInvalidParams, "arguments do not match schema: %v", err)
	}
	return nil
}

func (v *Validator) compile(spec llm.ToolSpec) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(spec.Schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema for %s: %w", spec.Name, err)
	}
	source := string(raw)

	v.mu.Lock()
	defer v.mu.Unlock()
	if cached, ok := v.cache[spec.Name]; ok && cached.source == source {
		return cached.schema, nil
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode schema for %s: %w", spec.Name, err)
	}
	url := "schema.json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema for %s: %w", spec.Name, err)
	}
	schema, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema for %s: %w", spec.Name, err)
	}
	v.cache[spec.Name] = compiledSchema{source: source, schema: schema}
	return schema, nil
}

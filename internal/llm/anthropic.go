package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
)

// anthropicMessages is the subset of the SDK message service the provider uses.
type anthropicMessages interface {
	NewStreaming(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) *ssestream.Stream[anthropic.MessageStreamEventUnion]
}

// AnthropicOptions configures the Anthropic provider.
type AnthropicOptions struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float32
	// Beta values are sent as anthropic-beta headers.
	Beta []string
}

// AnthropicProvider implements Provider using the Anthropic Messages API.
type AnthropicProvider struct {
	messages    anthropicMessages
	model       string
	maxTokens   int
	temperature float32
}

func NewAnthropicProvider(opts AnthropicOptions) *AnthropicProvider {
	reqOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	for _, beta := range opts.Beta {
		if beta = strings.TrimSpace(beta); beta != "" {
			reqOpts = append(reqOpts, option.WithHeaderAdd("anthropic-beta", beta))
		}
	}
	client := anthropic.NewClient(reqOpts...)
	return newAnthropicProvider(&client.Messages, opts)
}

func newAnthropicProvider(messages anthropicMessages, opts AnthropicOptions) *AnthropicProvider {
	return &AnthropicProvider{
		messages:    messages,
		model:       opts.Model,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
	}
}

func (p *AnthropicProvider) Name() string {
	return fmt.Sprintf("Anthropic (%s)", p.model)
}

func (p *AnthropicProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	params := p.buildParams(req)
	return newEventStream(ctx, func(ctx context.Context, events chan<- Event) error {
		accumulator := newToolCallAccumulator()
		usage := &Usage{}

		stream := p.messages.NewStreaming(ctx, params)
		defer stream.Close()
		for stream.Next() {
			event := stream.Current()
			switch variant := event.AsAny().(type) {
			case anthropic.MessageStartEvent:
				usage.InputTokens = int(variant.Message.Usage.InputTokens)
				usage.CachedInputTokens = int(variant.Message.Usage.CacheReadInputTokens)
			case anthropic.ContentBlockStartEvent:
				if block, ok := variant.ContentBlock.AsAny().(anthropic.ToolUseBlock); ok {
					accumulator.Start(variant.Index, ToolCall{
						ID:        block.ID,
						Name:      block.Name,
						Arguments: toolInputToRaw(block.Input),
					})
				}
			case anthropic.ContentBlockDeltaEvent:
				switch delta := variant.Delta.AsAny().(type) {
				case anthropic.InputJSONDelta:
					accumulator.Append(variant.Index, delta.PartialJSON)
				case anthropic.TextDelta:
					if delta.Text != "" {
						if err := sendEvent(ctx, events, Event{Type: EventTextDelta, Text: delta.Text}); err != nil {
							return err
						}
					}
				}
			case anthropic.ContentBlockStopEvent:
				if call, ok := accumulator.Finish(variant.Index); ok {
					if err := sendEvent(ctx, events, Event{Type: EventToolCall, Tool: &call}); err != nil {
						return err
					}
				}
			case anthropic.MessageDeltaEvent:
				if variant.Usage.OutputTokens > 0 {
					usage.OutputTokens = int(variant.Usage.OutputTokens)
				}
			}
		}
		if err := stream.Err(); err != nil {
			return fmt.Errorf("anthropic streaming error: %w", err)
		}
		if usage.InputTokens > 0 || usage.OutputTokens > 0 {
			if err := sendEvent(ctx, events, Event{Type: EventUsage, Use: usage}); err != nil {
				return err
			}
		}
		return sendEvent(ctx, events, Event{Type: EventDone})
	}), nil
}

func (p *AnthropicProvider) buildParams(req Request) anthropic.MessageNewParams {
	system, messages := buildAnthropicMessages(req.Messages)
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(chooseModel(req.Model, p.model)),
		MaxTokens: maxTokens(req.MaxOutputTokens, p.maxTokens, 4096),
		Messages:  messages,
	}
	if len(system) > 0 {
		params.System = system
	}
	temperature := req.Temperature
	if temperature <= 0 {
		temperature = p.temperature
	}
	if temperature > 0 {
		params.Temperature = anthropic.Float(temperatureValue(temperature))
	}
	if len(req.Tools) > 0 {
		params.Tools = buildAnthropicTools(req.Tools)
		params.ToolChoice = buildAnthropicToolChoice(req.ToolChoice)
	}
	return params
}

func buildAnthropicMessages(messages []Message) ([]anthropic.TextBlockParam, []anthropic.MessageParam) {
	var system []anthropic.TextBlockParam
	var out []anthropic.MessageParam

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			text := collectTextParts(msg.Parts)
			if text == "" {
				continue
			}
			block := anthropic.TextBlockParam{Text: text}
			if collectCacheHint(msg.Parts) {
				block.CacheControl = anthropic.NewCacheControlEphemeralParam()
			}
			system = append(system, block)
		case RoleUser:
			if blocks := buildAnthropicBlocks(msg.Parts, false); len(blocks) > 0 {
				out = append(out, anthropic.NewUserMessage(blocks...))
			}
		case RoleAssistant:
			if blocks := buildAnthropicBlocks(msg.Parts, true); len(blocks) > 0 {
				out = append(out, anthropic.NewAssistantMessage(blocks...))
			}
		case RoleTool:
			blocks := buildAnthropicBlocks(msg.Parts, false)
			if len(blocks) == 0 {
				continue
			}
			// Results for one assistant turn must share a single user message.
			if n := len(out); n > 0 && out[n-1].Role == anthropic.MessageParamRoleUser && isToolResultMessage(out[n-1]) {
				out[n-1].Content = append(out[n-1].Content, blocks...)
				continue
			}
			out = append(out, anthropic.NewUserMessage(blocks...))
		}
	}
	return system, out
}

func isToolResultMessage(msg anthropic.MessageParam) bool {
	for _, block := range msg.Content {
		if block.OfToolResult == nil {
			return false
		}
	}
	return len(msg.Content) > 0
}

func buildAnthropicBlocks(parts []Part, allowToolUse bool) []anthropic.ContentBlockParamUnion {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(parts))
	for _, part := range parts {
		switch part.Type {
		case PartText:
			if part.Text == "" {
				continue
			}
			block := anthropic.TextBlockParam{Text: part.Text}
			if part.CacheHint {
				block.CacheControl = anthropic.NewCacheControlEphemeralParam()
			}
			blocks = append(blocks, anthropic.ContentBlockParamUnion{OfText: &block})
		case PartToolCall:
			if !allowToolUse || part.ToolCall == nil {
				continue
			}
			block := anthropic.NewToolUseBlock(part.ToolCall.ID, toolInputFromRaw(part.ToolCall.Arguments), part.ToolCall.Name)
			if part.CacheHint && block.OfToolUse != nil {
				block.OfToolUse.CacheControl = anthropic.NewCacheControlEphemeralParam()
			}
			blocks = append(blocks, block)
		case PartToolResult:
			if part.ToolResult != nil {
				blocks = append(blocks, toolResultBlock(part.ToolResult, part.CacheHint))
			}
		}
	}
	return blocks
}

func toolResultBlock(result *ToolResult, cacheHint bool) anthropic.ContentBlockParamUnion {
	content := result.Content
	if content == "" {
		content = "(no output)"
	}
	block := anthropic.ToolResultBlockParam{
		ToolUseID: result.ID,
		IsError:   anthropic.Bool(result.IsError),
		Content: []anthropic.ToolResultBlockParamContentUnion{{
			OfText: &anthropic.TextBlockParam{Text: content},
		}},
	}
	if cacheHint {
		block.CacheControl = anthropic.NewCacheControlEphemeralParam()
	}
	return anthropic.ContentBlockParamUnion{OfToolResult: &block}
}

func buildAnthropicTools(specs []ToolSpec) []anthropic.ToolUnionParam {
	tools := make([]anthropic.ToolUnionParam, 0, len(specs))
	for _, spec := range specs {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type:       constant.Object("object"),
			Properties: spec.Schema["properties"],
			Required:   schemaRequired(spec.Schema),
		}
		tool := anthropic.ToolUnionParamOfTool(inputSchema, spec.Name)
		if spec.Description != "" {
			tool.OfTool.Description = anthropic.String(spec.Description)
		}
		tools = append(tools, tool)
	}
	return tools
}

func buildAnthropicToolChoice(choice ToolChoice) anthropic.ToolChoiceUnionParam {
	switch choice.Mode {
	case ToolChoiceNone:
		none := anthropic.NewToolChoiceNoneParam()
		return anthropic.ToolChoiceUnionParam{OfNone: &none}
	case ToolChoiceRequired:
		return anthropic.ToolChoiceUnionParam{OfAny: &anthropic.ToolChoiceAnyParam{}}
	case ToolChoiceName:
		return anthropic.ToolChoiceParamOfTool(choice.Name)
	default:
		// Tool calls run one at a time, so ask for one per turn.
		return anthropic.ToolChoiceUnionParam{OfAuto: &anthropic.ToolChoiceAutoParam{DisableParallelToolUse: anthropic.Bool(true)}}
	}
}

func toolInputToRaw(input any) json.RawMessage {
	switch v := input.(type) {
	case json.RawMessage:
		return v
	case []byte:
		return json.RawMessage(v)
	case string:
		return json.RawMessage(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		return json.RawMessage(data)
	}
}

func toolInputFromRaw(raw json.RawMessage) any {
	if len(raw) == 0 || !json.Valid(raw) {
		return map[string]any{}
	}
	return raw
}

type toolCallAccumulator struct {
	calls    map[int64]ToolCall
	fallback map[int64]json.RawMessage
	partial  map[int64]*strings.Builder
}

func newToolCallAccumulator() *toolCallAccumulator {
	return &toolCallAccumulator{
		calls:    make(map[int64]ToolCall),
		fallback: make(map[int64]json.RawMessage),
		partial:  make(map[int64]*strings.Builder),
	}
}

func (a *toolCallAccumulator) Start(index int64, call ToolCall) {
	if len(call.Arguments) > 0 {
		a.fallback[index] = call.Arguments
	}
	call.Arguments = nil
	a.calls[index] = call
}

func (a *toolCallAccumulator) Append(index int64, partial string) {
	if partial == "" {
		return
	}
	builder := a.partial[index]
	if builder == nil {
		builder = &strings.Builder{}
		a.partial[index] = builder
	}
	builder.WriteString(partial)
}

func (a *toolCallAccumulator) Finish(index int64) (ToolCall, bool) {
	call, ok := a.calls[index]
	if !ok {
		return ToolCall{}, false
	}
	if builder := a.partial[index]; builder != nil && builder.Len() > 0 {
		call.Arguments = json.RawMessage(builder.String())
	} else if fallback, ok := a.fallback[index]; ok {
		call.Arguments = fallback
	}
	delete(a.calls, index)
	delete(a.partial, index)
	delete(a.fallback, index)
	return call, true
}

func maxTokens(requested, configured, fallback int) int64 {
	if requested > 0 {
		return int64(requested)
	}
	if configured > 0 {
		return int64(configured)
	}
	return int64(fallback)
}

// sendEvent delivers an event unless the consumer has gone away.
func sendEvent(ctx context.Context, events chan<- Event, event Event) error {
	select {
	case events <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

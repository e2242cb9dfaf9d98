package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/openai/openai-go/shared"
)

type openaiCompletions interface {
	NewStreaming(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) *ssestream.Stream[openai.ChatCompletionChunk]
}

// OpenAIOptions configures the OpenAI chat completions provider.
type OpenAIOptions struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float32
}

// OpenAIProvider implements Provider using the Chat Completions API. Any
// OpenAI-compatible endpoint works when BaseURL is set.
type OpenAIProvider struct {
	completions openaiCompletions
	model       string
	maxTokens   int
	temperature float32
}

func NewOpenAIProvider(opts OpenAIOptions) *OpenAIProvider {
	reqOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	client := openai.NewClient(reqOpts...)
	return newOpenAIProvider(&client.Chat.Completions, opts)
}

func newOpenAIProvider(completions openaiCompletions, opts OpenAIOptions) *OpenAIProvider {
	return &OpenAIProvider{
		completions: completions,
		model:       opts.Model,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
	}
}

func (p *OpenAIProvider) Name() string {
	return fmt.Sprintf("OpenAI (%s)", p.model)
}

func (p *OpenAIProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	params := p.buildParams(req)
	return newEventStream(ctx, func(ctx context.Context, events chan<- Event) error {
		stream := p.completions.NewStreaming(ctx, params)
		defer stream.Close()

		acc := openai.ChatCompletionAccumulator{}
		for stream.Next() {
			chunk := stream.Current()
			acc.AddChunk(chunk)

			if tool, ok := acc.JustFinishedToolCall(); ok {
				call := ToolCall{ID: tool.ID, Name: tool.Name, Arguments: toolInputToRaw(tool.Arguments)}
				if err := sendEvent(ctx, events, Event{Type: EventToolCall, Tool: &call}); err != nil {
					return err
				}
			}
			if len(chunk.Choices) > 0 {
				if text := chunk.Choices[0].Delta.Content; text != "" {
					if err := sendEvent(ctx, events, Event{Type: EventTextDelta, Text: text}); err != nil {
						return err
					}
				}
			}
		}
		if err := stream.Err(); err != nil {
			return fmt.Errorf("openai streaming error: %w", err)
		}
		if acc.Usage.TotalTokens > 0 {
			usage := &Usage{
				InputTokens:       int(acc.Usage.PromptTokens),
				OutputTokens:      int(acc.Usage.CompletionTokens),
				CachedInputTokens: int(acc.Usage.PromptTokensDetails.CachedTokens),
			}
			if err := sendEvent(ctx, events, Event{Type: EventUsage, Use: usage}); err != nil {
				return err
			}
		}
		return sendEvent(ctx, events, Event{Type: EventDone})
	}), nil
}

func (p *OpenAIProvider) buildParams(req Request) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(chooseModel(req.Model, p.model)),
		Messages: buildOpenAIMessages(req.Messages),
	}
	params.MaxCompletionTokens = openai.Int(maxTokens(req.MaxOutputTokens, p.maxTokens, 4096))
	temperature := req.Temperature
	if temperature <= 0 {
		temperature = p.temperature
	}
	if temperature > 0 {
		params.Temperature = openai.Float(temperatureValue(temperature))
	}
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{IncludeUsage: openai.Bool(true)}
	if len(req.Tools) > 0 {
		params.Tools = buildOpenAITools(req.Tools)
		params.ParallelToolCalls = openai.Bool(false)
		if choice, ok := buildOpenAIToolChoice(req.ToolChoice); ok {
			params.ToolChoice = choice
		}
	}
	return params
}

// buildOpenAIMessages flattens the conversation. Cache hints are dropped since
// OpenAI caches prompt prefixes automatically.
func buildOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			if text := collectTextParts(msg.Parts); text != "" {
				out = append(out, openai.SystemMessage(text))
			}
		case RoleUser:
			if text := collectTextParts(msg.Parts); text != "" {
				out = append(out, openai.UserMessage(text))
			}
		case RoleAssistant:
			text := collectTextParts(msg.Parts)
			calls := msg.ToolCalls()
			if len(calls) == 0 {
				if text != "" {
					out = append(out, openai.AssistantMessage(text))
				}
				continue
			}
			assistant := openai.ChatCompletionAssistantMessageParam{}
			if text != "" {
				assistant.Content.OfString = openai.String(text)
			}
			for _, call := range calls {
				args := string(call.Arguments)
				if strings.TrimSpace(args) == "" {
					args = "{}"
				}
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID: call.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      call.Name,
						Arguments: args,
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		case RoleTool:
			for _, part := range msg.Parts {
				if part.Type != PartToolResult || part.ToolResult == nil {
					continue
				}
				content := part.ToolResult.Content
				if part.ToolResult.IsError && !strings.HasPrefix(content, "Error") {
					content = "Error: " + content
				}
				out = append(out, openai.ToolMessage(content, part.ToolResult.ID))
			}
		}
	}
	return out
}

func buildOpenAITools(specs []ToolSpec) []openai.ChatCompletionToolParam {
	tools := make([]openai.ChatCompletionToolParam, 0, len(specs))
	for _, spec := range specs {
		fn := shared.FunctionDefinitionParam{
			Name:       spec.Name,
			Parameters: shared.FunctionParameters(normalizeSchemaForOpenAI(spec.Schema)),
		}
		if spec.Description != "" {
			fn.Description = openai.String(spec.Description)
		}
		tools = append(tools, openai.ChatCompletionToolParam{Function: fn})
	}
	return tools
}

func buildOpenAIToolChoice(choice ToolChoice) (openai.ChatCompletionToolChoiceOptionUnionParam, bool) {
	switch choice.Mode {
	case ToolChoiceNone:
		return openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("none")}, true
	case ToolChoiceRequired:
		return openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("required")}, true
	case ToolChoiceName:
		if strings.TrimSpace(choice.Name) == "" {
			return openai.ChatCompletionToolChoiceOptionUnionParam{}, false
		}
		return openai.ChatCompletionToolChoiceOptionUnionParam{
			OfChatCompletionNamedToolChoice: &openai.ChatCompletionNamedToolChoiceParam{
				Function: openai.ChatCompletionNamedToolChoiceFunctionParam{Name: choice.Name},
			},
		}, true
	default:
		return openai.ChatCompletionToolChoiceOptionUnionParam{}, false
	}
}

// normalizeSchemaForOpenAI drops format values the API rejects and closes object
// schemas. The input map is not modified.
func normalizeSchemaForOpenAI(schema map[string]interface{}) map[string]interface{} {
	if schema == nil {
		return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
	}
	return normalizeOpenAISchema(deepCopyMap(schema))
}

func normalizeOpenAISchema(schema map[string]interface{}) map[string]interface{} {
	if format, ok := schema["format"].(string); ok {
		switch format {
		case "date-time", "date", "time", "email":
		default:
			delete(schema, "format")
		}
	}
	if props, ok := schema["properties"].(map[string]interface{}); ok {
		for key, val := range props {
			if propSchema, ok := val.(map[string]interface{}); ok {
				props[key] = normalizeOpenAISchema(propSchema)
			}
		}
	}
	if items, ok := schema["items"].(map[string]interface{}); ok {
		schema["items"] = normalizeOpenAISchema(items)
	}
	for _, key := range []string{"anyOf", "oneOf", "allOf"} {
		if arr, ok := schema[key].([]interface{}); ok {
			for i, item := range arr {
				if itemSchema, ok := item.(map[string]interface{}); ok {
					arr[i] = normalizeOpenAISchema(itemSchema)
				}
			}
		}
	}
	if schema["type"] == "object" || schema["properties"] != nil {
		if _, isSchemaMap := schema["additionalProperties"].(map[string]interface{}); !isSchemaMap {
			schema["additionalProperties"] = false
		}
	}
	return schema
}

func deepCopyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	result := make(map[string]interface{}, len(m))
	for k, v := range m {
		result[k] = deepCopyValue(v)
	}
	return result
}

func deepCopyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return deepCopyMap(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = deepCopyValue(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	default:
		return v
	}
}

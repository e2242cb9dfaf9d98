package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiOptions configures the Gemini provider.
type GeminiOptions struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
}

// GeminiProvider implements Provider using the Google Gemini API.
type GeminiProvider struct {
	apiKey      string
	model       string
	maxTokens   int
	temperature float32
}

func NewGeminiProvider(opts GeminiOptions) *GeminiProvider {
	model := opts.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &GeminiProvider{
		apiKey:      opts.APIKey,
		model:       model,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
	}
}

func (p *GeminiProvider) Name() string {
	return fmt.Sprintf("Gemini (%s)", p.model)
}

func (p *GeminiProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	return newEventStream(ctx, func(ctx context.Context, events chan<- Event) error {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: p.apiKey, Backend: genai.BackendGeminiAPI})
		if err != nil {
			return fmt.Errorf("failed to create gemini client: %w", err)
		}

		system, contents := buildGeminiContents(req.Messages)
		if len(contents) == 0 {
			return fmt.Errorf("no user content provided")
		}
		config := p.buildConfig(req, system)

		var lastResp *genai.GenerateContentResponse
		for resp, err := range client.Models.GenerateContentStream(ctx, chooseModel(req.Model, p.model), contents, config) {
			if err != nil {
				return fmt.Errorf("gemini streaming error: %w", err)
			}
			lastResp = resp
			for _, event := range geminiResponseEvents(resp) {
				if err := sendEvent(ctx, events, event); err != nil {
					return err
				}
			}
		}
		if usage := geminiUsage(lastResp); usage != nil {
			if err := sendEvent(ctx, events, Event{Type: EventUsage, Use: usage}); err != nil {
				return err
			}
		}
		return sendEvent(ctx, events, Event{Type: EventDone})
	}), nil
}

func (p *GeminiProvider) buildConfig(req Request, system string) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens(req.MaxOutputTokens, p.maxTokens, 4096)),
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	temperature := req.Temperature
	if temperature <= 0 {
		temperature = p.temperature
	}
	if temperature > 0 {
		config.Temperature = genai.Ptr(temperature)
	}
	if len(req.Tools) > 0 {
		config.Tools = buildGeminiTools(req.Tools)
		config.ToolConfig = buildGeminiToolConfig(req.ToolChoice)
	}
	return config
}

// geminiResponseEvents converts one streamed chunk into text and tool call events.
// Thought parts are internal to the model and never surfaced.
func geminiResponseEvents(resp *genai.GenerateContentResponse) []Event {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	var events []Event
	for i, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		if part.Text != "" {
			events = append(events, Event{Type: EventTextDelta, Text: part.Text})
		}
		if part.FunctionCall != nil {
			args, err := json.Marshal(part.FunctionCall.Args)
			if err != nil || part.FunctionCall.Args == nil {
				args = []byte("{}")
			}
			id := part.FunctionCall.ID
			if id == "" {
				id = fmt.Sprintf("call_%s_%d", part.FunctionCall.Name, i)
			}
			events = append(events, Event{Type: EventToolCall, Tool: &ToolCall{
				ID:        id,
				Name:      part.FunctionCall.Name,
				Arguments: args,
			}})
		}
	}
	return events
}

func geminiUsage(resp *genai.GenerateContentResponse) *Usage {
	if resp == nil || resp.UsageMetadata == nil || resp.UsageMetadata.TotalTokenCount == 0 {
		return nil
	}
	return &Usage{
		InputTokens:       int(resp.UsageMetadata.PromptTokenCount),
		OutputTokens:      int(resp.UsageMetadata.CandidatesTokenCount),
		CachedInputTokens: int(resp.UsageMetadata.CachedContentTokenCount),
	}
}

func buildGeminiTools(specs []ToolSpec) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(specs))
	for _, spec := range specs {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  schemaToGenai(normalizeSchemaForGemini(spec.Schema)),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func buildGeminiContents(messages []Message) (string, []*genai.Content) {
	var systemParts []string
	contents := make([]*genai.Content, 0, len(messages))

	for _, msg := range messages {
		var content *genai.Content
		switch msg.Role {
		case RoleSystem:
			if text := collectTextParts(msg.Parts); text != "" {
				systemParts = append(systemParts, text)
			}
		case RoleUser:
			content = buildGeminiContent(genai.RoleUser, msg.Parts)
		case RoleAssistant:
			content = buildGeminiContent(genai.RoleModel, msg.Parts)
		case RoleTool:
			content = buildGeminiToolResultContent(msg.Parts)
		}
		if content == nil {
			continue
		}
		// Consecutive tool results belong to one user turn.
		if n := len(contents); n > 0 && msg.Role == RoleTool && isGeminiFunctionResponse(contents[n-1]) {
			contents[n-1].Parts = append(contents[n-1].Parts, content.Parts...)
			continue
		}
		contents = append(contents, content)
	}

	return strings.Join(systemParts, "\n\n"), contents
}

func isGeminiFunctionResponse(content *genai.Content) bool {
	if content.Role != genai.RoleUser || len(content.Parts) == 0 {
		return false
	}
	for _, part := range content.Parts {
		if part.FunctionResponse == nil {
			return false
		}
	}
	return true
}

func buildGeminiContent(role string, parts []Part) *genai.Content {
	content := &genai.Content{Role: role}
	for _, part := range parts {
		switch part.Type {
		case PartText:
			if part.Text != "" {
				content.Parts = append(content.Parts, &genai.Part{Text: part.Text})
			}
		case PartToolCall:
			if part.ToolCall == nil {
				continue
			}
			content.Parts = append(content.Parts, &genai.Part{
				FunctionCall: &genai.FunctionCall{
					ID:   part.ToolCall.ID,
					Name: part.ToolCall.Name,
					Args: toolArgsToMap(part.ToolCall.Arguments),
				},
			})
		}
	}
	if len(content.Parts) == 0 {
		return nil
	}
	return content
}

func buildGeminiToolResultContent(parts []Part) *genai.Content {
	content := &genai.Content{Role: genai.RoleUser}
	for _, part := range parts {
		if part.Type != PartToolResult || part.ToolResult == nil {
			continue
		}
		key := "output"
		if part.ToolResult.IsError {
			key = "error"
		}
		content.Parts = append(content.Parts, &genai.Part{
			FunctionResponse: &genai.FunctionResponse{
				ID:       part.ToolResult.ID,
				Name:     part.ToolResult.Name,
				Response: map[string]any{key: part.ToolResult.Content},
			},
		})
	}
	if len(content.Parts) == 0 {
		return nil
	}
	return content
}

func toolArgsToMap(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err == nil {
		return args
	}
	return map[string]any{"_raw": string(raw)}
}

func buildGeminiToolConfig(choice ToolChoice) *genai.ToolConfig {
	mode := genai.FunctionCallingConfigModeAuto
	var allowed []string

	switch choice.Mode {
	case ToolChoiceNone:
		mode = genai.FunctionCallingConfigModeNone
	case ToolChoiceRequired:
		mode = genai.FunctionCallingConfigModeAny
	case ToolChoiceName:
		if strings.TrimSpace(choice.Name) != "" {
			mode = genai.FunctionCallingConfigModeAny
			allowed = []string{choice.Name}
		}
	}

	return &genai.ToolConfig{
		FunctionCallingConfig: &genai.FunctionCallingConfig{
			Mode:                 mode,
			AllowedFunctionNames: allowed,
		},
	}
}

package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/config"
	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/llm"
)

// Sampler answers sampling/createMessage requests from MCP servers using the
// agent's provider. Only servers configured with sampling: true are served.
type Sampler struct {
	provider llm.Provider
	model    string
	logger   *slog.Logger
}

func NewSampler(provider llm.Provider, model string, logger *slog.Logger) *Sampler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sampler{provider: provider, model: model, logger: logger}
}

// Handle runs one sampling request for serverName.
func (s *Sampler) Handle(ctx context.Context, serverName string, cfg config.MCPServerConfig, req *mcp.CreateMessageRequest) (*mcp.CreateMessageResult, error) {
	if !cfg.Sampling {
		return nil, fmt.Errorf("sampling is disabled for server %s", serverName)
	}
	if req == nil || req.Params == nil {
		return nil, errors.New("sampling request has no parameters")
	}
	params := req.Params

	messages := convertSamplingMessages(params.Messages)
	if len(messages) == 0 {
		return nil, errors.New("sampling request has no text messages")
	}
	if params.SystemPrompt != "" {
		messages = append([]llm.Message{llm.SystemText(params.SystemPrompt)}, messages...)
	}

	maxTokens := int(params.MaxTokens)
	if limit := cfg.SamplingMaxTokens; limit > 0 && (maxTokens == 0 || limit < maxTokens) {
		maxTokens = limit
	}
	llmReq := llm.Request{
		Model:           s.model,
		Messages:        messages,
		MaxOutputTokens: maxTokens,
	}
	if params.Temperature > 0 {
		llmReq.Temperature = float32(params.Temperature)
	}

	s.logger.Debug("mcp sampling request", "server", serverName, "messages", len(messages), "max_tokens", maxTokens)
	stream, err := s.provider.Stream(ctx, llmReq)
	if err != nil {
		return nil, fmt.Errorf("start sampling stream: %w", err)
	}
	defer stream.Close()

	var text strings.Builder
	for {
		event, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("sampling stream: %w", err)
		}
		switch event.Type {
		case llm.EventTextDelta:
			text.WriteString(event.Text)
		case llm.EventError:
			if event.Err != nil {
				return nil, event.Err
			}
		}
	}

	return &mcp.CreateMessageResult{
		Content:    &mcp.TextContent{Text: text.String()},
		Model:      s.provider.Name() + "/" + s.model,
		Role:       "assistant",
		StopReason: "endTurn",
	}, nil
}

// convertSamplingMessages keeps the text messages of a sampling request.
func convertSamplingMessages(msgs []*mcp.SamplingMessage) []llm.Message {
	var out []llm.Message
	for _, m := range msgs {
		if m == nil {
			continue
		}
		c, ok := m.Content.(*mcp.TextContent)
		if !ok {
			continue
		}
		if m.Role == "assistant" {
			out = append(out, llm.AssistantText(c.Text))
		} else {
			out = append(out, llm.UserText(c.Text))
		}
	}
	return out
}

package llm

import (
	"context"
	"fmt"

	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/config"
)

// NewProvider creates the provider selected by cfg.Provider. Providers are wrapped
// with retry for rate limits and transient errors.
func NewProvider(cfg *config.Config) (Provider, error) {
	provider, err := newProviderInternal(cfg)
	if err != nil {
		return nil, err
	}
	retry := DefaultRetryConfig()
	if cfg.Agent.Retries > 0 {
		retry.MaxAttempts = cfg.Agent.Retries
	}
	return WrapWithRetry(provider, retry), nil
}

func newProviderInternal(cfg *config.Config) (Provider, error) {
	switch cfg.Provider {
	case "anthropic":
		if cfg.Anthropic.APIKey == "" {
			return nil, fmt.Errorf("anthropic: api key not configured (set ANTHROPIC_API_KEY)")
		}
		return NewAnthropicProvider(AnthropicOptions{
			APIKey:      cfg.Anthropic.APIKey,
			Model:       cfg.Anthropic.Model,
			BaseURL:     cfg.Anthropic.BaseURL,
			MaxTokens:   cfg.Anthropic.MaxTokens,
			Temperature: cfg.Anthropic.Temperature,
			Beta:        cfg.Anthropic.Beta,
		}), nil
	case "openai":
		if cfg.OpenAI.APIKey == "" && cfg.OpenAI.BaseURL == "" {
			return nil, fmt.Errorf("openai: api key not configured (set OPENAI_API_KEY)")
		}
		return NewOpenAIProvider(OpenAIOptions{
			APIKey:      cfg.OpenAI.APIKey,
			Model:       cfg.OpenAI.Model,
			BaseURL:     cfg.OpenAI.BaseURL,
			MaxTokens:   cfg.OpenAI.MaxTokens,
			Temperature: cfg.OpenAI.Temperature,
		}), nil
	case "gemini":
		if cfg.Gemini.APIKey == "" {
			return nil, fmt.Errorf("gemini: api key not configured (set GEMINI_API_KEY)")
		}
		return NewGeminiProvider(GeminiOptions{
			APIKey:      cfg.Gemini.APIKey,
			Model:       cfg.Gemini.Model,
			MaxTokens:   cfg.Gemini.MaxTokens,
			Temperature: cfg.Gemini.Temperature,
		}), nil
	case "bedrock":
		provider, err := NewBedrockProvider(context.Background(), BedrockOptions{
			Region:          cfg.Bedrock.Region,
			Model:           cfg.Bedrock.Model,
			AccessKeyID:     cfg.Bedrock.AccessKeyID,
			SecretAccessKey: cfg.Bedrock.SecretAccessKey,
			SessionToken:    cfg.Bedrock.SessionToken,
			MaxTokens:       cfg.Bedrock.MaxTokens,
			Temperature:     cfg.Bedrock.Temperature,
		})
		if err != nil {
			return nil, err
		}
		return provider, nil
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Provider)
	}
}

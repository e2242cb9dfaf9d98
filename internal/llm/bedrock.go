package llm

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// BedrockOptions configures Anthropic models served by Amazon Bedrock.
type BedrockOptions struct {
	Region string
	Model  string
	// Static credentials. When AccessKeyID is empty the default AWS chain is used.
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	MaxTokens       int
	Temperature     float32
}

// NewBedrockProvider resolves AWS configuration and returns an Anthropic
// provider that signs requests for Bedrock.
func NewBedrockProvider(ctx context.Context, opts BedrockOptions) (*AnthropicProvider, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, opts.SessionToken)))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("bedrock: load aws config: %w", err)
	}
	if awsCfg.Region == "" {
		return nil, fmt.Errorf("bedrock: region not configured")
	}
	client := anthropic.NewClient(bedrock.WithConfig(awsCfg))
	return newAnthropicProvider(&client.Messages, AnthropicOptions{
		Model:       opts.Model,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}), nil
}

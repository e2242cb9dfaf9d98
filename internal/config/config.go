package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Provider  string          `mapstructure:"provider"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Bedrock   BedrockConfig   `mapstructure:"bedrock"`
	Agent     AgentConfig     `mapstructure:"agent"`
	History   HistoryConfig   `mapstructure:"history"`
	Store     StoreConfig     `mapstructure:"store"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	MCP       MCPConfig       `mapstructure:"mcp"`
}

type ServerConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	Environment       string        `mapstructure:"environment"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"` // 0 disables SSE pings
	AllowedOrigins    []string      `mapstructure:"allowed_origins"`
	MaxActiveChats    int           `mapstructure:"max_active_chats"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text or json
}

type AnthropicConfig struct {
	APIKey      string   `mapstructure:"api_key"`
	Model       string   `mapstructure:"model"`
	BaseURL     string   `mapstructure:"base_url"`
	MaxTokens   int      `mapstructure:"max_tokens"`
	Temperature float32  `mapstructure:"temperature"`
	Beta        []string `mapstructure:"beta"`
}

type OpenAIConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	BaseURL     string  `mapstructure:"base_url"` // any OpenAI-compatible server
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float32 `mapstructure:"temperature"`
}

type GeminiConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float32 `mapstructure:"temperature"`
}

// BedrockConfig serves Anthropic models through Amazon Bedrock. Credentials
// default to the AWS SDK chain (env, shared config, instance role).
type BedrockConfig struct {
	Region          string  `mapstructure:"region"`
	Model           string  `mapstructure:"model"`
	AccessKeyID     string  `mapstructure:"access_key_id"`
	SecretAccessKey string  `mapstructure:"secret_access_key"`
	SessionToken    string  `mapstructure:"session_token"`
	MaxTokens       int     `mapstructure:"max_tokens"`
	Temperature     float32 `mapstructure:"temperature"`
}

type AgentConfig struct {
	MaxTurns     int      `mapstructure:"max_turns"`
	ToolErrors   string   `mapstructure:"tool_errors"` // "fail" (default) or "report"
	SystemPrompt string   `mapstructure:"system_prompt"`
	Profile      string   `mapstructure:"profile"`
	ProfilesFile string   `mapstructure:"profiles_file"`
	CacheSystem  bool     `mapstructure:"cache_system"`
	AllowedTools []string `mapstructure:"allowed_tools"` // glob patterns, empty allows all
	Builtins     []string `mapstructure:"builtin_tools"` // empty registers every built-in tool
	Retries      int      `mapstructure:"retries"`
}

type HistoryConfig struct {
	MaxUnits      int    `mapstructure:"max_units"`
	Unit          string `mapstructure:"unit"` // messageCount or tokenEstimate
	IncludeSystem bool   `mapstructure:"include_system"`
	Strategy      string `mapstructure:"strategy"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"` // sqlite or memory
	Path   string `mapstructure:"path"`
}

type AuthConfig struct {
	Mode   string            `mapstructure:"mode"`   // none, static, jwt
	Tokens map[string]string `mapstructure:"tokens"` // static bearer token -> user id
	Secret string            `mapstructure:"secret"`
	Issuer string            `mapstructure:"issuer"`
	TTL    time.Duration     `mapstructure:"ttl"`
	// AnonymousUser is the identity used when Mode is none.
	AnonymousUser string `mapstructure:"anonymous_user"`
}

type RateLimitConfig struct {
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"` // 0 disables
	Burst             int     `mapstructure:"burst"`
}

type MCPConfig struct {
	Servers map[string]MCPServerConfig `mapstructure:"servers"`
}

// MCPServerConfig describes one MCP server. A URL selects the streamable HTTP
// transport, otherwise Command is launched over stdio.
type MCPServerConfig struct {
	Command string            `mapstructure:"command"`
	Args    []string          `mapstructure:"args"`
	Env     map[string]string `mapstructure:"env"`
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
	// Sampling lets the server ask the agent's model for completions.
	Sampling          bool `mapstructure:"sampling"`
	SamplingMaxTokens int  `mapstructure:"sampling_max_tokens"` // 0 keeps the server's request
}

// Validate checks that exactly one transport is configured.
func (c MCPServerConfig) Validate() error {
	switch {
	case c.URL == "" && c.Command == "":
		return errors.New("mcp server requires url or command")
	case c.URL != "" && c.Command != "":
		return errors.New("cannot specify both url and command")
	}
	return nil
}

// Load reads config.yaml from path (or the default locations when empty),
// applies SYNTRA_* environment overrides and resolves credentials.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SYNTRA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if dir, err := GetConfigDir(); err == nil {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.resolveCredentials()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", "anthropic")

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.heartbeat_interval", 15*time.Second)
	v.SetDefault("server.max_active_chats", 256)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("anthropic.model", "claude-3-5-sonnet-20241022")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.temperature", 0.7)
	v.SetDefault("anthropic.beta", []string{})
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("openai.max_tokens", 4096)
	v.SetDefault("openai.temperature", 0.7)
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.max_tokens", 4096)
	v.SetDefault("gemini.temperature", 0.7)
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("bedrock.region", "us-east-1")
	v.SetDefault("bedrock.model", "anthropic.claude-3-5-sonnet-20241022-v2:0")
	v.SetDefault("bedrock.max_tokens", 4096)
	v.SetDefault("bedrock.temperature", 0.7)
	v.SetDefault("bedrock.access_key_id", "")
	v.SetDefault("bedrock.secret_access_key", "")
	v.SetDefault("bedrock.session_token", "")

	v.SetDefault("agent.max_turns", 10)
	v.SetDefault("agent.tool_errors", "fail")
	v.SetDefault("agent.cache_system", true)
	v.SetDefault("agent.retries", 3)
	v.SetDefault("agent.system_prompt", "")
	v.SetDefault("agent.profile", "")
	v.SetDefault("agent.profiles_file", "")

	v.SetDefault("history.max_units", 10)
	v.SetDefault("history.unit", "messageCount")
	v.SetDefault("history.include_system", true)
	v.SetDefault("history.strategy", "mostRecent")

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "")

	v.SetDefault("auth.mode", "none")
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.issuer", "syntra")
	v.SetDefault("auth.ttl", 24*time.Hour)
	v.SetDefault("auth.anonymous_user", "local")

	v.SetDefault("rate_limit.requests_per_minute", 30)
	v.SetDefault("rate_limit.burst", 5)
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Provider {
	case "anthropic", "openai", "gemini", "bedrock":
	default:
		return fmt.Errorf("unknown provider: %s", c.Provider)
	}
	switch c.Agent.ToolErrors {
	case "fail", "report":
	default:
		return fmt.Errorf("agent.tool_errors must be fail or report, got %q", c.Agent.ToolErrors)
	}
	switch c.History.Unit {
	case "messageCount", "tokenEstimate":
	default:
		return fmt.Errorf("history.unit must be messageCount or tokenEstimate, got %q", c.History.Unit)
	}
	switch c.Store.Driver {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("unknown store driver: %s", c.Store.Driver)
	}
	switch c.Auth.Mode {
	case "none", "static":
	case "jwt":
		if c.Auth.Secret == "" {
			return errors.New("auth.secret is required for jwt mode")
		}
	default:
		return fmt.Errorf("unknown auth mode: %s", c.Auth.Mode)
	}
	for name, server := range c.MCP.Servers {
		if err := server.Validate(); err != nil {
			return fmt.Errorf("mcp server %s: %w", name, err)
		}
	}
	return nil
}

func (c *Config) resolveCredentials() {
	c.Anthropic.APIKey = resolveKey(c.Anthropic.APIKey, "ANTHROPIC_API_KEY")
	c.OpenAI.APIKey = resolveKey(c.OpenAI.APIKey, "OPENAI_API_KEY")
	c.Gemini.APIKey = resolveKey(c.Gemini.APIKey, "GEMINI_API_KEY")
	c.OpenAI.BaseURL = expandEnv(c.OpenAI.BaseURL)
	c.Anthropic.BaseURL = expandEnv(c.Anthropic.BaseURL)
	c.Auth.Secret = expandEnv(c.Auth.Secret)
	c.Bedrock.AccessKeyID = expandEnv(c.Bedrock.AccessKeyID)
	c.Bedrock.SecretAccessKey = expandEnv(c.Bedrock.SecretAccessKey)
	c.Bedrock.SessionToken = expandEnv(c.Bedrock.SessionToken)
	for name, server := range c.MCP.Servers {
		for k, val := range server.Env {
			server.Env[k] = expandEnv(val)
		}
		for k, val := range server.Headers {
			server.Headers[k] = expandEnv(val)
		}
		c.MCP.Servers[name] = server
	}
}

func resolveKey(value, envVar string) string {
	if key := expandEnv(value); key != "" {
		return key
	}
	return os.Getenv(envVar)
}

// ApplyOverrides applies provider and model overrides from flags.
func (c *Config) ApplyOverrides(provider, model string) {
	if provider != "" {
		c.Provider = provider
	}
	if model == "" {
		return
	}
	switch c.Provider {
	case "anthropic":
		c.Anthropic.Model = model
	case "openai":
		c.OpenAI.Model = model
	case "gemini":
		c.Gemini.Model = model
	case "bedrock":
		c.Bedrock.Model = model
	}
}

// ActiveModel returns the model configured for the selected provider.
func (c *Config) ActiveModel() string {
	switch c.Provider {
	case "openai":
		return c.OpenAI.Model
	case "gemini":
		return c.Gemini.Model
	case "bedrock":
		return c.Bedrock.Model
	default:
		return c.Anthropic.Model
	}
}

// expandEnv expands ${VAR} or $VAR in a string
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}
	if strings.HasPrefix(s, "$") {
		return os.Getenv(s[1:])
	}
	return s
}

// GetConfigDir returns the XDG config directory for syntra.
// Uses $XDG_CONFIG_HOME if set, otherwise ~/.config
func GetConfigDir() (string, error) {
	if xdgHome := os.Getenv("XDG_CONFIG_HOME"); xdgHome != "" {
		return filepath.Join(xdgHome, "syntra"), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", "syntra"), nil
}

// GetDataDir returns the XDG data directory used for the default database.
func GetDataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "syntra")
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(homeDir, ".local", "share", "syntra")
}

// DatabasePath returns the sqlite path, falling back to the data directory.
func (s StoreConfig) DatabasePath() string {
	if s.Path != "" {
		return s.Path
	}
	return filepath.Join(GetDataDir(), "syntra.db")
}

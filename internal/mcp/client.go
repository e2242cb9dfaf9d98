// Package mcp connects to Model Context Protocol servers and exposes their
// tools to the agent.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/config"
)

// ToolSpec describes a tool available from an MCP server.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]any
}

// Client wraps one MCP server connection.
type Client struct {
	name   string
	config config.MCPServerConfig
	// transport overrides the configured transport, used by tests.
	transport func() mcp.Transport
	sampling  func(context.Context, *mcp.CreateMessageRequest) (*mcp.CreateMessageResult, error)

	mu      sync.RWMutex
	session *mcp.ClientSession
	tools   []ToolSpec
	running bool
}

// NewClient creates a client for the given server configuration.
func NewClient(name string, cfg config.MCPServerConfig) *Client {
	return &Client{name: name, config: cfg}
}

func (c *Client) Name() string {
	return c.name
}

// SetSampler lets the server request completions from the agent's model. It
// takes effect on the next Start.
func (c *Client) SetSampler(s *Sampler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s == nil {
		c.sampling = nil
		return
	}
	name, cfg := c.name, c.config
	c.sampling = func(ctx context.Context, req *mcp.CreateMessageRequest) (*mcp.CreateMessageResult, error) {
		return s.Handle(ctx, name, cfg, req)
	}
}

// Start connects to the server and fetches its tool list.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}

	opts := &mcp.ClientOptions{}
	if c.sampling != nil {
		opts.CreateMessageHandler = c.sampling
	}
	client := mcp.NewClient(&mcp.Implementation{Name: "syntra", Version: "1.0.0"}, opts)
	session, err := client.Connect(ctx, c.createTransport(), nil)
	if err != nil {
		return fmt.Errorf("connect to MCP server %s: %w", c.name, err)
	}
	c.session = session

	if err := c.refreshTools(ctx); err != nil {
		c.session.Close()
		c.session = nil
		return fmt.Errorf("list tools from %s: %w", c.name, err)
	}
	c.running = true
	return nil
}

func (c *Client) createTransport() mcp.Transport {
	if c.transport != nil {
		return c.transport()
	}
	if c.config.URL != "" {
		return c.createHTTPTransport()
	}
	return c.createStdioTransport()
}

// createStdioTransport launches the configured command. Extra env vars are
// layered over the parent environment; with none, the child inherits it as-is.
// The process lives until the session is closed, not for the connect context.
func (c *Client) createStdioTransport() mcp.Transport {
	cmd := exec.Command(c.config.Command, c.config.Args...)
	if len(c.config.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range c.config.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}
	return &mcp.CommandTransport{Command: cmd}
}

func (c *Client) createHTTPTransport() mcp.Transport {
	httpClient := http.DefaultClient
	if len(c.config.Headers) > 0 {
		httpClient = &http.Client{Transport: &headerTransport{
			base:    http.DefaultTransport,
			headers: c.config.Headers,
		}}
	}
	return &mcp.StreamableClientTransport{Endpoint: c.config.URL, HTTPClient: httpClient}
}

// headerTransport adds static headers, typically Authorization, to every request.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}

// Stop closes the connection.
func (c *Client) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return nil
	}
	var err error
	if c.session != nil {
		err = c.session.Close()
		c.session = nil
	}
	c.running = false
	c.tools = nil
	return err
}

func (c *Client) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

// Tools returns the tools advertised by the server.
func (c *Client) Tools() []ToolSpec {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tools
}

func (c *Client) refreshTools(ctx context.Context) error {
	result, err := c.session.ListTools(ctx, nil)
	if err != nil {
		return err
	}
	c.tools = make([]ToolSpec, 0, len(result.Tools))
	for _, t := range result.Tools {
		c.tools = append(c.tools, ToolSpec{
			Name:        t.Name,
			Description: t.Description,
			Schema:      schemaMap(t.InputSchema),
		})
	}
	return nil
}

// schemaMap normalizes an advertised input schema into a plain map.
func schemaMap(schema any) map[string]any {
	switch s := schema.(type) {
	case nil:
		return map[string]any{"type": "object"}
	case map[string]any:
		return s
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil || m == nil {
		return map[string]any{"type": "object"}
	}
	return m
}

// CallTool invokes a tool on the server. A result flagged IsError becomes an error.
func (c *Client) CallTool(ctx context.Context, name string, args json.RawMessage) (string, error) {
	c.mu.RLock()
	session := c.session
	running := c.running
	c.mu.RUnlock()
	if !running || session == nil {
		return "", fmt.Errorf("MCP server %s is not running", c.name)
	}

	arguments := map[string]any{}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &arguments); err != nil {
			return "", fmt.Errorf("invalid tool arguments: %w", err)
		}
	}

	result, err := session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: arguments})
	if err != nil {
		return "", fmt.Errorf("call tool %s: %w", name, err)
	}
	if result.IsError {
		return "", fmt.Errorf("tool %s returned error: %s", name, formatContent(result.Content))
	}
	return formatContent(result.Content), nil
}

func formatContent(content []mcp.Content) string {
	var b strings.Builder
	for _, c := range content {
		switch v := c.(type) {
		case *mcp.TextContent:
			b.WriteString(v.Text)
		default:
			if data, err := json.Marshal(c); err == nil {
				b.Write(data)
			}
		}
	}
	return b.String()
}

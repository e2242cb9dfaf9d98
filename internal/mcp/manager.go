package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/config"
	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/llm"
)

// ServerStatus represents the current state of an MCP server.
type ServerStatus string

const (
	StatusStopped ServerStatus = "stopped"
	StatusReady   ServerStatus = "ready"
	StatusFailed  ServerStatus = "failed"
)

// ServerState is a snapshot of one managed server.
type ServerState struct {
	Name   string
	Status ServerStatus
	Error  error
	Tools  int
}

type serverState struct {
	client *Client
	status ServerStatus
	err    error
}

// toolSeparator joins server and tool names, e.g. "github__list_issues".
const toolSeparator = "__"

// Manager owns the configured MCP servers.
type Manager struct {
	mu      sync.RWMutex
	servers map[string]*serverState
	logger  *slog.Logger
}

// NewManager builds clients for every configured server without starting them.
func NewManager(cfg config.MCPConfig, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{servers: make(map[string]*serverState), logger: logger}
	for name, serverCfg := range cfg.Servers {
		m.servers[name] = &serverState{client: NewClient(name, serverCfg), status: StatusStopped}
	}
	return m
}

// SetSampler installs s on every server configured for sampling. Call it
// before StartAll.
func (m *Manager) SetSampler(s *Sampler) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, state := range m.servers {
		if state.client.config.Sampling {
			state.client.SetSampler(s)
		}
	}
}

// Add registers an extra client, replacing any with the same name.
func (m *Manager) Add(client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.servers[client.Name()] = &serverState{client: client, status: StatusStopped}
}

// StartAll connects to every server concurrently, waiting at most timeout for
// each. A server that fails is logged and left out; the others keep working.
func (m *Manager) StartAll(ctx context.Context, timeout time.Duration) {
	m.mu.RLock()
	clients := make([]*Client, 0, len(m.servers))
	for _, state := range m.servers {
		clients = append(clients, state.client)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, client := range clients {
		wg.Add(1)
		go func(client *Client) {
			defer wg.Done()
			startCtx := ctx
			if timeout > 0 {
				var cancel context.CancelFunc
				startCtx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			err := client.Start(startCtx)

			m.mu.Lock()
			if state, ok := m.servers[client.Name()]; ok && state.client == client {
				state.err = err
				state.status = StatusReady
				if err != nil {
					state.status = StatusFailed
				}
			}
			m.mu.Unlock()

			if err != nil {
				m.logger.Warn("mcp server unavailable", "server", client.Name(), "error", err)
				return
			}
			m.logger.Info("mcp server ready", "server", client.Name(), "tools", len(client.Tools()))
		}(client)
	}
	wg.Wait()
}

// StopAll disconnects every server.
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, state := range m.servers {
		if err := state.client.Stop(); err != nil {
			m.logger.Debug("stop mcp server", "server", name, "error", err)
		}
		state.status = StatusStopped
	}
}

// AllTools returns the tools of ready servers, prefixed with the server name.
func (m *Manager) AllTools() []ToolSpec {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var all []ToolSpec
	for name, state := range m.servers {
		if state.status != StatusReady {
			continue
		}
		for _, tool := range state.client.Tools() {
			all = append(all, ToolSpec{
				Name:        name + toolSeparator + tool.Name,
				Description: fmt.Sprintf("[%s] %s", name, tool.Description),
				Schema:      tool.Schema,
			})
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all
}

// CallTool routes a prefixed tool name to its server.
func (m *Manager) CallTool(ctx context.Context, fullName string, args json.RawMessage) (string, error) {
	serverName, toolName, ok := parseToolName(fullName)
	if !ok {
		return "", fmt.Errorf("invalid MCP tool name: %s (expected server%stool)", fullName, toolSeparator)
	}
	m.mu.RLock()
	state, found := m.servers[serverName]
	ready := found && state.status == StatusReady
	m.mu.RUnlock()
	if !ready {
		return "", fmt.Errorf("MCP server %s is not running", serverName)
	}
	return state.client.CallTool(ctx, toolName, args)
}

func parseToolName(fullName string) (serverName, toolName string, ok bool) {
	serverName, toolName, ok = strings.Cut(fullName, toolSeparator)
	if !ok || serverName == "" || toolName == "" {
		return "", fullName, false
	}
	return serverName, toolName, true
}

// States reports every server, sorted by name.
func (m *Manager) States() []ServerState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	states := make([]ServerState, 0, len(m.servers))
	for name, state := range m.servers {
		tools := 0
		if state.status == StatusReady {
			tools = len(state.client.Tools())
		}
		states = append(states, ServerState{Name: name, Status: state.status, Error: state.err, Tools: tools})
	}
	sort.Slice(states, func(i, j int) bool { return states[i].Name < states[j].Name })
	return states
}

// Ready reports whether at least one server is connected.
func (m *Manager) Ready() bool {
	for _, state := range m.States() {
		if state.Status == StatusReady {
			return true
		}
	}
	return false
}

// Register adds every ready tool to registry and returns how many were added.
func (m *Manager) Register(registry *llm.ToolRegistry) int {
	specs := m.AllTools()
	for _, spec := range specs {
		registry.Register(NewTool(m, spec))
	}
	return len(specs)
}

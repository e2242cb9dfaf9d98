package history

import "github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/llm"

// Manager holds the history settings for one agent configuration.
type Manager struct {
	SystemPrompt string
	Policy       Policy
	Hints        CacheHintPolicy
}

// NewManager returns a manager with the default policy and cache hints.
func NewManager(systemPrompt string) *Manager {
	return &Manager{
		SystemPrompt: systemPrompt,
		Policy:       DefaultPolicy(),
		Hints:        DefaultCacheHints{System: true},
	}
}

// Initial builds the conversation for a new request, led by the system prompt.
func (m *Manager) Initial(prior []Prior, newMessage string) []llm.Message {
	msgs := BuildInitialHistory(prior, newMessage)
	if m.SystemPrompt == "" {
		return msgs
	}
	return append([]llm.Message{llm.SystemText(m.SystemPrompt)}, msgs...)
}

// Prepare trims history and places cache hints. It runs before every model call.
func (m *Manager) Prepare(history []llm.Message) []llm.Message {
	hints := m.Hints
	if hints == nil {
		hints = NoCacheHints{}
	}
	return hints.Apply(Trim(history, m.Policy))
}

package history

import "github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/llm"

// CacheHintPolicy decides which messages carry prompt-cache breakpoints.
// Implementations return a new slice and never mutate their input.
type CacheHintPolicy interface {
	Apply(history []llm.Message) []llm.Message
}

// DefaultCacheHints marks the last message and the second most recent user
// message, which keeps the previous turn's prefix warm in the provider cache.
// System additionally marks a leading system message.
type DefaultCacheHints struct {
	System bool
}

func (p DefaultCacheHints) Apply(history []llm.Message) []llm.Message {
	out := clearHints(history)
	if len(out) == 0 {
		return out
	}
	if p.System && out[0].Role == llm.RoleSystem {
		markMessage(&out[0])
	}
	markMessage(&out[len(out)-1])

	seen := 0
	for i := len(out) - 1; i >= 0; i-- {
		if out[i].Role != llm.RoleUser {
			continue
		}
		seen++
		if seen == 2 {
			markMessage(&out[i])
			break
		}
	}
	return out
}

// NoCacheHints strips every hint, for backends without prompt caching.
type NoCacheHints struct{}

func (NoCacheHints) Apply(history []llm.Message) []llm.Message {
	return clearHints(history)
}

// ApplyCacheHints applies the default policy without a system breakpoint.
func ApplyCacheHints(history []llm.Message) []llm.Message {
	return DefaultCacheHints{}.Apply(history)
}

// clearHints copies history with all hints removed, so breakpoints from an
// earlier turn never accumulate.
func clearHints(history []llm.Message) []llm.Message {
	out := llm.CloneMessages(history)
	for i := range out {
		for j := range out[i].Parts {
			out[i].Parts[j].CacheHint = false
		}
	}
	return out
}

// markMessage tags the final content block of msg.
func markMessage(msg *llm.Message) {
	if n := len(msg.Parts); n > 0 {
		msg.Parts[n-1].CacheHint = true
	}
}

// Hinted returns the indexes of messages carrying a cache hint.
func Hinted(history []llm.Message) []int {
	var idx []int
	for i, msg := range history {
		for _, part := range msg.Parts {
			if part.CacheHint {
				idx = append(idx, i)
				break
			}
		}
	}
	return idx
}

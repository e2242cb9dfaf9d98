package llm

import (
	"math"
	"strings"
)

func collectTextParts(parts []Part) string {
	var b strings.Builder
	for _, part := range parts {
		if part.Type == PartText {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

// collectCacheHint reports whether any part of the message carries a cache hint.
func collectCacheHint(parts []Part) bool {
	for _, part := range parts {
		if part.CacheHint {
			return true
		}
	}
	return false
}

func chooseModel(requested, fallback string) string {
	if strings.TrimSpace(requested) != "" {
		return requested
	}
	return fallback
}

func schemaRequired(schema map[string]interface{}) []string {
	raw, ok := schema["required"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// CloneMessages deep-copies messages so callers can mutate parts freely.
func CloneMessages(messages []Message) []Message {
	if messages == nil {
		return nil
	}
	out := make([]Message, len(messages))
	for i, msg := range messages {
		out[i] = Message{Role: msg.Role, Parts: cloneParts(msg.Parts)}
	}
	return out
}

// temperatureValue widens a configured temperature without float32 noise (0.7, not 0.699999988).
func temperatureValue(t float32) float64 {
	return math.Round(float64(t)*1000) / 1000
}

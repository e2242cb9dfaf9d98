// Package prompt resolves the system prompt and agent profile for a run.
package prompt

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/config"
)

// DefaultSystemPrompt is used when neither the config nor a profile sets one.
const DefaultSystemPrompt = `You are Syntra, an AI assistant with access to tools. Today's date is {{date}}.

Use a tool whenever it gives a more accurate answer than recall alone, for example arithmetic or the current time. After a tool returns, explain the result to the user in plain language. If a tool fails, say so instead of guessing.`

const dateLayout = "January 2, 2006"

// Render substitutes template variables. Only {{date}} is defined.
func Render(template string, now time.Time) string {
	return strings.ReplaceAll(template, "{{date}}", now.Format(dateLayout))
}

// Profile is a named agent configuration loaded from a profiles file.
type Profile struct {
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description,omitempty"`
	SystemPrompt string   `yaml:"system_prompt,omitempty"`
	AllowedTools []string `yaml:"allowed_tools,omitempty"`
	MaxTurns     int      `yaml:"max_turns,omitempty"`
}

type profilesFile struct {
	Profiles []Profile `yaml:"profiles"`
}

// LoadProfiles parses a YAML file of the form:
//
//	profiles:
//	  - name: researcher
//	    system_prompt: ...
//	    allowed_tools: ["calc", "github__*"]
func LoadProfiles(path string) (map[string]Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}
	return ParseProfiles(data)
}

// ParseProfiles decodes profile YAML, rejecting unnamed or duplicate entries.
func ParseProfiles(data []byte) (map[string]Profile, error) {
	var file profilesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}
	profiles := make(map[string]Profile, len(file.Profiles))
	for i, p := range file.Profiles {
		if p.Name == "" {
			return nil, fmt.Errorf("profile %d has no name", i)
		}
		if _, dup := profiles[p.Name]; dup {
			return nil, fmt.Errorf("duplicate profile %q", p.Name)
		}
		profiles[p.Name] = p
	}
	return profiles, nil
}

// Resolve merges the agent config with its selected profile. Profile fields
// that are set override the config; the system prompt is rendered for now.
func Resolve(cfg config.AgentConfig, now time.Time) (Profile, error) {
	resolved := Profile{
		Name:         "default",
		SystemPrompt: cfg.SystemPrompt,
		AllowedTools: cfg.AllowedTools,
		MaxTurns:     cfg.MaxTurns,
	}
	if cfg.Profile != "" {
		if cfg.ProfilesFile == "" {
			return Profile{}, fmt.Errorf("agent.profile %q set without agent.profiles_file", cfg.Profile)
		}
		profiles, err := LoadProfiles(cfg.ProfilesFile)
		if err != nil {
			return Profile{}, err
		}
		p, ok := profiles[cfg.Profile]
		if !ok {
			return Profile{}, fmt.Errorf("unknown profile %q in %s", cfg.Profile, cfg.ProfilesFile)
		}
		resolved.Name = p.Name
		resolved.Description = p.Description
		if p.SystemPrompt != "" {
			resolved.SystemPrompt = p.SystemPrompt
		}
		if len(p.AllowedTools) > 0 {
			resolved.AllowedTools = p.AllowedTools
		}
		if p.MaxTurns > 0 {
			resolved.MaxTurns = p.MaxTurns
		}
	}
	if resolved.SystemPrompt == "" {
		resolved.SystemPrompt = DefaultSystemPrompt
	}
	resolved.SystemPrompt = Render(resolved.SystemPrompt, now)
	return resolved, nil
}

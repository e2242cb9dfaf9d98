package tools

import (
	"fmt"

	"github.com/gobwas/glob"
)

// Filter is an allow-list of tool name patterns such as "calc" or "github__*".
// A nil or empty Filter allows every tool.
type Filter struct {
	patterns []string
	globs    []glob.Glob
}

// NewFilter compiles the given patterns.
func NewFilter(patterns []string) (*Filter, error) {
	f := &Filter{}
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid tool pattern %q: %w", pattern, err)
		}
		f.patterns = append(f.patterns, pattern)
		f.globs = append(f.globs, g)
	}
	return f, nil
}

// Allows reports whether the tool name matches any pattern.
func (f *Filter) Allows(name string) bool {
	if f == nil || len(f.globs) == 0 {
		return true
	}
	for _, g := range f.globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// Patterns returns the configured patterns.
func (f *Filter) Patterns() []string {
	if f == nil {
		return nil
	}
	return append([]string(nil), f.patterns...)
}

package history

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/llm"
)

func TestApplyCacheHintsMarksLastAndSecondUser(t *testing.T) {
	history := []llm.Message{
		llm.SystemText("sys"),
		llm.UserText("one"),
		llm.AssistantText("a"),
		llm.UserText("two"),
		llm.AssistantText("b"),
		llm.UserText("three"),
	}
	out := ApplyCacheHints(history)
	if got := Hinted(out); !reflect.DeepEqual(got, []int{3, 5}) {
		t.Fatalf("hinted=%v, want [3 5]", got)
	}
	if len(Hinted(history)) != 0 {
		t.Fatal("input was mutated")
	}

	withSystem := DefaultCacheHints{System: true}.Apply(history)
	if got := Hinted(withSystem); !reflect.DeepEqual(got, []int{0, 3, 5}) {
		t.Fatalf("hinted=%v, want [0 3 5]", got)
	}
}

func TestApplyCacheHintsTagsFinalPart(t *testing.T) {
	msg := llm.AssistantMessage("checking", []llm.ToolCall{{ID: "c1", Name: "calculator"}})
	out := ApplyCacheHints([]llm.Message{llm.UserText("q"), msg})
	parts := out[1].Parts
	if parts[0].CacheHint || !parts[1].CacheHint {
		t.Fatalf("expected only the final part to be tagged: %+v", parts)
	}
}

func TestApplyCacheHintsClearsStaleHints(t *testing.T) {
	history := []llm.Message{llm.UserText("one"), llm.AssistantText("a"), llm.UserText("two"), llm.AssistantText("b"), llm.UserText("three")}
	first := ApplyCacheHints(history)
	grown := append(first, llm.AssistantText("c"), llm.UserText("four"))
	out := ApplyCacheHints(grown)
	if got := Hinted(out); !reflect.DeepEqual(got, []int{4, 6}) {
		t.Fatalf("hinted=%v, want [4 6]", got)
	}
}

func TestNoCacheHints(t *testing.T) {
	out := NoCacheHints{}.Apply(ApplyCacheHints(buildHistory(true, []int{0, 1})))
	if len(Hinted(out)) != 0 {
		t.Fatalf("hints left: %v", Hinted(out))
	}
}

func TestApplyCacheHintsEmpty(t *testing.T) {
	if out := ApplyCacheHints(nil); len(out) != 0 {
		t.Fatalf("out=%+v", out)
	}
}

func TestCacheHintProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("hinting is idempotent and bounded", prop.ForAll(
		func(system, hintSystem bool, shapes []int) bool {
			history := buildHistory(system, shapes)
			policy := DefaultCacheHints{System: hintSystem}
			once := policy.Apply(history)
			twice := policy.Apply(once)
			if !reflect.DeepEqual(once, twice) {
				return false
			}
			hinted := Hinted(once)
			if len(hinted) == 0 || len(hinted) > 3 {
				return false
			}
			return hinted[len(hinted)-1] == len(history)-1
		},
		gen.Bool(), gen.Bool(),
		gen.SliceOf(gen.IntRange(0, 3)),
	))

	properties.Property("hinting depends only on roles", prop.ForAll(
		func(shapes []int, text string) bool {
			history := buildHistory(false, shapes)
			rewritten := llm.CloneMessages(history)
			for i := range rewritten {
				for j := range rewritten[i].Parts {
					if rewritten[i].Parts[j].Type == llm.PartText {
						rewritten[i].Parts[j].Text = text
					}
				}
			}
			return reflect.DeepEqual(Hinted(ApplyCacheHints(history)), Hinted(ApplyCacheHints(rewritten)))
		},
		gen.SliceOf(gen.IntRange(0, 3)),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestManagerPrepare(t *testing.T) {
	m := NewManager("You are helpful.")
	m.Policy.MaxUnits = 3
	initial := m.Initial([]Prior{{Role: "user", Content: "a"}, {Role: "assistant", Content: "b"}}, "c")
	if len(initial) != 4 || initial[0].Role != llm.RoleSystem {
		t.Fatalf("initial=%+v", initial)
	}
	out := m.Prepare(initial)
	if len(out) != 2 || out[1].Text() != "c" {
		t.Fatalf("prepared=%+v", out)
	}
	if got := Hinted(out); !reflect.DeepEqual(got, []int{0, 1}) {
		t.Fatalf("hinted=%v", got)
	}
}

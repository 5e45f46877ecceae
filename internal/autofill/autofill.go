// Package autofill proposes input values for a stage from the output of other tools.
//
// Matching is heuristic and read-only: the engine returns suggestions and never
// touches step state. Applying a suggestion goes through the normal input path.
package autofill

import (
	"fmt"
	"strings"
	"time"

	"github.com/metalagman/blueprint/internal/framework"
)

// ToolOutput is a JSON document stored by a standalone tool for a project.
type ToolOutput struct {
	ID         string         `json:"id"`
	ProjectID  string         `json:"projectId"`
	ToolID     string         `json:"toolId"`
	ToolName   string         `json:"toolName"`
	OutputData map[string]any `json:"outputData"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// Rule identifies which heuristic produced a suggestion.
type Rule string

const (
	RuleExact    Rule = "exact"
	RuleContains Rule = "contains"
	RuleSynonym  Rule = "synonym"
)

// Suggestion is a proposed value for one input field.
type Suggestion struct {
	Field       string `json:"field"`
	Value       string `json:"value"`
	Description string `json:"description"`
	Path        string `json:"path,omitempty"`
	Rule        Rule   `json:"rule,omitempty"`
}

// Engine matches tool output keys to stage fields.
type Engine struct {
	synonyms map[string][]string
}

// NewEngine returns an engine using the built-in synonym table.
func NewEngine() *Engine {
	return &Engine{synonyms: defaultSynonyms()}
}

// NewEngineWithSynonyms returns an engine with a custom synonym table keyed by
// field id. Synonyms are compared after normalization.
func NewEngineWithSynonyms(table map[string][]string) *Engine {
	syn := make(map[string][]string, len(table))
	for field, names := range table {
		for _, n := range names {
			syn[field] = append(syn[field], normalize(n))
		}
	}
	return &Engine{synonyms: syn}
}

// Suggest returns at most one suggestion per field, in field order. A tool
// output that matches nothing yields an empty slice.
func (e *Engine) Suggest(fields []framework.Field, out ToolOutput) []Suggestion {
	entries := flatten(out.OutputData)
	suggestions := make([]Suggestion, 0)
	for _, f := range fields {
		s, ok := e.match(f, entries)
		if !ok {
			continue
		}
		s.Description = describe(out, s.Path)
		suggestions = append(suggestions, s)
	}
	return suggestions
}

// SuggestAll merges suggestions from several sources. The first source that
// yields a value for a field wins. Results follow field order.
func (e *Engine) SuggestAll(fields []framework.Field, sources []ToolOutput) []Suggestion {
	byField := make(map[string]Suggestion, len(fields))
	for _, src := range sources {
		for _, s := range e.Suggest(fields, src) {
			if _, taken := byField[s.Field]; !taken {
				byField[s.Field] = s
			}
		}
	}
	out := make([]Suggestion, 0, len(byField))
	for _, f := range fields {
		if s, ok := byField[f.ID]; ok {
			out = append(out, s)
		}
	}
	return out
}

func (e *Engine) match(f framework.Field, entries []entry) (Suggestion, bool) {
	want := tokenize(f.ID)
	if len(want) == 0 {
		return Suggestion{}, false
	}
	wantKey := strings.Join(want, "")

	for _, en := range entries {
		if en.key == wantKey && en.value != "" {
			return en.suggestion(f.ID, RuleExact), true
		}
	}
	for _, en := range entries {
		if en.value != "" && en.key != wantKey && containsRun(en.tokens, want) {
			return en.suggestion(f.ID, RuleContains), true
		}
	}
	for _, syn := range e.synonyms[f.ID] {
		for _, en := range entries {
			if en.key == syn && en.value != "" {
				return en.suggestion(f.ID, RuleSynonym), true
			}
		}
	}
	return Suggestion{}, false
}

func describe(out ToolOutput, path string) string {
	name := out.ToolName
	if name == "" {
		name = out.ToolID
	}
	if name == "" {
		name = "a previous tool"
	}
	return fmt.Sprintf("Suggested from %s (%s)", name, path)
}

// containsRun reports whether needle appears as a contiguous run in haystack.
func containsRun(haystack, needle []string) bool {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return false
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

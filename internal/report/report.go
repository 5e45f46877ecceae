// Package report renders step outputs as markdown.
package report

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/metalagman/blueprint/internal/framework"
	"github.com/metalagman/blueprint/internal/pipeline"
)

// Step renders one step: its inputs in field order and its effective output
// in output schema order. Keys outside the schema are listed last.
func Step(stage framework.Stage, view pipeline.StepView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", stage.Title)
	fmt.Fprintf(&b, "Status: **%s**", view.Status)
	if view.UserEditedOutput != nil {
		b.WriteString(" (edited by you)")
	}
	b.WriteString("\n\n")

	b.WriteString("## Inputs\n\n")
	for _, f := range stage.Fields {
		value := strings.TrimSpace(view.Inputs[f.ID])
		if value == "" {
			value = "_not specified_"
		}
		fmt.Fprintf(&b, "- **%s**: %s\n", labelOf(f), value)
	}
	b.WriteString("\n")

	writeOutput(&b, stage, view.EffectiveOutput)
	return b.String()
}

// Project renders every stage that has an output, in pipeline order.
func Project(name string, registry *framework.Registry, progress pipeline.Progress) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", name)
	fmt.Fprintf(&b, "%d of %d stages complete.\n\n", progress.Completed, len(progress.Steps))
	for _, row := range progress.Steps {
		stage, err := registry.Stage(row.StageKey)
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n", stage.Title)
		if row.EffectiveOutput == nil {
			b.WriteString("_Not generated yet._\n\n")
			continue
		}
		for _, key := range outputKeys(stage, row.EffectiveOutput) {
			fmt.Fprintf(&b, "### %s\n\n%s\n", humanize(key), renderValue(row.EffectiveOutput[key], 0))
		}
	}
	return b.String()
}

func writeOutput(b *strings.Builder, stage framework.Stage, out map[string]any) {
	b.WriteString("## Output\n\n")
	if out == nil {
		b.WriteString("_Not generated yet._\n")
		return
	}
	for _, key := range outputKeys(stage, out) {
		fmt.Fprintf(b, "### %s\n\n%s\n", humanize(key), renderValue(out[key], 0))
	}
}

func outputKeys(stage framework.Stage, out map[string]any) []string {
	keys := make([]string, 0, len(out))
	seen := map[string]bool{}
	for _, of := range stage.Output {
		if _, ok := out[of.Name]; ok {
			keys = append(keys, of.Name)
			seen[of.Name] = true
		}
	}
	for _, k := range slices.Sorted(maps.Keys(out)) {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	return keys
}

func renderValue(v any, depth int) string {
	indent := strings.Repeat("  ", depth)
	switch t := v.(type) {
	case nil:
		return indent + "_empty_\n"
	case []any:
		if len(t) == 0 {
			return indent + "_none_\n"
		}
		var b strings.Builder
		for _, item := range t {
			if nested, ok := item.(map[string]any); ok {
				b.WriteString(indent + "-\n")
				b.WriteString(renderObject(nested, depth+1))
				continue
			}
			fmt.Fprintf(&b, "%s- %v\n", indent, item)
		}
		return b.String()
	case map[string]any:
		return renderObject(t, depth)
	default:
		return fmt.Sprintf("%s%v\n", indent, t)
	}
}

func renderObject(obj map[string]any, depth int) string {
	indent := strings.Repeat("  ", depth)
	var b strings.Builder
	for _, k := range slices.Sorted(maps.Keys(obj)) {
		switch val := obj[k].(type) {
		case map[string]any, []any:
			fmt.Fprintf(&b, "%s- **%s**:\n", indent, humanize(k))
			b.WriteString(renderValue(val, depth+1))
		default:
			fmt.Fprintf(&b, "%s- **%s**: %v\n", indent, humanize(k), val)
		}
	}
	return b.String()
}

func labelOf(f framework.Field) string {
	if f.Label != "" {
		return f.Label
	}
	return humanize(f.ID)
}

// humanize turns "unit_economics" into "Unit economics".
func humanize(key string) string {
	s := strings.TrimSpace(strings.NewReplacer("_", " ", "-", " ").Replace(key))
	if s == "" {
		return key
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Render formats markdown for a terminal of the given width.
func Render(markdown string, width int) (string, error) {
	if strings.TrimSpace(markdown) == "" {
		return "", nil
	}
	if width <= 0 {
		width = 80
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithWordWrap(width),
		glamour.WithStandardStyle("dark"),
	)
	if err != nil {
		return "", fmt.Errorf("create markdown renderer: %w", err)
	}
	return renderer.Render(markdown)
}

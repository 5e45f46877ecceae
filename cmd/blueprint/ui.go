package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/metalagman/blueprint/internal/pipeline"
	"github.com/metalagman/blueprint/internal/step"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	currentStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))

	statusStyles = map[step.Status]lipgloss.Style{
		step.StatusNotStarted: mutedStyle,
		step.StatusInProgress: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		step.StatusGenerated:  lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		step.StatusEdited:     lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
	}
)

func renderProgress(name string, p pipeline.Progress) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(name))
	b.WriteString(mutedStyle.Render(fmt.Sprintf("  %d/%d stages", p.Completed, len(p.Steps))))
	b.WriteString("\n\n")
	for i, row := range p.Steps {
		marker := "  "
		if row.StageKey == p.CurrentStage {
			marker = currentStyle.Render("> ")
		}
		status := statusStyles[row.Status].Render(fmt.Sprintf("%-12s", row.Status))
		fmt.Fprintf(&b, "%s%d. %-20s %s %s\n", marker, i+1, row.Title, status,
			mutedStyle.Render(fmt.Sprintf("inputs %3.0f%%", row.Completeness.Score*100)))
	}
	return b.String()
}

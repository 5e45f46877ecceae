package report

import (
	"strings"
	"testing"

	"github.com/metalagman/blueprint/internal/framework"
	"github.com/metalagman/blueprint/internal/pipeline"
	"github.com/metalagman/blueprint/internal/step"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStep_RendersInputsAndOutputInOrder(t *testing.T) {
	t.Parallel()

	stage, err := framework.Default().Stage(framework.StageSolutionConcept)
	require.NoError(t, err)

	st := step.New("p", stage.Key)
	st.Inputs["mvp_scope"] = "Reminders only"
	st.RecordGeneration(map[string]any{
		"solution_summary": "Tiny invoicing tool",
		"mvp_features":     []any{"reminders", "payment links"},
		"out_of_scope":     []any{},
		"risks":            []any{"churn"},
		"milestones":       map[string]any{"beta": 6.0, "launch": 10.0},
		"extra":            "kept",
	})
	md := Step(stage, pipeline.StepView{State: st, EffectiveOutput: st.EffectiveOutput()})

	assert.Contains(t, md, "# Solution Concept")
	assert.Contains(t, md, "- **MVP scope**: Reminders only")
	assert.Contains(t, md, "- **Core features**: _not specified_")
	assert.Contains(t, md, "### Mvp features\n\n- reminders\n- payment links\n")
	assert.Contains(t, md, "### Out of scope\n\n_none_")
	assert.Contains(t, md, "- **Beta**: 6")
	assert.Less(t, strings.Index(md, "Solution summary"), strings.Index(md, "Milestones"))
	assert.Less(t, strings.Index(md, "Milestones"), strings.Index(md, "### Extra"))
}

func TestStep_NoOutputYet(t *testing.T) {
	t.Parallel()

	stage, err := framework.Default().Stage(framework.StageProblemClarity)
	require.NoError(t, err)
	md := Step(stage, pipeline.StepView{State: step.New("p", stage.Key)})
	assert.Contains(t, md, "_Not generated yet._")
	assert.NotContains(t, md, "edited by you")
}

func TestProject(t *testing.T) {
	t.Parallel()

	reg := framework.Default()
	prog := pipeline.Progress{
		Completed: 1,
		Steps: []pipeline.StepProgress{
			{StageKey: framework.StageProblemClarity, EffectiveOutput: map[string]any{"refined_problem": "Late invoices"}},
			{StageKey: framework.StageTargetMarket},
		},
	}
	md := Project("Invoice chaser", reg, prog)
	assert.Contains(t, md, "# Invoice chaser")
	assert.Contains(t, md, "1 of 2 stages complete.")
	assert.Contains(t, md, "### Refined problem\n\nLate invoices")
	assert.Contains(t, md, "## Target Market\n\n_Not generated yet._")
}

func TestRender(t *testing.T) {
	t.Parallel()

	out, err := Render("# Title\n\nbody", 60)
	require.NoError(t, err)
	assert.Contains(t, out, "Title")

	out, err = Render("  ", 60)
	require.NoError(t, err)
	assert.Empty(t, out)
}

package pipeline

import (
	"context"

	"github.com/metalagman/blueprint/internal/framework"
	"github.com/metalagman/blueprint/internal/step"
)

// StepProgress is one row of the progress read model.
type StepProgress struct {
	StageKey         string                 `json:"stageKey"`
	Title            string                 `json:"title"`
	Status           step.Status            `json:"status"`
	Inputs           map[string]string      `json:"inputs"`
	AIOutput         map[string]any         `json:"aiOutput,omitempty"`
	UserEditedOutput map[string]any         `json:"userEditedOutput,omitempty"`
	EffectiveOutput  map[string]any         `json:"effectiveOutput,omitempty"`
	Completeness     framework.Completeness `json:"completeness"`
}

// Progress is the state of every stage of a project in pipeline order.
type Progress struct {
	ProjectID string `json:"projectId"`
	// CurrentStage is the first stage without an effective output, or empty
	// when all stages have one.
	CurrentStage string         `json:"currentStage"`
	Completed    int            `json:"completed"`
	Steps        []StepProgress `json:"steps"`
}

// Progress assembles the read model. Steps are not created by reading.
func (s *Service) Progress(ctx context.Context, projectID string) (Progress, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return Progress{}, err
	}
	steps, err := s.store.ListSteps(ctx, projectID)
	if err != nil {
		return Progress{}, err
	}

	p := Progress{ProjectID: projectID, CurrentStage: framework.NoStage}
	for _, stage := range s.registry.Stages() {
		st, ok := steps[stage.Key]
		if !ok {
			st = step.New(projectID, stage.Key)
		}
		row := StepProgress{
			StageKey:         stage.Key,
			Title:            stage.Title,
			Status:           st.Status,
			Inputs:           st.Inputs,
			AIOutput:         st.AIOutput,
			UserEditedOutput: st.UserEditedOutput,
			EffectiveOutput:  st.EffectiveOutput(),
			Completeness:     stage.Completeness(st.Inputs),
		}
		if row.EffectiveOutput != nil {
			p.Completed++
		} else if p.CurrentStage == framework.NoStage {
			p.CurrentStage = stage.Key
		}
		p.Steps = append(p.Steps, row)
	}
	return p, nil
}

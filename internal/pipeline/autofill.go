package pipeline

import (
	"context"
	"errors"
	"strings"

	"github.com/metalagman/blueprint/internal/autofill"
	"github.com/metalagman/blueprint/internal/db"
	"github.com/metalagman/blueprint/internal/framework"
)

// Suggest proposes inputs for a step. With a tool output id only that output
// is used. Otherwise the sources are the earlier stages of the project, nearest
// first, followed by every stored tool output, newest first. Suggestions equal
// to the current input are dropped. Nothing is written.
func (s *Service) Suggest(ctx context.Context, projectID, stageKey, toolOutputID string) ([]autofill.Suggestion, error) {
	stage, err := s.registry.Stage(stageKey)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}

	var sources []autofill.ToolOutput
	if toolOutputID != "" {
		out, err := s.store.GetToolOutput(ctx, projectID, toolOutputID)
		if err != nil {
			return nil, err
		}
		sources = append(sources, out)
	} else {
		earlier, err := s.stageSources(ctx, projectID, stageKey)
		if err != nil {
			return nil, err
		}
		stored, err := s.store.ListToolOutputs(ctx, projectID)
		if err != nil {
			return nil, err
		}
		sources = append(earlier, stored...)
	}

	current := map[string]string{}
	st, err := s.store.GetStep(ctx, projectID, stageKey)
	switch {
	case err == nil:
		current = st.Inputs
	case !errors.Is(err, db.ErrNotFound):
		return nil, err
	}

	suggestions := s.engine.SuggestAll(stage.Fields, sources)
	out := suggestions[:0]
	for _, sg := range suggestions {
		if strings.TrimSpace(current[sg.Field]) == sg.Value {
			continue
		}
		out = append(out, sg)
	}
	return out, nil
}

// stageSources turns earlier steps into auto-fill sources. For each stage,
// nearest first, the effective output comes before the inputs.
func (s *Service) stageSources(ctx context.Context, projectID, stageKey string) ([]autofill.ToolOutput, error) {
	steps, err := s.store.ListSteps(ctx, projectID)
	if err != nil {
		return nil, err
	}
	var sources []autofill.ToolOutput
	for key := s.registry.Previous(stageKey); key != framework.NoStage; key = s.registry.Previous(key) {
		st, ok := steps[key]
		if !ok {
			continue
		}
		stage, err := s.registry.Stage(key)
		if err != nil {
			return nil, err
		}
		if out := st.EffectiveOutput(); out != nil {
			sources = append(sources, autofill.ToolOutput{
				ProjectID:  projectID,
				ToolID:     "stage:" + key,
				ToolName:   stage.Title + " output",
				OutputData: out,
				CreatedAt:  st.UpdatedAt,
			})
		}
		if len(st.Inputs) > 0 {
			data := make(map[string]any, len(st.Inputs))
			for k, v := range st.Inputs {
				data[k] = v
			}
			sources = append(sources, autofill.ToolOutput{
				ProjectID:  projectID,
				ToolID:     "stage:" + key + ":inputs",
				ToolName:   stage.Title + " inputs",
				OutputData: data,
				CreatedAt:  st.UpdatedAt,
			})
		}
	}
	return sources, nil
}

// ApplySuggestions records the suggested values as inputs, through the same
// validation and merge path as manual entry.
func (s *Service) ApplySuggestions(ctx context.Context, projectID, stageKey string, suggestions []autofill.Suggestion) (StepView, error) {
	partial := make(map[string]string, len(suggestions))
	for _, sg := range suggestions {
		partial[sg.Field] = sg.Value
	}
	return s.recordInputs(ctx, projectID, stageKey, partial, EventAutofillApplied)
}

// Package pipeline is the application service behind every blueprint surface.
// It ties the stage registry, step persistence, generation and auto-fill together.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/metalagman/blueprint/internal/autofill"
	"github.com/metalagman/blueprint/internal/db"
	"github.com/metalagman/blueprint/internal/framework"
	"github.com/metalagman/blueprint/internal/generation"
	"github.com/metalagman/blueprint/internal/step"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Event types written to the step history.
const (
	EventInputsRecorded   = "inputs_recorded"
	EventAutofillApplied  = "autofill_applied"
	EventGenerated        = "generated"
	EventGenerationFailed = "generation_failed"
	EventOutputEdited     = "output_edited"
	EventEditCleared      = "output_edit_cleared"
)

// ErrInvalidOutput is returned when a user edit does not match the stage output schema.
var ErrInvalidOutput = errors.New("output does not match stage schema")

// ErrGenerationUnavailable is returned when no generation service is
// configured or its client cannot be built (missing API key, unknown provider).
var ErrGenerationUnavailable = errors.New("generation is not configured")

const maxInputWriteAttempts = 3

// Generator produces a stage output for a step.
type Generator interface {
	Generate(ctx context.Context, stage framework.Stage, st *step.State) (generation.Result, error)
}

// Service implements the pipeline operations.
type Service struct {
	registry *framework.Registry
	store    *db.Store
	gen      Generator
	engine   *autofill.Engine
	inflight singleflight.Group
}

// NewService wires a service. gen may be nil when generation is not configured;
// Generate then fails.
func NewService(registry *framework.Registry, store *db.Store, gen Generator, engine *autofill.Engine) *Service {
	if engine == nil {
		engine = autofill.NewEngine()
	}
	return &Service{registry: registry, store: store, gen: gen, engine: engine}
}

// Registry returns the stage registry.
func (s *Service) Registry() *framework.Registry {
	return s.registry
}

// StepView is a step together with data derived from its stage.
type StepView struct {
	step.State
	Title           string                 `json:"title"`
	Completeness    framework.Completeness `json:"completeness"`
	EffectiveOutput map[string]any         `json:"effectiveOutput,omitempty"`
	Previous        string                 `json:"previous,omitempty"`
	Next            string                 `json:"next,omitempty"`
}

func (s *Service) view(stage framework.Stage, st step.State) StepView {
	return StepView{
		State:           st,
		Title:           stage.Title,
		Completeness:    stage.Completeness(st.Inputs),
		EffectiveOutput: st.EffectiveOutput(),
		Previous:        s.registry.Previous(stage.Key),
		Next:            s.registry.Next(stage.Key),
	}
}

// Stages returns the stage exports in pipeline order.
func (s *Service) Stages() []framework.StageExport {
	return s.registry.Export()
}

// Stage returns one stage export.
func (s *Service) Stage(key string) (framework.StageExport, error) {
	st, err := s.registry.Stage(key)
	if err != nil {
		return framework.StageExport{}, err
	}
	return st.Export(), nil
}

// CreateProject creates a project. A blank name is replaced with a placeholder.
func (s *Service) CreateProject(ctx context.Context, name string) (db.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Untitled project"
	}
	p, err := s.store.CreateProject(ctx, name)
	if err != nil {
		return db.Project{}, err
	}
	log.Info().Str("project_id", p.ID).Msg("project created")
	return p, nil
}

// GetProject returns a project.
func (s *Service) GetProject(ctx context.Context, id string) (db.Project, error) {
	return s.store.GetProject(ctx, id)
}

// ListProjects returns all projects.
func (s *Service) ListProjects(ctx context.Context) ([]db.Project, error) {
	return s.store.ListProjects(ctx)
}

// DeleteProject removes a project and everything it owns.
func (s *Service) DeleteProject(ctx context.Context, id string) error {
	if err := s.store.DeleteProject(ctx, id); err != nil {
		return err
	}
	log.Info().Str("project_id", id).Msg("project deleted")
	return nil
}

// GetStep returns the step, creating it on first access.
func (s *Service) GetStep(ctx context.Context, projectID, stageKey string) (StepView, error) {
	stage, err := s.registry.Stage(stageKey)
	if err != nil {
		return StepView{}, err
	}
	st, err := s.store.GetOrCreateStep(ctx, projectID, stageKey)
	if err != nil {
		return StepView{}, err
	}
	return s.view(stage, st), nil
}

// RecordInputs merges partial into the step inputs.
func (s *Service) RecordInputs(ctx context.Context, projectID, stageKey string, partial map[string]string) (StepView, error) {
	return s.recordInputs(ctx, projectID, stageKey, partial, EventInputsRecorded)
}

func (s *Service) recordInputs(ctx context.Context, projectID, stageKey string, partial map[string]string, eventType string) (StepView, error) {
	stage, err := s.registry.Stage(stageKey)
	if err != nil {
		return StepView{}, err
	}
	if len(partial) == 0 {
		// Nothing to record: no status change, no event.
		st, err := s.store.GetOrCreateStep(ctx, projectID, stageKey)
		if err != nil {
			return StepView{}, err
		}
		return s.view(stage, st), nil
	}
	for attempt := 1; ; attempt++ {
		st, err := s.store.GetOrCreateStep(ctx, projectID, stageKey)
		if err != nil {
			return StepView{}, err
		}
		changed, err := st.RecordInputs(stage, partial)
		if err != nil {
			return StepView{}, err
		}
		ev := newEvent(eventType, fmt.Sprintf("%d field(s) recorded", len(partial)), map[string]any{
			"fields":  slices.Sorted(maps.Keys(partial)),
			"changed": changed,
		})
		err = s.store.SaveStep(ctx, &st, ev)
		if err == nil {
			return s.view(stage, st), nil
		}
		if !errors.Is(err, db.ErrConflict) || attempt >= maxInputWriteAttempts {
			return StepView{}, err
		}
		log.Debug().Str("project_id", projectID).Str("stage", stageKey).Int("attempt", attempt).Msg("input write raced, retrying")
	}
}

// Generate runs generation for the step. Concurrent calls for the same step
// share one generation. A step changed by someone else while generating is
// not overwritten and db.ErrConflict is returned.
func (s *Service) Generate(ctx context.Context, projectID, stageKey string) (StepView, error) {
	stage, err := s.registry.Stage(stageKey)
	if err != nil {
		return StepView{}, err
	}
	if s.gen == nil {
		return StepView{}, ErrGenerationUnavailable
	}
	ch := s.inflight.DoChan(projectID+"/"+stageKey, func() (any, error) {
		// The shared run must not die with whichever caller started it. Each
		// service call inside is still bounded by the orchestrator timeout.
		return s.generate(context.WithoutCancel(ctx), stage, projectID)
	})
	select {
	case <-ctx.Done():
		return StepView{}, ctx.Err()
	case res := <-ch:
		if res.Shared {
			log.Debug().Str("project_id", projectID).Str("stage", stageKey).Msg("joined in-flight generation")
		}
		if res.Err != nil {
			return StepView{}, res.Err
		}
		return res.Val.(StepView), nil
	}
}

func (s *Service) generate(ctx context.Context, stage framework.Stage, projectID string) (StepView, error) {
	st, err := s.store.GetOrCreateStep(ctx, projectID, stage.Key)
	if err != nil {
		return StepView{}, err
	}
	working := st.Clone()
	res, err := s.gen.Generate(ctx, stage, &working)
	if err != nil {
		var incomplete *framework.IncompleteInputsError
		if !errors.As(err, &incomplete) {
			ev := newEvent(EventGenerationFailed, "generation failed", map[string]any{"error": err.Error()})
			if evErr := s.store.AppendEvent(ctx, projectID, stage.Key, ev); evErr != nil {
				log.Warn().Err(evErr).Msg("record generation failure")
			}
		}
		return StepView{}, err
	}
	msg := "output generated"
	if res.Repaired {
		msg = "output generated after repair"
	}
	ev := newEvent(EventGenerated, msg, map[string]any{"attempts": res.Attempts, "repaired": res.Repaired})
	if err := s.store.SaveStep(ctx, &working, ev); err != nil {
		return StepView{}, err
	}
	return s.view(stage, working), nil
}

// EditOutput stores the user's override of the output. It must match the
// stage output schema.
func (s *Service) EditOutput(ctx context.Context, projectID, stageKey string, edited map[string]any) (StepView, error) {
	stage, err := s.registry.Stage(stageKey)
	if err != nil {
		return StepView{}, err
	}
	if err := stage.ValidateOutput(edited); err != nil {
		return StepView{}, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	st, err := s.store.GetOrCreateStep(ctx, projectID, stageKey)
	if err != nil {
		return StepView{}, err
	}
	st.RecordUserEdit(edited)
	if err := s.store.SaveStep(ctx, &st, newEvent(EventOutputEdited, "output edited", nil)); err != nil {
		return StepView{}, err
	}
	return s.view(stage, st), nil
}

// ClearEdit drops the user's override.
func (s *Service) ClearEdit(ctx context.Context, projectID, stageKey string) (StepView, error) {
	stage, err := s.registry.Stage(stageKey)
	if err != nil {
		return StepView{}, err
	}
	st, err := s.store.GetOrCreateStep(ctx, projectID, stageKey)
	if err != nil {
		return StepView{}, err
	}
	if st.UserEditedOutput == nil {
		return s.view(stage, st), nil
	}
	st.ClearUserEdit()
	if err := s.store.SaveStep(ctx, &st, newEvent(EventEditCleared, "output edit cleared", nil)); err != nil {
		return StepView{}, err
	}
	return s.view(stage, st), nil
}

// History returns the events of one stage, or of all stages when stageKey is empty.
func (s *Service) History(ctx context.Context, projectID, stageKey string) ([]db.EventRecord, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	if stageKey != "" && !s.registry.Has(stageKey) {
		return nil, &framework.UnknownStageError{Key: stageKey}
	}
	return s.store.Events(ctx, projectID, stageKey)
}

// ImportToolOutput stores the output of a standalone tool for later auto-fill.
func (s *Service) ImportToolOutput(ctx context.Context, projectID, toolID, toolName string, data map[string]any) (autofill.ToolOutput, error) {
	if strings.TrimSpace(toolID) == "" {
		return autofill.ToolOutput{}, fmt.Errorf("tool id is required")
	}
	if toolName == "" {
		toolName = toolID
	}
	return s.store.AddToolOutput(ctx, projectID, toolID, toolName, data)
}

// ListToolOutputs returns a project's tool outputs, newest first.
func (s *Service) ListToolOutputs(ctx context.Context, projectID string) ([]autofill.ToolOutput, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.store.ListToolOutputs(ctx, projectID)
}

func newEvent(typ, message string, data map[string]any) db.Event {
	ev := db.Event{Type: typ, Message: message}
	if data != nil {
		raw, err := json.Marshal(data)
		if err == nil {
			ev.DataJSON = string(raw)
		}
	}
	return ev
}

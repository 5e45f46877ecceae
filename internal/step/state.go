// Package step holds the per-project state of one pipeline stage and its lifecycle.
package step

import (
	"maps"
	"slices"
	"time"

	"github.com/metalagman/blueprint/internal/framework"
)

// Status is the lifecycle status of a step.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusGenerated  Status = "generated"
	StatusEdited     Status = "edited"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusGenerated, StatusEdited:
		return true
	}
	return false
}

// State is the persisted record of one stage for one project.
type State struct {
	ProjectID        string            `json:"projectId"`
	StageKey         string            `json:"stageKey"`
	Inputs           map[string]string `json:"inputs"`
	AIOutput         map[string]any    `json:"aiOutput,omitempty"`
	UserEditedOutput map[string]any    `json:"userEditedOutput,omitempty"`
	Status           Status            `json:"status"`
	Version          int64             `json:"version"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

// New returns a fresh step with no inputs.
func New(projectID, stageKey string) State {
	now := time.Now().UTC()
	return State{
		ProjectID: projectID,
		StageKey:  stageKey,
		Inputs:    map[string]string{},
		Status:    StatusNotStarted,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// RecordInputs merges partial into the stored inputs. Keys absent from partial
// keep their values. Every key must be a field of stage, otherwise nothing is
// written. It reports whether any stored value changed. An empty partial is
// a no-op and leaves the status alone.
func (s *State) RecordInputs(stage framework.Stage, partial map[string]string) (bool, error) {
	if len(partial) == 0 {
		return false, nil
	}
	keys := slices.Sorted(maps.Keys(partial))
	for _, id := range keys {
		if _, ok := stage.Field(id); !ok {
			return false, &framework.UnknownFieldError{Stage: stage.Key, Field: id}
		}
	}
	if s.Inputs == nil {
		s.Inputs = map[string]string{}
	}
	changed := false
	for _, id := range keys {
		if old, ok := s.Inputs[id]; ok && old == partial[id] {
			continue
		}
		s.Inputs[id] = partial[id]
		changed = true
	}

	switch {
	case s.Status == StatusNotStarted:
		s.Status = StatusInProgress
	case changed:
		// Outputs are kept until a new generation replaces them.
		s.Status = StatusInProgress
	}
	s.touch()
	return changed, nil
}

// RecordGeneration stores a schema-conforming AI output. A user edit, when
// present, stays authoritative and keeps the step in the edited state.
func (s *State) RecordGeneration(out map[string]any) {
	s.AIOutput = maps.Clone(out)
	if s.UserEditedOutput != nil {
		s.Status = StatusEdited
	} else {
		s.Status = StatusGenerated
	}
	s.touch()
}

// RecordUserEdit stores the user's override of the AI output.
func (s *State) RecordUserEdit(edited map[string]any) {
	s.UserEditedOutput = maps.Clone(edited)
	if s.UserEditedOutput == nil {
		s.UserEditedOutput = map[string]any{}
	}
	s.Status = StatusEdited
	s.touch()
}

// ClearUserEdit drops the override so the AI output becomes effective again.
func (s *State) ClearUserEdit() {
	if s.UserEditedOutput == nil {
		return
	}
	s.UserEditedOutput = nil
	switch {
	case s.AIOutput != nil:
		s.Status = StatusGenerated
	case len(s.Inputs) > 0:
		s.Status = StatusInProgress
	default:
		s.Status = StatusNotStarted
	}
	s.touch()
}

// EffectiveOutput returns the output downstream consumers should use, or nil.
func (s State) EffectiveOutput() map[string]any {
	if s.UserEditedOutput != nil {
		return s.UserEditedOutput
	}
	return s.AIOutput
}

// HasOutput reports whether the step has an effective output.
func (s State) HasOutput() bool {
	return s.EffectiveOutput() != nil
}

// Clone returns a deep enough copy for independent mutation of top-level maps.
func (s State) Clone() State {
	out := s
	out.Inputs = maps.Clone(s.Inputs)
	out.AIOutput = maps.Clone(s.AIOutput)
	out.UserEditedOutput = maps.Clone(s.UserEditedOutput)
	return out
}

func (s *State) touch() {
	s.UpdatedAt = time.Now().UTC()
}

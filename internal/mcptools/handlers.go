package mcptools

import (
	"context"
	"errors"
	"fmt"

	"github.com/metalagman/blueprint/internal/autofill"
	"github.com/metalagman/blueprint/internal/framework"
	"github.com/metalagman/blueprint/internal/pipeline"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Service adapts the pipeline service to MCP tool handlers.
type Service struct {
	pipeline *pipeline.Service
}

// NewService creates the tool handlers.
func NewService(p *pipeline.Service) *Service {
	return &Service{pipeline: p}
}

// ListStagesInput is the input of list_stages.
type ListStagesInput struct{}

// ListStagesOutput is the result of list_stages.
type ListStagesOutput struct {
	Stages []framework.StageExport `json:"stages"`
}

// ProjectInput identifies a project.
type ProjectInput struct {
	ProjectID string `json:"projectId" jsonschema:"the project id"`
}

// RecordInputsInput is the input of record_inputs.
type RecordInputsInput struct {
	ProjectID string            `json:"projectId" jsonschema:"the project id"`
	Stage     string            `json:"stage" jsonschema:"stage key, see list_stages"`
	Inputs    map[string]string `json:"inputs" jsonschema:"field id to value"`
}

// StepInput identifies a step.
type StepInput struct {
	ProjectID string `json:"projectId" jsonschema:"the project id"`
	Stage     string `json:"stage" jsonschema:"stage key, see list_stages"`
}

// SuggestInput is the input of suggest_autofill.
type SuggestInput struct {
	ProjectID    string `json:"projectId" jsonschema:"the project id"`
	Stage        string `json:"stage" jsonschema:"stage key, see list_stages"`
	ToolOutputID string `json:"toolOutputId,omitempty" jsonschema:"stored tool output to read; earlier stages and all tool outputs when empty"`
	Apply        bool   `json:"apply,omitempty" jsonschema:"record the suggestions as inputs"`
}

// StepOutput is a step as returned by the tools.
type StepOutput struct {
	Stage           string                 `json:"stage"`
	Status          string                 `json:"status"`
	Inputs          map[string]string      `json:"inputs"`
	EffectiveOutput map[string]any         `json:"effectiveOutput,omitempty"`
	Completeness    framework.Completeness `json:"completeness"`
	Next            string                 `json:"next,omitempty"`
}

// SuggestOutput is the result of suggest_autofill.
type SuggestOutput struct {
	Suggestions []autofill.Suggestion `json:"suggestions"`
	Applied     bool                  `json:"applied"`
	Step        *StepOutput           `json:"step,omitempty"`
}

func stepOutput(v pipeline.StepView) StepOutput {
	return StepOutput{
		Stage:           v.StageKey,
		Status:          string(v.Status),
		Inputs:          v.Inputs,
		EffectiveOutput: v.EffectiveOutput,
		Completeness:    v.Completeness,
		Next:            v.Next,
	}
}

// toolError keeps the user-facing message first so agents can relay it.
func toolError(err error) error {
	return fmt.Errorf("%s (%w)", pipeline.UserMessage(err), err)
}

// ListStages returns the stage catalog.
func (s *Service) ListStages(_ context.Context, _ *mcp.CallToolRequest, _ ListStagesInput) (*mcp.CallToolResult, ListStagesOutput, error) {
	return nil, ListStagesOutput{Stages: s.pipeline.Stages()}, nil
}

// GetProgress returns the progress read model.
func (s *Service) GetProgress(ctx context.Context, _ *mcp.CallToolRequest, in ProjectInput) (*mcp.CallToolResult, pipeline.Progress, error) {
	if in.ProjectID == "" {
		return nil, pipeline.Progress{}, errors.New("projectId is required")
	}
	p, err := s.pipeline.Progress(ctx, in.ProjectID)
	if err != nil {
		return nil, pipeline.Progress{}, toolError(err)
	}
	return nil, p, nil
}

// RecordInputs merges inputs into a step.
func (s *Service) RecordInputs(ctx context.Context, _ *mcp.CallToolRequest, in RecordInputsInput) (*mcp.CallToolResult, StepOutput, error) {
	if len(in.Inputs) == 0 {
		return nil, StepOutput{}, errors.New("inputs must not be empty")
	}
	v, err := s.pipeline.RecordInputs(ctx, in.ProjectID, in.Stage, in.Inputs)
	if err != nil {
		return nil, StepOutput{}, toolError(err)
	}
	return nil, stepOutput(v), nil
}

// GenerateStep runs generation for a step.
func (s *Service) GenerateStep(ctx context.Context, _ *mcp.CallToolRequest, in StepInput) (*mcp.CallToolResult, StepOutput, error) {
	v, err := s.pipeline.Generate(ctx, in.ProjectID, in.Stage)
	if err != nil {
		return nil, StepOutput{}, toolError(err)
	}
	return nil, stepOutput(v), nil
}

// SuggestAutofill proposes and optionally applies input values.
func (s *Service) SuggestAutofill(ctx context.Context, _ *mcp.CallToolRequest, in SuggestInput) (*mcp.CallToolResult, SuggestOutput, error) {
	sugg, err := s.pipeline.Suggest(ctx, in.ProjectID, in.Stage, in.ToolOutputID)
	if err != nil {
		return nil, SuggestOutput{}, toolError(err)
	}
	out := SuggestOutput{Suggestions: sugg}
	if !in.Apply || len(sugg) == 0 {
		return nil, out, nil
	}
	v, err := s.pipeline.ApplySuggestions(ctx, in.ProjectID, in.Stage, sugg)
	if err != nil {
		return nil, SuggestOutput{}, toolError(err)
	}
	step := stepOutput(v)
	out.Applied = true
	out.Step = &step
	return nil, out, nil
}

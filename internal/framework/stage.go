// Package framework defines the planning stages of the guided pipeline and the
// registry that orders them.
package framework

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// OutputType is the semantic type tag of a generated output field.
type OutputType string

const (
	OutputString      OutputType = "string"
	OutputStringArray OutputType = "string_array"
	OutputObject      OutputType = "object"
)

// OutputField is one top-level key the generation service must return.
type OutputField struct {
	Name        string     `json:"name"                  yaml:"name"`
	Type        OutputType `json:"type"                  yaml:"type"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
}

// Stage is the immutable definition of one pipeline stage.
type Stage struct {
	Key          string
	Title        string
	Description  string
	Instructions string
	Fields       []Field
	Output       []OutputField
}

// Completeness is the result of evaluating inputs against a stage.
type Completeness struct {
	OK      bool         `json:"ok"`
	Missing []string     `json:"missing,omitempty"`
	Invalid []FieldError `json:"invalid,omitempty"`
	Score   float64      `json:"score"`
}

// Field returns the field with the given id.
func (s Stage) Field(id string) (Field, bool) {
	for _, f := range s.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}

// RequiredFields returns the ids of required fields in declared order.
func (s Stage) RequiredFields() []string {
	var out []string
	for _, f := range s.Fields {
		if f.Required {
			out = append(out, f.ID)
		}
	}
	return out
}

// Completeness reports which required fields are missing and which supplied
// values fail their validators. Score is the fraction of required fields present.
func (s Stage) Completeness(inputs map[string]string) Completeness {
	res := Completeness{}
	required, present := 0, 0
	for _, f := range s.Fields {
		value, supplied := inputs[f.ID]
		filled := strings.TrimSpace(value) != ""
		if f.Required {
			required++
			if filled {
				present++
			} else {
				res.Missing = append(res.Missing, f.ID)
			}
		}
		if !supplied {
			continue
		}
		for _, v := range f.Validators {
			if err := v.Check(value); err != nil {
				res.Invalid = append(res.Invalid, FieldError{Field: f.ID, Message: err.Error()})
				break
			}
		}
	}
	res.Score = 1
	if required > 0 {
		res.Score = float64(present) / float64(required)
	}
	res.OK = len(res.Missing) == 0 && len(res.Invalid) == 0
	return res
}

// CheckComplete returns an IncompleteInputsError unless the inputs are complete.
func (s Stage) CheckComplete(inputs map[string]string) error {
	c := s.Completeness(inputs)
	if c.OK {
		return nil
	}
	return &IncompleteInputsError{Stage: s.Key, Missing: c.Missing, Invalid: c.Invalid}
}

const notSpecified = "not specified"

// RenderPrompt builds the generation instruction for the given inputs. The
// output depends only on the stage and the inputs.
func (s Stage) RenderPrompt(inputs map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Stage: %s\n", s.Title)
	if s.Description != "" {
		b.WriteString(s.Description)
		b.WriteString("\n")
	}
	if s.Instructions != "" {
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(s.Instructions))
		b.WriteString("\n")
	}

	b.WriteString("\nInputs:\n")
	for _, f := range s.Fields {
		value := strings.TrimSpace(inputs[f.ID])
		if value == "" {
			value = notSpecified
		}
		value = strings.ReplaceAll(value, "\n", "\n  ")
		fmt.Fprintf(&b, "- %s (%s): %s\n", f.Label, f.ID, value)
	}

	b.WriteString("\n")
	b.WriteString(s.outputContract())
	return b.String()
}

func (s Stage) outputContract() string {
	var b strings.Builder
	b.WriteString("Respond with a single JSON object containing exactly these keys:\n")
	for _, o := range s.Output {
		fmt.Fprintf(&b, "- %q (%s)", o.Name, describeType(o.Type))
		if o.Description != "" {
			b.WriteString(": ")
			b.WriteString(o.Description)
		}
		b.WriteString("\n")
	}
	b.WriteString("Do not wrap the JSON in markdown fences and do not add any text before or after it.\n")
	return b.String()
}

// OutputContract describes the expected JSON object. Used by repair prompts.
func (s Stage) OutputContract() string {
	return s.outputContract()
}

func describeType(t OutputType) string {
	switch t {
	case OutputStringArray:
		return "array of strings"
	case OutputObject:
		return "object"
	default:
		return "string"
	}
}

// JSONSchema returns a draft-07 schema for the stage output.
func (s Stage) JSONSchema() string {
	props := make(map[string]any, len(s.Output))
	required := make([]string, 0, len(s.Output))
	for _, o := range s.Output {
		props[o.Name] = typeSchema(o.Type)
		required = append(required, o.Name)
	}
	doc := map[string]any{
		"$schema":    "http://json-schema.org/draft-07/schema#",
		"type":       "object",
		"properties": props,
		"required":   required,
	}
	data, _ := json.Marshal(doc)
	return string(data)
}

func typeSchema(t OutputType) map[string]any {
	switch t {
	case OutputStringArray:
		return map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
	case OutputObject:
		return map[string]any{"type": "object"}
	default:
		return map[string]any{"type": "string"}
	}
}

// ValidateOutput checks a generated object against the output schema. Missing
// top-level keys always fail; nested shapes are checked as far as the schema goes.
func (s Stage) ValidateOutput(out map[string]any) error {
	if out == nil {
		return fmt.Errorf("output is not a JSON object")
	}
	var missing []string
	for _, o := range s.Output {
		if _, ok := out[o.Name]; !ok {
			missing = append(missing, o.Name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("output missing keys: %s", strings.Join(missing, ", "))
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(s.JSONSchema()),
		gojsonschema.NewGoLoader(out),
	)
	if err != nil {
		return fmt.Errorf("validate output schema: %w", err)
	}
	if result.Valid() {
		return nil
	}
	errs := make([]string, 0, len(result.Errors()))
	for _, schemaErr := range result.Errors() {
		errs = append(errs, schemaErr.String())
	}
	sort.Strings(errs)
	return fmt.Errorf("output schema validation failed: %s", strings.Join(errs, "; "))
}

// StageExport is the serializable view of a stage for UI and export collaborators.
type StageExport struct {
	Key          string                `json:"key"          yaml:"key"`
	Title        string                `json:"title"        yaml:"title"`
	Description  string                `json:"description"  yaml:"description"`
	Fields       []Field               `json:"fields"       yaml:"fields"`
	OutputSchema map[string]OutputType `json:"outputSchema" yaml:"outputSchema"`
}

// Export returns the stage export.
func (s Stage) Export() StageExport {
	schema := make(map[string]OutputType, len(s.Output))
	for _, o := range s.Output {
		schema[o.Name] = o.Type
	}
	return StageExport{
		Key:          s.Key,
		Title:        s.Title,
		Description:  s.Description,
		Fields:       s.clone().Fields,
		OutputSchema: schema,
	}
}

func (s Stage) clone() Stage {
	out := s
	out.Fields = make([]Field, len(s.Fields))
	for i, f := range s.Fields {
		f.Options = slices.Clone(f.Options)
		f.Validators = slices.Clone(f.Validators)
		out.Fields[i] = f
	}
	out.Output = slices.Clone(s.Output)
	return out
}

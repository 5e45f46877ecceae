package framework

import (
	"fmt"
	"strings"
)

// UnknownStageError is returned when a stage key is not in the registry.
type UnknownStageError struct {
	Key string
}

func (e *UnknownStageError) Error() string {
	return fmt.Sprintf("unknown stage %q", e.Key)
}

// UnknownFieldError is returned when inputs reference a field the stage does not declare.
type UnknownFieldError struct {
	Stage string
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("stage %q has no field %q", e.Stage, e.Field)
}

// IncompleteInputsError refuses generation until required inputs are present and valid.
type IncompleteInputsError struct {
	Stage   string
	Missing []string
	Invalid []FieldError
}

func (e *IncompleteInputsError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required fields: "+strings.Join(e.Missing, ", "))
	}
	for _, fe := range e.Invalid {
		parts = append(parts, fe.Error())
	}
	return fmt.Sprintf("stage %q inputs incomplete: %s", e.Stage, strings.Join(parts, "; "))
}

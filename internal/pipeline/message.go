package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/metalagman/blueprint/internal/db"
	"github.com/metalagman/blueprint/internal/framework"
	"github.com/metalagman/blueprint/internal/generation"
)

const retryMessage = "We could not generate this step. Please try again."

// UserMessage returns the text to show an end user for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var (
		incomplete   *framework.IncompleteInputsError
		unknownStage *framework.UnknownStageError
		unknownField *framework.UnknownFieldError
		formatErr    *generation.FormatError
		transportErr *generation.TransportError
	)
	switch {
	case errors.As(err, &incomplete):
		var parts []string
		if len(incomplete.Missing) > 0 {
			parts = append(parts, "Please fill in the required fields: "+strings.Join(incomplete.Missing, ", ")+".")
		}
		for _, fe := range incomplete.Invalid {
			parts = append(parts, fmt.Sprintf("Check %s: %s.", fe.Field, fe.Message))
		}
		return strings.Join(parts, " ")
	case errors.As(err, &formatErr), errors.As(err, &transportErr):
		return retryMessage
	case errors.As(err, &unknownStage):
		return fmt.Sprintf("There is no stage called %q.", unknownStage.Key)
	case errors.As(err, &unknownField):
		return fmt.Sprintf("The stage %q has no field %q.", unknownField.Stage, unknownField.Field)
	case errors.Is(err, ErrGenerationUnavailable):
		return "Generation is not set up. Check the generation provider and API key settings."
	case errors.Is(err, ErrInvalidOutput):
		return "The edited output does not match the stage format."
	case errors.Is(err, db.ErrConflict):
		return "This step was changed in the meantime. Reload it and try again."
	case errors.Is(err, db.ErrNotFound):
		return "Not found."
	default:
		return "Something went wrong. Please try again."
	}
}

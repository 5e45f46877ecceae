package generation

import "fmt"

// FormatError reports that neither the first answer nor the repaired one
// matched the stage's output schema.
type FormatError struct {
	Stage string
	// Raw is the last response text received.
	Raw string
	Err error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("stage %q: generation returned malformed output after repair: %v", e.Stage, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// TransportError reports that the generation service could not be reached or
// answered with a failure. It is safe to retry the whole operation.
type TransportError struct {
	Stage   string
	Attempt string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("stage %q: generation service failed on %s: %v", e.Stage, e.Attempt, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

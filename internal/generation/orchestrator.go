// Package generation turns a complete step into a schema-conforming AI output.
//
// Each run makes one request and, if the answer does not parse or misses
// declared keys, exactly one repair request. There is no further retry.
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/metalagman/blueprint/internal/framework"
	"github.com/metalagman/blueprint/internal/llm"
	"github.com/metalagman/blueprint/internal/step"
	"github.com/rs/zerolog/log"
)

// SystemInstruction fixes the response format for every call.
const SystemInstruction = `You are an assistant inside a startup planning tool.
Respond with a single JSON object only. Do not use markdown, code fences, or any text outside the JSON object.`

const (
	defaultTemperature       = 0.4
	defaultRepairTemperature = 0.1
	defaultTimeout           = 60 * time.Second
	maxRawInRepair           = 8000
)

// Options tunes sampling and the per-call deadline.
type Options struct {
	Temperature       float64
	RepairTemperature float64
	// Timeout bounds each call separately.
	Timeout time.Duration
}

// DefaultOptions returns the built-in sampling settings.
func DefaultOptions() Options {
	return Options{
		Temperature:       defaultTemperature,
		RepairTemperature: defaultRepairTemperature,
		Timeout:           defaultTimeout,
	}
}

// Result describes a successful generation.
type Result struct {
	Output   map[string]any
	Attempts int
	Repaired bool
}

// Orchestrator runs the generation protocol against an llm.Client.
type Orchestrator struct {
	client llm.Client
	opts   Options
}

// New creates an orchestrator. Temperatures are used as given, zero included;
// take DefaultOptions for the built-in values. A non-positive timeout falls
// back to the default.
func New(client llm.Client, opts Options) *Orchestrator {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Orchestrator{client: client, opts: opts}
}

type phase int

const (
	firstAttempt phase = iota
	repairAttempt
	terminal
)

func (p phase) String() string {
	switch p {
	case firstAttempt:
		return "first attempt"
	case repairAttempt:
		return "repair attempt"
	default:
		return "terminal"
	}
}

// Generate produces an output for st and records it on success. On any
// failure st is left untouched. Incomplete inputs fail before any call.
func (o *Orchestrator) Generate(ctx context.Context, stage framework.Stage, st *step.State) (Result, error) {
	if err := stage.CheckComplete(st.Inputs); err != nil {
		return Result{}, err
	}

	req := llm.Request{
		System:      SystemInstruction,
		Prompt:      stage.RenderPrompt(st.Inputs),
		Temperature: o.opts.Temperature,
	}
	logger := log.With().Str("project_id", st.ProjectID).Str("stage", stage.Key).Logger()

	attempts := 0
	var raw string
	var lastErr error
	for p := firstAttempt; p != terminal; {
		attempts++
		logger.Debug().Str("attempt", p.String()).Float64("temperature", req.Temperature).Msg("requesting generation")

		text, err := o.call(ctx, req)
		if err != nil {
			logger.Warn().Err(err).Str("attempt", p.String()).Msg("generation service failed")
			return Result{}, &TransportError{Stage: stage.Key, Attempt: p.String(), Err: err}
		}

		out, err := ParseOutput(stage, text)
		if err == nil {
			st.RecordGeneration(out)
			logger.Info().Int("attempts", attempts).Bool("repaired", p == repairAttempt).Msg("generation succeeded")
			return Result{Output: out, Attempts: attempts, Repaired: p == repairAttempt}, nil
		}
		raw, lastErr = text, err
		logger.Debug().Err(err).Str("attempt", p.String()).Msg("response did not match output schema")

		switch p {
		case firstAttempt:
			req = repairRequest(stage, text, err, o.opts.RepairTemperature)
			p = repairAttempt
		default:
			p = terminal
		}
	}
	return Result{}, &FormatError{Stage: stage.Key, Raw: raw, Err: lastErr}
}

func (o *Orchestrator) call(ctx context.Context, req llm.Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.opts.Timeout)
	defer cancel()

	return o.client.Complete(ctx, req)
}

// ParseOutput strictly decodes text as one JSON object and checks it against
// the stage output schema. Prose or code fences around the object are errors,
// and so is an empty response.
func ParseOutput(stage framework.Stage, text string) (map[string]any, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("response is empty")
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &out); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w", err)
	}
	if err := stage.ValidateOutput(out); err != nil {
		return nil, err
	}
	return out, nil
}

func repairRequest(stage framework.Stage, raw string, cause error, temperature float64) llm.Request {
	if r := []rune(raw); len(r) > maxRawInRepair {
		raw = string(r[:maxRawInRepair])
	}
	var b strings.Builder
	b.WriteString("Your previous response could not be used: ")
	b.WriteString(cause.Error())
	b.WriteString(".\nReturn the corrected JSON object only. Keep the content, fix the format.\n\n")
	b.WriteString(stage.OutputContract())
	b.WriteString("\n\nPrevious response:\n")
	b.WriteString(raw)
	b.WriteString("\n")
	return llm.Request{
		System:      SystemInstruction,
		Prompt:      b.String(),
		Temperature: temperature,
	}
}

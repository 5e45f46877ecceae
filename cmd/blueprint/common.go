package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/metalagman/blueprint/internal/autofill"
	"github.com/metalagman/blueprint/internal/config"
	"github.com/metalagman/blueprint/internal/db"
	"github.com/metalagman/blueprint/internal/framework"
	"github.com/metalagman/blueprint/internal/generation"
	"github.com/metalagman/blueprint/internal/llm"
	"github.com/metalagman/blueprint/internal/pipeline"
	"github.com/metalagman/blueprint/internal/step"
)

type app struct {
	cfg   config.Config
	db    *sql.DB
	store *db.Store
	svc   *pipeline.Service
}

func openApp() (*app, func(), error) {
	repoRoot, err := os.Getwd()
	if err != nil {
		return nil, func() {}, err
	}
	cfg, err := loadConfig(repoRoot)
	if err != nil {
		return nil, func() {}, err
	}
	storeDB, err := db.Open(cfg.Storage.Path)
	if err != nil {
		return nil, func() {}, err
	}
	store := db.NewStore(storeDB)
	svc := pipeline.NewService(framework.Default(), store, newLazyGenerator(cfg.Generation), autofill.NewEngine())
	return &app{cfg: cfg, db: storeDB, store: store, svc: svc}, func() { _ = storeDB.Close() }, nil
}

// lazyGenerator builds the provider client on first use so commands that
// never generate do not need an API key.
type lazyGenerator struct {
	cfg  config.GenerationConfig
	once sync.Once
	orch *generation.Orchestrator
	err  error
}

func newLazyGenerator(cfg config.GenerationConfig) *lazyGenerator {
	return &lazyGenerator{cfg: cfg}
}

func (l *lazyGenerator) Generate(ctx context.Context, stage framework.Stage, st *step.State) (generation.Result, error) {
	l.once.Do(func() {
		client, err := llm.New(ctx, l.cfg, nil)
		if err != nil {
			l.err = fmt.Errorf("%w: %w", pipeline.ErrGenerationUnavailable, err)
			return
		}
		l.orch = generation.New(client, generation.Options{
			Temperature:       l.cfg.Temperature,
			RepairTemperature: l.cfg.RepairTemperature,
			Timeout:           l.cfg.Timeout,
		})
	})
	if l.err != nil {
		return generation.Result{}, l.err
	}
	return l.orch.Generate(ctx, stage, st)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseAssignments turns ["a=1", "b=two words"] into a map.
func parseAssignments(args []string) (map[string]string, error) {
	out := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("expected field=value, got %q", arg)
		}
		out[key] = value
	}
	return out, nil
}

// readJSONObject reads a JSON object from path, or stdin when path is "-".
func readJSONObject(path string) (map[string]any, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("%s must contain a JSON object: %w", path, err)
	}
	if obj == nil {
		return nil, fmt.Errorf("%s must contain a JSON object", path)
	}
	return obj, nil
}

// userError replaces err with the user-facing message while keeping the cause
// available in debug logs.
func userError(err error) error {
	if err == nil {
		return nil
	}
	return &cliError{msg: pipeline.UserMessage(err), cause: err}
}

type cliError struct {
	msg   string
	cause error
}

func (e *cliError) Error() string {
	if debug {
		return e.msg + " (" + e.cause.Error() + ")"
	}
	return e.msg
}

func (e *cliError) Unwrap() error {
	return e.cause
}

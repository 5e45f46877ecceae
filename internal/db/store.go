package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/metalagman/blueprint/internal/autofill"
	"github.com/metalagman/blueprint/internal/step"
)

var (
	// ErrNotFound is returned when a project, step or tool output does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a step was modified since it was read.
	ErrConflict = errors.New("step was modified concurrently")
)

// Store provides persistence for projects, steps and tool outputs.
type Store struct {
	db *sql.DB
}

// NewStore creates a store over an open database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Project groups the step states and tool outputs of one idea.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Event is a timeline entry for a step.
type Event struct {
	Type     string
	Message  string
	DataJSON string
}

// EventRecord is a stored event.
type EventRecord struct {
	Seq      int       `json:"seq"`
	StageKey string    `json:"stageKey"`
	TS       time.Time `json:"ts"`
	Type     string    `json:"type"`
	Message  string    `json:"message"`
	DataJSON string    `json:"data,omitempty"`
}

// CreateProject inserts a project with a fresh id.
func (s *Store) CreateProject(ctx context.Context, name string) (Project, error) {
	p := Project{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO projects(id, name, created_at) VALUES(?, ?, ?)`,
		p.ID, p.Name, formatTime(p.CreatedAt)); err != nil {
		return Project{}, fmt.Errorf("insert project: %w", err)
	}
	return p, nil
}

// GetProject returns the project or ErrNotFound.
func (s *Store) GetProject(ctx context.Context, id string) (Project, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM projects WHERE id=?`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Project{}, fmt.Errorf("project %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return Project{}, fmt.Errorf("read project: %w", err)
	}
	return p, nil
}

// ListProjects returns all projects, newest first.
func (s *Store) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM projects ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return out, nil
}

// DeleteProject removes a project with its steps, tool outputs and events.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("project %q: %w", id, ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner) (Project, error) {
	var p Project
	var createdAt string
	if err := row.Scan(&p.ID, &p.Name, &createdAt); err != nil {
		return Project{}, err
	}
	p.CreatedAt = parseTime(createdAt)
	return p, nil
}

const stepColumns = `project_id, stage_key, inputs_json, ai_output_json, user_edited_output_json, status, version, created_at, updated_at`

// GetStep returns the stored step or ErrNotFound.
func (s *Store) GetStep(ctx context.Context, projectID, stageKey string) (step.State, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+stepColumns+` FROM steps WHERE project_id=? AND stage_key=?`, projectID, stageKey)
	st, err := scanStep(row)
	if errors.Is(err, sql.ErrNoRows) {
		return step.State{}, fmt.Errorf("step %s/%s: %w", projectID, stageKey, ErrNotFound)
	}
	if err != nil {
		return step.State{}, fmt.Errorf("read step: %w", err)
	}
	return st, nil
}

// GetOrCreateStep returns the step, creating a not_started one on first access.
// The project must exist.
func (s *Store) GetOrCreateStep(ctx context.Context, projectID, stageKey string) (step.State, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return step.State{}, err
	}
	fresh := step.New(projectID, stageKey)
	if _, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO steps(`+stepColumns+`)
		VALUES(?, ?, '{}', NULL, NULL, ?, 0, ?, ?)`,
		projectID, stageKey, string(fresh.Status), formatTime(fresh.CreatedAt), formatTime(fresh.UpdatedAt)); err != nil {
		return step.State{}, fmt.Errorf("create step: %w", err)
	}
	return s.GetStep(ctx, projectID, stageKey)
}

// ListSteps returns the existing steps of a project keyed by stage. Missing
// steps are not created.
func (s *Store) ListSteps(ctx context.Context, projectID string) (map[string]step.State, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+stepColumns+` FROM steps WHERE project_id=?`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := map[string]step.State{}
	for rows.Next() {
		st, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		out[st.StageKey] = st
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate steps: %w", err)
	}
	return out, nil
}

// SaveStep writes st if its version still matches the stored one and appends
// events in the same transaction. On success st.Version is advanced. A stale
// version yields ErrConflict and nothing is written.
func (s *Store) SaveStep(ctx context.Context, st *step.State, events ...Event) error {
	inputs, err := json.Marshal(st.Inputs)
	if err != nil {
		return fmt.Errorf("encode inputs: %w", err)
	}
	aiOutput, err := encodeObject(st.AIOutput)
	if err != nil {
		return fmt.Errorf("encode ai output: %w", err)
	}
	edited, err := encodeObject(st.UserEditedOutput)
	if err != nil {
		return fmt.Errorf("encode user edit: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin save step: %w", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE steps SET inputs_json=?, ai_output_json=?, user_edited_output_json=?, status=?, version=version+1, updated_at=?
		WHERE project_id=? AND stage_key=? AND version=?`,
		string(inputs), aiOutput, edited, string(st.Status), formatTime(st.UpdatedAt),
		st.ProjectID, st.StageKey, st.Version)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("update step: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("update step: %w", err)
	}
	if n == 0 {
		_ = tx.Rollback()
		return fmt.Errorf("step %s/%s at version %d: %w", st.ProjectID, st.StageKey, st.Version, ErrConflict)
	}
	for _, ev := range events {
		if err := s.insertEvent(ctx, tx, st.ProjectID, st.StageKey, ev); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save step: %w", err)
	}
	st.Version++
	return nil
}

// AppendEvent records an event without changing the step.
func (s *Store) AppendEvent(ctx context.Context, projectID, stageKey string, ev Event) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin append event: %w", err)
	}
	if err := s.insertEvent(ctx, tx, projectID, stageKey, ev); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append event: %w", err)
	}
	return nil
}

// Events returns a project's events in order. An empty stageKey returns all stages.
func (s *Store) Events(ctx context.Context, projectID, stageKey string) ([]EventRecord, error) {
	query := `SELECT seq, stage_key, ts, type, message, data_json FROM step_events WHERE project_id=?`
	args := []any{projectID}
	if stageKey != "" {
		query += ` AND stage_key=?`
		args = append(args, stageKey)
	}
	query += ` ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []EventRecord
	for rows.Next() {
		var ev EventRecord
		var ts string
		var data sql.NullString
		if err := rows.Scan(&ev.Seq, &ev.StageKey, &ts, &ev.Type, &ev.Message, &data); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.TS = parseTime(ts)
		ev.DataJSON = data.String
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

func (s *Store) insertEvent(ctx context.Context, tx *sql.Tx, projectID, stageKey string, ev Event) error {
	seq, err := s.nextSeq(ctx, tx, projectID)
	if err != nil {
		return err
	}
	ts := formatTime(time.Now().UTC())
	if _, err := tx.ExecContext(ctx, `INSERT INTO step_events(project_id, seq, stage_key, ts, type, message, data_json) VALUES(?, ?, ?, ?, ?, ?, ?)`,
		projectID, seq, stageKey, ts, ev.Type, ev.Message, nullableString(ev.DataJSON)); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *Store) nextSeq(ctx context.Context, tx *sql.Tx, projectID string) (int, error) {
	var seq int
	row := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM step_events WHERE project_id=?`, projectID)
	if err := row.Scan(&seq); err != nil {
		return 0, fmt.Errorf("read event seq: %w", err)
	}
	return seq + 1, nil
}

// AddToolOutput stores a tool's JSON object for a project.
func (s *Store) AddToolOutput(ctx context.Context, projectID, toolID, toolName string, data map[string]any) (autofill.ToolOutput, error) {
	if data == nil {
		return autofill.ToolOutput{}, fmt.Errorf("tool output data must be a JSON object")
	}
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return autofill.ToolOutput{}, err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return autofill.ToolOutput{}, fmt.Errorf("encode tool output: %w", err)
	}
	out := autofill.ToolOutput{
		ID:         uuid.NewString(),
		ProjectID:  projectID,
		ToolID:     toolID,
		ToolName:   toolName,
		OutputData: data,
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO tool_outputs(id, project_id, tool_id, tool_name, output_data, created_at) VALUES(?, ?, ?, ?, ?, ?)`,
		out.ID, projectID, toolID, toolName, string(raw), formatTime(out.CreatedAt)); err != nil {
		return autofill.ToolOutput{}, fmt.Errorf("insert tool output: %w", err)
	}
	return out, nil
}

const toolOutputColumns = `id, project_id, tool_id, tool_name, output_data, created_at`

// GetToolOutput returns one tool output of a project or ErrNotFound.
func (s *Store) GetToolOutput(ctx context.Context, projectID, id string) (autofill.ToolOutput, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+toolOutputColumns+` FROM tool_outputs WHERE project_id=? AND id=?`, projectID, id)
	out, err := scanToolOutput(row)
	if errors.Is(err, sql.ErrNoRows) {
		return autofill.ToolOutput{}, fmt.Errorf("tool output %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return autofill.ToolOutput{}, fmt.Errorf("read tool output: %w", err)
	}
	return out, nil
}

// ListToolOutputs returns a project's tool outputs, newest first.
func (s *Store) ListToolOutputs(ctx context.Context, projectID string) ([]autofill.ToolOutput, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+toolOutputColumns+` FROM tool_outputs WHERE project_id=? ORDER BY created_at DESC, rowid DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list tool outputs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []autofill.ToolOutput
	for rows.Next() {
		to, err := scanToolOutput(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tool output: %w", err)
		}
		out = append(out, to)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tool outputs: %w", err)
	}
	return out, nil
}

func scanToolOutput(row scanner) (autofill.ToolOutput, error) {
	var out autofill.ToolOutput
	var raw, createdAt string
	if err := row.Scan(&out.ID, &out.ProjectID, &out.ToolID, &out.ToolName, &raw, &createdAt); err != nil {
		return autofill.ToolOutput{}, err
	}
	if err := json.Unmarshal([]byte(raw), &out.OutputData); err != nil {
		return autofill.ToolOutput{}, fmt.Errorf("decode tool output %s: %w", out.ID, err)
	}
	out.CreatedAt = parseTime(createdAt)
	return out, nil
}

func scanStep(row scanner) (step.State, error) {
	var st step.State
	var inputs, status, createdAt, updatedAt string
	var aiOutput, edited sql.NullString
	if err := row.Scan(&st.ProjectID, &st.StageKey, &inputs, &aiOutput, &edited, &status, &st.Version, &createdAt, &updatedAt); err != nil {
		return step.State{}, err
	}
	st.Inputs = map[string]string{}
	if err := json.Unmarshal([]byte(inputs), &st.Inputs); err != nil {
		return step.State{}, fmt.Errorf("decode inputs: %w", err)
	}
	var err error
	if st.AIOutput, err = decodeObject(aiOutput); err != nil {
		return step.State{}, fmt.Errorf("decode ai output: %w", err)
	}
	if st.UserEditedOutput, err = decodeObject(edited); err != nil {
		return step.State{}, fmt.Errorf("decode user edit: %w", err)
	}
	st.Status = step.Status(status)
	st.CreatedAt = parseTime(createdAt)
	st.UpdatedAt = parseTime(updatedAt)
	return st, nil
}

func encodeObject(obj map[string]any) (any, error) {
	if obj == nil {
		return nil, nil
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func decodeObject(v sql.NullString) (map[string]any, error) {
	if !v.Valid {
		return nil, nil
	}
	out := map[string]any{}
	if err := json.Unmarshal([]byte(v.String), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// Package web serves the pipeline as a JSON HTTP API.
package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/metalagman/blueprint/internal/autofill"
	"github.com/metalagman/blueprint/internal/db"
	"github.com/metalagman/blueprint/internal/framework"
	"github.com/metalagman/blueprint/internal/generation"
	"github.com/metalagman/blueprint/internal/logging"
	"github.com/metalagman/blueprint/internal/pipeline"
	"github.com/metalagman/blueprint/internal/report"
)

const maxBodyBytes = 1 << 20

// Server provides the HTTP handlers.
type Server struct {
	svc *pipeline.Service
}

// NewServer creates a new web server.
func NewServer(svc *pipeline.Service) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("pipeline service is required")
	}
	return &Server{svc: svc}, nil
}

// Routes returns the router for the API.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /stages", s.handleStages)
	mux.HandleFunc("GET /stages/{key}", s.handleStage)

	mux.HandleFunc("GET /projects", s.handleListProjects)
	mux.HandleFunc("POST /projects", s.handleCreateProject)
	mux.HandleFunc("GET /projects/{id}", s.handleGetProject)
	mux.HandleFunc("DELETE /projects/{id}", s.handleDeleteProject)
	mux.HandleFunc("GET /projects/{id}/progress", s.handleProgress)
	mux.HandleFunc("GET /projects/{id}/report", s.handleReport)
	mux.HandleFunc("GET /projects/{id}/history", s.handleHistory)

	mux.HandleFunc("GET /projects/{id}/steps/{stage}", s.handleGetStep)
	mux.HandleFunc("PATCH /projects/{id}/steps/{stage}/inputs", s.handleRecordInputs)
	mux.HandleFunc("POST /projects/{id}/steps/{stage}/generate", s.handleGenerate)
	mux.HandleFunc("PUT /projects/{id}/steps/{stage}/output", s.handleEditOutput)
	mux.HandleFunc("DELETE /projects/{id}/steps/{stage}/output", s.handleClearEdit)
	mux.HandleFunc("GET /projects/{id}/steps/{stage}/history", s.handleHistory)
	mux.HandleFunc("GET /projects/{id}/steps/{stage}/suggestions", s.handleSuggest)
	mux.HandleFunc("POST /projects/{id}/steps/{stage}/suggestions/apply", s.handleApply)

	mux.HandleFunc("POST /projects/{id}/tool-outputs", s.handleImportToolOutput)
	mux.HandleFunc("GET /projects/{id}/tool-outputs", s.handleListToolOutputs)
	return logRequests(mux)
}

func (s *Server) handleStages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Stages())
}

func (s *Server) handleStage(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Stage(r.PathValue("key"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.svc.ListProjects(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if projects == nil {
		projects = []db.Project{}
	}
	writeJSON(w, http.StatusOK, projects)
}

type createProjectRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	p, err := s.svc.CreateProject(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.GetProject(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteProject(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Progress(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	project, err := s.svc.GetProject(ctx, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	progress, err := s.svc.Progress(ctx, project.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(report.Project(project.Name, s.svc.Registry(), progress)))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	events, err := s.svc.History(r.Context(), r.PathValue("id"), r.PathValue("stage"))
	if err != nil {
		writeError(w, err)
		return
	}
	if events == nil {
		events = []db.EventRecord{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleGetStep(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.GetStep(r.Context(), r.PathValue("id"), r.PathValue("stage"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleRecordInputs(w http.ResponseWriter, r *http.Request) {
	var partial map[string]string
	if err := decodeBody(w, r, &partial); err != nil {
		writeError(w, err)
		return
	}
	view, err := s.svc.RecordInputs(r.Context(), r.PathValue("id"), r.PathValue("stage"), partial)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.Generate(r.Context(), r.PathValue("id"), r.PathValue("stage"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleEditOutput(w http.ResponseWriter, r *http.Request) {
	var edited map[string]any
	if err := decodeBody(w, r, &edited); err != nil {
		writeError(w, err)
		return
	}
	view, err := s.svc.EditOutput(r.Context(), r.PathValue("id"), r.PathValue("stage"), edited)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleClearEdit(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.ClearEdit(r.Context(), r.PathValue("id"), r.PathValue("stage"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	sugg, err := s.svc.Suggest(r.Context(), r.PathValue("id"), r.PathValue("stage"), r.URL.Query().Get("tool_output"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sugg)
}

type applyRequest struct {
	// Suggestions to apply as given. When empty, current suggestions are
	// computed from ToolOutput (or earlier stages) and filtered by Fields.
	Suggestions []autofill.Suggestion `json:"suggestions,omitempty"`
	ToolOutput  string                `json:"toolOutput,omitempty"`
	Fields      []string              `json:"fields,omitempty"`
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	ctx := r.Context()
	projectID, stageKey := r.PathValue("id"), r.PathValue("stage")

	chosen := req.Suggestions
	if len(chosen) == 0 {
		all, err := s.svc.Suggest(ctx, projectID, stageKey, req.ToolOutput)
		if err != nil {
			writeError(w, err)
			return
		}
		chosen = filterFields(all, req.Fields)
	}
	view, err := s.svc.ApplySuggestions(ctx, projectID, stageKey, chosen)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func filterFields(all []autofill.Suggestion, fields []string) []autofill.Suggestion {
	if len(fields) == 0 {
		return all
	}
	want := make(map[string]bool, len(fields))
	for _, f := range fields {
		want[f] = true
	}
	out := make([]autofill.Suggestion, 0, len(all))
	for _, s := range all {
		if want[s.Field] {
			out = append(out, s)
		}
	}
	return out
}

type importToolOutputRequest struct {
	ToolID     string         `json:"toolId"`
	ToolName   string         `json:"toolName"`
	OutputData map[string]any `json:"outputData"`
}

func (s *Server) handleImportToolOutput(w http.ResponseWriter, r *http.Request) {
	var req importToolOutputRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.OutputData == nil {
		writeError(w, badRequest("outputData must be a JSON object"))
		return
	}
	if req.ToolID == "" {
		writeError(w, badRequest("toolId is required"))
		return
	}
	out, err := s.svc.ImportToolOutput(r.Context(), r.PathValue("id"), req.ToolID, req.ToolName, req.OutputData)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleListToolOutputs(w http.ResponseWriter, r *http.Request) {
	outs, err := s.svc.ListToolOutputs(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if outs == nil {
		outs = []autofill.ToolOutput{}
	}
	writeJSON(w, http.StatusOK, outs)
}

type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &badRequestError{msg: fmt.Sprintf(format, args...)}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return badRequest("invalid request body: %v", err)
	}
	return nil
}

type errorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Missing []string               `json:"missing,omitempty"`
	Invalid []framework.FieldError `json:"invalid,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error(), Message: pipeline.UserMessage(err)}

	var bad *badRequestError
	if errors.As(err, &bad) {
		resp.Message = bad.msg
	}
	var incomplete *framework.IncompleteInputsError
	if errors.As(err, &incomplete) {
		resp.Missing = incomplete.Missing
		resp.Invalid = incomplete.Invalid
	}
	if status >= http.StatusInternalServerError {
		logging.Component("web").Error().Err(err).Int("status", status).Msg("request failed")
		// Service internals are not exposed to clients.
		resp.Error = http.StatusText(status)
	}
	writeJSON(w, status, resp)
}

func statusFor(err error) int {
	var (
		unknownStage *framework.UnknownStageError
		unknownField *framework.UnknownFieldError
		incomplete   *framework.IncompleteInputsError
		formatErr    *generation.FormatError
		transportErr *generation.TransportError
		bad          *badRequestError
	)
	switch {
	case errors.As(err, &unknownStage), errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &unknownField), errors.As(err, &bad):
		return http.StatusBadRequest
	case errors.As(err, &incomplete), errors.Is(err, pipeline.ErrInvalidOutput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, db.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, pipeline.ErrGenerationUnavailable):
		return http.StatusServiceUnavailable
	case errors.As(err, &formatErr), errors.As(err, &transportErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Component("web").Warn().Err(err).Msg("write response")
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logging.Component("web").Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

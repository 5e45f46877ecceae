package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/metalagman/blueprint/internal/autofill"
	"github.com/metalagman/blueprint/internal/db"
	"github.com/metalagman/blueprint/internal/framework"
	"github.com/metalagman/blueprint/internal/generation"
	"github.com/metalagman/blueprint/internal/llm"
	"github.com/metalagman/blueprint/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, client llm.Client) *httptest.Server {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "blueprint.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	svc := pipeline.NewService(framework.Default(), db.NewStore(conn),
		generation.New(client, generation.DefaultOptions()), autofill.NewEngine())
	s, err := NewServer(svc)
	require.NoError(t, err)

	srv := httptest.NewServer(s.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url string, body any) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

const targetMarketOutput = `{"primary_segment":{"name":"Freelancers"},"secondary_segments":[],"market_size_estimate":"$2M","early_adopters":"designers","reasoning":"r"}`

func TestServer_StepLifecycle(t *testing.T) {
	t.Parallel()

	client := llm.ClientFunc(func(context.Context, llm.Request) (string, error) {
		return targetMarketOutput, nil
	})
	srv := newTestServer(t, client)

	status, body := do(t, http.MethodGet, srv.URL+"/stages", nil)
	require.Equal(t, http.StatusOK, status)
	stages := decode[[]framework.StageExport](t, body)
	require.Len(t, stages, 5)

	status, _ = do(t, http.MethodGet, srv.URL+"/stages/nope", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = do(t, http.MethodPost, srv.URL+"/projects", map[string]string{"name": "Invoices"})
	require.Equal(t, http.StatusCreated, status)
	project := decode[db.Project](t, body)

	stepURL := srv.URL + "/projects/" + project.ID + "/steps/target_market"

	status, body = do(t, http.MethodPost, stepURL+"/generate", nil)
	require.Equal(t, http.StatusUnprocessableEntity, status)
	errResp := decode[errorResponse](t, body)
	assert.Equal(t, []string{"target_customer"}, errResp.Missing)

	status, _ = do(t, http.MethodPatch, stepURL+"/inputs", map[string]string{"pitch": "x"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = do(t, http.MethodPatch, stepURL+"/inputs", map[string]string{"target_customer": "Freelancers"})
	require.Equal(t, http.StatusOK, status)
	view := decode[pipeline.StepView](t, body)
	assert.Equal(t, "in_progress", string(view.Status))

	status, body = do(t, http.MethodPost, stepURL+"/generate", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	view = decode[pipeline.StepView](t, body)
	assert.Equal(t, "generated", string(view.Status))
	assert.Equal(t, "$2M", view.EffectiveOutput["market_size_estimate"])

	status, _ = do(t, http.MethodPut, stepURL+"/output", map[string]any{"reasoning": "only"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, body = do(t, http.MethodPut, stepURL+"/output", map[string]any{
		"primary_segment":      map[string]any{"name": "Designers"},
		"secondary_segments":   []any{},
		"market_size_estimate": "$1M",
		"early_adopters":       "studios",
		"reasoning":            "mine",
	})
	require.Equal(t, http.StatusOK, status, string(body))
	view = decode[pipeline.StepView](t, body)
	assert.Equal(t, "edited", string(view.Status))
	assert.Equal(t, "mine", view.EffectiveOutput["reasoning"])

	status, body = do(t, http.MethodDelete, stepURL+"/output", nil)
	require.Equal(t, http.StatusOK, status)
	view = decode[pipeline.StepView](t, body)
	assert.Equal(t, "generated", string(view.Status))
	assert.Equal(t, "r", view.EffectiveOutput["reasoning"])

	status, body = do(t, http.MethodGet, srv.URL+"/projects/"+project.ID+"/progress", nil)
	require.Equal(t, http.StatusOK, status)
	progress := decode[pipeline.Progress](t, body)
	assert.Equal(t, framework.StageProblemClarity, progress.CurrentStage)
	assert.Equal(t, 1, progress.Completed)

	status, body = do(t, http.MethodGet, srv.URL+"/projects/"+project.ID+"/report", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "# Invoices")

	status, _ = do(t, http.MethodDelete, srv.URL+"/projects/"+project.ID, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = do(t, http.MethodGet, srv.URL+"/projects/"+project.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestServer_GenerationFailureIsBadGateway(t *testing.T) {
	t.Parallel()

	client := llm.ClientFunc(func(context.Context, llm.Request) (string, error) {
		return "", errors.New("dial tcp: connection refused")
	})
	srv := newTestServer(t, client)

	_, body := do(t, http.MethodPost, srv.URL+"/projects", map[string]string{"name": "p"})
	project := decode[db.Project](t, body)
	stepURL := srv.URL + "/projects/" + project.ID + "/steps/target_market"

	status, _ := do(t, http.MethodPatch, stepURL+"/inputs", map[string]string{"target_customer": "Freelancers"})
	require.Equal(t, http.StatusOK, status)

	status, body = do(t, http.MethodPost, stepURL+"/generate", nil)
	require.Equal(t, http.StatusBadGateway, status)
	errResp := decode[errorResponse](t, body)
	assert.Contains(t, errResp.Message, "Please try again")
	assert.NotContains(t, errResp.Error, "connection refused")
}

func TestServer_ToolOutputAutofill(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, llm.ClientFunc(func(context.Context, llm.Request) (string, error) {
		return "", errors.New("unused")
	}))
	_, body := do(t, http.MethodPost, srv.URL+"/projects", map[string]string{"name": "p"})
	project := decode[db.Project](t, body)
	base := srv.URL + "/projects/" + project.ID

	status, _ := do(t, http.MethodPost, base+"/tool-outputs", map[string]any{"toolId": "x", "outputData": []any{1}})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = do(t, http.MethodPost, base+"/tool-outputs", map[string]any{
		"toolId":     "customer-finder",
		"toolName":   "Customer Finder",
		"outputData": map[string]any{"selectedCustomer": map[string]any{"title": "Freelancers"}},
	})
	require.Equal(t, http.StatusCreated, status)
	out := decode[autofill.ToolOutput](t, body)

	status, body = do(t, http.MethodGet, base+"/tool-outputs", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]autofill.ToolOutput](t, body), 1)

	status, body = do(t, http.MethodGet, base+"/steps/value_proposition/suggestions?tool_output="+out.ID, nil)
	require.Equal(t, http.StatusOK, status)
	sugg := decode[[]autofill.Suggestion](t, body)
	require.Len(t, sugg, 1)
	assert.Equal(t, "target_customer", sugg[0].Field)
	assert.Equal(t, "Freelancers", sugg[0].Value)

	status, body = do(t, http.MethodPost, base+"/steps/value_proposition/suggestions/apply", map[string]any{
		"toolOutput": out.ID,
	})
	require.Equal(t, http.StatusOK, status)
	view := decode[pipeline.StepView](t, body)
	assert.Equal(t, "Freelancers", view.Inputs["target_customer"])

	status, body = do(t, http.MethodGet, base+"/steps/value_proposition/history", nil)
	require.Equal(t, http.StatusOK, status)
	events := decode[[]db.EventRecord](t, body)
	require.Len(t, events, 1)
	assert.Equal(t, pipeline.EventAutofillApplied, events[0].Type)
}

func TestServer_GenerateWithoutGenerator(t *testing.T) {
	t.Parallel()

	conn, err := db.Open(filepath.Join(t.TempDir(), "blueprint.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	s, err := NewServer(pipeline.NewService(framework.Default(), db.NewStore(conn), nil, autofill.NewEngine()))
	require.NoError(t, err)
	srv := httptest.NewServer(s.Routes())
	t.Cleanup(srv.Close)

	_, body := do(t, http.MethodPost, srv.URL+"/projects", map[string]string{"name": "p"})
	project := decode[db.Project](t, body)

	status, body := do(t, http.MethodPost, srv.URL+"/projects/"+project.ID+"/steps/target_market/generate", nil)
	require.Equal(t, http.StatusServiceUnavailable, status)
	errResp := decode[errorResponse](t, body)
	assert.Contains(t, errResp.Message, "Generation is not set up")
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{err: &framework.UnknownStageError{Key: "x"}, want: http.StatusNotFound},
		{err: db.ErrNotFound, want: http.StatusNotFound},
		{err: &framework.UnknownFieldError{}, want: http.StatusBadRequest},
		{err: &framework.IncompleteInputsError{}, want: http.StatusUnprocessableEntity},
		{err: db.ErrConflict, want: http.StatusConflict},
		{err: pipeline.ErrGenerationUnavailable, want: http.StatusServiceUnavailable},
		{err: fmt.Errorf("%w: missing key", pipeline.ErrGenerationUnavailable), want: http.StatusServiceUnavailable},
		{err: &generation.FormatError{}, want: http.StatusBadGateway},
		{err: &generation.TransportError{}, want: http.StatusBadGateway},
		{err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

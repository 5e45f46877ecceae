// Package openaiapi calls the OpenAI Responses API for single stateless completions.
package openaiapi

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
)

// Client sends one request per call. The SDK's automatic retries are off.
type Client struct {
	model  string
	client openai.Client
}

// NewClient validates cfg and builds a client. httpClient may be nil.
func NewClient(cfg Config, httpClient *http.Client) (*Client, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, errors.New("openai model is required")
	}
	apiKey, err := resolveAPIKey(cfg)
	if err != nil {
		return nil, err
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(cmp.Or(strings.TrimSpace(cfg.BaseURL), defaultBaseURL)),
		option.WithRequestTimeout(cmp.Or(cfg.Timeout, defaultTimeout)),
		option.WithMaxRetries(0),
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	return &Client{model: model, client: openai.NewClient(opts...)}, nil
}

func resolveAPIKey(cfg Config) (string, error) {
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		return key, nil
	}
	env := cmp.Or(strings.TrimSpace(cfg.APIKeyEnv), defaultAPIKeyEnv)
	if key := strings.TrimSpace(os.Getenv(env)); key != "" {
		return key, nil
	}
	return "", fmt.Errorf("openai api key is required (set api_key or export %s)", env)
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Complete executes a single Responses API request.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	resp, err := c.client.Responses.New(ctx, c.params(req))
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return CompletionResponse{}, &APIError{StatusCode: apiErr.StatusCode, Message: apiErr.Message}
		}
		return CompletionResponse{}, fmt.Errorf("openai responses.create: %w", err)
	}
	if msg := strings.TrimSpace(resp.Error.Message); msg != "" {
		return CompletionResponse{}, fmt.Errorf("openai response failed: %s", msg)
	}
	// Empty text is a successful answer; the caller decides whether it is usable.
	return CompletionResponse{OutputText: strings.TrimSpace(resp.OutputText()), ResponseID: resp.ID}, nil
}

func (c *Client) params(req CompletionRequest) responses.ResponseNewParams {
	params := responses.ResponseNewParams{
		Model: c.model,
		Input: responses.ResponseNewParamsInputUnion{OfString: openai.String(req.Input)},
	}
	if req.Instructions != "" {
		params.Instructions = openai.String(req.Instructions)
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	return params
}

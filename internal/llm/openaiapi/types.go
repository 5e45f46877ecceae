package openaiapi

import (
	"fmt"
	"time"
)

const (
	defaultBaseURL   = "https://api.openai.com/v1"
	defaultAPIKeyEnv = "OPENAI_API_KEY"
	defaultTimeout   = 60 * time.Second
)

// Config selects the model and endpoint. APIKey wins over APIKeyEnv.
type Config struct {
	Model     string
	BaseURL   string
	APIKey    string
	APIKeyEnv string
	Timeout   time.Duration
}

// CompletionRequest is one stateless Responses API call.
type CompletionRequest struct {
	Instructions string
	Input        string
	// Temperature is sent only when non-nil.
	Temperature *float64
}

// CompletionResponse carries the trimmed output text.
type CompletionResponse struct {
	OutputText string
	ResponseID string
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("openai: http %d", e.StatusCode)
	}
	return fmt.Sprintf("openai: http %d: %s", e.StatusCode, e.Message)
}

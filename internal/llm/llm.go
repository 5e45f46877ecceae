// Package llm selects a text-generation provider and exposes it behind one interface.
package llm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/metalagman/blueprint/internal/config"
	"github.com/metalagman/blueprint/internal/llm/gemini"
	"github.com/metalagman/blueprint/internal/llm/openaiapi"
)

// Request is a single stateless generation call.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
}

// Client produces raw response text for a request.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req Request) (string, error)

// Complete calls f.
func (f ClientFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// New builds the client for the configured provider. httpClient may be nil.
func New(ctx context.Context, cfg config.GenerationConfig, httpClient *http.Client) (Client, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI, "":
		c, err := openaiapi.NewClient(openaiapi.Config{
			Model:     cfg.Model,
			BaseURL:   cfg.BaseURL,
			APIKey:    cfg.APIKey,
			APIKeyEnv: cfg.APIKeyEnv,
			Timeout:   cfg.Timeout,
		}, httpClient)
		if err != nil {
			return nil, err
		}
		return openAIClient{c: c}, nil
	case config.ProviderGemini:
		c, err := gemini.NewClient(ctx, gemini.Config{
			Model:     cfg.Model,
			BaseURL:   cfg.BaseURL,
			APIKey:    cfg.APIKey,
			APIKeyEnv: cfg.APIKeyEnv,
			Timeout:   cfg.Timeout,
		}, httpClient)
		if err != nil {
			return nil, err
		}
		return geminiClient{c: c}, nil
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}
}

type openAIClient struct {
	c *openaiapi.Client
}

func (o openAIClient) Complete(ctx context.Context, req Request) (string, error) {
	temp := req.Temperature
	resp, err := o.c.Complete(ctx, openaiapi.CompletionRequest{
		Instructions: req.System,
		Input:        req.Prompt,
		Temperature:  &temp,
	})
	if err != nil {
		return "", err
	}
	return resp.OutputText, nil
}

type geminiClient struct {
	c *gemini.Client
}

func (g geminiClient) Complete(ctx context.Context, req Request) (string, error) {
	temp := req.Temperature
	return g.c.Complete(ctx, gemini.CompletionRequest{
		SystemInstruction: req.System,
		Input:             req.Prompt,
		Temperature:       &temp,
		JSON:              true,
	})
}

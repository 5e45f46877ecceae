// Package config provides configuration loading and management for blueprint.
package config

import (
	"fmt"
	"time"
)

// Generation providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config is the root configuration.
type Config struct {
	Generation GenerationConfig `json:"generation" mapstructure:"generation"`
	Storage    StorageConfig    `json:"storage"    mapstructure:"storage"`
	Server     ServerConfig     `json:"server"     mapstructure:"server"`
	Retention  RetentionPolicy  `json:"retention"  mapstructure:"retention"`
}

// GenerationConfig describes how to reach the text-generation service.
type GenerationConfig struct {
	Provider          string        `json:"provider"                mapstructure:"provider"`
	Model             string        `json:"model"                   mapstructure:"model"`
	BaseURL           string        `json:"base_url,omitempty"      mapstructure:"base_url"`
	APIKey            string        `json:"api_key,omitempty"       mapstructure:"api_key"`
	APIKeyEnv         string        `json:"api_key_env,omitempty"   mapstructure:"api_key_env"`
	Timeout           time.Duration `json:"timeout,omitempty"       mapstructure:"timeout"`
	Temperature       float64       `json:"temperature"             mapstructure:"temperature"`
	RepairTemperature float64       `json:"repair_temperature"      mapstructure:"repair_temperature"`
}

// StorageConfig locates the SQLite database.
type StorageConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `json:"addr" mapstructure:"addr"`
}

// RetentionPolicy defines how many tool outputs to keep per project.
type RetentionPolicy struct {
	KeepLast int `json:"keep_last,omitempty" mapstructure:"keep_last"`
	KeepDays int `json:"keep_days,omitempty" mapstructure:"keep_days"`
}

// Default returns the configuration written by `blueprint init`.
func Default() Config {
	return Config{
		Generation: GenerationConfig{
			Provider:          ProviderOpenAI,
			Model:             "gpt-4.1-mini",
			APIKeyEnv:         "OPENAI_API_KEY",
			Timeout:           90 * time.Second,
			Temperature:       0.4,
			RepairTemperature: 0.1,
		},
		Storage:   StorageConfig{Path: ".blueprint/blueprint.db"},
		Server:    ServerConfig{Addr: ":8080"},
		Retention: RetentionPolicy{KeepLast: 20, KeepDays: 90},
	}
}

// Validate checks semantic constraints the JSON schema cannot express.
func (c Config) Validate() error {
	switch c.Generation.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("generation.provider must be %q or %q, got %q", ProviderOpenAI, ProviderGemini, c.Generation.Provider)
	}
	if c.Generation.Model == "" {
		return fmt.Errorf("generation.model is required")
	}
	if c.Generation.RepairTemperature > c.Generation.Temperature {
		return fmt.Errorf("generation.repair_temperature (%.2f) must not exceed generation.temperature (%.2f)",
			c.Generation.RepairTemperature, c.Generation.Temperature)
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}
	return nil
}

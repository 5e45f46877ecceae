package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/metalagman/blueprint/internal/config"
	"github.com/spf13/viper"
)

func TestResolveConfigPath(t *testing.T) {
	t.Parallel()

	repoRoot := t.TempDir()
	if got, want := resolveConfigPath(repoRoot, ""), filepath.Join(repoRoot, defaultConfigPath); got != want {
		t.Fatalf("resolve empty path = %q, want %q", got, want)
	}
	abs := filepath.Join(t.TempDir(), "custom.yaml")
	if got := resolveConfigPath(repoRoot, abs); got != abs {
		t.Fatalf("resolve absolute path = %q, want %q", got, abs)
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	repoRoot := t.TempDir()
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := loadConfig(repoRoot)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	want := config.Default()
	if cfg.Generation.Model != want.Generation.Model {
		t.Fatalf("model = %q, want %q", cfg.Generation.Model, want.Generation.Model)
	}
	if cfg.Generation.Timeout != want.Generation.Timeout {
		t.Fatalf("timeout = %s, want %s", cfg.Generation.Timeout, want.Generation.Timeout)
	}
	if cfg.Storage.Path != filepath.Join(repoRoot, want.Storage.Path) {
		t.Fatalf("storage path = %q, want it under %q", cfg.Storage.Path, repoRoot)
	}
}

func TestLoadConfig_UsesYAML(t *testing.T) {
	repoRoot := t.TempDir()
	if err := writeTestFile(filepath.Join(repoRoot, ".blueprint", "config.yaml"), `generation:
  provider: gemini
  model: gemini-2.5-flash
  timeout: 30s
  temperature: 0.5
  repair_temperature: 0.2
retention:
  keep_last: 10
  keep_days: 5
`); err != nil {
		t.Fatalf("write yaml config: %v", err)
	}

	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("config", ".blueprint/config.yaml")

	cfg, err := loadConfig(repoRoot)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Generation.Provider != config.ProviderGemini {
		t.Fatalf("provider = %q, want %q", cfg.Generation.Provider, config.ProviderGemini)
	}
	if cfg.Generation.Timeout != 30*time.Second {
		t.Fatalf("timeout = %s, want 30s", cfg.Generation.Timeout)
	}
	if cfg.Retention.KeepLast != 10 || cfg.Retention.KeepDays != 5 {
		t.Fatalf("retention = %+v, want keep_last 10 keep_days 5", cfg.Retention)
	}
	if cfg.Server.Addr != config.Default().Server.Addr {
		t.Fatalf("server addr = %q, want default", cfg.Server.Addr)
	}
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	repoRoot := t.TempDir()
	data, err := defaultConfigJSON()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	if err := writeTestFile(filepath.Join(repoRoot, defaultConfigPath), string(data)); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := writeTestFile(filepath.Join(repoRoot, ".env"), "BLUEPRINT_SERVER_ADDR=127.0.0.1:9999\n"); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("BLUEPRINT_GENERATION_MODEL", "gpt-4.1")
	t.Cleanup(func() { _ = os.Unsetenv("BLUEPRINT_SERVER_ADDR") })

	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := loadConfig(repoRoot)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Generation.Model != "gpt-4.1" {
		t.Fatalf("model = %q, want env override", cfg.Generation.Model)
	}
	if cfg.Server.Addr != "127.0.0.1:9999" {
		t.Fatalf("server addr = %q, want value from .env", cfg.Server.Addr)
	}
}

func TestLoadConfig_RejectsSchemaViolations(t *testing.T) {
	repoRoot := t.TempDir()
	if err := writeTestFile(filepath.Join(repoRoot, defaultConfigPath), `{"generation": {"provider": "anthropic", "model": "x"}}`); err != nil {
		t.Fatalf("write config: %v", err)
	}

	viper.Reset()
	t.Cleanup(viper.Reset)

	if _, err := loadConfig(repoRoot); err == nil {
		t.Fatal("expected schema error for unknown provider")
	}
}

func TestDefaultConfigJSON_RoundTrips(t *testing.T) {
	repoRoot := t.TempDir()
	data, err := defaultConfigJSON()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	if err := writeTestFile(filepath.Join(repoRoot, defaultConfigPath), string(data)); err != nil {
		t.Fatalf("write config: %v", err)
	}

	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := loadConfig(repoRoot)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	want := config.Default()
	want.Storage.Path = filepath.Join(repoRoot, want.Storage.Path)
	if cfg != want {
		t.Fatalf("config = %+v, want %+v", cfg, want)
	}
}

func TestParseAssignments(t *testing.T) {
	t.Parallel()

	got, err := parseAssignments([]string{"pricing=$10 = cheap", "channels="})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got["pricing"] != "$10 = cheap" || got["channels"] != "" {
		t.Fatalf("assignments = %v", got)
	}
	if _, err := parseAssignments([]string{"novalue"}); err == nil {
		t.Fatal("expected error without '='")
	}
	if _, err := parseAssignments([]string{"=x"}); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func writeTestFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

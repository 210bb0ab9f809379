package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileFallsBackToDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.Model.Name != Default().Model.Name {
		t.Errorf("Model.Name = %q, want default %q", cfg.Model.Name, Default().Model.Name)
	}
}

func TestLoadParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	doc := "model:\n  provider: openai\n  name: gpt-4o\nserver:\n  host: 0.0.0.0\n  port: 9090\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.Model.Provider != "openai" || cfg.Model.Name != "gpt-4o" {
		t.Errorf("Model = %+v, want provider=openai name=gpt-4o", cfg.Model)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
}

func TestLoadInvalidYAMLErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("model: [this is not a mapping"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("Load() = nil error, want error for invalid YAML")
	}
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("model:\n  provider: anthropic\n  name: claude-sonnet-4-5-20250929\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("AGENTRUN_MODEL_PROVIDER", "openrouter")
	t.Setenv("AGENTRUN_WORKSPACE", "/srv/agent")
	t.Setenv("AGENTRUN_ALLOWED_USERS", "alice@example.com,bob@example.com")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.Model.Provider != "openrouter" {
		t.Errorf("Model.Provider = %q, want openrouter (env override)", cfg.Model.Provider)
	}
	if cfg.Security.Workspace != "/srv/agent" {
		t.Errorf("Security.Workspace = %q, want /srv/agent", cfg.Security.Workspace)
	}
	if len(cfg.Security.AllowedUsers) != 2 {
		t.Errorf("Security.AllowedUsers = %v, want 2 entries", cfg.Security.AllowedUsers)
	}
}

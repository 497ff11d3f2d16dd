package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "agentcore.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultMatchesComponentDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Model.Name != "gemini-2.5-flash" {
		t.Fatalf("model name = %q", cfg.Model.Name)
	}
	if cfg.Session.Backend != "memory" {
		t.Fatalf("session backend = %q", cfg.Session.Backend)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
model:
  name: gemini-2.5-pro
session:
  backend: sqlite
  sqlitePath: /tmp/agentcore.db
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model.Name != "gemini-2.5-pro" {
		t.Fatalf("model name = %q", cfg.Model.Name)
	}
	if cfg.Session.Backend != "sqlite" {
		t.Fatalf("session backend = %q", cfg.Session.Backend)
	}
	if cfg.Model.BaseURL == "" {
		t.Fatalf("base url should still carry the default")
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("AGENTCORE_TEST_KEY", "secret-value")
	path := writeConfig(t, `
keyPool:
  entries:
    - name: primary
      secret: ${AGENTCORE_TEST_KEY}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.KeyPool.Entries) != 1 || cfg.KeyPool.Entries[0].Secret != "secret-value" {
		t.Fatalf("entries = %+v", cfg.KeyPool.Entries)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("AGENTCORE_MODEL_NAME", "gemini-2.5-flash-override")
	path := writeConfig(t, "model:\n  name: gemini-2.5-pro\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model.Name != "gemini-2.5-flash-override" {
		t.Fatalf("env override did not win: %q", cfg.Model.Name)
	}
}

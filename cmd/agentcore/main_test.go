package main

import "testing"

func TestBuildRootCmdIncludesSubcommands(t *testing.T) {
	cmd := buildRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	required := []string{"run", "templates", "version"}
	for _, name := range required {
		if !names[name] {
			t.Fatalf("expected subcommand %q to be registered", name)
		}
	}
}

func TestResolveConfigPathDefaultsToFlag(t *testing.T) {
	configPath = "custom.yaml"
	if got := resolveConfigPath(); got != "custom.yaml" {
		t.Fatalf("resolveConfigPath() = %q", got)
	}
}

func TestResolveConfigPathEnvOverride(t *testing.T) {
	configPath = "custom.yaml"
	t.Setenv("AGENTCORE_CONFIG", "/tmp/from-env.yaml")
	if got := resolveConfigPath(); got != "/tmp/from-env.yaml" {
		t.Fatalf("resolveConfigPath() = %q", got)
	}
}

// Package main provides the CLI entry point for agentcore, the Agent
// Execution Core: a workflow/DAG engine for browser-automation agents, with
// a typed tool registry, API key pool, model caller, planner, bounded event
// observer, session store and circuit breaker.
//
// # Basic usage
//
// Plan and run a goal against the live engine:
//
//	agentcore run --goal "open the pricing page and list the plans"
//
// List the workflow template catalog:
//
//	agentcore templates
//
// # Environment variables
//
//   - AGENTCORE_CONFIG: path to the config file (default: agentcore.yaml)
//   - AGENTCORE_MODEL_NAME: overrides the configured model name
//   - AGENTCORE_MODEL_BASE_URL: overrides the configured model base URL
//   - AGENTCORE_SESSION_BACKEND: memory | sqlite | s3
//   - AGENTCORE_KEY_NAME / AGENTCORE_KEY_SECRET: seeds one key pool entry
//   - AGENTCORE_LOG_LEVEL, AGENTCORE_METRICS_ADDR
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"

	configPath string
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached,
// separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "agentcore",
		Short: "agentcore - workflow engine for browser-automation agents",
		Long: `agentcore runs planner-generated or hand-authored workflows: a DAG of
steps against a typed tool registry, with per-step retry, dependency-respecting
parallelism, variable substitution, wait-conditions and rollback.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "agentcore.yaml", "path to the config file")

	rootCmd.AddCommand(
		buildRunCmd(),
		buildTemplatesCmd(),
		buildVersionCmd(),
	)
	return rootCmd
}

func resolveConfigPath() string {
	if envPath := os.Getenv("AGENTCORE_CONFIG"); envPath != "" {
		return envPath
	}
	return configPath
}

// Package main provides flowctl, a CLI for running and resuming graphs
// against the orchestrator engine.
//
// # Basic Usage
//
// Run the bundled demo graph against a ticket description:
//
//	flowctl run --input "customer wants a refund"
//
// A graph that reaches a human-in-the-loop node prints a resumption token;
// resume it with the chosen option:
//
//	flowctl resume --token <token> --value "escalate"
//
// # Environment Variables
//
//   - FLOWCTL_CONFIG: Path to configuration file, used when --config is not
//     given (when neither is set, built-in defaults apply and no file is read)
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/flowctl/orchestrator/internal/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
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

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "flowctl",
		Short: "flowctl - run and resume orchestrator graphs",
		Long: `flowctl drives the graph engine from the command line: start a run,
resume a run suspended on a human-in-the-loop node, and validate a
configuration file.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	rootCmd.AddCommand(
		buildRunCmd(),
		buildResumeCmd(),
		buildValidateCmd(),
	)
	return rootCmd
}

func resolveConfigPath(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv("FLOWCTL_CONFIG"); env != "" {
		return env
	}
	return ""
}

// loadConfig loads path if non-empty, otherwise returns defaults. A demo
// CLI run shouldn't require a config file to exist.
func loadConfig(path string) (*config.Config, error) {
	path = resolveConfigPath(path)
	if path == "" {
		cfg := &config.Config{}
		cfg.Store.Backend = "memory"
		cfg.Observability.Logging.Level = "info"
		cfg.Observability.Logging.Format = "json"
		return cfg, nil
	}
	return config.Load(path)
}

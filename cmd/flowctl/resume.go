package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flowctl/orchestrator/graph"
	"github.com/flowctl/orchestrator/internal/observability"
	"github.com/flowctl/orchestrator/tool"
)

func buildResumeCmd() *cobra.Command {
	var (
		configPath string
		graphPath  string
		token      string
		value      string
		cancelled  bool
	)
	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume a run suspended on a human-in-the-loop node",
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				return fmt.Errorf("--token is required")
			}
			cfg, err := loadConfig(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := observability.NewLogger(observability.LogConfig{
				Level:  cfg.Observability.Logging.Level,
				Format: cfg.Observability.Logging.Format,
			})
			metrics := observability.NewMetrics()

			cpStore, err := buildCheckpointStore(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("build checkpoint store: %w", err)
			}

			runner := graph.NewRunner()
			runner.Checkpoint = cpStore
			runner.Events = newMetricsSink(metrics)
			g, err := buildTriageGraph(logger, graphPath)
			if err != nil {
				return fmt.Errorf("build graph: %w", err)
			}

			resp := graph.ResumeResponse{Status: tool.StatusSuccess, Value: value}
			if cancelled {
				resp = graph.ResumeResponse{Status: tool.StatusCancelled}
			}

			res := runner.Resume(cmd.Context(), g, token, resp)
			if res.IsFailure() {
				return fmt.Errorf("resume failed: %w", res.Err())
			}

			report := res.Unwrap()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s: status=%s\n", report.RunID, report.Status)
			if report.Status == graph.StatusSuccess {
				fmt.Fprintf(out, "result: %v\n", report.Result)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML/JSON5 configuration file")
	cmd.Flags().StringVar(&graphPath, "graph", "", "Path to a YAML/JSON graph definition (defaults to the bundled ticket-triage graph)")
	cmd.Flags().StringVar(&token, "token", "", "Resumption token printed by a waiting run")
	cmd.Flags().StringVar(&value, "value", "", "The human's chosen option")
	cmd.Flags().BoolVar(&cancelled, "cancelled", false, "Report the human request as cancelled instead of completed")
	return cmd
}

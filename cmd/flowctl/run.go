package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flowctl/orchestrator/comm"
	"github.com/flowctl/orchestrator/graph"
	"github.com/flowctl/orchestrator/internal/observability"
)

func buildRunCmd() *cobra.Command {
	var (
		configPath string
		graphPath  string
		input      string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the ticket-triage graph against an input",
		RunE: func(cmd *cobra.Command, args []string) error {
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

			ticket := comm.New(input, "cli", comm.RoleUser)
			res := runner.Run(cmd.Context(), g, map[string]any{"ticket": ticket})
			if res.IsFailure() {
				return fmt.Errorf("run failed: %w", res.Err())
			}

			report := res.Unwrap()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s: status=%s\n", report.RunID, report.Status)
			switch report.Status {
			case graph.StatusWaiting:
				fmt.Fprintf(out, "waiting on a human decision, resume with:\n  flowctl resume --token %s --value <choice>\n", report.ResumptionToken)
			case graph.StatusSuccess:
				fmt.Fprintf(out, "result: %v\n", report.Result)
			case graph.StatusFailed:
				fmt.Fprintf(out, "error: %v\n", report.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML/JSON5 configuration file")
	cmd.Flags().StringVar(&graphPath, "graph", "", "Path to a YAML/JSON graph definition (defaults to the bundled ticket-triage graph)")
	cmd.Flags().StringVar(&input, "input", "customer wants a refund on order 1234", "Ticket text to classify")
	return cmd
}

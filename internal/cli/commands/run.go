package commands

import (
	"github.com/spf13/cobra"
)

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run preparation and analysis as one recorded run",
		Long: `Execute the full pipeline: build the analytic cohort from the raw
extracts, then estimate the transition effect, sharing the in-memory cohort
between the two halves. Equivalent to prepare followed by analyze, recorded
as a single run.`,
		Example: `  # Full pipeline, in memory
  empdep run

  # Full pipeline, persisting the analytic table, weights, and summaries
  empdep run --persist

  # Machine-readable tables
  empdep run -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd)
		},
	}
}

func runRun(cmd *cobra.Command) error {
	cmdCtx := NewCommandContextWithoutEngine(cmd)
	if err := cmdCtx.Cfg.ValidateExtracts(); err != nil {
		return err
	}

	eng, err := newEngine(cmdCtx.Cfg, cmdCtx.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	res, err := eng.Run(cmd.Context())
	if err != nil {
		return err
	}
	return printRunResult(cmd, cmdCtx.Cfg, res)
}

package commands

import (
	"github.com/spf13/cobra"
)

// AnalyzeOptions holds options for the analyze command.
type AnalyzeOptions struct {
	ReuseWeights bool
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand() *cobra.Command {
	opts := &AnalyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Estimate the transition effect on the final-wave outcome",
		Long: `Load the analytic cohort, print the descriptive tables, fit the
unadjusted outcome comparison, construct the stabilized treatment and
censoring weights, check covariate balance, and fit the weighted model.

With persist enabled the cohort is read from the analytic table written by a
prior prepare run and the summary tables are written as CSVs; without it the
cohort is rebuilt in memory from the raw extracts.`,
		Example: `  # Analyze, rebuilding the cohort in memory
  empdep analyze

  # Analyze the persisted analytic table and write summary CSVs
  empdep analyze --persist

  # Reuse a previously persisted weight table instead of refitting
  empdep analyze --persist --reuse-weights`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAnalyze(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.ReuseWeights, "reuse-weights", false, "Load the persisted weight table instead of refitting the propensity models")

	return cmd
}

func runAnalyze(cmd *cobra.Command, opts *AnalyzeOptions) error {
	cmdCtx := NewCommandContextWithoutEngine(cmd)
	cfg := cmdCtx.Cfg
	if cmd.Flags().Changed("reuse-weights") {
		cfg.ReuseWeights = opts.ReuseWeights
	}
	if !cfg.Persist {
		if err := cfg.ValidateExtracts(); err != nil {
			return err
		}
	}

	eng, err := newEngine(cfg, cmdCtx.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	res, err := eng.Analyze(cmd.Context())
	if err != nil {
		return err
	}
	return printRunResult(cmd, cfg, res)
}

package commands

import (
	"github.com/spf13/cobra"
)

// NewTablesCommand creates the tables command.
func NewTablesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "Print cohort descriptive tables",
		Long: `Compute and print the descriptive summaries for the analytic cohort
without fitting models or recording a run. With persistence enabled the
cohort is read from the materialized analytic table; otherwise it is
rebuilt from the raw extracts.`,
		Example: `  # Print descriptives to the terminal
  empdep tables

  # Descriptives as markdown
  empdep tables -o markdown`,
		Args: cobra.NoArgs,
		RunE: runTables,
	}
}

func runTables(cmd *cobra.Command, args []string) error {
	cmdCtx := NewCommandContextWithoutEngine(cmd)
	cfg := cmdCtx.Cfg

	if !cfg.Persist {
		if err := cfg.ValidateExtracts(); err != nil {
			return err
		}
	}

	eng, err := newEngine(cfg, cmdCtx.Logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	tables, err := eng.Tables(cmd.Context())
	if err != nil {
		return err
	}
	return renderTables(cmd, cfg.OutputFormat, tables)
}

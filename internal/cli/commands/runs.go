package commands

import (
	"time"

	"github.com/beacon-epi/empdep/internal/report"
	"github.com/beacon-epi/empdep/internal/state"
	"github.com/spf13/cobra"
)

// RunsOptions holds options for the runs command.
type RunsOptions struct {
	Limit int
}

// NewRunsCommand creates the runs command.
func NewRunsCommand() *cobra.Command {
	opts := &RunsOptions{}

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "Show recorded pipeline runs",
		Long: `List the pipeline runs recorded in the state database, most recent
first. With a run ID, show that run's stages and exclusion counts.`,
		Example: `  # List recent runs
  empdep runs

  # Show stage detail for one run
  empdep runs 4cb17a6e-...

  # Run history as JSON
  empdep runs -o json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(cmd, args, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "Maximum number of runs to list")

	return cmd
}

func runRuns(cmd *cobra.Command, args []string, opts *RunsOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	store := cmdCtx.Engine.Store()
	if len(args) == 1 {
		return showRunDetail(cmd, cmdCtx, store, args[0])
	}

	runs, err := store.ListRuns(opts.Limit)
	if err != nil {
		return err
	}
	return renderTables(cmd, cmdCtx.Cfg.OutputFormat, []report.Table{runsTable(runs)})
}

func showRunDetail(cmd *cobra.Command, cmdCtx *CommandContext, store *state.Store, runID string) error {
	run, err := store.GetRun(runID)
	if err != nil {
		return err
	}
	stages, err := store.ListStageRuns(runID)
	if err != nil {
		return err
	}
	exclusions, err := store.ListExclusions(runID)
	if err != nil {
		return err
	}

	tables := []report.Table{
		runsTable([]*state.Run{run}),
		stagesTable(stages),
	}
	if len(exclusions) > 0 {
		tables = append(tables, report.Exclusions(exclusions))
	}
	return renderTables(cmd, cmdCtx.Cfg.OutputFormat, tables)
}

func runsTable(runs []*state.Run) report.Table {
	t := report.Table{
		Name:    "runs",
		Title:   "Pipeline runs",
		Columns: []string{"run_id", "kind", "status", "started_at", "completed_at", "error"},
	}
	for _, r := range runs {
		t.Rows = append(t.Rows, []string{
			r.ID,
			r.Kind,
			string(r.Status),
			formatRunTime(&r.StartedAt),
			formatRunTime(r.CompletedAt),
			r.Error,
		})
	}
	return t
}

func stagesTable(stages []*state.StageRun) report.Table {
	t := report.Table{
		Name:    "stages",
		Title:   "Stages",
		Columns: []string{"stage", "status", "rows_in", "rows_out", "error"},
	}
	for _, s := range stages {
		t.Rows = append(t.Rows, []string{
			s.Stage,
			string(s.Status),
			report.Count(s.RowsIn),
			report.Count(s.RowsOut),
			s.Error,
		})
	}
	return t
}

func formatRunTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

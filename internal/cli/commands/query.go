package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/beacon-epi/empdep/internal/adapter"
	"github.com/beacon-epi/empdep/internal/cli/config"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// openTarget connects to the materialized analytic store. File-backed stores
// are opened read-only so an ad-hoc query can never corrupt a prepared table.
func openTarget(ctx context.Context, cfg *config.Config, logger *slog.Logger) (adapter.Adapter, error) {
	tc := targetAdapterConfig(cfg)
	if tc == nil {
		return nil, fmt.Errorf("no analytic store configured\nHint: Add a target section to empdep.yaml and run 'empdep prepare' with persist enabled")
	}

	if tc.Type == "duckdb" && tc.Path != "" && tc.Path != ":memory:" {
		if _, err := os.Stat(tc.Path); os.IsNotExist(err) {
			return nil, fmt.Errorf("analytic store not found at %s\nHint: Run 'empdep prepare' with persist enabled first", tc.Path)
		}
		tc.Path += "?access_mode=read_only"
	}

	ad, err := adapter.NewAdapter(*tc, logger)
	if err != nil {
		return nil, err
	}
	if err := ad.Connect(ctx, *tc); err != nil {
		return nil, fmt.Errorf("failed to connect to analytic store: %w", err)
	}
	return ad, nil
}

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Format string
	Input  string
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query [SQL]",
		Short: "Query the materialized analytic store",
		Long: `Query the materialized analytic store directly.

Execute SQL against the analytic table written by 'empdep prepare' with
persistence enabled. The store is opened read-only. Supports multiple
output formats for scripting and integration.

When invoked without arguments, enters interactive REPL mode.`,
		Example: `  # Execute SQL directly
  empdep query "SELECT transition, count(*) FROM analytic GROUP BY transition"

  # List available tables
  empdep query tables

  # Show schema for a table
  empdep query schema analytic

  # Output as JSON
  empdep query "SELECT * FROM analytic LIMIT 5" --format json

  # Interactive mode
  empdep query`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, opts)
		},
	}

	// Flags
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "table", "Output format: table, json, csv, md")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read SQL from file")

	// Subcommands
	cmd.AddCommand(newQueryTablesCommand(opts))
	cmd.AddCommand(newQuerySchemaCommand(opts))

	return cmd
}

func runQuery(cmd *cobra.Command, args []string, opts *QueryOptions) error {
	cmdCtx := NewCommandContextWithoutEngine(cmd)

	// Determine SQL source
	var sqlQuery string

	switch {
	case len(args) > 0:
		sqlQuery = strings.Join(args, " ")
	case opts.Input != "":
		content, err := os.ReadFile(opts.Input)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		sqlQuery = string(content)
	case !isTerminal(os.Stdin):
		// Read from stdin (piped input)
		content, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		sqlQuery = string(content)
	default:
		// No input, TTY detected - enter REPL mode
		return runQueryREPL(cmd, cmdCtx, opts)
	}

	// Execute the query
	return executeAndRender(cmd.Context(), cmd, cmdCtx, sqlQuery, opts.Format)
}

func executeAndRender(ctx context.Context, cmd *cobra.Command, cmdCtx *CommandContext, sqlQuery, format string) error {
	ad, err := openTarget(ctx, cmdCtx.Cfg, cmdCtx.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = ad.Close() }()

	rows, err := ad.Query(ctx, sqlQuery)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return renderResults(cmd.OutOrStdout(), rows.Rows, format)
}

// newQueryTablesCommand creates the tables subcommand.
func newQueryTablesCommand(opts *QueryOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List tables in the analytic store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContextWithoutEngine(cmd)
			ad, err := openTarget(cmd.Context(), cmdCtx.Cfg, cmdCtx.Logger)
			if err != nil {
				return err
			}
			defer func() { _ = ad.Close() }()
			return listTablesFromStore(cmd.Context(), cmd.OutOrStdout(), ad, opts.Format)
		},
	}
}

// newQuerySchemaCommand creates the schema subcommand.
func newQuerySchemaCommand(opts *QueryOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema <table>",
		Short: "Show schema for a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContextWithoutEngine(cmd)
			ad, err := openTarget(cmd.Context(), cmdCtx.Cfg, cmdCtx.Logger)
			if err != nil {
				return err
			}
			defer func() { _ = ad.Close() }()
			return showSchemaFromStore(cmd.Context(), cmd.OutOrStdout(), ad, args[0], opts.Format)
		},
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/beacon-epi/empdep/internal/ui"
	"github.com/spf13/cobra"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Port int
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve run history and reports over HTTP",
		Long: `Start a local web server showing the recorded pipeline runs, their
stage-by-stage accounting, and any report tables persisted to the output
directory. The server is read-only.`,
		Example: `  # Serve on the configured port
  empdep serve

  # Serve on a specific port
  empdep serve --port 9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Port, "port", "p", 0, "Port to listen on (default from config)")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	port := opts.Port
	if port == 0 {
		port = cmdCtx.Cfg.ServePort()
	}

	server := ui.NewServer(ui.Config{
		Store:     cmdCtx.Engine.Store(),
		OutputDir: cmdCtx.Cfg.OutputDir,
		Port:      port,
		Logger:    cmdCtx.Logger,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Serving reports on http://localhost:%d\n", port)
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl+C to stop")

	return server.Serve(ctx)
}

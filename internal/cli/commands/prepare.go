package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/beacon-epi/empdep/internal/cli/config"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

// watchDebounce is how long the watcher waits after the last extract change
// before re-running preparation.
const watchDebounce = 500 * time.Millisecond

// PrepareOptions holds options for the prepare command.
type PrepareOptions struct {
	Watch bool
}

// NewPrepareCommand creates the prepare command.
func NewPrepareCommand() *cobra.Command {
	opts := &PrepareOptions{}

	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Build the wide analytic cohort from the raw extracts",
		Long: `Read the three annual wave extracts and the lifetime baseline extract,
derive the respondent-year variables, reshape to one row per participant
observed in at least two waves, and apply the eligibility criteria.

With persist enabled the analytic table is written to the output directory
and, when a target is configured, materialized into the analytic store.
Without it the cohort is computed and summarized in memory only.`,
		Example: `  # Build the cohort and print the flow summary
  empdep prepare

  # Persist the analytic table under the output directory
  empdep prepare --persist

  # Re-run preparation whenever an extract changes
  empdep prepare --persist --watch`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPrepare(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "Re-run preparation when an extract file changes")

	return cmd
}

func runPrepare(cmd *cobra.Command, opts *PrepareOptions) error {
	cmdCtx := NewCommandContextWithoutEngine(cmd)

	if err := prepareOnce(cmd, cmdCtx.Cfg, cmdCtx.Logger); err != nil {
		if !opts.Watch {
			return err
		}
		// In watch mode a failed first run is not fatal; the next file
		// change gets another chance.
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	}

	if opts.Watch {
		return watchExtracts(cmd, cmdCtx.Cfg, cmdCtx.Logger)
	}
	return nil
}

// prepareOnce runs a single preparation pass with a fresh engine.
func prepareOnce(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) error {
	if err := cfg.ValidateExtracts(); err != nil {
		return err
	}

	eng, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	res, err := eng.Prepare(cmd.Context())
	if err != nil {
		return err
	}
	return printRunResult(cmd, cfg, res)
}

// watchExtracts blocks watching the extract files, re-running preparation on
// change. Events are debounced so an editor's write-then-rename counts once.
func watchExtracts(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Watch the parent directories; the extracts themselves may be
	// replaced wholesale, which would drop a per-file watch.
	paths := []string{
		cfg.Extracts.Wave2021,
		cfg.Extracts.Wave2022,
		cfg.Extracts.Wave2023,
		cfg.Extracts.Baseline,
	}
	watched := make(map[string]struct{}, len(paths))
	dirs := make(map[string]struct{})
	for _, p := range paths {
		watched[filepath.Clean(p)] = struct{}{}
		dirs[filepath.Dir(p)] = struct{}{}
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintln(out, "Watching extracts for changes")
	_, _ = fmt.Fprintln(out, "Press Ctrl+C to stop")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runs := make(chan struct{}, 1)
	trigger := func() {
		select {
		case runs <- struct{}{}:
		default:
		}
	}

	var debounce *time.Timer
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if _, ok := watched[filepath.Clean(event.Name)]; !ok {
				continue
			}
			logger.Debug("extract changed", "file", event.Name, "op", event.Op.String())
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, trigger)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher error", "error", err)

		case <-runs:
			_, _ = fmt.Fprintln(out, "Change detected, re-running preparation")
			if err := prepareOnce(cmd, cfg, logger); err != nil {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			}
		}
	}
}

package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/beacon-epi/empdep/internal/adapter"
	"github.com/beacon-epi/empdep/internal/cli/config"
	"github.com/beacon-epi/empdep/internal/pipeline"
	"github.com/beacon-epi/empdep/internal/report"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg    *config.Config
	Logger *slog.Logger
	Engine *pipeline.Engine
}

// NewCommandContext creates a CommandContext with a pipeline engine.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())

	eng, err := newEngine(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = eng.Close()
	}

	return &CommandContext{Cfg: cfg, Logger: logger, Engine: eng}, cleanup, nil
}

// NewCommandContextWithoutEngine creates a CommandContext without an engine.
// Useful for commands that construct the engine themselves or not at all.
func NewCommandContextWithoutEngine(cmd *cobra.Command) *CommandContext {
	return &CommandContext{Cfg: getConfig(), Logger: config.GetLogger(cmd.Context())}
}

// getConfig returns the configuration loaded by the root command. When a
// command executes standalone (tests), the loader runs with defaults.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	cfg, err := config.LoadConfig("", nil)
	if err != nil {
		return &config.Config{
			Extracts: config.ExtractsConfig{
				Wave2021: config.DefaultWave2021,
				Wave2022: config.DefaultWave2022,
				Wave2023: config.DefaultWave2023,
				Baseline: config.DefaultBaseline,
			},
			OutputDir:          config.DefaultOutputDir,
			StatePath:          config.DefaultStateFile,
			TruncationQuantile: config.DefaultTruncationQuantile,
			OutputFormat:       config.DefaultOutput,
		}
	}
	return cfg
}

// targetAdapterConfig builds the adapter configuration from the configured
// target, or nil when no target is configured.
func targetAdapterConfig(cfg *config.Config) *adapter.Config {
	if cfg.Target == nil {
		return nil
	}
	return &adapter.Config{
		Type:     cfg.Target.Type,
		Path:     cfg.Target.Path,
		Host:     cfg.Target.Host,
		Port:     cfg.Target.Port,
		Database: cfg.Target.Database,
		Username: cfg.Target.User,
		Password: cfg.Target.Password,
		Options:  cfg.Target.Options,
	}
}

func newEngine(cfg *config.Config, logger *slog.Logger) (*pipeline.Engine, error) {
	// Ensure state directory exists
	stateDir := filepath.Dir(cfg.StatePath)
	if stateDir != "." && stateDir != "" {
		if err := os.MkdirAll(stateDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	return pipeline.New(pipeline.Config{
		WavePaths:          cfg.WavePaths(),
		BaselinePath:       cfg.Extracts.Baseline,
		CodebookPath:       cfg.Codebook,
		OutputDir:          cfg.OutputDir,
		Persist:            cfg.Persist,
		ReuseWeights:       cfg.ReuseWeights,
		TruncationQuantile: cfg.TruncationQuantile,
		StatePath:          cfg.StatePath,
		Adapter:            targetAdapterConfig(cfg),
		AnalyticTable:      cfg.TargetTable(),
		Logger:             logger,
	})
}

// renderTables writes each report table to the command's stdout in the
// configured output format, blank-line separated.
func renderTables(cmd *cobra.Command, format string, tables []report.Table) error {
	w := cmd.OutOrStdout()
	for i, t := range tables {
		if i > 0 {
			_, _ = fmt.Fprintln(w)
		}
		if err := report.Render(w, t, format); err != nil {
			return err
		}
	}
	return nil
}

// printRunResult renders the run's report tables, the files it wrote, and
// the closing status line.
func printRunResult(cmd *cobra.Command, cfg *config.Config, res *pipeline.Result) error {
	if err := renderTables(cmd, cfg.OutputFormat, res.Tables); err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if len(res.Saved) > 0 {
		_, _ = fmt.Fprintln(w)
		for _, path := range res.Saved {
			_, _ = fmt.Fprintf(w, "Wrote %s\n", path)
		}
	}
	if res.Run != nil {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintf(w, "Run %s: %s\n", res.Run.ID, res.Run.Status)
		if res.Run.CompletedAt != nil {
			elapsed := res.Run.CompletedAt.Sub(res.Run.StartedAt)
			_, _ = fmt.Fprintf(w, "Completed in %s\n", elapsed.Round(time.Millisecond))
		}
	}
	return nil
}

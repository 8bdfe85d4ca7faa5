// Package pipeline orchestrates the analysis as a sequence of recorded
// stages: reading the raw extracts, building the wide cohort, constructing
// the stabilized weights, and fitting the outcome models. Every run and
// stage is tracked in the state store so reruns are auditable.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/beacon-epi/empdep/internal/adapter"
	"github.com/beacon-epi/empdep/internal/state"
	"github.com/beacon-epi/empdep/internal/weights"
)

// Run kinds recorded in the state store.
const (
	RunKindPrepare = "prepare"
	RunKindAnalyze = "analyze"
	RunKindFull    = "run"
)

// DefaultAnalyticTable is the materialized table name when none is configured.
const DefaultAnalyticTable = "analytic"

// Engine runs the prepare and analyze pipelines.
type Engine struct {
	// Database adapter for materialization (lazy initialized)
	db          adapter.Adapter
	dbConnected bool
	dbMu        sync.Mutex

	logger *slog.Logger
	store  *state.Store
	cfg    Config
}

// Config holds pipeline configuration.
type Config struct {
	// WavePaths maps each survey year to its raw extract file.
	WavePaths map[int]string
	// BaselinePath is the lifetime baseline extract.
	BaselinePath string
	// CodebookPath optionally overlays header aliases onto the built-in
	// codebook.
	CodebookPath string

	// OutputDir receives the analytic table, weight table, and report CSVs
	// when Persist is set.
	OutputDir string
	// Persist writes outputs to OutputDir; without it the run computes and
	// reports in memory only.
	Persist bool
	// ReuseWeights loads the previously persisted weight table instead of
	// refitting the propensity models. Fails when no table has been
	// persisted.
	ReuseWeights bool

	// TruncationQuantile caps each weight component, in (0, 1].
	// Zero selects the default.
	TruncationQuantile float64

	// StatePath is the path to the SQLite run-tracking database.
	StatePath string

	// Adapter configures the optional materialization target. Nil means
	// prepare stops at the persisted CSV.
	Adapter *adapter.Config
	// AnalyticTable is the materialized table name.
	AnalyticTable string

	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// New creates a pipeline engine with a lazy database connection. The target
// adapter is only connected when a run reaches the materialize stage.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if cfg.TruncationQuantile == 0 {
		cfg.TruncationQuantile = weights.DefaultTruncationQuantile
	}
	if cfg.AnalyticTable == "" {
		cfg.AnalyticTable = DefaultAnalyticTable
	}

	logger.Debug("initializing pipeline", "state_path", cfg.StatePath, "persist", cfg.Persist)

	store := state.NewStore()
	if err := store.Open(cfg.StatePath); err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate state store: %w", err)
	}

	return &Engine{
		db:     nil, // Lazy
		logger: logger,
		store:  store,
		cfg:    cfg,
	}, nil
}

// ensureDBConnected lazily connects to the materialization target.
func (e *Engine) ensureDBConnected(ctx context.Context) error {
	e.dbMu.Lock()
	defer e.dbMu.Unlock()

	if e.dbConnected {
		return nil
	}
	if e.cfg.Adapter == nil {
		return fmt.Errorf("no materialization target configured")
	}

	e.logger.Debug("connecting to target", "adapter_type", e.cfg.Adapter.Type)

	db, err := adapter.NewAdapter(*e.cfg.Adapter, e.logger)
	if err != nil {
		return fmt.Errorf("failed to create database adapter: %w", err)
	}
	if err := db.Connect(ctx, *e.cfg.Adapter); err != nil {
		return fmt.Errorf("failed to connect to target: %w", err)
	}

	e.db = db
	e.dbConnected = true

	e.logger.Debug("target connected", "dialect", db.DialectName())
	return nil
}

// Store returns the state store for run inspection.
func (e *Engine) Store() *state.Store {
	return e.store
}

// Close releases all resources.
func (e *Engine) Close() error {
	e.logger.Debug("closing pipeline")

	var errs []error
	if e.db != nil {
		if err := e.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing pipeline: %v", errs)
	}
	return nil
}

// analyticPath is where the persisted wide analytic table lives.
func (e *Engine) analyticPath() string {
	return filepath.Join(e.cfg.OutputDir, "analytic.csv")
}

// weightsPath is where the persisted weight table lives.
func (e *Engine) weightsPath() string {
	return filepath.Join(e.cfg.OutputDir, "weights.csv")
}

package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/beacon-epi/empdep/internal/analysis"
	"github.com/beacon-epi/empdep/internal/cohort"
	"github.com/beacon-epi/empdep/internal/report"
	"github.com/beacon-epi/empdep/internal/weights"
)

// Analyze loads the analytic cohort, constructs the stabilized weights, and
// fits the unadjusted and weighted outcome models.
//
// With persistence enabled the cohort is read back from the analytic table
// written by a prior prepare run; otherwise the cohort is rebuilt in memory
// from the raw extracts.
func (e *Engine) Analyze(ctx context.Context) (*Result, error) {
	return e.execute(ctx, RunKindAnalyze, e.analyzeStages())
}

// Run executes prepare and analyze as a single recorded run, sharing the
// in-memory cohort between the two halves.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	stages := append(e.prepareStages(), e.analysisStages()...)
	return e.execute(ctx, RunKindFull, stages)
}

func (e *Engine) analyzeStages() []stage {
	if e.cfg.Persist {
		return append([]stage{{name: StageLoadAnalytic, fn: e.loadAnalytic}}, e.analysisStages()...)
	}
	return append(e.cohortStages(), e.analysisStages()...)
}

// analysisStages are the estimation steps shared by Analyze and Run.
func (e *Engine) analysisStages() []stage {
	stages := []stage{
		{name: StageDescriptives, fn: e.describeCohort},
		{name: StageUnadjusted, fn: e.fitUnadjusted},
		{name: StageWeights, fn: e.buildWeights},
		{name: StageBalance, fn: e.checkBalance},
		{name: StageWeighted, fn: e.fitWeighted},
	}
	if e.cfg.Persist {
		stages = append(stages, stage{name: StagePersist, fn: e.persistOutputs})
	}
	return stages
}

// loadAnalytic reads the persisted analytic table back into a cohort.
func (e *Engine) loadAnalytic(ctx context.Context, st *runState) (stageResult, error) {
	var res stageResult

	path := e.analyticPath()
	f, err := os.Open(path) //nolint:gosec // G304: path comes from user config
	if err != nil {
		if os.IsNotExist(err) {
			return res, fmt.Errorf("analytic table not found at %s\nHint: Run 'empdep prepare' first, or disable persist to rebuild in memory", path)
		}
		return res, fmt.Errorf("failed to open analytic table: %w", err)
	}
	defer func() { _ = f.Close() }()

	c, err := cohort.ReadAnalytic(f)
	if err != nil {
		return res, err
	}
	st.cohort = c
	res.rowsIn = c.Len()
	res.rowsOut = c.Len()
	e.logger.Debug("analytic table loaded", "path", path, "participants", c.Len())
	return res, nil
}

// describeCohort computes the per-wave descriptive statistics.
func (e *Engine) describeCohort(ctx context.Context, st *runState) (stageResult, error) {
	rows := analysis.Descriptives(st.cohort)
	st.descriptives = rows
	st.tables = append(st.tables, report.Descriptives(rows))
	return stageResult{rowsIn: st.cohort.Len(), rowsOut: len(rows)}, nil
}

// fitUnadjusted fits the unweighted final-wave outcome comparison.
func (e *Engine) fitUnadjusted(ctx context.Context, st *runState) (stageResult, error) {
	res := stageResult{rowsIn: eligibleCount(st.cohort)}

	m, err := analysis.Unadjusted(st.cohort)
	if err != nil {
		return res, err
	}
	st.unadjusted = m
	res.rowsOut = m.N
	res.exclusions = append(res.exclusions,
		exclusion{reason: "censored at final wave", count: res.rowsIn - m.N},
	)

	st.tables = append(st.tables, report.Model(m))
	return res, nil
}

// buildWeights fits the propensity models and assembles the weight table,
// or reloads a persisted table when reuse is requested.
func (e *Engine) buildWeights(ctx context.Context, st *runState) (stageResult, error) {
	res := stageResult{rowsIn: st.cohort.Len()}

	if e.cfg.ReuseWeights {
		w, err := e.loadWeights()
		if err != nil {
			return res, err
		}
		st.weights = w
		res.rowsOut = w.Diagnostics.Eligible
		e.logger.Info("reusing persisted weight table", "path", e.weightsPath(), "rows", len(w.Rows))
		st.tables = append(st.tables, report.WeightSummary(w.Diagnostics))
		return res, nil
	}

	w, err := weights.Build(st.cohort, weights.Config{TruncationQuantile: e.cfg.TruncationQuantile})
	if err != nil {
		return res, err
	}
	st.weights = w
	res.rowsOut = w.Diagnostics.Eligible

	st.tables = append(st.tables, report.WeightModels(w.Diagnostics), report.WeightSummary(w.Diagnostics))
	return res, nil
}

// loadWeights reads the persisted weight table. A missing table is an error
// rather than a silent refit, so a reused analysis cannot mix weight
// vintages.
func (e *Engine) loadWeights() (*weights.Result, error) {
	path := e.weightsPath()
	f, err := os.Open(path) //nolint:gosec // G304: path comes from user config
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("weight table not found at %s\nHint: Run 'empdep analyze --persist' once to fit and persist weights, or drop --reuse-weights to refit", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open weight table: %w", err)
	}
	defer func() { _ = f.Close() }()

	return weights.ReadTable(f)
}

// checkBalance computes the weighted covariate balance diagnostics.
func (e *Engine) checkBalance(ctx context.Context, st *runState) (stageResult, error) {
	res := stageResult{rowsIn: st.weights.Diagnostics.Eligible}

	rows, err := weights.Balance(st.cohort, st.weights)
	if err != nil {
		return res, err
	}
	st.balance = rows
	res.rowsOut = len(rows)

	st.tables = append(st.tables, report.Balance(rows))
	return res, nil
}

// fitWeighted fits the weighted, participant-clustered outcome model.
func (e *Engine) fitWeighted(ctx context.Context, st *runState) (stageResult, error) {
	res := stageResult{rowsIn: st.weights.Diagnostics.Eligible}

	m, err := analysis.Weighted(st.cohort, st.weights)
	if err != nil {
		return res, err
	}
	st.weighted = m
	res.rowsOut = m.N
	res.exclusions = append(res.exclusions,
		exclusion{reason: "censored at final wave", count: res.rowsIn - m.N},
	)

	st.tables = append(st.tables, report.Model(m))
	return res, nil
}

// persistOutputs writes the report tables and the weight table under the
// output directory.
func (e *Engine) persistOutputs(ctx context.Context, st *runState) (stageResult, error) {
	var res stageResult

	paths, err := report.Save(e.cfg.OutputDir, st.tables)
	if err != nil {
		return res, err
	}
	st.saved = append(st.saved, paths...)

	wpath := e.weightsPath()
	f, err := os.Create(wpath) //nolint:gosec // G304: path comes from user config
	if err != nil {
		return res, fmt.Errorf("failed to create weight table: %w", err)
	}
	if err := weights.WriteTable(f, st.weights); err != nil {
		_ = f.Close()
		return res, err
	}
	if err := f.Close(); err != nil {
		return res, fmt.Errorf("failed to close weight table: %w", err)
	}
	st.saved = append(st.saved, wpath)

	res.rowsOut = len(paths) + 1
	e.logger.Debug("outputs persisted", "dir", e.cfg.OutputDir, "files", res.rowsOut)
	return res, nil
}

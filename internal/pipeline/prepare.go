package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/beacon-epi/empdep/internal/cohort"
	"github.com/beacon-epi/empdep/internal/report"
	"github.com/beacon-epi/empdep/internal/survey"
)

// Prepare reads the raw extracts, builds the eligible wide cohort, and
// persists or materializes the analytic table per configuration.
func (e *Engine) Prepare(ctx context.Context) (*Result, error) {
	return e.execute(ctx, RunKindPrepare, e.prepareStages())
}

// prepareStages assembles the prepare stage list. The persistence and
// materialization stages are only present when configuration enables them.
func (e *Engine) prepareStages() []stage {
	stages := e.cohortStages()
	if e.cfg.Persist {
		stages = append(stages, stage{name: StageWriteAnalytic, fn: e.writeAnalytic})
		if e.cfg.Adapter != nil {
			stages = append(stages, stage{name: StageMaterialize, fn: e.materialize})
		}
	} else if e.cfg.Adapter != nil {
		e.logger.Info("target configured but persist disabled, skipping materialization")
	}
	return stages
}

// cohortStages are the in-memory steps that turn raw extracts into the
// eligible cohort. Analyze reuses them when no analytic table is persisted.
func (e *Engine) cohortStages() []stage {
	return []stage{
		{name: StageLoadExtracts, fn: e.loadExtracts},
		{name: StageBuildCohort, fn: e.buildCohort},
		{name: StageEligibility, fn: e.applyEligibility},
	}
}

// loadExtracts parses the three wave extracts and the baseline extract
// through the codebook.
func (e *Engine) loadExtracts(ctx context.Context, st *runState) (stageResult, error) {
	var res stageResult

	cb, err := survey.LoadCodebook(e.cfg.CodebookPath)
	if err != nil {
		return res, err
	}
	st.codebook = cb

	st.waves = make(map[int][]survey.Response, len(survey.WaveYears))
	for _, year := range survey.WaveYears {
		path := e.cfg.WavePaths[year]
		if path == "" {
			return res, fmt.Errorf("no extract configured for wave %d", year)
		}

		responses, rd, err := survey.ReadWave(path, year, cb)
		if err != nil {
			return res, err
		}
		st.waves[year] = responses
		st.reads = append(st.reads, rd)
		res.rowsIn += rd.Rows
		res.rowsOut += rd.Kept
		res.exclusions = append(res.exclusions,
			exclusion{reason: fmt.Sprintf("wave %d: blank participant id", year), count: rd.BlankIDs},
			exclusion{reason: fmt.Sprintf("wave %d: duplicate participant id", year), count: rd.DuplicateIDs},
		)
		e.logger.Debug("wave extract read", "path", path, "year", year, "rows", rd.Rows, "kept", rd.Kept)
	}

	records, rd, err := survey.ReadBaseline(e.cfg.BaselinePath, cb)
	if err != nil {
		return res, err
	}
	st.baseline = records
	st.reads = append(st.reads, rd)
	res.rowsIn += rd.Rows
	res.rowsOut += rd.Kept
	res.exclusions = append(res.exclusions,
		exclusion{reason: "baseline: blank participant id", count: rd.BlankIDs},
		exclusion{reason: "baseline: duplicate participant id", count: rd.DuplicateIDs},
	)
	e.logger.Debug("baseline extract read", "path", e.cfg.BaselinePath, "rows", rd.Rows, "kept", rd.Kept)

	st.tables = append(st.tables, report.Extracts(st.reads))
	return res, nil
}

// buildCohort reshapes the wave responses into one wide row per participant
// observed in at least two waves, joined with the baseline extract.
func (e *Engine) buildCohort(ctx context.Context, st *runState) (stageResult, error) {
	var res stageResult

	c, build := cohort.Build(st.waves, st.baseline)
	st.cohort = c
	st.build = build

	for _, year := range survey.WaveYears {
		res.rowsIn += build.WaveRows[year]
	}
	res.rowsOut = build.Participants
	res.exclusions = append(res.exclusions,
		exclusion{reason: "observed in fewer than two waves", count: build.SingleWave},
	)

	if build.Participants == 0 {
		return res, errors.New("no participants observed in two or more waves")
	}
	return res, nil
}

// applyEligibility marks the analyzable participants and derives the
// employment transition and censoring indicators.
func (e *Engine) applyEligibility(ctx context.Context, st *runState) (stageResult, error) {
	var res stageResult

	elig := cohort.ApplyEligibility(st.cohort)
	st.elig = elig

	res.rowsIn = elig.Total
	res.rowsOut = elig.Eligible
	res.exclusions = append(res.exclusions,
		exclusion{reason: cohort.ReasonStudent, count: elig.ExcludedStudent},
		exclusion{reason: cohort.ReasonOutOfWorkforce, count: elig.ExcludedOutOfWorkforce},
		exclusion{reason: cohort.ReasonMissingEmployment, count: elig.ExcludedMissingEmployment},
	)

	st.tables = append(st.tables, report.CohortFlow(st.build, elig))

	if elig.Eligible == 0 {
		return res, errors.New("no eligible participants after exclusions")
	}
	return res, nil
}

// writeAnalytic persists the wide analytic table as CSV.
func (e *Engine) writeAnalytic(ctx context.Context, st *runState) (stageResult, error) {
	res := stageResult{rowsIn: st.cohort.Len(), rowsOut: st.cohort.Len()}

	path := e.analyticPath()
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return res, fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(path) //nolint:gosec // G304: path comes from user config
	if err != nil {
		return res, fmt.Errorf("failed to create analytic table: %w", err)
	}
	if err := cohort.WriteAnalytic(f, st.cohort); err != nil {
		_ = f.Close()
		return res, err
	}
	if err := f.Close(); err != nil {
		return res, fmt.Errorf("failed to close analytic table: %w", err)
	}

	st.saved = append(st.saved, path)
	e.logger.Debug("analytic table written", "path", path, "participants", st.cohort.Len())
	return res, nil
}

// materialize loads the persisted analytic CSV into the configured target.
func (e *Engine) materialize(ctx context.Context, st *runState) (stageResult, error) {
	res := stageResult{rowsIn: st.cohort.Len(), rowsOut: st.cohort.Len()}

	if err := e.ensureDBConnected(ctx); err != nil {
		return res, err
	}
	if err := e.db.LoadCSV(ctx, e.cfg.AnalyticTable, e.analyticPath()); err != nil {
		return res, fmt.Errorf("failed to materialize analytic table: %w", err)
	}

	e.logger.Debug("analytic table materialized", "table", e.cfg.AnalyticTable, "dialect", e.db.DialectName())
	return res, nil
}

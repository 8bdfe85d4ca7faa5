package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/beacon-epi/empdep/internal/analysis"
	"github.com/beacon-epi/empdep/internal/cohort"
	"github.com/beacon-epi/empdep/internal/report"
	"github.com/beacon-epi/empdep/internal/state"
	"github.com/beacon-epi/empdep/internal/survey"
	"github.com/beacon-epi/empdep/internal/weights"
)

// Stage names recorded in the state store.
const (
	StageLoadExtracts  = "load_extracts"
	StageBuildCohort   = "build_cohort"
	StageEligibility   = "eligibility"
	StageWriteAnalytic = "write_analytic"
	StageMaterialize   = "materialize"
	StageLoadAnalytic  = "load_analytic"
	StageDescriptives  = "descriptives"
	StageUnadjusted    = "unadjusted_model"
	StageWeights       = "build_weights"
	StageBalance       = "balance"
	StageWeighted      = "weighted_model"
	StagePersist       = "persist_reports"
)

// stage is one recorded pipeline step.
type stage struct {
	name string
	fn   func(ctx context.Context, st *runState) (stageResult, error)
}

// stageResult carries row accounting and exclusion counts out of a stage.
// Exclusions are recorded even on failure so partial runs stay auditable.
type stageResult struct {
	rowsIn     int
	rowsOut    int
	exclusions []exclusion
}

// exclusion is one reason-count pair recorded against a stage.
type exclusion struct {
	reason string
	count  int
}

// runState carries intermediate data between the stages of a single run.
type runState struct {
	codebook *survey.Codebook
	waves    map[int][]survey.Response
	baseline []survey.BaselineRecord
	reads    []*survey.ReadReport

	cohort *cohort.Cohort
	build  *cohort.BuildReport
	elig   *cohort.EligibilityReport

	weights      *weights.Result
	balance      []weights.BalanceRow
	descriptives []analysis.DescriptiveRow
	unadjusted   *analysis.Model
	weighted     *analysis.Model

	exclusions []state.Exclusion
	tables     []report.Table
	saved      []string
}

// Result summarizes a completed pipeline run for the caller.
type Result struct {
	// Run is the recorded run, refreshed after completion.
	Run *state.Run
	// Tables are the report tables the run produced, in build order.
	Tables []report.Table
	// Saved lists files written under the output directory.
	Saved []string
}

// execute runs the stages in order, recording each in the state store. The
// first stage failure marks the remaining stages skipped and fails the run.
func (e *Engine) execute(ctx context.Context, kind string, stages []stage) (*Result, error) {
	e.logger.Info("starting run", "kind", kind, "stages", len(stages))

	run, err := e.store.CreateRun(kind)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	e.logger.Debug("created run", "run_id", run.ID)

	stageRuns := make([]*state.StageRun, len(stages))
	for i, s := range stages {
		sr, err := e.store.CreateStageRun(run.ID, s.name, i)
		if err != nil {
			_ = e.store.CompleteRun(run.ID, state.RunStatusFailed, err.Error())
			return &Result{Run: run}, fmt.Errorf("failed to record stage %s: %w", s.name, err)
		}
		stageRuns[i] = sr
	}

	st := &runState{}
	var runErr error
	for i, s := range stages {
		_ = e.store.StartStageRun(stageRuns[i].ID)

		start := time.Now()
		res, err := s.fn(ctx, st)
		elapsed := time.Since(start).Milliseconds()

		for _, x := range res.exclusions {
			_ = e.store.RecordExclusion(run.ID, s.name, x.reason, x.count)
			st.exclusions = append(st.exclusions, state.Exclusion{
				RunID:  run.ID,
				Stage:  s.name,
				Reason: x.reason,
				Count:  x.count,
			})
		}

		if err != nil {
			e.logger.Debug("stage failed", "stage", s.name, "error", err)
			_ = e.store.FinishStageRun(stageRuns[i].ID, state.StageStatusFailed, res.rowsIn, res.rowsOut, err.Error())
			_ = e.store.SkipPendingStageRuns(run.ID)
			runErr = fmt.Errorf("stage %s: %w", s.name, err)
			break
		}

		e.logger.Debug("stage completed",
			"stage", s.name, "rows_in", res.rowsIn, "rows_out", res.rowsOut, "elapsed_ms", elapsed)
		_ = e.store.FinishStageRun(stageRuns[i].ID, state.StageStatusSuccess, res.rowsIn, res.rowsOut, "")
	}

	if runErr != nil {
		e.logger.Info("run failed", "run_id", run.ID, "error", runErr.Error())
		_ = e.store.CompleteRun(run.ID, state.RunStatusFailed, runErr.Error())
	} else {
		e.logger.Info("run completed", "run_id", run.ID)
		_ = e.store.CompleteRun(run.ID, state.RunStatusCompleted, "")
	}

	if len(st.exclusions) > 0 {
		st.tables = append(st.tables, report.Exclusions(st.exclusions))
	}

	run, _ = e.store.GetRun(run.ID)
	return &Result{Run: run, Tables: st.tables, Saved: st.saved}, runErr
}

// eligibleCount counts participants that passed the exclusion criteria.
func eligibleCount(c *cohort.Cohort) int {
	n := 0
	for _, p := range c.Participants {
		if p.Eligible {
			n++
		}
	}
	return n
}

package report

import (
	"fmt"
	"strings"

	"github.com/beacon-epi/empdep/internal/analysis"
	"github.com/beacon-epi/empdep/internal/cohort"
	"github.com/beacon-epi/empdep/internal/derive"
	"github.com/beacon-epi/empdep/internal/state"
	"github.com/beacon-epi/empdep/internal/stats"
	"github.com/beacon-epi/empdep/internal/survey"
	"github.com/beacon-epi/empdep/internal/weights"
)

// Extracts summarizes the per-file read reports from the harmonization step.
func Extracts(reports []*survey.ReadReport) Table {
	t := Table{
		Name:    "extracts",
		Title:   "Survey extracts",
		Columns: []string{"file", "rows", "kept", "blank ids", "duplicates", "parse failures", "unmapped columns", "missing fields"},
	}
	for _, r := range reports {
		t.Rows = append(t.Rows, []string{
			r.Path,
			Count(r.Rows),
			Count(r.Kept),
			Count(r.BlankIDs),
			Count(r.DuplicateIDs),
			Count(r.ParseFailures),
			strings.Join(r.UnmappedColumns, "; "),
			strings.Join(r.MissingFields, "; "),
		})
	}
	return t
}

// CohortFlow accounts for every record from the wave extracts down to the
// analyzed transition groups.
func CohortFlow(build *cohort.BuildReport, elig *cohort.EligibilityReport) Table {
	t := Table{
		Name:    "cohort_flow",
		Title:   "Cohort construction",
		Columns: []string{"step", "count"},
	}
	add := func(step string, n int) {
		t.Rows = append(t.Rows, []string{step, Count(n)})
	}

	for _, year := range survey.WaveYears {
		add(fmt.Sprintf("wave %d responses", year), build.WaveRows[year])
	}
	add("observed in fewer than two waves", build.SingleWave)
	add("wide-format participants", build.Participants)
	add("baseline records matched", build.BaselineMatched)
	add("baseline records unmatched", build.BaselineUnmatched)

	add("excluded: "+cohort.ReasonStudent, elig.ExcludedStudent)
	add("excluded: "+cohort.ReasonOutOfWorkforce, elig.ExcludedOutOfWorkforce)
	add("excluded: "+cohort.ReasonMissingEmployment, elig.ExcludedMissingEmployment)
	add("eligible", elig.Eligible)

	for _, code := range []int{
		derive.TransStableEmployed,
		derive.TransGainedEmployment,
		derive.TransLostEmployment,
		derive.TransStableUnemployed,
	} {
		add("transition: "+derive.TransitionLabels[code], elig.TransitionCounts[code])
	}
	add("censored at final wave", elig.Censored)
	return t
}

// Exclusions lays out the per-stage exclusion accounting recorded for a run.
// Zero counts are kept so a reader can tell "none excluded" from "not checked".
func Exclusions(rows []state.Exclusion) Table {
	t := Table{
		Name:    "exclusions",
		Title:   "Exclusions by stage",
		Columns: []string{"stage", "reason", "count"},
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{r.Stage, r.Reason, Count(r.Count)})
	}
	return t
}

// Descriptives lays the group summaries out one variable-group pair per row.
func Descriptives(rows []analysis.DescriptiveRow) Table {
	t := Table{
		Name:    "descriptives",
		Title:   "Descriptive summaries by transition group",
		Columns: []string{"variable", "group", "n", "observed", "missing", "mean", "sd", "min", "q1", "median", "q3", "max"},
	}
	for _, r := range rows {
		s := r.Summary
		t.Rows = append(t.Rows, []string{
			r.Variable,
			r.Group,
			Count(r.N),
			Count(s.N),
			Count(s.Miss),
			Num(s.Mean, 2),
			Num(s.SD, 2),
			Num(s.Min, 2),
			Num(s.Q1, 2),
			Num(s.Median, 2),
			Num(s.Q3, 2),
			Num(s.Max, 2),
		})
	}
	return t
}

// WeightModels lists the propensity fits behind the weights.
func WeightModels(diag weights.Diagnostics) Table {
	t := Table{
		Name:    "weight_models",
		Title:   "Propensity models",
		Columns: []string{"model", "n", "terms", "deviance", "iterations", "converged"},
	}
	for _, m := range diag.Models {
		converged := "yes"
		if !m.Converged {
			converged = "no"
		}
		t.Rows = append(t.Rows, []string{
			m.Name,
			Count(m.N),
			Count(m.Terms),
			Num(m.Deviance, 2),
			Count(m.Iterations),
			converged,
		})
	}
	if len(diag.DroppedCovariates) > 0 {
		t.Rows = append(t.Rows, []string{
			"dropped covariates: " + strings.Join(diag.DroppedCovariates, ", "),
			"", "", "", "", "",
		})
	}
	return t
}

// WeightSummary describes each weight component's distribution, with the
// truncation caps on the component rows they apply to.
func WeightSummary(diag weights.Diagnostics) Table {
	t := Table{
		Name:    "weight_summary",
		Title:   "Stabilized weight distributions",
		Columns: []string{"component", "n", "mean", "sd", "min", "q1", "median", "q3", "p99", "max", "cap"},
	}
	add := func(name string, s stats.Summary, cap string) {
		t.Rows = append(t.Rows, []string{
			name,
			Count(s.N),
			Num(s.Mean, 3),
			Num(s.SD, 3),
			Num(s.Min, 3),
			Num(s.Q1, 3),
			Num(s.Median, 3),
			Num(s.Q3, 3),
			Num(s.P99, 3),
			Num(s.Max, 3),
			cap,
		})
	}
	add("treatment", diag.Treatment, Num(diag.TreatmentCap, 3))
	add("censoring", diag.Censoring, Num(diag.CensoringCap, 3))
	add("combined", diag.Combined, "")
	add("treatment, truncated", diag.TreatmentTruncated, "")
	add("censoring, truncated", diag.CensoringTruncated, "")
	add("combined, truncated", diag.CombinedTruncated, "")
	return t
}

// Balance lays out the covariate balance diagnostics per wave.
func Balance(rows []weights.BalanceRow) Table {
	t := Table{
		Name:    "balance",
		Title:   "Covariate balance by employment group",
		Columns: []string{"wave", "covariate", "smd unweighted", "smd weighted", "ks unweighted", "ks weighted"},
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{
			Count(r.Year),
			r.Covariate,
			Num(r.SMDUnweighted, 3),
			Num(r.SMDWeighted, 3),
			Num(r.KSUnweighted, 3),
			Num(r.KSWeighted, 3),
		})
	}
	return t
}

// Model lays out one outcome comparison: the reference level first, then the
// contrasts against it.
func Model(m *analysis.Model) Table {
	t := Table{
		Name:    "model_" + m.Name,
		Title:   fmt.Sprintf("%s comparison of final-wave depression (n=%d, clusters=%d)", strings.ToUpper(m.Name[:1])+m.Name[1:], m.N, m.Clusters),
		Columns: []string{"term", "n", "estimate", "se", "ci low", "ci high", "z", "p"},
	}
	t.Rows = append(t.Rows, []string{
		m.Reference.Label + " (reference mean)",
		Count(m.Reference.N),
		Num(m.Reference.Mean, 2),
		Num(m.Reference.SE, 2),
		Num(m.Reference.ConfLow, 2),
		Num(m.Reference.ConfHigh, 2),
		"",
		"",
	})
	for _, c := range m.Contrasts {
		t.Rows = append(t.Rows, []string{
			c.Label,
			Count(c.N),
			Num(c.Estimate, 2),
			Num(c.SE, 2),
			Num(c.ConfLow, 2),
			Num(c.ConfHigh, 2),
			Num(c.Z, 2),
			Num(c.P, 4),
		})
	}
	return t
}

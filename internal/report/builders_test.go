package report

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beacon-epi/empdep/internal/analysis"
	"github.com/beacon-epi/empdep/internal/cohort"
	"github.com/beacon-epi/empdep/internal/derive"
	"github.com/beacon-epi/empdep/internal/state"
	"github.com/beacon-epi/empdep/internal/stats"
	"github.com/beacon-epi/empdep/internal/survey"
	"github.com/beacon-epi/empdep/internal/weights"
)

func TestCohortFlowListsEveryStep(t *testing.T) {
	build := &cohort.BuildReport{
		WaveRows:          map[int]int{2021: 100, 2022: 90, 2023: 80},
		Participants:      85,
		SingleWave:        12,
		BaselineMatched:   70,
		BaselineUnmatched: 3,
	}
	elig := &cohort.EligibilityReport{
		Total:                     85,
		Eligible:                  60,
		ExcludedStudent:           10,
		ExcludedOutOfWorkforce:    8,
		ExcludedMissingEmployment: 7,
		TransitionCounts: map[int]int{
			derive.TransStableEmployed:   40,
			derive.TransGainedEmployment: 5,
			derive.TransLostEmployment:   9,
			derive.TransStableUnemployed: 6,
		},
		Censored: 11,
	}

	table := CohortFlow(build, elig)
	assert.Equal(t, "cohort_flow", table.Name)

	steps := make(map[string]string)
	for _, row := range table.Rows {
		steps[row[0]] = row[1]
	}
	assert.Equal(t, "100", steps["wave 2021 responses"])
	assert.Equal(t, "12", steps["observed in fewer than two waves"])
	assert.Equal(t, "85", steps["wide-format participants"])
	assert.Equal(t, "10", steps["excluded: "+cohort.ReasonStudent])
	assert.Equal(t, "60", steps["eligible"])
	assert.Equal(t, "40", steps["transition: stable employed"])
	assert.Equal(t, "11", steps["censored at final wave"])
}

func TestExclusionsKeepsZeroCounts(t *testing.T) {
	rows := []state.Exclusion{
		{Stage: "eligibility", Reason: cohort.ReasonStudent, Count: 10},
		{Stage: "eligibility", Reason: cohort.ReasonOutOfWorkforce, Count: 0},
		{Stage: "unadjusted_model", Reason: "censored at final wave", Count: 11},
	}

	table := Exclusions(rows)
	assert.Equal(t, "exclusions", table.Name)
	require.Len(t, table.Rows, 3)
	assert.Equal(t, []string{"eligibility", cohort.ReasonStudent, "10"}, table.Rows[0])
	assert.Equal(t, []string{"eligibility", cohort.ReasonOutOfWorkforce, "0"}, table.Rows[1])
	assert.Equal(t, []string{"unadjusted_model", "censored at final wave", "11"}, table.Rows[2])
}

func TestModelTableShapesReferenceAndContrasts(t *testing.T) {
	m := &analysis.Model{
		Name:     "weighted",
		N:        120,
		Clusters: 120,
		Reference: analysis.Reference{
			Label:    "stable employed",
			N:        80,
			Mean:     5.25,
			SE:       0.5,
			ConfLow:  4.27,
			ConfHigh: 6.23,
		},
		Contrasts: []analysis.Contrast{
			{Transition: derive.TransGainedEmployment, Label: "gained employment", N: 10, Estimate: -1.5, SE: 0.7, Z: -2.14, P: 0.0321, ConfLow: -2.87, ConfHigh: -0.13},
			{Transition: derive.TransLostEmployment, Label: "lost employment", N: 20, Estimate: 2.1, SE: 0.8, Z: 2.63, P: 0.0087, ConfLow: 0.53, ConfHigh: 3.67},
			{Transition: derive.TransStableUnemployed, Label: "stable unemployed", N: 0, Estimate: math.NaN(), SE: math.NaN(), Z: math.NaN(), P: math.NaN(), ConfLow: math.NaN(), ConfHigh: math.NaN()},
		},
	}

	table := Model(m)
	assert.Equal(t, "model_weighted", table.Name)
	assert.Contains(t, table.Title, "n=120")
	require.Len(t, table.Rows, 4)

	ref := table.Rows[0]
	assert.Equal(t, "stable employed (reference mean)", ref[0])
	assert.Equal(t, "5.25", ref[2])

	gained := table.Rows[1]
	assert.Equal(t, "gained employment", gained[0])
	assert.Equal(t, "-1.50", gained[2])
	assert.Equal(t, "0.0321", gained[7])

	// A transition nobody made renders as blanks, not NaN.
	empty := table.Rows[3]
	assert.Equal(t, "0", empty[1])
	assert.Equal(t, "", empty[2])
}

func TestWeightSummaryPutsCapsOnComponentRows(t *testing.T) {
	diag := weights.Diagnostics{
		TreatmentCap: 2.345,
		CensoringCap: 1.5,
		Treatment:    stats.Summary{N: 50, Mean: 1.01},
		Censoring:    stats.Summary{N: 50, Mean: 0.99},
	}

	table := WeightSummary(diag)
	require.Len(t, table.Rows, 6)
	assert.Equal(t, "treatment", table.Rows[0][0])
	assert.Equal(t, "2.345", table.Rows[0][10])
	assert.Equal(t, "1.500", table.Rows[1][10])
	assert.Equal(t, "", table.Rows[2][10])
}

func TestExtractsTable(t *testing.T) {
	reports := []*survey.ReadReport{
		{Path: "wave_2021.csv", Rows: 10, Kept: 9, DuplicateIDs: 1, UnmappedColumns: []string{"extra"}},
	}
	table := Extracts(reports)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "wave_2021.csv", table.Rows[0][0])
	assert.Equal(t, "9", table.Rows[0][2])
	assert.Equal(t, "extra", table.Rows[0][6])
}

func TestBalanceTable(t *testing.T) {
	rows := []weights.BalanceRow{
		{Year: 2021, Covariate: "stress_2021", SMDUnweighted: 0.42, SMDWeighted: 0.05, KSUnweighted: 0.31, KSWeighted: 0.04},
	}
	table := Balance(rows)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, []string{"2021", "stress_2021", "0.420", "0.050", "0.310", "0.040"}, table.Rows[0])
}

func TestDescriptivesTable(t *testing.T) {
	rows := []analysis.DescriptiveRow{
		{Variable: "phq_2023", Group: "overall", N: 60, Summary: stats.Summary{N: 49, Miss: 11, Mean: 6.5, SD: 4.2, Min: 0, Q1: 3, Median: 6, Q3: 9, Max: 24}},
	}
	table := Descriptives(rows)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "60", table.Rows[0][2])
	assert.Equal(t, "49", table.Rows[0][3])
	assert.Equal(t, "11", table.Rows[0][4])
	assert.Equal(t, "6.50", table.Rows[0][5])
}

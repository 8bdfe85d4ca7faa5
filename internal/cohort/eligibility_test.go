package cohort

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beacon-epi/empdep/internal/derive"
	"github.com/beacon-epi/empdep/internal/survey"
)

// occupationItems builds an occupation vector with the given indexes ticked.
func occupationItems(ticked ...int) []float64 {
	v := make([]float64, len(survey.OccupationItems))
	for _, i := range ticked {
		v[i] = 1
	}
	return v
}

// respondentWith builds a cohort with one participant whose occupation
// checkboxes per wave are given. A nil vector leaves the wave unobserved.
func respondentWith(t *testing.T, occ map[int][]int, finalPHQ float64) *Cohort {
	t.Helper()
	waves := make(map[int][]survey.Response)
	for year, ticked := range occ {
		r := makeResponse("p", year)
		r.Completed = 1
		r.Occupation = occupationItems(ticked...)
		if year == survey.WaveFinal && !math.IsNaN(finalPHQ) {
			for i := range r.PHQ {
				r.PHQ[i] = 0
			}
			r.PHQ[0] = finalPHQ
		}
		waves[year] = append(waves[year], r)
	}
	c, _ := Build(waves, nil)
	return c
}

func TestApplyEligibilityStableEmployed(t *testing.T) {
	c := respondentWith(t, map[int][]int{
		survey.WaveFirst:  {0}, // full-time
		survey.WaveSecond: {0},
		survey.WaveFinal:  {0},
	}, 5)

	report := ApplyEligibility(c)

	p, _ := c.Lookup("p")
	require.True(t, p.Eligible)
	assert.Equal(t, float64(derive.TransStableEmployed), p.Transition)
	assert.Equal(t, 0.0, p.Censored)
	assert.Equal(t, 1, report.Eligible)
	assert.Equal(t, 1, report.TransitionCounts[derive.TransStableEmployed])
	assert.Equal(t, 0, report.Censored)
}

func TestApplyEligibilityTransitions(t *testing.T) {
	tests := []struct {
		name   string
		first  int
		second int
		want   int
	}{
		{"gained", 4, 0, derive.TransGainedEmployment},
		{"lost", 0, 4, derive.TransLostEmployment},
		{"stable unemployed", 4, 4, derive.TransStableUnemployed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := respondentWith(t, map[int][]int{
				survey.WaveFirst:  {tt.first},
				survey.WaveSecond: {tt.second},
				survey.WaveFinal:  {0},
			}, 3)

			report := ApplyEligibility(c)
			p, _ := c.Lookup("p")
			require.True(t, p.Eligible)
			assert.Equal(t, float64(tt.want), p.Transition)
			assert.Equal(t, 1, report.TransitionCounts[tt.want])
		})
	}
}

func TestApplyEligibilityExcludesStudents(t *testing.T) {
	// Student checkbox alongside full-time work still excludes.
	c := respondentWith(t, map[int][]int{
		survey.WaveFirst:  {0, 5},
		survey.WaveSecond: {0},
	}, math.NaN())

	report := ApplyEligibility(c)

	p, _ := c.Lookup("p")
	assert.False(t, p.Eligible)
	assert.Equal(t, ReasonStudent, p.ExclusionReason)
	assert.True(t, math.IsNaN(p.Transition))
	assert.Equal(t, 1, report.ExcludedStudent)
	assert.Equal(t, 0, report.Eligible)
}

func TestApplyEligibilityExcludesStudentAtSecondWave(t *testing.T) {
	c := respondentWith(t, map[int][]int{
		survey.WaveFirst:  {0},
		survey.WaveSecond: {5},
	}, math.NaN())

	report := ApplyEligibility(c)
	p, _ := c.Lookup("p")
	assert.False(t, p.Eligible)
	assert.Equal(t, ReasonStudent, p.ExclusionReason)
	assert.Equal(t, 1, report.ExcludedStudent)
}

func TestApplyEligibilityExcludesOutOfWorkforce(t *testing.T) {
	// Retired only at the first wave classifies as out of workforce.
	c := respondentWith(t, map[int][]int{
		survey.WaveFirst:  {7},
		survey.WaveSecond: {0},
	}, math.NaN())

	report := ApplyEligibility(c)

	p, _ := c.Lookup("p")
	assert.False(t, p.Eligible)
	assert.Equal(t, ReasonOutOfWorkforce, p.ExclusionReason)
	assert.Equal(t, 1, report.ExcludedOutOfWorkforce)
}

func TestApplyEligibilityExcludesMissingEmployment(t *testing.T) {
	// No second-wave row at all: transition undefined.
	c := respondentWith(t, map[int][]int{
		survey.WaveFirst: {0},
		survey.WaveFinal: {0},
	}, 4)

	report := ApplyEligibility(c)

	p, _ := c.Lookup("p")
	assert.False(t, p.Eligible)
	assert.Equal(t, ReasonMissingEmployment, p.ExclusionReason)
	assert.Equal(t, 1, report.ExcludedMissingEmployment)
}

func TestApplyEligibilityNoTickedBoxesIsMissingNotExcludedAsOOW(t *testing.T) {
	// An observed wave with no occupation boxes ticked has a missing
	// category; that is a missing-employment exclusion, not out of
	// workforce.
	c := respondentWith(t, map[int][]int{
		survey.WaveFirst:  {},
		survey.WaveSecond: {0},
	}, math.NaN())

	report := ApplyEligibility(c)

	p, _ := c.Lookup("p")
	assert.False(t, p.Eligible)
	assert.Equal(t, ReasonMissingEmployment, p.ExclusionReason)
	assert.Equal(t, 0, report.ExcludedOutOfWorkforce)
	assert.Equal(t, 1, report.ExcludedMissingEmployment)
}

func TestApplyEligibilityCensoring(t *testing.T) {
	t.Run("missing final wave row censors", func(t *testing.T) {
		c := respondentWith(t, map[int][]int{
			survey.WaveFirst:  {0},
			survey.WaveSecond: {0},
		}, math.NaN())

		report := ApplyEligibility(c)
		p, _ := c.Lookup("p")
		require.True(t, p.Eligible)
		assert.Equal(t, 1.0, p.Censored)
		assert.Equal(t, 1, report.Censored)
	})

	t.Run("missing final outcome censors", func(t *testing.T) {
		c := respondentWith(t, map[int][]int{
			survey.WaveFirst:  {0},
			survey.WaveSecond: {0},
			survey.WaveFinal:  {0},
		}, math.NaN()) // final row observed, PHQ items missing

		ApplyEligibility(c)
		p, _ := c.Lookup("p")
		require.True(t, p.Eligible)
		assert.Equal(t, 1.0, p.Censored)
	})

	t.Run("observed outcome is uncensored", func(t *testing.T) {
		c := respondentWith(t, map[int][]int{
			survey.WaveFirst:  {0},
			survey.WaveSecond: {0},
			survey.WaveFinal:  {0},
		}, 2)

		ApplyEligibility(c)
		p, _ := c.Lookup("p")
		assert.Equal(t, 0.0, p.Censored)
	})
}

func TestApplyEligibilityIneligibleHaveNoCensoringIndicator(t *testing.T) {
	c := respondentWith(t, map[int][]int{
		survey.WaveFirst:  {5},
		survey.WaveSecond: {5},
	}, math.NaN())

	ApplyEligibility(c)
	p, _ := c.Lookup("p")
	assert.False(t, p.Eligible)
	assert.True(t, math.IsNaN(p.Censored))
}

package analysis

import (
	"github.com/beacon-epi/empdep/internal/cohort"
	"github.com/beacon-epi/empdep/internal/derive"
	"github.com/beacon-epi/empdep/internal/stats"
	"github.com/beacon-epi/empdep/internal/survey"
)

// OverallGroup labels the whole eligible cohort in descriptive output.
const OverallGroup = "overall"

// DescriptiveRow summarizes one variable within one transition group. N is
// the group size; the summary's own counts separate observed from missing.
type DescriptiveRow struct {
	Variable string
	Group    string
	N        int
	Summary  stats.Summary
}

// descriptiveVariables lists the summarized columns in display order.
var descriptiveVariables = []struct {
	name string
	get  func(*cohort.Participant) float64
}{
	{"age_2021", waveGetter(survey.WaveFirst, func(yd *cohort.YearData) float64 { return yd.Age })},
	{"phq_2021", waveGetter(survey.WaveFirst, func(yd *cohort.YearData) float64 { return yd.PHQ })},
	{"phq_2022", waveGetter(survey.WaveSecond, func(yd *cohort.YearData) float64 { return yd.PHQ })},
	{"phq_2023", waveGetter(survey.WaveFinal, func(yd *cohort.YearData) float64 { return yd.PHQ })},
	{"stress_2021", waveGetter(survey.WaveFirst, func(yd *cohort.YearData) float64 { return yd.Stress })},
	{"stress_2022", waveGetter(survey.WaveSecond, func(yd *cohort.YearData) float64 { return yd.Stress })},
	{"work_disc_2021", waveGetter(survey.WaveFirst, func(yd *cohort.YearData) float64 { return yd.WorkDiscrimination })},
	{"work_disc_2022", waveGetter(survey.WaveSecond, func(yd *cohort.YearData) float64 { return yd.WorkDiscrimination })},
	{"urban_2021", waveGetter(survey.WaveFirst, func(yd *cohort.YearData) float64 { return yd.Urban })},
	{"immigrant", func(p *cohort.Participant) float64 { return p.Immigrant }},
}

func waveGetter(year int, get func(*cohort.YearData) float64) func(*cohort.Participant) float64 {
	return func(p *cohort.Participant) float64 { return get(p.Year(year)) }
}

// Descriptives summarizes the analysis variables over the eligible cohort,
// overall and within each transition group. The transition groups partition
// the eligible rows, so their sizes add up to the overall size.
func Descriptives(c *cohort.Cohort) []DescriptiveRow {
	var eligible []*cohort.Participant
	for _, p := range c.Participants {
		if p.Eligible {
			eligible = append(eligible, p)
		}
	}

	type group struct {
		label   string
		members []*cohort.Participant
	}
	groups := []group{{label: OverallGroup, members: eligible}}
	for _, code := range []int{
		derive.TransStableEmployed,
		derive.TransGainedEmployment,
		derive.TransLostEmployment,
		derive.TransStableUnemployed,
	} {
		g := group{label: derive.TransitionLabels[code]}
		for _, p := range eligible {
			if int(p.Transition) == code {
				g.members = append(g.members, p)
			}
		}
		groups = append(groups, g)
	}

	var out []DescriptiveRow
	for _, v := range descriptiveVariables {
		for _, g := range groups {
			values := make([]float64, len(g.members))
			for i, p := range g.members {
				values[i] = v.get(p)
			}
			out = append(out, DescriptiveRow{
				Variable: v.name,
				Group:    g.label,
				N:        len(g.members),
				Summary:  stats.Describe(values),
			})
		}
	}
	return out
}

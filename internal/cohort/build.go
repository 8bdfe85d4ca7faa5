package cohort

import (
	"math"
	"sort"

	"github.com/beacon-epi/empdep/internal/derive"
	"github.com/beacon-epi/empdep/internal/survey"
)

// minObservedWaves is the reshape admission rule: a participant must have
// responded in at least two waves to contribute a wide row.
const minObservedWaves = 2

// BuildReport accounts for every record consumed while reshaping.
type BuildReport struct {
	// WaveRows counts harmonized responses per wave year.
	WaveRows map[int]int
	// Participants is the number of wide rows.
	Participants int
	// SingleWave counts participants dropped for appearing in fewer than
	// two waves.
	SingleWave int
	// BaselineMatched counts baseline records joined to a wide row.
	BaselineMatched int
	// BaselineUnmatched counts baseline records whose participant has no
	// wide row.
	BaselineUnmatched int
}

// Build reshapes long-format wave responses into the wide cohort table and
// joins the baseline extract. Participants observed in at least two waves
// get exactly one row each; waves without a response stay unobserved for
// that row, and single-wave participants are counted out, not kept.
func Build(waves map[int][]survey.Response, baseline []survey.BaselineRecord) (*Cohort, *BuildReport) {
	report := &BuildReport{WaveRows: make(map[int]int, len(waves))}

	byID := make(map[string]*Participant)
	for _, year := range survey.WaveYears {
		responses := waves[year]
		report.WaveRows[year] = len(responses)
		for i := range responses {
			resp := &responses[i]
			p, ok := byID[resp.ParticipantID]
			if !ok {
				p = newParticipant(resp.ParticipantID)
				byID[resp.ParticipantID] = p
			}
			p.Years[year] = deriveYear(resp)
		}
	}

	for id, p := range byID {
		if len(p.Years) < minObservedWaves {
			delete(byID, id)
			report.SingleWave++
		}
	}

	for _, rec := range baseline {
		p, ok := byID[rec.ParticipantID]
		if !ok {
			report.BaselineUnmatched++
			continue
		}
		p.Immigrant = rec.Immigrant
		p.InBaseline = true
		report.BaselineMatched++
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	c := &Cohort{
		Participants: make([]*Participant, len(ids)),
		index:        make(map[string]int, len(ids)),
	}
	for i, id := range ids {
		p := byID[id]
		resolveIdentities(p)
		c.Participants[i] = p
		c.index[id] = i
	}
	report.Participants = len(ids)

	return c, report
}

func newParticipant(id string) *Participant {
	return &Participant{
		ID:         id,
		Years:      make(map[int]*YearData, len(survey.WaveYears)),
		Immigrant:  math.NaN(),
		Transition: math.NaN(),
		Censored:   math.NaN(),
	}
}

// deriveYear computes every per-wave derived variable from one harmonized
// response.
func deriveYear(resp *survey.Response) *YearData {
	category := derive.ClassifyOccupation(resp.Occupation)
	return &YearData{
		Observed:           true,
		Completed:          derive.Binary(resp.Completed),
		Age:                resp.Age,
		Region:             resp.Region,
		Urban:              derive.UrbanBinary(resp.Urbanicity, resp.Region),
		EducationTier:      derive.EducationTier(resp.Education),
		PHQ:                derive.PHQTotal(resp.PHQ),
		OccCategory:        category,
		Employment:         derive.Employment(category),
		OutOfWorkforce:     derive.OutOfWorkforce(category),
		Student:            derive.IsStudent(resp.Occupation),
		Stress:             derive.StressScore(resp.StressA, resp.StressB),
		WorkDiscrimination: derive.Binary(resp.WorkDiscrimination),
		Gender:             derive.DeriveIdentity(resp.Gender, derive.OptionLabels(survey.GenderItems)),
		Orientation:        derive.DeriveIdentity(resp.Orientation, derive.OptionLabels(survey.OrientationItems)),
		Race:               derive.DeriveIdentity(resp.Race, derive.OptionLabels(survey.RaceItems)),
	}
}

// resolveIdentities carries the most recent non-missing identity response
// forward into the participant-level summaries.
func resolveIdentities(p *Participant) {
	p.Gender = carryIdentity(p, func(yd *YearData) derive.Identity { return yd.Gender })
	p.Orientation = carryIdentity(p, func(yd *YearData) derive.Identity { return yd.Orientation })
	p.Race = carryIdentity(p, func(yd *YearData) derive.Identity { return yd.Race })
}

func carryIdentity(p *Participant, pick func(*YearData) derive.Identity) IdentitySummary {
	for i := len(survey.WaveYears) - 1; i >= 0; i-- {
		yd, ok := p.Years[survey.WaveYears[i]]
		if !ok {
			continue
		}
		id := pick(yd)
		if id.Missing {
			continue
		}
		s := IdentitySummary{Category: id.Category}
		if id.Multiple {
			s.Multiple = 1
		}
		return s
	}
	return IdentitySummary{Missing: 1}
}

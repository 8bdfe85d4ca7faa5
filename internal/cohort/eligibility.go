package cohort

import (
	"math"

	"github.com/beacon-epi/empdep/internal/derive"
	"github.com/beacon-epi/empdep/internal/survey"
)

// Exclusion reasons recorded on ineligible participants. Each participant
// gets the first reason that applies, checked in the order below.
const (
	ReasonStudent           = "student at first or second wave"
	ReasonOutOfWorkforce    = "out of workforce at first or second wave"
	ReasonMissingEmployment = "employment missing at first or second wave"
)

// EligibilityReport summarizes cohort selection. Excluded counts partition
// the ineligible participants by their recorded reason.
type EligibilityReport struct {
	Total    int
	Eligible int

	ExcludedStudent           int
	ExcludedOutOfWorkforce    int
	ExcludedMissingEmployment int

	// TransitionCounts tallies eligible participants per transition level.
	TransitionCounts map[int]int
	// Censored counts eligible participants without a usable final-wave
	// outcome.
	Censored int
}

// ApplyEligibility marks each participant eligible or excluded, derives the
// employment transition for the eligible, and sets the censoring indicator.
// Students and out-of-workforce respondents at either of the first two waves
// are excluded before the transition is considered.
func ApplyEligibility(c *Cohort) *EligibilityReport {
	report := &EligibilityReport{
		Total:            c.Len(),
		TransitionCounts: make(map[int]int, 4),
	}

	for _, p := range c.Participants {
		first := p.Year(survey.WaveFirst)
		second := p.Year(survey.WaveSecond)

		p.Eligible = false
		p.ExclusionReason = ""
		p.Transition = math.NaN()
		p.Censored = math.NaN()

		switch {
		case first.Student || second.Student:
			p.ExclusionReason = ReasonStudent
			report.ExcludedStudent++
			continue
		case isOutOfWorkforce(first) || isOutOfWorkforce(second):
			p.ExclusionReason = ReasonOutOfWorkforce
			report.ExcludedOutOfWorkforce++
			continue
		}

		trans := derive.Transition(first.Employment, second.Employment)
		if math.IsNaN(trans) {
			p.ExclusionReason = ReasonMissingEmployment
			report.ExcludedMissingEmployment++
			continue
		}

		p.Eligible = true
		p.Transition = trans
		report.Eligible++
		report.TransitionCounts[int(trans)]++

		p.Censored = censoringIndicator(p)
		if p.Censored == 1 {
			report.Censored++
		}
	}

	return report
}

// isOutOfWorkforce reports whether the wave's out-of-workforce indicator is
// set. A missing indicator is not out of workforce; such rows fall through
// to the missing-employment exclusion.
func isOutOfWorkforce(yd *YearData) bool {
	return yd.OutOfWorkforce == 1
}

// censoringIndicator is 1 when the participant has no usable final-wave
// outcome: no final-wave row, or a missing depression total in it.
func censoringIndicator(p *Participant) float64 {
	final := p.Year(survey.WaveFinal)
	if !final.Observed || math.IsNaN(final.PHQ) {
		return 1
	}
	return 0
}

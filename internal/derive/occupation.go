package derive

import (
	"math"

	"github.com/beacon-epi/empdep/internal/survey"
)

// Occupational categories produced by ClassifyOccupation.
const (
	OccFullTime       = 1
	OccPartTime       = 2
	OccTemporary      = 3
	OccSelfEmployed   = 4
	OccSeeking        = 5
	OccNonStandard    = 6
	OccOutOfWorkforce = 7
)

// OccupationLabels maps category codes to display labels.
var OccupationLabels = map[int]string{
	OccFullTime:       "full-time",
	OccPartTime:       "part-time",
	OccTemporary:      "temporary or gig",
	OccSelfEmployed:   "self-employed",
	OccSeeking:        "unemployed, seeking",
	OccNonStandard:    "non-standard",
	OccOutOfWorkforce: "out of workforce",
}

// ClassifyOccupation derives the seven-level occupational category from the
// eleven status checkboxes. The first five items are the main statuses, the
// rest secondary.
//
//	no boxes ticked            -> missing
//	exactly one main status    -> that status (1-5)
//	no main, any secondary     -> out of workforce (7)
//	more than one main status  -> non-standard (6)
func ClassifyOccupation(items []float64) float64 {
	if len(items) != len(survey.OccupationItems) {
		return math.NaN()
	}

	main := items[:survey.MainOccupationItems]
	secondary := items[survey.MainOccupationItems:]

	nMain := CountSelected(main)
	nSecondary := CountSelected(secondary)

	switch {
	case nMain == 0 && nSecondary == 0:
		return math.NaN()
	case nMain == 1:
		for i, v := range main {
			if v == 1 {
				return float64(i + 1)
			}
		}
		return math.NaN()
	case nMain == 0:
		return OccOutOfWorkforce
	default:
		return OccNonStandard
	}
}

// Employment collapses the occupational category to a binary exposure:
// 1 for employed (full-time, part-time, temporary, self-employed, or
// non-standard), 0 for not employed (seeking or out of workforce).
func Employment(category float64) float64 {
	if math.IsNaN(category) {
		return math.NaN()
	}
	switch int(category) {
	case OccFullTime, OccPartTime, OccTemporary, OccSelfEmployed, OccNonStandard:
		return 1
	case OccSeeking, OccOutOfWorkforce:
		return 0
	}
	return math.NaN()
}

// OutOfWorkforce collapses the occupational category to a binary indicator:
// 1 for the out-of-workforce level, 0 for every other category.
func OutOfWorkforce(category float64) float64 {
	if math.IsNaN(category) {
		return math.NaN()
	}
	if int(category) == OccOutOfWorkforce {
		return 1
	}
	return 0
}

// IsStudent reports whether the student checkbox is ticked, independent of
// the derived category. Used for cohort eligibility.
func IsStudent(items []float64) bool {
	if len(items) != len(survey.OccupationItems) {
		return false
	}
	return items[studentItemIndex] == 1
}

// studentItemIndex is the position of occ_student in survey.OccupationItems.
const studentItemIndex = 5

// Employment transition categories relative to stable employment.
const (
	TransStableEmployed   = 0
	TransGainedEmployment = 1
	TransLostEmployment   = 2
	TransStableUnemployed = 3
)

// TransitionLabels maps transition codes to display labels.
var TransitionLabels = map[int]string{
	TransStableEmployed:   "stable employed",
	TransGainedEmployment: "gained employment",
	TransLostEmployment:   "lost employment",
	TransStableUnemployed: "stable unemployed",
}

// Transition derives the four-level employment transition from the binary
// employment status at the first two waves. Defined only when both years
// are observed.
func Transition(empFirst, empSecond float64) float64 {
	if math.IsNaN(empFirst) || math.IsNaN(empSecond) {
		return math.NaN()
	}
	switch {
	case empFirst == 1 && empSecond == 1:
		return TransStableEmployed
	case empFirst == 0 && empSecond == 1:
		return TransGainedEmployment
	case empFirst == 1 && empSecond == 0:
		return TransLostEmployment
	default:
		return TransStableUnemployed
	}
}

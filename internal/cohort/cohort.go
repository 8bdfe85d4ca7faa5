// Package cohort reshapes the harmonized long-format responses into one
// wide row per participant and applies the analysis eligibility rules.
//
// The wide table is the analytic dataset: per-wave derived values under
// year-suffixed columns, identity summaries resolved across waves, the
// baseline join, the employment transition, and the censoring indicator.
package cohort

import (
	"math"

	"github.com/beacon-epi/empdep/internal/derive"
)

// YearData holds one participant's derived values for a single wave.
type YearData struct {
	Observed  bool
	Completed float64

	Age           float64
	Region        string
	Urban         float64
	EducationTier float64

	PHQ                float64
	OccCategory        float64
	Employment         float64
	OutOfWorkforce     float64
	Student            bool
	Stress             float64
	WorkDiscrimination float64

	// Per-wave identity answers, consumed when resolving the carried
	// summaries. Not persisted to the analytic table.
	Gender      derive.Identity
	Orientation derive.Identity
	Race        derive.Identity
}

// IdentitySummary is an identity dimension resolved across waves by
// carrying the most recent non-missing response.
type IdentitySummary struct {
	// Category is the resolved label, or "" when no wave had a response.
	Category string
	// Multiple is 1 when the resolved response selected several options.
	Multiple float64
	// Missing is 1 when no wave had a response.
	Missing float64
}

// Participant is one wide-format row.
type Participant struct {
	ID    string
	Years map[int]*YearData

	Gender      IdentitySummary
	Orientation IdentitySummary
	Race        IdentitySummary

	Immigrant  float64
	InBaseline bool

	Eligible        bool
	ExclusionReason string
	Transition      float64
	Censored        float64
}

// Year returns the participant's data for a wave, or an empty unobserved
// record when the participant has no row in that wave.
func (p *Participant) Year(year int) *YearData {
	if yd, ok := p.Years[year]; ok && yd != nil {
		return yd
	}
	return emptyYear()
}

// Cohort is the ordered wide table. Participants are sorted by ID so every
// run produces identical output for identical input.
type Cohort struct {
	Participants []*Participant
	index        map[string]int
}

// Lookup returns the participant with the given ID.
func (c *Cohort) Lookup(id string) (*Participant, bool) {
	i, ok := c.index[id]
	if !ok {
		return nil, false
	}
	return c.Participants[i], true
}

// Len returns the number of participants.
func (c *Cohort) Len() int { return len(c.Participants) }

// emptyYear returns a YearData with every value missing.
func emptyYear() *YearData {
	return &YearData{
		Completed:          math.NaN(),
		Age:                math.NaN(),
		Urban:              math.NaN(),
		EducationTier:      math.NaN(),
		PHQ:                math.NaN(),
		OccCategory:        math.NaN(),
		Employment:         math.NaN(),
		OutOfWorkforce:     math.NaN(),
		Stress:             math.NaN(),
		WorkDiscrimination: math.NaN(),
		Gender:             derive.Identity{Missing: true},
		Orientation:        derive.Identity{Missing: true},
		Race:               derive.Identity{Missing: true},
	}
}

// Package survey defines the harmonized schema for the annual survey
// extracts and the readers that parse raw CSV exports into typed records.
//
// Raw extracts arrive with inconsistent column spellings across waves.
// A Codebook maps source headers onto canonical field names; the readers
// then parse each row into a Response with float64 values where NaN marks
// a missing answer.
package survey

import "math"

// Wave years covered by the panel. The baseline extract is a one-time
// lifetime questionnaire and has no year.
const (
	WaveFirst  = 2021
	WaveSecond = 2022
	WaveFinal  = 2023
)

// WaveYears lists the annual waves in chronological order.
var WaveYears = []int{WaveFirst, WaveSecond, WaveFinal}

// Canonical scalar field names shared across waves.
const (
	ColParticipantID      = "participant_id"
	ColCompleted          = "completed"
	ColAge                = "age"
	ColRegion             = "region"
	ColUrbanicity         = "urbanicity"
	ColEducation          = "education"
	ColWorkDiscrimination = "work_discrimination"
	ColImmigrant          = "immigrant"
)

// PHQItems are the nine depression screener item columns, in instrument order.
var PHQItems = []string{
	"phq_1", "phq_2", "phq_3", "phq_4", "phq_5",
	"phq_6", "phq_7", "phq_8", "phq_9",
}

// OccupationItems are the employment status checkboxes. The first five are
// the main statuses used for occupational classification; the remaining six
// are secondary statuses.
var OccupationItems = []string{
	"occ_fulltime",
	"occ_parttime",
	"occ_temporary",
	"occ_selfemployed",
	"occ_seeking",
	"occ_student",
	"occ_homemaker",
	"occ_retired",
	"occ_disabled",
	"occ_notseeking",
	"occ_other",
}

// MainOccupationItems is the count of main status checkboxes at the start of
// OccupationItems.
const MainOccupationItems = 5

// StressAItems and StressBItems are the two minority stress subscales. The
// per-wave stress score is the larger of the two subscale sums.
var (
	StressAItems = []string{"stress_a_1", "stress_a_2", "stress_a_3", "stress_a_4", "stress_a_5"}
	StressBItems = []string{"stress_b_1", "stress_b_2", "stress_b_3", "stress_b_4", "stress_b_5"}
)

// Identity dimension checkbox columns. Option labels are the column names
// with the dimension prefix stripped.
var (
	GenderItems = []string{
		"gender_woman", "gender_man", "gender_nonbinary",
		"gender_transgender", "gender_selfdescribe",
	}
	OrientationItems = []string{
		"orientation_straight", "orientation_gay", "orientation_lesbian",
		"orientation_bisexual", "orientation_queer", "orientation_pansexual",
		"orientation_asexual", "orientation_selfdescribe",
	}
	RaceItems = []string{
		"race_white", "race_black", "race_latino", "race_asian",
		"race_native", "race_mena", "race_other",
	}
)

// Missing is the canonical missing value for numeric survey answers.
func Missing() float64 { return math.NaN() }

// IsMissing reports whether a numeric answer is missing.
func IsMissing(v float64) bool { return math.IsNaN(v) }

// Response is one participant's harmonized answers for a single wave.
// Slice fields are aligned with the corresponding item name lists and
// always have their full length; absent answers are NaN.
type Response struct {
	ParticipantID string
	Year          int

	Completed          float64
	Age                float64
	Region             string
	Urbanicity         float64
	Education          float64
	WorkDiscrimination float64

	PHQ        []float64
	Occupation []float64
	StressA    []float64
	StressB    []float64

	Gender      []float64
	Orientation []float64
	Race        []float64
}

// BaselineRecord is one participant's answers from the lifetime baseline
// extract. Only fields the analysis consumes are retained.
type BaselineRecord struct {
	ParticipantID string
	Immigrant     float64
}

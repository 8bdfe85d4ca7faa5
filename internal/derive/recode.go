package derive

import (
	"math"
	"strings"
)

// Education tiers collapse the eight-level source scale.
const (
	EduHighSchoolOrLess = 1
	EduSomeCollege      = 2
	EduBachelor         = 3
	EduGraduate         = 4
)

// EducationTierLabels maps tier codes to display labels.
var EducationTierLabels = map[int]string{
	EduHighSchoolOrLess: "high school or less",
	EduSomeCollege:      "some college",
	EduBachelor:         "bachelor",
	EduGraduate:         "graduate",
}

// EducationTier collapses the raw education level (1-8) to four tiers.
// Levels 1-2 are high school or less, 3-4 some college or associate,
// 5-6 bachelor, 7-8 graduate. Out-of-range values are missing.
func EducationTier(raw float64) float64 {
	if math.IsNaN(raw) {
		return math.NaN()
	}
	switch int(raw) {
	case 1, 2:
		return EduHighSchoolOrLess
	case 3, 4:
		return EduSomeCollege
	case 5, 6:
		return EduBachelor
	case 7, 8:
		return EduGraduate
	}
	return math.NaN()
}

// militaryRegion is the region label whose rural-urban code is not
// interpretable. Overseas installations carry a placeholder code in the
// source data.
const militaryRegion = "military"

// UrbanBinary derives the urban indicator from the rural-urban commuting
// code: codes 1-3 are urban, 4-10 rural. Respondents in the military region
// are missing regardless of code.
func UrbanBinary(code float64, region string) float64 {
	if strings.EqualFold(strings.TrimSpace(region), militaryRegion) {
		return math.NaN()
	}
	if math.IsNaN(code) {
		return math.NaN()
	}
	c := int(code)
	switch {
	case c >= 1 && c <= 3:
		return 1
	case c >= 4 && c <= 10:
		return 0
	}
	return math.NaN()
}

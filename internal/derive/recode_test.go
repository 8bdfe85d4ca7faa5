package derive

import (
	"math"
	"testing"
)

func TestEducationTier(t *testing.T) {
	tests := []struct {
		raw  float64
		want float64
	}{
		{1, EduHighSchoolOrLess},
		{2, EduHighSchoolOrLess},
		{3, EduSomeCollege},
		{4, EduSomeCollege},
		{5, EduBachelor},
		{6, EduBachelor},
		{7, EduGraduate},
		{8, EduGraduate},
		{0, math.NaN()},
		{9, math.NaN()},
		{math.NaN(), math.NaN()},
	}

	for _, tt := range tests {
		got := EducationTier(tt.raw)
		if math.IsNaN(tt.want) {
			if !math.IsNaN(got) {
				t.Fatalf("EducationTier(%v) = %v, want missing", tt.raw, got)
			}
			continue
		}
		if got != tt.want {
			t.Fatalf("EducationTier(%v) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestUrbanBinary(t *testing.T) {
	tests := []struct {
		name   string
		code   float64
		region string
		want   float64
	}{
		{"metro core", 1, "south", 1},
		{"metro fringe", 3, "west", 1},
		{"small town", 7, "midwest", 0},
		{"isolated rural", 10, "northeast", 0},
		{"code out of range", 11, "south", math.NaN()},
		{"missing code", math.NaN(), "south", math.NaN()},
		{"military region", 2, "military", math.NaN()},
		{"military region case insensitive", 2, "Military", math.NaN()},
		{"military region missing code", math.NaN(), "military", math.NaN()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UrbanBinary(tt.code, tt.region)
			if math.IsNaN(tt.want) {
				if !math.IsNaN(got) {
					t.Fatalf("UrbanBinary(%v, %q) = %v, want missing", tt.code, tt.region, got)
				}
				return
			}
			if got != tt.want {
				t.Fatalf("UrbanBinary(%v, %q) = %v, want %v", tt.code, tt.region, got, tt.want)
			}
		})
	}
}

package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beacon-epi/empdep/internal/cli/config"
	"github.com/beacon-epi/empdep/internal/survey"
)

func fullWaveHeader() []string {
	header := []string{
		"participant_id", "completed", "age", "region",
		"urbanicity", "education", "work_discrimination",
	}
	header = append(header, survey.PHQItems...)
	header = append(header, survey.OccupationItems...)
	header = append(header, survey.StressAItems...)
	header = append(header, survey.StressBItems...)
	header = append(header, survey.GenderItems...)
	header = append(header, survey.OrientationItems...)
	header = append(header, survey.RaceItems...)
	return header
}

// waveRow fills a complete wave row with in-range values, then applies
// per-column overrides.
func waveRow(id string, overrides map[string]string) string {
	defaults := map[string]string{
		"participant_id":      id,
		"completed":           "1",
		"age":                 "35",
		"region":              "south",
		"urbanicity":          "2",
		"education":           "5",
		"work_discrimination": "0",
	}

	header := fullWaveHeader()
	row := make([]string, 0, len(header))
	for _, col := range header {
		v, ok := overrides[col]
		if !ok {
			if d, found := defaults[col]; found {
				v = d
			} else {
				switch {
				case strings.HasPrefix(col, "phq_"):
					v = "1"
				case strings.HasPrefix(col, "stress_"):
					v = "2"
				default:
					v = "0"
				}
			}
		}
		row = append(row, v)
	}
	return strings.Join(row, ",")
}

func writeDoctorFixture(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600))
	return path
}

func findCheck(t *testing.T, out *DoctorOutput, name, target string) HealthCheck {
	t.Helper()
	for _, c := range out.HealthChecks {
		if c.Name == name && c.Target == target {
			return c
		}
	}
	t.Fatalf("check %q for target %q not found", name, target)
	return HealthCheck{}
}

func TestBuildDoctorOutput_HealthyExtracts(t *testing.T) {
	dir := t.TempDir()
	header := strings.Join(fullWaveHeader(), ",")

	cfg := &config.Config{
		Extracts: config.ExtractsConfig{
			Wave2021: writeDoctorFixture(t, dir, "wave_2021.csv", header, waveRow("p1", nil), waveRow("p2", nil)),
			Wave2022: writeDoctorFixture(t, dir, "wave_2022.csv", header, waveRow("p1", nil), waveRow("p2", nil)),
			Wave2023: writeDoctorFixture(t, dir, "wave_2023.csv", header, waveRow("p1", nil), waveRow("p2", nil)),
			Baseline: writeDoctorFixture(t, dir, "baseline.csv", "participant_id,immigrant", "p1,0", "p2,1"),
		},
	}

	out := buildDoctorOutput(cfg, survey.DefaultCodebook())

	assert.Equal(t, 100, out.Score)
	assert.Equal(t, 0, out.IssueCount)
	assert.Empty(t, out.Recommendations)

	assert.Equal(t, 3, out.Summary.Waves)
	assert.Equal(t, 6, out.Summary.Rows)
	assert.Equal(t, 2, out.Summary.Participants)
	assert.Equal(t, 2, out.Summary.PanelEligible)
	assert.Equal(t, 2, out.Summary.BaselineRecords)

	for _, check := range out.HealthChecks {
		assert.Equal(t, "pass", check.Status, "check %s/%s should pass", check.Target, check.Name)
	}
}

func TestBuildDoctorOutput_FindsProblems(t *testing.T) {
	dir := t.TempDir()
	header := strings.Join(fullWaveHeader(), ",")

	cfg := &config.Config{
		Extracts: config.ExtractsConfig{
			Wave2021: writeDoctorFixture(t, dir, "wave_2021.csv", header,
				waveRow("p1", map[string]string{"phq_1": "9"}),
				waveRow("p1", nil),
				waveRow("p2", map[string]string{"stress_a_2": "0"}),
			),
			Wave2022: writeDoctorFixture(t, dir, "wave_2022.csv", header, waveRow("p1", nil), waveRow("p2", nil)),
			Wave2023: filepath.Join(dir, "missing_2023.csv"),
			Baseline: writeDoctorFixture(t, dir, "baseline.csv", "participant_id,immigrant", "p9,1"),
		},
	}

	out := buildDoctorOutput(cfg, survey.DefaultCodebook())

	assert.Less(t, out.Score, 100)
	assert.Greater(t, out.IssueCount, 0)
	assert.NotEmpty(t, out.Recommendations)

	readable := findCheck(t, out, "extract readable", "wave 2023")
	assert.Equal(t, "error", readable.Status)

	ids := findCheck(t, out, "participant ids", "wave 2021")
	assert.Equal(t, "warn", ids.Status)
	assert.Contains(t, strings.Join(ids.Details, "\n"), "duplicate")

	ranges := findCheck(t, out, "instrument ranges", "wave 2021")
	assert.Equal(t, "warn", ranges.Status)
	assert.Contains(t, strings.Join(ranges.Details, "\n"), "phq_1: 1 values outside 0..3")
	assert.Contains(t, strings.Join(ranges.Details, "\n"), "stress_a_2: 1 values outside 1..5")

	// p1 and p2 both appear in two waves, so the panel exists, but nobody
	// in it has a baseline record.
	coverage := findCheck(t, out, "baseline coverage", "panel")
	assert.Equal(t, "error", coverage.Status)
}

func TestCalculateHealthScore(t *testing.T) {
	tests := []struct {
		name     string
		checks   []HealthCheck
		minScore int
		maxScore int
	}{
		{
			name:     "no checks returns 100",
			checks:   nil,
			minScore: 100,
			maxScore: 100,
		},
		{
			name: "all passing returns 100",
			checks: []HealthCheck{
				{Name: "participant ids", Status: "pass", IssueCount: 0},
				{Name: "instrument ranges", Status: "pass", IssueCount: 0},
			},
			minScore: 100,
			maxScore: 100,
		},
		{
			name: "warnings reduce score",
			checks: []HealthCheck{
				{Name: "participant ids", Status: "pass", IssueCount: 0},
				{Name: "instrument ranges", Status: "warn", IssueCount: 2},
			},
			minScore: 80,
			maxScore: 95,
		},
		{
			name: "errors reduce score more",
			checks: []HealthCheck{
				{Name: "extract readable", Status: "error", IssueCount: 2},
			},
			minScore: 70,
			maxScore: 85,
		},
		{
			name: "many issues can reduce to 0",
			checks: []HealthCheck{
				{Name: "canonical fields", Status: "error", IssueCount: 20},
				{Name: "unmapped columns", Status: "error", IssueCount: 20},
			},
			minScore: 0,
			maxScore: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := calculateHealthScore(tt.checks)
			assert.GreaterOrEqual(t, score, tt.minScore, "score should be >= %d", tt.minScore)
			assert.LessOrEqual(t, score, tt.maxScore, "score should be <= %d", tt.maxScore)
		})
	}
}

func TestGenerateRecommendations(t *testing.T) {
	checks := []HealthCheck{
		{Name: "participant ids", Target: "wave 2021", Status: "warn", IssueCount: 1},
		{Name: "participant ids", Target: "wave 2022", Status: "warn", IssueCount: 1},
		{Name: "instrument ranges", Target: "wave 2021", Status: "warn", IssueCount: 3},
		{Name: "numeric parsing", Target: "wave 2023", Status: "pass", IssueCount: 0},
	}

	recs := generateRecommendations(checks)

	// Duplicate check names collapse to one recommendation, passing checks
	// contribute none.
	assert.Len(t, recs, 2)
	assert.Contains(t, recs[0], "Deduplicate participant IDs")
}

func TestGenerateRecommendations_CapsAtFive(t *testing.T) {
	names := []string{
		"extract readable", "canonical fields", "participant ids",
		"numeric parsing", "unmapped columns", "instrument ranges",
		"panel coverage",
	}
	var checks []HealthCheck
	for _, name := range names {
		checks = append(checks, HealthCheck{Name: name, Status: "warn", IssueCount: 1})
	}

	recs := generateRecommendations(checks)
	assert.Len(t, recs, 5)
}

func TestRenderDoctorText(t *testing.T) {
	out := &DoctorOutput{
		Summary: ExtractSummary{Waves: 3, Rows: 10, Participants: 4, BaselineRecords: 4, PanelEligible: 3},
		HealthChecks: []HealthCheck{
			{Name: "participant ids", Target: "wave 2021", Status: "pass"},
			{Name: "instrument ranges", Target: "wave 2021", Status: "warn", IssueCount: 1,
				Details: []string{"phq_1: 1 values outside 0..3"}},
		},
		Score:           95,
		Recommendations: []string{"Verify depression items are coded 0-3 and stress items 1-5 in the source"},
		IssueCount:      1,
	}

	buf := new(bytes.Buffer)
	require.NoError(t, renderDoctorText(buf, out))

	text := buf.String()
	assert.Contains(t, text, "Extract Health Report")
	assert.Contains(t, text, "Wave 2021")
	assert.Contains(t, text, "instrument ranges (1 issues)")
	assert.Contains(t, text, "phq_1: 1 values outside 0..3")
	assert.Contains(t, text, "Health Score: 95/100")
	assert.Contains(t, text, "1. Verify depression items")
}

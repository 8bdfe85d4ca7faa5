package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/beacon-epi/empdep/internal/cli/config"
	"github.com/beacon-epi/empdep/internal/survey"
	"github.com/spf13/cobra"
)

// Instrument coding bounds checked against the raw extracts.
const (
	phqItemMin    = 0
	phqItemMax    = 3
	stressItemMin = 1
	stressItemMax = 5
)

// DoctorOptions holds options for the doctor command.
type DoctorOptions struct {
	Format string // Output format: text, json
}

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	opts := &DoctorOptions{}
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run a health check on the survey extracts",
		Long: `Read every configured extract and report what the pipeline would have
to work around.

The doctor command checks each wave and the baseline extract for:
- Readability and required canonical fields
- Blank or duplicate participant IDs
- Unparseable numeric values and unmapped columns
- Depression and stress item values outside the instrument coding
- Panel coverage across waves and baseline coverage of the panel

It reports a health score (0-100) and actionable recommendations.
Nothing is written; run it before 'empdep prepare' on a new export.`,
		Example: `  # Check the configured extracts
  empdep doctor

  # Output as JSON
  empdep doctor --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: text, json")

	return cmd
}

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	Summary         ExtractSummary `json:"summary"`
	HealthChecks    []HealthCheck  `json:"health_checks"`
	Score           int            `json:"score"`
	Recommendations []string       `json:"recommendations"`
	IssueCount      int            `json:"issue_count"`
}

// ExtractSummary contains extract-level statistics.
type ExtractSummary struct {
	Waves           int `json:"waves"`
	Rows            int `json:"rows"`
	Participants    int `json:"participants"`
	BaselineRecords int `json:"baseline_records"`
	PanelEligible   int `json:"panel_eligible"`
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	Name       string   `json:"name"`
	Target     string   `json:"target"`
	Status     string   `json:"status"` // "pass", "warn", "error"
	IssueCount int      `json:"issue_count"`
	Details    []string `json:"details,omitempty"`
}

func runDoctor(cmd *cobra.Command, opts *DoctorOptions) error {
	cmdCtx := NewCommandContextWithoutEngine(cmd)
	cfg := cmdCtx.Cfg

	cb, err := survey.LoadCodebook(cfg.Codebook)
	if err != nil {
		return err
	}

	out := buildDoctorOutput(cfg, cb)

	switch strings.ToLower(opts.Format) {
	case "", "text":
		return renderDoctorText(cmd.OutOrStdout(), out)
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	default:
		return fmt.Errorf("unknown format: %s (expected text or json)", opts.Format)
	}
}

func buildDoctorOutput(cfg *config.Config, cb *survey.Codebook) *DoctorOutput {
	var (
		checks  []HealthCheck
		summary ExtractSummary
	)

	wavePaths := cfg.WavePaths()
	participants := make(map[string]int) // id -> waves present
	for _, year := range survey.WaveYears {
		path := wavePaths[year]
		target := fmt.Sprintf("wave %d", year)

		responses, rep, err := survey.ReadWave(path, year, cb)
		if err != nil {
			checks = append(checks, HealthCheck{
				Name:       "extract readable",
				Target:     target,
				Status:     "error",
				IssueCount: 1,
				Details:    []string{err.Error()},
			})
			continue
		}

		summary.Waves++
		summary.Rows += rep.Rows
		for _, resp := range responses {
			participants[resp.ParticipantID]++
		}

		checks = append(checks, waveChecks(target, responses, rep)...)
	}
	summary.Participants = len(participants)
	for _, n := range participants {
		if n >= 2 {
			summary.PanelEligible++
		}
	}

	baselineIDs := make(map[string]bool)
	records, rep, err := survey.ReadBaseline(cfg.Extracts.Baseline, cb)
	if err != nil {
		checks = append(checks, HealthCheck{
			Name:       "extract readable",
			Target:     "baseline",
			Status:     "error",
			IssueCount: 1,
			Details:    []string{err.Error()},
		})
	} else {
		summary.BaselineRecords = len(records)
		for _, r := range records {
			baselineIDs[r.ParticipantID] = true
		}
		checks = append(checks, baselineChecks(rep)...)
	}

	checks = append(checks, panelChecks(participants, baselineIDs, summary)...)

	issueCount := 0
	for _, c := range checks {
		issueCount += c.IssueCount
	}

	return &DoctorOutput{
		Summary:         summary,
		HealthChecks:    checks,
		Score:           calculateHealthScore(checks),
		Recommendations: generateRecommendations(checks),
		IssueCount:      issueCount,
	}
}

// waveChecks builds the per-wave health checks from a parsed extract.
func waveChecks(target string, responses []survey.Response, rep *survey.ReadReport) []HealthCheck {
	var checks []HealthCheck

	// Absent columns parse as missing rather than failing the run, so this
	// is a warning even when instrument items are gone wholesale.
	fields := HealthCheck{Name: "canonical fields", Target: target, Status: "pass"}
	for _, f := range rep.MissingFields {
		fields.Details = append(fields.Details, "missing field: "+f)
	}
	if len(fields.Details) > 0 {
		fields.Status = "warn"
		fields.IssueCount = len(fields.Details)
	}
	checks = append(checks, fields)

	ids := HealthCheck{Name: "participant ids", Target: target, Status: "pass"}
	if rep.BlankIDs > 0 {
		ids.Details = append(ids.Details, fmt.Sprintf("%d rows with a blank participant_id dropped", rep.BlankIDs))
	}
	if rep.DuplicateIDs > 0 {
		ids.Details = append(ids.Details, fmt.Sprintf("%d duplicate participant_id rows (first occurrence kept)", rep.DuplicateIDs))
	}
	if len(ids.Details) > 0 {
		ids.Status = "warn"
		ids.IssueCount = len(ids.Details)
	}
	checks = append(checks, ids)

	parsing := HealthCheck{Name: "numeric parsing", Target: target, Status: "pass"}
	if rep.ParseFailures > 0 {
		parsing.Status = "warn"
		parsing.IssueCount = 1
		parsing.Details = []string{fmt.Sprintf("%d unparseable numeric values treated as missing", rep.ParseFailures)}
	}
	checks = append(checks, parsing)

	unmapped := HealthCheck{Name: "unmapped columns", Target: target, Status: "pass"}
	for _, col := range rep.UnmappedColumns {
		unmapped.Details = append(unmapped.Details, "ignored column: "+col)
	}
	if len(unmapped.Details) > 0 {
		unmapped.Status = "warn"
		unmapped.IssueCount = len(unmapped.Details)
	}
	checks = append(checks, unmapped)

	checks = append(checks, rangeCheck(target, responses))
	return checks
}

// rangeCheck counts answers outside the instrument coding, per item column.
func rangeCheck(target string, responses []survey.Response) HealthCheck {
	check := HealthCheck{Name: "instrument ranges", Target: target, Status: "pass"}

	countOutside := func(items []string, values func(survey.Response) []float64, lo, hi float64) {
		outside := make([]int, len(items))
		for _, resp := range responses {
			vs := values(resp)
			for i, v := range vs {
				if survey.IsMissing(v) {
					continue
				}
				if v < lo || v > hi {
					outside[i]++
				}
			}
		}
		for i, n := range outside {
			if n > 0 {
				check.Details = append(check.Details,
					fmt.Sprintf("%s: %d values outside %g..%g", items[i], n, lo, hi))
			}
		}
	}

	countOutside(survey.PHQItems, func(r survey.Response) []float64 { return r.PHQ }, phqItemMin, phqItemMax)
	countOutside(survey.StressAItems, func(r survey.Response) []float64 { return r.StressA }, stressItemMin, stressItemMax)
	countOutside(survey.StressBItems, func(r survey.Response) []float64 { return r.StressB }, stressItemMin, stressItemMax)

	if len(check.Details) > 0 {
		check.Status = "warn"
		check.IssueCount = len(check.Details)
	}
	return check
}

func baselineChecks(rep *survey.ReadReport) []HealthCheck {
	var checks []HealthCheck

	fields := HealthCheck{Name: "canonical fields", Target: "baseline", Status: "pass"}
	for _, f := range rep.MissingFields {
		fields.Details = append(fields.Details, "missing field: "+f)
	}
	if len(fields.Details) > 0 {
		fields.Status = "warn"
		fields.IssueCount = len(fields.Details)
	}
	checks = append(checks, fields)

	ids := HealthCheck{Name: "participant ids", Target: "baseline", Status: "pass"}
	if rep.BlankIDs > 0 {
		ids.Details = append(ids.Details, fmt.Sprintf("%d rows with a blank participant_id dropped", rep.BlankIDs))
	}
	if rep.DuplicateIDs > 0 {
		ids.Details = append(ids.Details, fmt.Sprintf("%d duplicate participant_id rows (first occurrence kept)", rep.DuplicateIDs))
	}
	if len(ids.Details) > 0 {
		ids.Status = "warn"
		ids.IssueCount = len(ids.Details)
	}
	checks = append(checks, ids)

	return checks
}

// panelChecks covers properties that span extracts: whether anyone is
// observed in two or more waves, and how much of that panel the baseline
// extract covers.
func panelChecks(participants map[string]int, baselineIDs map[string]bool, summary ExtractSummary) []HealthCheck {
	var checks []HealthCheck

	coverage := HealthCheck{Name: "panel coverage", Target: "panel", Status: "pass"}
	switch {
	case summary.Waves == 0:
		coverage.Status = "error"
		coverage.IssueCount = 1
		coverage.Details = []string{"no wave extract could be read"}
	case summary.PanelEligible == 0:
		coverage.Status = "error"
		coverage.IssueCount = 1
		coverage.Details = []string{"no participant appears in two or more waves"}
	default:
		coverage.Details = []string{fmt.Sprintf("%d of %d participants appear in two or more waves",
			summary.PanelEligible, summary.Participants)}
	}
	checks = append(checks, coverage)

	baseline := HealthCheck{Name: "baseline coverage", Target: "panel", Status: "pass"}
	if summary.PanelEligible > 0 {
		missing := 0
		for id, n := range participants {
			if n >= 2 && !baselineIDs[id] {
				missing++
			}
		}
		switch {
		case missing == summary.PanelEligible:
			baseline.Status = "error"
			baseline.IssueCount = 1
			baseline.Details = []string{"no panel participant has a baseline record"}
		case missing > 0:
			baseline.Status = "warn"
			baseline.IssueCount = 1
			baseline.Details = []string{fmt.Sprintf("%d of %d panel participants missing a baseline record",
				missing, summary.PanelEligible)}
		default:
			baseline.Details = []string{"every panel participant has a baseline record"}
		}
	}
	checks = append(checks, baseline)

	return checks
}

// calculateHealthScore computes a health score from 0-100. Each warning
// issue costs five points and errors count double.
func calculateHealthScore(checks []HealthCheck) int {
	if len(checks) == 0 {
		return 100
	}

	score := 100.0
	basePenalty := 5.0

	for _, check := range checks {
		switch check.Status {
		case "error":
			score -= float64(check.IssueCount) * basePenalty * 2
		case "warn":
			score -= float64(check.IssueCount) * basePenalty
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return int(score)
}

// generateRecommendations creates actionable recommendations based on findings.
func generateRecommendations(checks []HealthCheck) []string {
	var recommendations []string
	seen := make(map[string]bool)

	for _, check := range checks {
		if check.IssueCount == 0 {
			continue
		}

		rec := getRecommendation(check.Name)
		if rec != "" && !seen[rec] {
			recommendations = append(recommendations, rec)
			seen[rec] = true
		}
	}

	// Limit to top 5 recommendations
	if len(recommendations) > 5 {
		recommendations = recommendations[:5]
	}

	return recommendations
}

// getRecommendation returns a recommendation for a specific check.
func getRecommendation(name string) string {
	switch name {
	case "extract readable":
		return "Fix the extracts section of empdep.yaml so every path points at a readable CSV"
	case "canonical fields":
		return "Add codebook aliases so every canonical field maps to a source column"
	case "participant ids":
		return "Deduplicate participant IDs in the source export before running the pipeline"
	case "numeric parsing":
		return "Check the export for stray text in numeric columns"
	case "unmapped columns":
		return "Add codebook aliases for unmapped columns or drop them from the export"
	case "instrument ranges":
		return "Verify depression items are coded 0-3 and stress items 1-5 in the source"
	case "panel coverage":
		return "Confirm the wave extracts cover the same participant panel"
	case "baseline coverage":
		return "Locate baseline records for the panel or expect the immigrant covariate to be missing"
	default:
		return ""
	}
}

func renderDoctorText(w io.Writer, out *DoctorOutput) error {
	p := func(format string, args ...any) {
		_, _ = fmt.Fprintf(w, format+"\n", args...)
	}

	p("")
	p("Extract Health Report")
	p("%s", strings.Repeat("=", 55))
	p("")

	p("Extract Summary")
	p("   Waves readable: %d | Rows: %d | Participants: %d", out.Summary.Waves, out.Summary.Rows, out.Summary.Participants)
	p("   Baseline records: %d | Panel eligible: %d", out.Summary.BaselineRecords, out.Summary.PanelEligible)
	p("")

	p("Health Checks")
	p("")

	currentTarget := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Target != currentTarget {
			currentTarget = check.Target
			p("   %s", titleCaser.String(currentTarget))
			p("   %s", strings.Repeat("-", 40))
		}

		icon := "ok"
		switch check.Status {
		case "warn":
			icon = " !"
		case "error":
			icon = " x"
		}

		status := fmt.Sprintf("%s %s", icon, check.Name)
		if check.IssueCount > 0 {
			status += fmt.Sprintf(" (%d issues)", check.IssueCount)
		}
		p("   %s", status)

		// Show first 3 details for issues
		for i, detail := range check.Details {
			if i >= 3 {
				p("       ... and %d more", len(check.Details)-3)
				break
			}
			p("       - %s", detail)
		}
	}
	p("")

	p("%s", strings.Repeat("=", 55))
	p("   Health Score: %d/100", out.Score)
	p("")

	if len(out.Recommendations) > 0 {
		p("Recommendations")
		for i, rec := range out.Recommendations {
			p("   %d. %s", i+1, rec)
		}
		p("")
	}

	return nil
}

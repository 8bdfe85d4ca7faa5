package cohort

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/beacon-epi/empdep/internal/survey"
)

// Per-wave analytic column stems. Each appears once per wave year with a
// _YYYY suffix.
var waveColumnStems = []string{
	"observed", "completed", "age", "region", "urban", "edu_tier",
	"phq", "occ_category", "employed", "out_of_workforce", "student",
	"stress", "work_disc",
}

// participantColumns are the wave-independent analytic columns.
var participantColumns = []string{
	"gender", "gender_multiple", "gender_missing",
	"orientation", "orientation_multiple", "orientation_missing",
	"race", "race_multiple", "race_missing",
	"immigrant", "in_baseline",
	"eligible", "exclusion_reason", "transition", "censored",
}

// WaveColumn builds the year-suffixed analytic column name.
func WaveColumn(stem string, year int) string {
	return fmt.Sprintf("%s_%d", stem, year)
}

// AnalyticHeader returns the full wide-table column list in output order.
func AnalyticHeader() []string {
	header := []string{"participant_id"}
	for _, year := range survey.WaveYears {
		for _, stem := range waveColumnStems {
			header = append(header, WaveColumn(stem, year))
		}
	}
	return append(header, participantColumns...)
}

// WriteAnalytic writes the wide table as CSV. Missing numeric values are
// written as empty cells.
func WriteAnalytic(w io.Writer, c *Cohort) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(AnalyticHeader()); err != nil {
		return fmt.Errorf("failed to write analytic header: %w", err)
	}

	for _, p := range c.Participants {
		record := []string{p.ID}
		for _, year := range survey.WaveYears {
			yd := p.Year(year)
			record = append(record,
				formatBool(yd.Observed),
				formatNumber(yd.Completed),
				formatNumber(yd.Age),
				yd.Region,
				formatNumber(yd.Urban),
				formatNumber(yd.EducationTier),
				formatNumber(yd.PHQ),
				formatNumber(yd.OccCategory),
				formatNumber(yd.Employment),
				formatNumber(yd.OutOfWorkforce),
				formatBool(yd.Student),
				formatNumber(yd.Stress),
				formatNumber(yd.WorkDiscrimination),
			)
		}
		record = append(record,
			p.Gender.Category, formatNumber(p.Gender.Multiple), formatNumber(p.Gender.Missing),
			p.Orientation.Category, formatNumber(p.Orientation.Multiple), formatNumber(p.Orientation.Missing),
			p.Race.Category, formatNumber(p.Race.Multiple), formatNumber(p.Race.Missing),
			formatNumber(p.Immigrant), formatBool(p.InBaseline),
			formatBool(p.Eligible), p.ExclusionReason,
			formatNumber(p.Transition), formatNumber(p.Censored),
		)
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write analytic row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadAnalytic parses a wide table back into a cohort. Columns are matched
// by header name, so column order does not matter. Per-wave identity answers
// are not round-tripped; the carried summaries are authoritative.
func ReadAnalytic(r io.Reader) (*Cohort, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read analytic header: %w", err)
	}

	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[h] = i
	}
	if _, ok := pos["participant_id"]; !ok {
		return nil, errors.New("analytic table has no participant_id column")
	}

	get := func(record []string, name string) string {
		if i, ok := pos[name]; ok && i < len(record) {
			return record[i]
		}
		return ""
	}

	var participants []*Participant
	line := 1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read analytic row %d: %w", line+1, err)
		}
		line++

		p := newParticipant(get(record, "participant_id"))
		if p.ID == "" {
			return nil, fmt.Errorf("analytic row %d has empty participant_id", line)
		}

		for _, year := range survey.WaveYears {
			if parseBool(get(record, WaveColumn("observed", year))) {
				yd := emptyYear()
				yd.Observed = true
				yd.Completed = parseNumber(get(record, WaveColumn("completed", year)))
				yd.Age = parseNumber(get(record, WaveColumn("age", year)))
				yd.Region = get(record, WaveColumn("region", year))
				yd.Urban = parseNumber(get(record, WaveColumn("urban", year)))
				yd.EducationTier = parseNumber(get(record, WaveColumn("edu_tier", year)))
				yd.PHQ = parseNumber(get(record, WaveColumn("phq", year)))
				yd.OccCategory = parseNumber(get(record, WaveColumn("occ_category", year)))
				yd.Employment = parseNumber(get(record, WaveColumn("employed", year)))
				yd.OutOfWorkforce = parseNumber(get(record, WaveColumn("out_of_workforce", year)))
				yd.Student = parseBool(get(record, WaveColumn("student", year)))
				yd.Stress = parseNumber(get(record, WaveColumn("stress", year)))
				yd.WorkDiscrimination = parseNumber(get(record, WaveColumn("work_disc", year)))
				p.Years[year] = yd
			}
		}

		p.Gender = IdentitySummary{
			Category: get(record, "gender"),
			Multiple: parseNumber(get(record, "gender_multiple")),
			Missing:  parseNumber(get(record, "gender_missing")),
		}
		p.Orientation = IdentitySummary{
			Category: get(record, "orientation"),
			Multiple: parseNumber(get(record, "orientation_multiple")),
			Missing:  parseNumber(get(record, "orientation_missing")),
		}
		p.Race = IdentitySummary{
			Category: get(record, "race"),
			Multiple: parseNumber(get(record, "race_multiple")),
			Missing:  parseNumber(get(record, "race_missing")),
		}
		p.Immigrant = parseNumber(get(record, "immigrant"))
		p.InBaseline = parseBool(get(record, "in_baseline"))
		p.Eligible = parseBool(get(record, "eligible"))
		p.ExclusionReason = get(record, "exclusion_reason")
		p.Transition = parseNumber(get(record, "transition"))
		p.Censored = parseNumber(get(record, "censored"))

		participants = append(participants, p)
	}

	sort.Slice(participants, func(i, j int) bool {
		return participants[i].ID < participants[j].ID
	})

	c := &Cohort{
		Participants: participants,
		index:        make(map[string]int, len(participants)),
	}
	for i, p := range participants {
		if _, dup := c.index[p.ID]; dup {
			return nil, fmt.Errorf("analytic table has duplicate participant %s", p.ID)
		}
		c.index[p.ID] = i
	}

	return c, nil
}

func formatNumber(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func parseNumber(s string) float64 {
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func parseBool(s string) bool { return s == "1" }

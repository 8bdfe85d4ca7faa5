package weights

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// weightHeader is the persisted weight-table column list in output order.
var weightHeader = []string{
	"participant_id",
	"treatment_first", "treatment_second", "treatment",
	"censoring", "combined",
	"treatment_truncated", "censoring_truncated", "combined_truncated",
}

// WriteTable writes the weight rows as CSV so an analysis run can reuse
// them without refitting the propensity models.
func WriteTable(w io.Writer, res *Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(weightHeader); err != nil {
		return fmt.Errorf("failed to write weight header: %w", err)
	}

	for i := range res.Rows {
		row := &res.Rows[i]
		record := []string{
			row.ParticipantID,
			formatWeight(row.TreatmentFirst),
			formatWeight(row.TreatmentSecond),
			formatWeight(row.Treatment),
			formatWeight(row.Censoring),
			formatWeight(row.Combined),
			formatWeight(row.TreatmentTruncated),
			formatWeight(row.CensoringTruncated),
			formatWeight(row.CombinedTruncated),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write weight row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadTable parses a persisted weight table. Columns are matched by header
// name. Model diagnostics are not persisted, so the reloaded result carries
// distribution summaries only.
func ReadTable(r io.Reader) (*Result, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read weight header: %w", err)
	}

	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[h] = i
	}
	for _, name := range weightHeader {
		if _, ok := pos[name]; !ok {
			return nil, fmt.Errorf("weight table has no %s column", name)
		}
	}

	seen := make(map[string]bool)
	var rows []Row
	line := 1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read weight row %d: %w", line+1, err)
		}
		line++

		row := Row{ParticipantID: record[pos["participant_id"]]}
		if row.ParticipantID == "" {
			return nil, fmt.Errorf("weight row %d has empty participant_id", line)
		}
		if seen[row.ParticipantID] {
			return nil, fmt.Errorf("weight table has duplicate participant %s", row.ParticipantID)
		}
		seen[row.ParticipantID] = true

		for name, dst := range map[string]*float64{
			"treatment_first":     &row.TreatmentFirst,
			"treatment_second":    &row.TreatmentSecond,
			"treatment":           &row.Treatment,
			"censoring":           &row.Censoring,
			"combined":            &row.Combined,
			"treatment_truncated": &row.TreatmentTruncated,
			"censoring_truncated": &row.CensoringTruncated,
			"combined_truncated":  &row.CombinedTruncated,
		} {
			v, err := parseWeight(record[pos[name]])
			if err != nil {
				return nil, fmt.Errorf("weight row %d has invalid %s: %w", line, name, err)
			}
			*dst = v
		}
		rows = append(rows, row)
	}

	return NewResult(rows), nil
}

func formatWeight(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func parseWeight(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, fmt.Errorf("weight %v is not positive", v)
	}
	return v, nil
}

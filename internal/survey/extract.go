package survey

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
)

// ReadReport summarizes what a reader accepted and what it had to set
// aside. Counts here feed the pipeline's exclusion accounting; nothing is
// dropped silently.
type ReadReport struct {
	Path            string
	Rows            int
	Kept            int
	BlankIDs        int
	DuplicateIDs    int
	ParseFailures   int
	UnmappedColumns []string
	MissingFields   []string
}

// ReadWave parses one annual wave extract into harmonized responses.
// The first row must be a header; headers are matched through the codebook.
// Duplicate participant IDs keep the first occurrence.
func ReadWave(path string, year int, cb *Codebook) ([]Response, *ReadReport, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from user config
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open extract: %w", err)
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	headers, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s header: %w", path, err)
	}

	cols, report, err := mapColumns(headers, path, cb)
	if err != nil {
		return nil, nil, err
	}
	report.MissingFields = missingWaveFields(cols)

	var responses []Response
	seen := make(map[string]bool)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read %s row %d: %w", path, report.Rows+2, err)
		}
		report.Rows++

		id := strings.TrimSpace(record[cols.idIdx])
		if id == "" {
			report.BlankIDs++
			continue
		}
		if seen[id] {
			report.DuplicateIDs++
			continue
		}
		seen[id] = true

		resp := newResponse(id, year)
		for i, raw := range record {
			name, ok := cols.byIndex[i]
			if !ok || name == ColParticipantID {
				continue
			}
			assign(&resp, name, raw, report)
		}
		responses = append(responses, resp)
		report.Kept++
	}

	return responses, report, nil
}

// ReadBaseline parses the lifetime baseline extract. Only the participant
// ID and the immigration status field are consumed; other columns are
// reported as unmapped.
func ReadBaseline(path string, cb *Codebook) ([]BaselineRecord, *ReadReport, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from user config
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open baseline extract: %w", err)
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	headers, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s header: %w", path, err)
	}

	cols, report, err := mapColumns(headers, path, cb)
	if err != nil {
		return nil, nil, err
	}
	if _, ok := cols.byName[ColImmigrant]; !ok {
		report.MissingFields = append(report.MissingFields, ColImmigrant)
	}

	var records []BaselineRecord
	seen := make(map[string]bool)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read %s row %d: %w", path, report.Rows+2, err)
		}
		report.Rows++

		id := strings.TrimSpace(record[cols.idIdx])
		if id == "" {
			report.BlankIDs++
			continue
		}
		if seen[id] {
			report.DuplicateIDs++
			continue
		}
		seen[id] = true

		rec := BaselineRecord{ParticipantID: id, Immigrant: math.NaN()}
		if idx, ok := cols.byName[ColImmigrant]; ok {
			rec.Immigrant = parseNumber(record[idx], report)
		}
		records = append(records, rec)
		report.Kept++
	}

	return records, report, nil
}

// columnMap resolves CSV positions to canonical field names.
type columnMap struct {
	byIndex map[int]string
	byName  map[string]int
	idIdx   int
}

// mapColumns matches raw headers against the codebook. When two source
// columns collapse to the same canonical field, the first mapping wins.
func mapColumns(headers []string, path string, cb *Codebook) (*columnMap, *ReadReport, error) {
	cols := &columnMap{
		byIndex: make(map[int]string, len(headers)),
		byName:  make(map[string]int, len(headers)),
		idIdx:   -1,
	}
	report := &ReadReport{Path: path}

	for i, h := range headers {
		name, ok := cb.Resolve(h)
		if !ok {
			report.UnmappedColumns = append(report.UnmappedColumns, h)
			continue
		}
		if _, dup := cols.byName[name]; dup {
			continue
		}
		cols.byIndex[i] = name
		cols.byName[name] = i
		if name == ColParticipantID {
			cols.idIdx = i
		}
	}
	sort.Strings(report.UnmappedColumns)

	if cols.idIdx < 0 {
		return nil, nil, fmt.Errorf("extract %s has no %s column", path, ColParticipantID)
	}
	return cols, report, nil
}

// assign parses one raw cell into the right Response field.
func assign(resp *Response, name, raw string, report *ReadReport) {
	switch name {
	case ColCompleted:
		resp.Completed = parseNumber(raw, report)
	case ColAge:
		resp.Age = parseNumber(raw, report)
	case ColRegion:
		resp.Region = strings.TrimSpace(raw)
	case ColUrbanicity:
		resp.Urbanicity = parseNumber(raw, report)
	case ColEducation:
		resp.Education = parseNumber(raw, report)
	case ColWorkDiscrimination:
		resp.WorkDiscrimination = parseNumber(raw, report)
	default:
		if idx, ok := itemIndex(PHQItems, name); ok {
			resp.PHQ[idx] = parseNumber(raw, report)
		} else if idx, ok := itemIndex(OccupationItems, name); ok {
			resp.Occupation[idx] = parseNumber(raw, report)
		} else if idx, ok := itemIndex(StressAItems, name); ok {
			resp.StressA[idx] = parseNumber(raw, report)
		} else if idx, ok := itemIndex(StressBItems, name); ok {
			resp.StressB[idx] = parseNumber(raw, report)
		} else if idx, ok := itemIndex(GenderItems, name); ok {
			resp.Gender[idx] = parseNumber(raw, report)
		} else if idx, ok := itemIndex(OrientationItems, name); ok {
			resp.Orientation[idx] = parseNumber(raw, report)
		} else if idx, ok := itemIndex(RaceItems, name); ok {
			resp.Race[idx] = parseNumber(raw, report)
		}
	}
}

func itemIndex(items []string, name string) (int, bool) {
	for i, item := range items {
		if item == name {
			return i, true
		}
	}
	return 0, false
}

// newResponse returns a Response with every numeric field missing.
func newResponse(id string, year int) Response {
	return Response{
		ParticipantID:      id,
		Year:               year,
		Completed:          math.NaN(),
		Age:                math.NaN(),
		Urbanicity:         math.NaN(),
		Education:          math.NaN(),
		WorkDiscrimination: math.NaN(),
		PHQ:                filledNaN(len(PHQItems)),
		Occupation:         filledNaN(len(OccupationItems)),
		StressA:            filledNaN(len(StressAItems)),
		StressB:            filledNaN(len(StressBItems)),
		Gender:             filledNaN(len(GenderItems)),
		Orientation:        filledNaN(len(OrientationItems)),
		Race:               filledNaN(len(RaceItems)),
	}
}

func filledNaN(n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = math.NaN()
	}
	return v
}

// parseNumber converts a raw cell to a float64, mapping the empty string and
// common sentinel spellings to NaN. Unparseable non-empty values also become
// NaN and are counted as parse failures.
func parseNumber(raw string, report *ReadReport) float64 {
	s := strings.TrimSpace(raw)
	switch strings.ToLower(s) {
	case "", ".", "na", "n/a", "nan", "null", "missing":
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		if report != nil {
			report.ParseFailures++
		}
		return math.NaN()
	}
	return v
}

// missingWaveFields lists canonical wave fields absent from the extract.
func missingWaveFields(cols *columnMap) []string {
	var missing []string
	check := func(names ...string) {
		for _, n := range names {
			if _, ok := cols.byName[n]; !ok {
				missing = append(missing, n)
			}
		}
	}
	check(ColCompleted, ColAge, ColRegion, ColUrbanicity, ColEducation, ColWorkDiscrimination)
	check(PHQItems...)
	check(OccupationItems...)
	check(StressAItems...)
	check(StressBItems...)
	check(GenderItems...)
	check(OrientationItems...)
	check(RaceItems...)
	return missing
}

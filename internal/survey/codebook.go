package survey

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// FieldSpec declares one harmonized field and the source header spellings
// that map onto it.
type FieldSpec struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases,omitempty"`
}

// Codebook maps raw extract headers onto the canonical schema. Matching is
// performed on normalized header names, so a codebook only needs aliases for
// spellings that normalization alone cannot resolve.
type Codebook struct {
	Fields []FieldSpec `yaml:"fields"`

	// index maps normalized source names to canonical field names.
	index map[string]string
}

// DefaultCodebook returns the built-in codebook covering the column
// spellings observed across the 2021-2023 exports and the baseline extract.
func DefaultCodebook() *Codebook {
	cb := &Codebook{
		Fields: []FieldSpec{
			{Name: ColParticipantID, Aliases: []string{"responseid", "respondent_id", "pid", "participant"}},
			{Name: ColCompleted, Aliases: []string{"finished", "complete", "survey_complete"}},
			{Name: ColAge, Aliases: []string{"age_years", "q_age"}},
			{Name: ColRegion, Aliases: []string{"region_code", "census_region"}},
			{Name: ColUrbanicity, Aliases: []string{"ruca", "rural_urban", "urban_rural_code"}},
			{Name: ColEducation, Aliases: []string{"education_level", "educ", "q_education"}},
			{Name: ColWorkDiscrimination, Aliases: []string{"workdisc", "work_disc", "discrimination_work"}},
			{Name: ColImmigrant, Aliases: []string{"immigrant_status", "born_outside_us", "immigration"}},
		},
	}
	for i, name := range PHQItems {
		cb.Fields = append(cb.Fields, FieldSpec{
			Name:    name,
			Aliases: []string{fmt.Sprintf("phq9_%d", i+1), fmt.Sprintf("phq_item_%d", i+1)},
		})
	}
	occAliases := [][]string{
		{"employed_fulltime", "work_fulltime"},
		{"employed_parttime", "work_parttime"},
		{"employed_temp", "work_temporary", "gig_work"},
		{"self_employed", "work_self"},
		{"unemployed_seeking", "looking_for_work"},
		{"student", "in_school"},
		{"homemaker", "stay_at_home"},
		{"retired"},
		{"disabled", "unable_to_work"},
		{"unemployed_not_seeking", "not_looking"},
		{"occ_something_else", "work_other"},
	}
	for i, name := range OccupationItems {
		cb.Fields = append(cb.Fields, FieldSpec{Name: name, Aliases: occAliases[i]})
	}
	for i, name := range StressAItems {
		cb.Fields = append(cb.Fields, FieldSpec{
			Name:    name,
			Aliases: []string{fmt.Sprintf("ms_distal_%d", i+1)},
		})
	}
	for i, name := range StressBItems {
		cb.Fields = append(cb.Fields, FieldSpec{
			Name:    name,
			Aliases: []string{fmt.Sprintf("ms_proximal_%d", i+1)},
		})
	}
	for _, name := range GenderItems {
		cb.Fields = append(cb.Fields, FieldSpec{Name: name})
	}
	for _, name := range OrientationItems {
		cb.Fields = append(cb.Fields, FieldSpec{Name: name})
	}
	for _, name := range RaceItems {
		cb.Fields = append(cb.Fields, FieldSpec{Name: name})
	}
	cb.buildIndex()
	return cb
}

// LoadCodebook reads a codebook YAML file and merges it over the defaults.
// Fields in the file extend or replace the default aliases for the same
// canonical name; unknown canonical names are rejected.
func LoadCodebook(path string) (*Codebook, error) {
	cb := DefaultCodebook()
	if path == "" {
		return cb, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // path comes from user config
	if err != nil {
		return nil, fmt.Errorf("failed to read codebook: %w", err)
	}

	var overlay Codebook
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("failed to parse codebook %s: %w", path, err)
	}

	known := make(map[string]int, len(cb.Fields))
	for i, f := range cb.Fields {
		known[f.Name] = i
	}

	for _, f := range overlay.Fields {
		idx, ok := known[f.Name]
		if !ok {
			return nil, fmt.Errorf("codebook %s: unknown field %q", path, f.Name)
		}
		cb.Fields[idx].Aliases = append(cb.Fields[idx].Aliases, f.Aliases...)
	}

	cb.buildIndex()
	return cb, nil
}

// buildIndex rebuilds the normalized lookup table.
func (cb *Codebook) buildIndex() {
	cb.index = make(map[string]string, len(cb.Fields)*2)
	for _, f := range cb.Fields {
		cb.index[NormalizeHeader(f.Name)] = f.Name
		for _, a := range f.Aliases {
			cb.index[NormalizeHeader(a)] = f.Name
		}
	}
}

// Resolve maps a raw source header to its canonical field name. The second
// return value reports whether the header is known to the codebook.
func (cb *Codebook) Resolve(header string) (string, bool) {
	if cb.index == nil {
		cb.buildIndex()
	}
	name, ok := cb.index[NormalizeHeader(header)]
	return name, ok
}

// NormalizeHeader lowercases a header and collapses runs of non-alphanumeric
// characters to single underscores, so "PHQ-9 Item 1" and "phq_9 item 1"
// compare equal before any alias lookup.
func NormalizeHeader(h string) string {
	var b strings.Builder
	b.Grow(len(h))
	lastUnderscore := true
	for _, r := range strings.ToLower(strings.TrimSpace(h)) {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if isAlnum {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

package weights

import (
	"fmt"
	"math"
	"sort"

	"github.com/beacon-epi/empdep/internal/cohort"
	"github.com/beacon-epi/empdep/internal/derive"
	"github.com/beacon-epi/empdep/internal/stats"
	"github.com/beacon-epi/empdep/internal/survey"
)

// builder assembles the propensity-model designs over the eligible rows.
// Covariates with no variation are left out of every model and recorded, so
// degenerate strata surface in diagnostics instead of singular matrices.
type builder struct {
	rows    []*cohort.Participant
	dropped []string
	seen    map[string]bool
}

func newBuilder(rows []*cohort.Participant) *builder {
	return &builder{rows: rows, seen: make(map[string]bool)}
}

// baselineDesign starts a design with the intercept and the time-invariant
// covariates: first-wave age, region, and education tier, the resolved
// identity summaries, and the baseline immigration indicator.
func (b *builder) baselineDesign() (*stats.Design, error) {
	d := stats.NewDesign(len(b.rows))
	d.AddIntercept()

	age := b.waveValues(survey.WaveFirst, func(yd *cohort.YearData) float64 { return yd.Age })
	if err := b.addNumeric(d, cohort.WaveColumn("age", survey.WaveFirst), age); err != nil {
		return nil, err
	}
	if err := b.addCategorical(d, cohort.WaveColumn("region", survey.WaveFirst), b.regions(survey.WaveFirst)); err != nil {
		return nil, err
	}
	if err := b.addCategorical(d, cohort.WaveColumn("edu_tier", survey.WaveFirst), b.educationTiers(survey.WaveFirst)); err != nil {
		return nil, err
	}
	if err := b.addCategorical(d, "gender", b.identities(func(p *cohort.Participant) cohort.IdentitySummary { return p.Gender })); err != nil {
		return nil, err
	}
	if err := b.addCategorical(d, "orientation", b.identities(func(p *cohort.Participant) cohort.IdentitySummary { return p.Orientation })); err != nil {
		return nil, err
	}
	if err := b.addCategorical(d, "race", b.identities(func(p *cohort.Participant) cohort.IdentitySummary { return p.Race })); err != nil {
		return nil, err
	}
	immigrant := b.participantValues(func(p *cohort.Participant) float64 { return p.Immigrant })
	if err := b.addNumeric(d, "immigrant", immigrant); err != nil {
		return nil, err
	}
	return d, nil
}

// treatmentDenominator builds the design for observed employment at a wave:
// the baseline block plus every covariate measured up to and including that
// wave, with prior employment once it exists.
func (b *builder) treatmentDenominator(year int) (*stats.Design, error) {
	d, err := b.baselineDesign()
	if err != nil {
		return nil, err
	}
	if err := b.addWaveBlock(d, survey.WaveFirst); err != nil {
		return nil, err
	}
	if year == survey.WaveSecond {
		if err := b.addWaveBlock(d, survey.WaveSecond); err != nil {
			return nil, err
		}
		if err := b.addEmployment(d, survey.WaveFirst); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// treatmentNumerator builds the stabilizing design for a wave: the baseline
// block plus prior employment once it exists.
func (b *builder) treatmentNumerator(year int) (*stats.Design, error) {
	d, err := b.baselineDesign()
	if err != nil {
		return nil, err
	}
	if year == survey.WaveSecond {
		if err := b.addEmployment(d, survey.WaveFirst); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// censoringDenominator conditions on the full history measured before the
// final wave: both covariate blocks and both employment indicators.
func (b *builder) censoringDenominator() (*stats.Design, error) {
	d, err := b.baselineDesign()
	if err != nil {
		return nil, err
	}
	for _, year := range []int{survey.WaveFirst, survey.WaveSecond} {
		if err := b.addWaveBlock(d, year); err != nil {
			return nil, err
		}
	}
	return d, b.addEmploymentHistory(d)
}

// censoringNumerator conditions on the baseline block and the employment
// history only.
func (b *builder) censoringNumerator() (*stats.Design, error) {
	d, err := b.baselineDesign()
	if err != nil {
		return nil, err
	}
	return d, b.addEmploymentHistory(d)
}

func (b *builder) addEmploymentHistory(d *stats.Design) error {
	for _, year := range []int{survey.WaveFirst, survey.WaveSecond} {
		if err := b.addEmployment(d, year); err != nil {
			return err
		}
	}
	return nil
}

// addWaveBlock appends the covariates measured at one wave: urbanicity,
// minority stress, workplace discrimination, and the depression total.
func (b *builder) addWaveBlock(d *stats.Design, year int) error {
	blocks := []struct {
		stem string
		get  func(*cohort.YearData) float64
	}{
		{"urban", func(yd *cohort.YearData) float64 { return yd.Urban }},
		{"stress", func(yd *cohort.YearData) float64 { return yd.Stress }},
		{"work_disc", func(yd *cohort.YearData) float64 { return yd.WorkDiscrimination }},
		{"phq", func(yd *cohort.YearData) float64 { return yd.PHQ }},
	}
	for _, blk := range blocks {
		if err := b.addNumeric(d, cohort.WaveColumn(blk.stem, year), b.waveValues(year, blk.get)); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) addEmployment(d *stats.Design, year int) error {
	return b.addNumeric(d, cohort.WaveColumn("employed", year), b.employment(year))
}

// employment returns the employment indicator column for a wave.
func (b *builder) employment(year int) []float64 {
	return b.waveValues(year, func(yd *cohort.YearData) float64 { return yd.Employment })
}

func (b *builder) waveValues(year int, get func(*cohort.YearData) float64) []float64 {
	out := make([]float64, len(b.rows))
	for i, p := range b.rows {
		out[i] = get(p.Year(year))
	}
	return out
}

func (b *builder) participantValues(get func(*cohort.Participant) float64) []float64 {
	out := make([]float64, len(b.rows))
	for i, p := range b.rows {
		out[i] = get(p)
	}
	return out
}

func (b *builder) regions(year int) []string {
	out := make([]string, len(b.rows))
	for i, p := range b.rows {
		out[i] = p.Year(year).Region
	}
	return out
}

func (b *builder) educationTiers(year int) []string {
	out := make([]string, len(b.rows))
	for i, p := range b.rows {
		tier := p.Year(year).EducationTier
		if math.IsNaN(tier) {
			continue
		}
		out[i] = derive.EducationTierLabels[int(tier)]
	}
	return out
}

func (b *builder) identities(get func(*cohort.Participant) cohort.IdentitySummary) []string {
	out := make([]string, len(b.rows))
	for i, p := range b.rows {
		out[i] = get(p).Category
	}
	return out
}

// addNumeric adds a numeric covariate unless it is degenerate. A column with
// fewer than two distinct observed values would duplicate the intercept or
// its own missingness indicator.
func (b *builder) addNumeric(d *stats.Design, name string, values []float64) error {
	if !varies(values) {
		b.drop(name)
		return nil
	}
	if err := d.AddNumeric(name, values); err != nil {
		return fmt.Errorf("failed to add covariate %s: %w", name, err)
	}
	return nil
}

// addCategorical adds dummies against the most frequent level. A column with
// a single observed level is dropped and recorded, like a constant numeric.
func (b *builder) addCategorical(d *stats.Design, name string, values []string) error {
	counts := levelCounts(values)
	if len(counts) < 2 {
		b.drop(name)
		return nil
	}
	if err := d.AddCategorical(name, values, modalLevel(counts)); err != nil {
		return fmt.Errorf("failed to add covariate %s: %w", name, err)
	}
	return nil
}

func (b *builder) drop(name string) {
	if b.seen[name] {
		return
	}
	b.seen[name] = true
	b.dropped = append(b.dropped, name)
}

// varies reports whether a column has at least two distinct observed values.
func varies(values []float64) bool {
	var first float64
	seen := false
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if !seen {
			first, seen = v, true
			continue
		}
		if v != first {
			return true
		}
	}
	return false
}

// levelCounts tallies the observed levels, counting missing as its own level.
func levelCounts(values []string) map[string]int {
	counts := make(map[string]int)
	for _, v := range values {
		if v == "" {
			v = stats.MissingLevel
		}
		counts[v]++
	}
	return counts
}

// modalLevel returns the most frequent level. Ties break toward the
// lexicographically smallest level.
func modalLevel(counts map[string]int) string {
	levels := make([]string, 0, len(counts))
	for lvl := range counts {
		levels = append(levels, lvl)
	}
	sort.Strings(levels)

	best := ""
	for _, lvl := range levels {
		if best == "" || counts[lvl] > counts[best] {
			best = lvl
		}
	}
	return best
}

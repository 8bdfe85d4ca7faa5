// Package weights constructs the stabilized inverse-probability weights for
// the weighted outcome model: per-wave employment weights, a final-wave
// censoring weight, and their percentile-truncated combination.
//
// Each weight is a ratio of two fitted probabilities evaluated at the
// participant's observed value. The denominator model conditions on the full
// covariate history up to and including that wave; the numerator conditions
// on the time-invariant covariates plus prior employment only. The treatment
// weight is the product of the per-wave ratios; the censoring ratio enters
// once, for completion of the final-wave outcome.
package weights

import (
	"errors"
	"fmt"
	"math"

	"github.com/beacon-epi/empdep/internal/cohort"
	"github.com/beacon-epi/empdep/internal/stats"
	"github.com/beacon-epi/empdep/internal/survey"
)

// DefaultTruncationQuantile caps each weight component at its empirical
// 99th percentile.
const DefaultTruncationQuantile = 0.99

// Config controls weight construction.
type Config struct {
	// TruncationQuantile is the empirical quantile at which each weight
	// component is capped, in (0, 1]. 1 disables truncation.
	TruncationQuantile float64
}

// DefaultConfig returns the conventional configuration.
func DefaultConfig() Config {
	return Config{TruncationQuantile: DefaultTruncationQuantile}
}

// Row holds one eligible participant's weights.
type Row struct {
	ParticipantID string

	// TreatmentFirst and TreatmentSecond are the stabilized ratios for
	// observed employment at the first and second waves; Treatment is
	// their product.
	TreatmentFirst  float64
	TreatmentSecond float64
	Treatment       float64

	// Censoring is the stabilized ratio for the final-wave censoring
	// indicator.
	Censoring float64

	// Combined is Treatment times Censoring, before truncation.
	Combined float64

	// Truncated components and their product. Each component is capped
	// at its own empirical quantile across the eligible rows.
	TreatmentTruncated float64
	CensoringTruncated float64
	CombinedTruncated  float64
}

// ModelSummary reports one propensity-model fit.
type ModelSummary struct {
	Name       string
	N          int
	Terms      int
	Deviance   float64
	Iterations int
	Converged  bool
}

// Diagnostics summarizes weight construction for reporting.
type Diagnostics struct {
	// Eligible is the number of weighted rows.
	Eligible int
	// Models lists the six propensity fits in construction order.
	Models []ModelSummary
	// DroppedCovariates lists covariates left out of every model for
	// having no variation among the eligible rows.
	DroppedCovariates []string

	// TreatmentCap and CensoringCap are the empirical caps applied to
	// the two weight components.
	TreatmentCap float64
	CensoringCap float64

	Treatment          stats.Summary
	Censoring          stats.Summary
	Combined           stats.Summary
	TreatmentTruncated stats.Summary
	CensoringTruncated stats.Summary
	CombinedTruncated  stats.Summary
}

// Result holds the weight table and its diagnostics. Rows follow the
// cohort's participant order.
type Result struct {
	Rows        []Row
	Diagnostics Diagnostics

	index map[string]int
}

// NewResult wraps an existing weight table, indexing it by participant.
// Used when weights are reloaded from a persisted table instead of rebuilt.
func NewResult(rows []Row) *Result {
	r := &Result{Rows: rows, index: make(map[string]int, len(rows))}
	for i := range rows {
		r.index[rows[i].ParticipantID] = i
	}
	r.Diagnostics.Eligible = len(rows)
	summarize(rows, &r.Diagnostics)
	return r
}

// Lookup returns the weight row for a participant.
func (r *Result) Lookup(id string) (Row, bool) {
	i, ok := r.index[id]
	if !ok {
		return Row{}, false
	}
	return r.Rows[i], true
}

// Build fits the propensity models over the eligible participants and
// assembles the per-participant weights.
func Build(c *cohort.Cohort, cfg Config) (*Result, error) {
	if cfg.TruncationQuantile <= 0 || cfg.TruncationQuantile > 1 {
		return nil, fmt.Errorf("truncation quantile %v out of range (0, 1]", cfg.TruncationQuantile)
	}

	var rows []*cohort.Participant
	for _, p := range c.Participants {
		if p.Eligible {
			rows = append(rows, p)
		}
	}
	if len(rows) == 0 {
		return nil, errors.New("no eligible participants to weight")
	}

	b := newBuilder(rows)
	empFirst := b.employment(survey.WaveFirst)
	empSecond := b.employment(survey.WaveSecond)
	censored := b.participantValues(func(p *cohort.Participant) float64 { return p.Censored })

	var summaries []ModelSummary
	fit := func(name string, d *stats.Design, y []float64) (*stats.LogitModel, error) {
		m, err := stats.FitLogit(d, y)
		if err != nil {
			return nil, fmt.Errorf("failed to fit %s model: %w", name, err)
		}
		summaries = append(summaries, ModelSummary{
			Name:       name,
			N:          m.N,
			Terms:      len(m.Names),
			Deviance:   m.Deviance,
			Iterations: m.Iterations,
			Converged:  m.Converged,
		})
		return m, nil
	}

	denomFirst, err := b.treatmentDenominator(survey.WaveFirst)
	if err != nil {
		return nil, err
	}
	numerFirst, err := b.treatmentNumerator(survey.WaveFirst)
	if err != nil {
		return nil, err
	}
	denomSecond, err := b.treatmentDenominator(survey.WaveSecond)
	if err != nil {
		return nil, err
	}
	numerSecond, err := b.treatmentNumerator(survey.WaveSecond)
	if err != nil {
		return nil, err
	}
	denomCensor, err := b.censoringDenominator()
	if err != nil {
		return nil, err
	}
	numerCensor, err := b.censoringNumerator()
	if err != nil {
		return nil, err
	}

	mDenomFirst, err := fit("first-wave employment denominator", denomFirst, empFirst)
	if err != nil {
		return nil, err
	}
	mNumerFirst, err := fit("first-wave employment numerator", numerFirst, empFirst)
	if err != nil {
		return nil, err
	}
	mDenomSecond, err := fit("second-wave employment denominator", denomSecond, empSecond)
	if err != nil {
		return nil, err
	}
	mNumerSecond, err := fit("second-wave employment numerator", numerSecond, empSecond)
	if err != nil {
		return nil, err
	}
	mDenomCensor, err := fit("censoring denominator", denomCensor, censored)
	if err != nil {
		return nil, err
	}
	mNumerCensor, err := fit("censoring numerator", numerCensor, censored)
	if err != nil {
		return nil, err
	}

	out := &Result{
		Rows:  make([]Row, len(rows)),
		index: make(map[string]int, len(rows)),
	}
	for i, p := range rows {
		wFirst := ratio(mNumerFirst, mDenomFirst, i, empFirst[i])
		wSecond := ratio(mNumerSecond, mDenomSecond, i, empSecond[i])
		wCensor := ratio(mNumerCensor, mDenomCensor, i, censored[i])

		row := Row{
			ParticipantID:   p.ID,
			TreatmentFirst:  wFirst,
			TreatmentSecond: wSecond,
			Treatment:       wFirst * wSecond,
			Censoring:       wCensor,
		}
		row.Combined = row.Treatment * row.Censoring
		out.Rows[i] = row
		out.index[p.ID] = i
	}

	if err := validatePositive(out.Rows); err != nil {
		return nil, err
	}

	truncate(out.Rows, cfg.TruncationQuantile, &out.Diagnostics)
	out.Diagnostics.Eligible = len(rows)
	out.Diagnostics.Models = summaries
	out.Diagnostics.DroppedCovariates = b.dropped
	summarize(out.Rows, &out.Diagnostics)

	return out, nil
}

// ratio evaluates one stabilized contribution at the observed value.
func ratio(numer, denom *stats.LogitModel, row int, observed float64) float64 {
	return numer.DensityAt(row, observed) / denom.DensityAt(row, observed)
}

func validatePositive(rows []Row) error {
	for i := range rows {
		r := &rows[i]
		for _, v := range []float64{r.TreatmentFirst, r.TreatmentSecond, r.Censoring} {
			if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
				return fmt.Errorf("participant %s has non-positive weight component %v", r.ParticipantID, v)
			}
		}
	}
	return nil
}

// truncate caps the treatment and censoring components at their own
// empirical quantiles and recomputes the combined weight as the product of
// the capped components.
func truncate(rows []Row, q float64, diag *Diagnostics) {
	treatment := make([]float64, len(rows))
	censoring := make([]float64, len(rows))
	for i := range rows {
		treatment[i] = rows[i].Treatment
		censoring[i] = rows[i].Censoring
	}
	diag.TreatmentCap = stats.Quantile(q, treatment)
	diag.CensoringCap = stats.Quantile(q, censoring)

	for i := range rows {
		rows[i].TreatmentTruncated = math.Min(rows[i].Treatment, diag.TreatmentCap)
		rows[i].CensoringTruncated = math.Min(rows[i].Censoring, diag.CensoringCap)
		rows[i].CombinedTruncated = rows[i].TreatmentTruncated * rows[i].CensoringTruncated
	}
}

func summarize(rows []Row, diag *Diagnostics) {
	col := func(get func(*Row) float64) []float64 {
		out := make([]float64, len(rows))
		for i := range rows {
			out[i] = get(&rows[i])
		}
		return out
	}
	diag.Treatment = stats.Describe(col(func(r *Row) float64 { return r.Treatment }))
	diag.Censoring = stats.Describe(col(func(r *Row) float64 { return r.Censoring }))
	diag.Combined = stats.Describe(col(func(r *Row) float64 { return r.Combined }))
	diag.TreatmentTruncated = stats.Describe(col(func(r *Row) float64 { return r.TreatmentTruncated }))
	diag.CensoringTruncated = stats.Describe(col(func(r *Row) float64 { return r.CensoringTruncated }))
	diag.CombinedTruncated = stats.Describe(col(func(r *Row) float64 { return r.CombinedTruncated }))
}

// Package analysis fits the outcome comparisons: the unadjusted contrast of
// final-wave depression across employment transitions, and the weighted
// contrast using the truncated combined weights.
package analysis

import (
	"errors"
	"fmt"
	"math"

	"github.com/beacon-epi/empdep/internal/cohort"
	"github.com/beacon-epi/empdep/internal/derive"
	"github.com/beacon-epi/empdep/internal/stats"
	"github.com/beacon-epi/empdep/internal/survey"
	"github.com/beacon-epi/empdep/internal/weights"
)

// Contrast is one transition group's mean difference in the final-wave
// depression total against the stable-employed reference.
type Contrast struct {
	Transition int
	Label      string
	N          int
	Estimate   float64
	SE         float64
	Z          float64
	P          float64
	ConfLow    float64
	ConfHigh   float64
}

// Reference describes the stable-employed reference group.
type Reference struct {
	Label    string
	N        int
	Mean     float64
	SE       float64
	ConfLow  float64
	ConfHigh float64
}

// Model is one fitted outcome comparison.
type Model struct {
	Name      string
	N         int
	Clusters  int
	Reference Reference
	Contrasts []Contrast
}

// Unadjusted fits ordinary least squares of the final-wave depression total
// on the transition category over eligible uncensored participants, with
// heteroskedasticity-robust errors.
func Unadjusted(c *cohort.Cohort) (*Model, error) {
	rows, y, err := outcomeRows(c)
	if err != nil {
		return nil, err
	}
	return fitTransitionModel("unadjusted", rows, y, nil, nil)
}

// Weighted fits the same comparison weighted by the truncated combined
// weight, with participant-clustered robust errors under an independence
// working correlation.
func Weighted(c *cohort.Cohort, w *weights.Result) (*Model, error) {
	rows, y, err := outcomeRows(c)
	if err != nil {
		return nil, err
	}

	wts := make([]float64, len(rows))
	clusters := make([]string, len(rows))
	for i, p := range rows {
		row, ok := w.Lookup(p.ID)
		if !ok {
			return nil, fmt.Errorf("participant %s has no weight row", p.ID)
		}
		wts[i] = row.CombinedTruncated
		clusters[i] = p.ID
	}
	return fitTransitionModel("weighted", rows, y, wts, clusters)
}

// outcomeRows selects the modeled rows: eligible, uncensored, with an
// observed final-wave outcome.
func outcomeRows(c *cohort.Cohort) ([]*cohort.Participant, []float64, error) {
	var rows []*cohort.Participant
	var y []float64
	for _, p := range c.Participants {
		if !p.Eligible || p.Censored != 0 {
			continue
		}
		out := p.Year(survey.WaveFinal).PHQ
		if math.IsNaN(out) {
			return nil, nil, fmt.Errorf("participant %s is uncensored but has no final-wave outcome", p.ID)
		}
		rows = append(rows, p)
		y = append(y, out)
	}
	if len(rows) == 0 {
		return nil, nil, errors.New("no uncensored eligible participants to model")
	}
	return rows, y, nil
}

func fitTransitionModel(name string, rows []*cohort.Participant, y, wts []float64, clusters []string) (*Model, error) {
	d := stats.NewDesign(len(rows))
	d.AddIntercept()

	transitions := make([]float64, len(rows))
	counts := make(map[int]int)
	for i, p := range rows {
		transitions[i] = p.Transition
		counts[int(p.Transition)]++
	}
	if err := d.AddDummies("transition", transitions, derive.TransStableEmployed, derive.TransitionLabels); err != nil {
		return nil, fmt.Errorf("failed to build %s design: %w", name, err)
	}

	m, err := stats.FitWLS(d, y, wts, clusters)
	if err != nil {
		return nil, fmt.Errorf("failed to fit %s model: %w", name, err)
	}

	out := &Model{
		Name:     name,
		N:        m.N,
		Clusters: m.Clusters,
	}

	j, ok := m.Lookup(stats.InterceptName)
	if !ok {
		return nil, fmt.Errorf("%s model has no intercept", name)
	}
	out.Reference = Reference{
		Label:    derive.TransitionLabels[derive.TransStableEmployed],
		N:        counts[derive.TransStableEmployed],
		Mean:     m.Coef[j],
		SE:       m.SE[j],
		ConfLow:  m.ConfLow[j],
		ConfHigh: m.ConfHigh[j],
	}

	for _, code := range []int{derive.TransGainedEmployment, derive.TransLostEmployment, derive.TransStableUnemployed} {
		label := derive.TransitionLabels[code]
		contrast := Contrast{
			Transition: code,
			Label:      label,
			N:          counts[code],
			Estimate:   math.NaN(),
			SE:         math.NaN(),
			Z:          math.NaN(),
			P:          math.NaN(),
			ConfLow:    math.NaN(),
			ConfHigh:   math.NaN(),
		}
		// A transition nobody made has no column and stays missing.
		if j, ok := m.Lookup("transition=" + label); ok {
			contrast.Estimate = m.Coef[j]
			contrast.SE = m.SE[j]
			contrast.Z = m.Z[j]
			contrast.P = m.P[j]
			contrast.ConfLow = m.ConfLow[j]
			contrast.ConfHigh = m.ConfHigh[j]
		}
		out.Contrasts = append(out.Contrasts, contrast)
	}

	return out, nil
}

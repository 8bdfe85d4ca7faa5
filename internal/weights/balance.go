package weights

import (
	"fmt"

	"github.com/beacon-epi/empdep/internal/cohort"
	"github.com/beacon-epi/empdep/internal/stats"
	"github.com/beacon-epi/empdep/internal/survey"
)

// BalanceRow reports the balance of one covariate between the employment
// groups at one wave, before and after weighting.
type BalanceRow struct {
	Year      int
	Covariate string

	SMDUnweighted float64
	SMDWeighted   float64
	KSUnweighted  float64
	KSWeighted    float64
}

// Balance computes covariate balance between the employment groups at each
// treatment wave, unweighted and weighted by the truncated treatment weight.
// The covariates are the model-matrix columns of that wave's denominator
// design, so dummies and missingness indicators are checked individually.
func Balance(c *cohort.Cohort, res *Result) ([]BalanceRow, error) {
	var rows []*cohort.Participant
	for _, p := range c.Participants {
		if p.Eligible {
			rows = append(rows, p)
		}
	}
	if len(rows) != len(res.Rows) {
		return nil, fmt.Errorf("weight table has %d rows, cohort has %d eligible participants", len(res.Rows), len(rows))
	}

	unit := make([]float64, len(rows))
	weighted := make([]float64, len(rows))
	for i, p := range rows {
		w, ok := res.Lookup(p.ID)
		if !ok {
			return nil, fmt.Errorf("participant %s has no weight row", p.ID)
		}
		unit[i] = 1
		weighted[i] = w.TreatmentTruncated
	}

	b := newBuilder(rows)
	var out []BalanceRow
	for _, year := range []int{survey.WaveFirst, survey.WaveSecond} {
		d, err := b.treatmentDenominator(year)
		if err != nil {
			return nil, err
		}
		group := b.employment(year)

		for _, name := range d.Names() {
			if name == stats.InterceptName {
				continue
			}
			col := d.Column(name)
			v0, v1 := splitByGroup(col, group)
			u0, u1 := splitByGroup(unit, group)
			w0, w1 := splitByGroup(weighted, group)

			out = append(out, BalanceRow{
				Year:          year,
				Covariate:     name,
				SMDUnweighted: stats.SMD(v0, v1, u0, u1),
				SMDWeighted:   stats.SMD(v0, v1, w0, w1),
				KSUnweighted:  stats.KS(v0, v1, u0, u1),
				KSWeighted:    stats.KS(v0, v1, w0, w1),
			})
		}
	}
	return out, nil
}

// splitByGroup partitions values by the 0/1 group indicator.
func splitByGroup(values, group []float64) (g0, g1 []float64) {
	for i, v := range values {
		if group[i] == 1 {
			g1 = append(g1, v)
		} else {
			g0 = append(g0, v)
		}
	}
	return g0, g1
}

// Package stats implements the estimators the analysis needs: logistic
// regression fit by iteratively reweighted least squares, weighted least
// squares with cluster-robust sandwich errors, descriptive summaries, and
// covariate balance metrics.
//
// Models are fit on a Design, a named column matrix that applies the
// missing-data policy once, in one place: missing numeric covariates are
// zero-filled and flagged with an explicit indicator column, and missing
// categorical covariates become their own level.
package stats

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// MissingSuffix is appended to a covariate name to form its missingness
// indicator column.
const MissingSuffix = "_missing"

// MissingLevel is the category assigned to missing categorical values.
const MissingLevel = "(missing)"

// InterceptName is the column name of the constant term.
const InterceptName = "(intercept)"

// Design accumulates named model-matrix columns for n observations.
type Design struct {
	n     int
	names []string
	cols  [][]float64
}

// NewDesign creates a design for n observations.
func NewDesign(n int) *Design {
	return &Design{n: n}
}

// N returns the number of observations.
func (d *Design) N() int { return d.n }

// Names returns the column names in matrix order.
func (d *Design) Names() []string { return d.names }

// AddIntercept adds the constant column.
func (d *Design) AddIntercept() {
	ones := make([]float64, d.n)
	for i := range ones {
		ones[i] = 1
	}
	d.addColumn(InterceptName, ones)
}

// AddNumeric adds a numeric covariate. Missing values are zero-filled and,
// when any are present, an indicator column marks the affected rows.
func (d *Design) AddNumeric(name string, values []float64) error {
	if len(values) != d.n {
		return fmt.Errorf("column %s has %d values, design has %d rows", name, len(values), d.n)
	}

	col := make([]float64, d.n)
	var indicator []float64
	for i, v := range values {
		if math.IsNaN(v) {
			if indicator == nil {
				indicator = make([]float64, d.n)
			}
			indicator[i] = 1
			continue
		}
		col[i] = v
	}

	d.addColumn(name, col)
	if indicator != nil {
		d.addColumn(name+MissingSuffix, indicator)
	}
	return nil
}

// AddCategorical adds dummy columns for a categorical covariate, one per
// observed level except the reference. Empty strings become the missing
// level. Levels are emitted in sorted order so the matrix layout is stable.
func (d *Design) AddCategorical(name string, values []string, reference string) error {
	if len(values) != d.n {
		return fmt.Errorf("column %s has %d values, design has %d rows", name, len(values), d.n)
	}

	levels := make(map[string]bool)
	cleaned := make([]string, d.n)
	for i, v := range values {
		if v == "" {
			v = MissingLevel
		}
		cleaned[i] = v
		levels[v] = true
	}

	ordered := make([]string, 0, len(levels))
	for lvl := range levels {
		if lvl == reference {
			continue
		}
		ordered = append(ordered, lvl)
	}
	sort.Strings(ordered)

	for _, lvl := range ordered {
		col := make([]float64, d.n)
		for i, v := range cleaned {
			if v == lvl {
				col[i] = 1
			}
		}
		d.addColumn(fmt.Sprintf("%s=%s", name, lvl), col)
	}
	return nil
}

// AddDummies adds one dummy column per non-reference level of an integer
// coded categorical covariate, labeling levels through the provided map.
func (d *Design) AddDummies(name string, values []float64, reference int, labels map[int]string) error {
	cleaned := make([]string, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			cleaned[i] = ""
			continue
		}
		if lbl, ok := labels[int(v)]; ok {
			cleaned[i] = lbl
		} else {
			cleaned[i] = fmt.Sprintf("%d", int(v))
		}
	}
	ref := labels[reference]
	return d.AddCategorical(name, cleaned, ref)
}

// Matrix materializes the design as a dense matrix, rows by columns.
func (d *Design) Matrix() *mat.Dense {
	k := len(d.cols)
	m := mat.NewDense(d.n, k, nil)
	for j, col := range d.cols {
		m.SetCol(j, col)
	}
	return m
}

// Column returns the named column's values, or nil when absent.
func (d *Design) Column(name string) []float64 {
	for j, n := range d.names {
		if n == name {
			return d.cols[j]
		}
	}
	return nil
}

func (d *Design) addColumn(name string, col []float64) {
	d.names = append(d.names, name)
	d.cols = append(d.cols, col)
}

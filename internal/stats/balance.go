package stats

import (
	"math"
	"sort"
)

// SMD computes the standardized mean difference of a covariate between two
// groups, weighted. Rows with a missing value or weight are dropped. The
// denominator pools the two group variances equally, the usual convention
// for weighting diagnostics.
func SMD(group0, group1, weights0, weights1 []float64) float64 {
	m0 := WeightedMean(group0, weights0)
	m1 := WeightedMean(group1, weights1)
	v0 := WeightedVariance(group0, weights0)
	v1 := WeightedVariance(group1, weights1)
	if math.IsNaN(m0) || math.IsNaN(m1) || math.IsNaN(v0) || math.IsNaN(v1) {
		return math.NaN()
	}

	pooled := math.Sqrt((v0 + v1) / 2)
	if pooled == 0 {
		if m0 == m1 {
			return 0
		}
		return math.Inf(1)
	}
	return math.Abs(m1-m0) / pooled
}

// KS computes the Kolmogorov-Smirnov distance between the weighted
// empirical distributions of a covariate in two groups. Rows with a missing
// value or weight are dropped.
func KS(group0, group1, weights0, weights1 []float64) float64 {
	x0, w0 := pairedObserved(group0, weights0)
	x1, w1 := pairedObserved(group1, weights1)
	if len(x0) == 0 || len(x1) == 0 {
		return math.NaN()
	}

	t0, t1 := sum(w0), sum(w1)
	if t0 == 0 || t1 == 0 {
		return math.NaN()
	}

	sortPaired(x0, w0)
	sortPaired(x1, w1)

	// Walk the pooled support, advancing each weighted ECDF in step.
	var maxGap, c0, c1 float64
	i, j := 0, 0
	for i < len(x0) || j < len(x1) {
		var v float64
		switch {
		case i >= len(x0):
			v = x1[j]
		case j >= len(x1):
			v = x0[i]
		default:
			v = math.Min(x0[i], x1[j])
		}
		for i < len(x0) && x0[i] == v {
			c0 += w0[i]
			i++
		}
		for j < len(x1) && x1[j] == v {
			c1 += w1[j]
			j++
		}
		gap := math.Abs(c0/t0 - c1/t1)
		if gap > maxGap {
			maxGap = gap
		}
	}
	return maxGap
}

func pairedObserved(values, weights []float64) ([]float64, []float64) {
	var vs, ws []float64
	for i, v := range values {
		w := weights[i]
		if math.IsNaN(v) || math.IsNaN(w) {
			continue
		}
		vs = append(vs, v)
		ws = append(ws, w)
	}
	return vs, ws
}

func sortPaired(values, weights []float64) {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	vs := make([]float64, len(values))
	ws := make([]float64, len(weights))
	for pos, i := range idx {
		vs[pos] = values[i]
		ws[pos] = weights[i]
	}
	copy(values, vs)
	copy(weights, ws)
}

func sum(values []float64) float64 {
	s := 0.0
	for _, v := range values {
		s += v
	}
	return s
}

package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Summary holds the descriptive statistics of one numeric column, computed
// over its non-missing values.
type Summary struct {
	N      int
	Miss   int
	Mean   float64
	SD     float64
	Min    float64
	Q1     float64
	Median float64
	Q3     float64
	P99    float64
	Max    float64
}

// Describe summarizes a numeric column, dropping missing values. A column
// with no observed values returns a Summary with N=0 and NaN statistics.
func Describe(values []float64) Summary {
	obs := dropMissing(values)
	s := Summary{
		N:      len(obs),
		Miss:   len(values) - len(obs),
		Mean:   math.NaN(),
		SD:     math.NaN(),
		Min:    math.NaN(),
		Q1:     math.NaN(),
		Median: math.NaN(),
		Q3:     math.NaN(),
		P99:    math.NaN(),
		Max:    math.NaN(),
	}
	if len(obs) == 0 {
		return s
	}

	sort.Float64s(obs)
	s.Mean = stat.Mean(obs, nil)
	if len(obs) > 1 {
		s.SD = math.Sqrt(stat.Variance(obs, nil))
	} else {
		s.SD = 0
	}
	s.Min = obs[0]
	s.Max = obs[len(obs)-1]
	s.Q1 = stat.Quantile(0.25, stat.Empirical, obs, nil)
	s.Median = stat.Quantile(0.5, stat.Empirical, obs, nil)
	s.Q3 = stat.Quantile(0.75, stat.Empirical, obs, nil)
	s.P99 = stat.Quantile(0.99, stat.Empirical, obs, nil)
	return s
}

// Quantile returns the p-th empirical quantile of the non-missing values.
// The result is always an observed value.
func Quantile(p float64, values []float64) float64 {
	obs := dropMissing(values)
	if len(obs) == 0 {
		return math.NaN()
	}
	sort.Float64s(obs)
	return stat.Quantile(p, stat.Empirical, obs, nil)
}

// WeightedMean returns the weighted mean over rows where both the value and
// the weight are observed.
func WeightedMean(values, weights []float64) float64 {
	var sum, wsum float64
	for i, v := range values {
		w := weights[i]
		if math.IsNaN(v) || math.IsNaN(w) {
			continue
		}
		sum += w * v
		wsum += w
	}
	if wsum == 0 {
		return math.NaN()
	}
	return sum / wsum
}

// WeightedVariance returns the weighted sample variance over rows where
// both the value and the weight are observed.
func WeightedVariance(values, weights []float64) float64 {
	var vs, ws []float64
	for i, v := range values {
		w := weights[i]
		if math.IsNaN(v) || math.IsNaN(w) {
			continue
		}
		vs = append(vs, v)
		ws = append(ws, w)
	}
	if len(vs) < 2 {
		return math.NaN()
	}
	return stat.Variance(vs, ws)
}

// dropMissing returns a copy of values without NaN entries.
func dropMissing(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

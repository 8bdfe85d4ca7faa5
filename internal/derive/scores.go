package derive

import "math"

// PHQTotal computes the nine-item depression screener total. Any missing
// item makes the total missing; partial totals are never produced.
func PHQTotal(items []float64) float64 {
	return SumStrict(items)
}

// StressScore computes the minority stress score as the larger of the two
// subscale sums. Each subscale sum is strict, and the score is missing when
// either subscale is missing.
func StressScore(subscaleA, subscaleB []float64) float64 {
	a := SumStrict(subscaleA)
	b := SumStrict(subscaleB)
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.NaN()
	}
	return math.Max(a, b)
}

// Package derive implements the per-wave derived variables: scale scores,
// the occupational classifier, and the recodes applied before reshaping.
//
// All functions are pure and operate on float64 values where NaN marks a
// missing answer. Two summation rules exist and are not interchangeable:
// scale scores propagate missingness, checkbox counts treat missing as an
// unticked box.
package derive

import "math"

// SumStrict adds item scores, returning NaN if any item is missing.
// Used for scale totals where a skipped item invalidates the score.
func SumStrict(items []float64) float64 {
	sum := 0.0
	for _, v := range items {
		if math.IsNaN(v) {
			return math.NaN()
		}
		sum += v
	}
	return sum
}

// CountSelected counts checkbox selections, treating missing as unselected.
// A box is selected when its value is exactly 1.
func CountSelected(items []float64) int {
	n := 0
	for _, v := range items {
		if v == 1 {
			n++
		}
	}
	return n
}

// Binary normalizes a yes/no answer to 1, 0, or NaN.
func Binary(v float64) float64 {
	if math.IsNaN(v) {
		return math.NaN()
	}
	if v != 0 {
		return 1
	}
	return 0
}

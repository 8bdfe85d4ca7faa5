package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDesignNumericComplete(t *testing.T) {
	d := NewDesign(3)
	d.AddIntercept()
	require.NoError(t, d.AddNumeric("age", []float64{30, 40, 50}))

	assert.Equal(t, []string{"(intercept)", "age"}, d.Names())

	m := d.Matrix()
	r, c := m.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, 40.0, m.At(1, 1))
}

func TestDesignNumericMissingGetsIndicator(t *testing.T) {
	d := NewDesign(3)
	require.NoError(t, d.AddNumeric("stress", []float64{5, math.NaN(), 7}))

	assert.Equal(t, []string{"stress", "stress" + MissingSuffix}, d.Names())

	m := d.Matrix()
	assert.Equal(t, 5.0, m.At(0, 0))
	assert.Equal(t, 0.0, m.At(1, 0)) // zero-filled
	assert.Equal(t, 7.0, m.At(2, 0))
	assert.Equal(t, 0.0, m.At(0, 1))
	assert.Equal(t, 1.0, m.At(1, 1)) // flagged
	assert.Equal(t, 0.0, m.At(2, 1))
}

func TestDesignCategorical(t *testing.T) {
	d := NewDesign(4)
	require.NoError(t, d.AddCategorical("region", []string{"south", "west", "south", ""}, "south"))

	// Levels sorted, reference omitted, empty string becomes missing level.
	assert.Equal(t, []string{"region=" + MissingLevel, "region=west"}, d.Names())

	m := d.Matrix()
	assert.Equal(t, 0.0, m.At(0, 1))
	assert.Equal(t, 1.0, m.At(1, 1))
	assert.Equal(t, 1.0, m.At(3, 0))
}

func TestDesignDummies(t *testing.T) {
	labels := map[int]string{0: "stable employed", 1: "gained", 2: "lost", 3: "stable unemployed"}
	d := NewDesign(4)
	require.NoError(t, d.AddDummies("transition", []float64{0, 1, 2, 3}, 0, labels))

	assert.Equal(t, []string{
		"transition=gained",
		"transition=lost",
		"transition=stable unemployed",
	}, d.Names())

	m := d.Matrix()
	// Reference row has all zeros.
	assert.Equal(t, 0.0, m.At(0, 0))
	assert.Equal(t, 0.0, m.At(0, 1))
	assert.Equal(t, 0.0, m.At(0, 2))
	assert.Equal(t, 1.0, m.At(1, 0))
	assert.Equal(t, 1.0, m.At(2, 1))
	assert.Equal(t, 1.0, m.At(3, 2))
}

func TestDesignLengthMismatch(t *testing.T) {
	d := NewDesign(2)
	assert.Error(t, d.AddNumeric("age", []float64{1, 2, 3}))
	assert.Error(t, d.AddCategorical("region", []string{"a"}, "a"))
}

func TestDesignColumnLookup(t *testing.T) {
	d := NewDesign(2)
	require.NoError(t, d.AddNumeric("phq", []float64{3, 9}))

	assert.Equal(t, []float64{3, 9}, d.Column("phq"))
	assert.Nil(t, d.Column("absent"))
}

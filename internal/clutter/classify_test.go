package clutter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/clutter/internal/grid"
	"github.com/banshee-data/clutter/internal/stats"
)

func ratioOf(values []float64) *Ratio {
	f := grid.NewField(grid.Shape{Rays: 1, Gates: len(values)})
	copy(f.Values, values)
	valid := make([]bool, len(values))
	for i, v := range values {
		valid[i] = !math.IsNaN(v)
	}
	return &Ratio{Values: f, Valid: valid}
}

func TestClassify_ExclusiveBounds(t *testing.T) {
	r := ratioOf([]float64{0.0002, 0.00021, 1.0, 1.4999, 1.5, 2, 0, math.NaN()})
	m := Classify(r, 0.0002, 1.5)

	want := []bool{false, true, true, true, false, false, false, false}
	for i, w := range want {
		assert.Equal(t, w, m.Flagged(0, i), "ratio %v", r.Values.Values[i])
	}
	assert.False(t, m.Valid[7], "invalid ratio keeps the gate invalid")
	assert.Equal(t, 3, m.Count())
}

func TestComputeRatio_Validity(t *testing.T) {
	s := grid.Shape{Rays: 1, Gates: 4}
	m := &stats.Moments{
		Shape:  s,
		Count:  []int{5, 1, 3, 0},
		Mean:   &grid.Field{Rays: 1, Gates: 4, Values: []float64{10, 4, 0, 0}},
		StdDev: &grid.Field{Rays: 1, Gates: 4, Values: []float64{2, 0, 1, 0}},
	}

	r := ComputeRatio(m)
	assert.Equal(t, []bool{true, false, false, false}, r.Valid)
	assert.InDelta(t, 0.2, r.Values.Values[0], 1e-12)
	for i := 1; i < 4; i++ {
		assert.True(t, math.IsNaN(r.Values.Values[i]), "gate %d should be NaN", i)
	}
	assert.Equal(t, 1, r.ValidCount())
}

func TestComputeRatio_NegativeMean(t *testing.T) {
	m := &stats.Moments{
		Shape:  grid.Shape{Rays: 1, Gates: 1},
		Count:  []int{4},
		Mean:   &grid.Field{Rays: 1, Gates: 1, Values: []float64{-5}},
		StdDev: &grid.Field{Rays: 1, Gates: 1, Values: []float64{1}},
	}
	r := ComputeRatio(m)
	require.True(t, r.Valid[0])
	assert.False(t, Classify(r, 0.0002, 1.5).Flagged(0, 0), "negative ratios fall below a non-negative minimum")
}

func TestFlaggedCoords(t *testing.T) {
	m := maskFrom([][]bool{
		{false, true},
		{true, true},
	})
	m.Valid[3] = false
	assert.Equal(t, [][2]int{{0, 1}, {1, 0}}, FlaggedCoords(m))
}

package clutter

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/clutter/internal/grid"
	"github.com/banshee-data/clutter/internal/stats"
)

// Ratio is the per-gate coefficient of variation with its validity.
type Ratio struct {
	Values *grid.Field
	Valid  []bool
}

// ComputeRatio derives stdev/mean per gate. A gate is valid only when it has
// at least two samples, a non-zero mean and a finite ratio.
func ComputeRatio(m *stats.Moments) *Ratio {
	values := grid.NewField(m.Shape)
	floats.DivTo(values.Values, m.StdDev.Values, m.Mean.Values)

	valid := make([]bool, m.Shape.Len())
	for i, r := range values.Values {
		valid[i] = m.Count[i] >= 2 && m.Mean.Values[i] != 0 && !math.IsNaN(r) && !math.IsInf(r, 0)
		if !valid[i] {
			values.Values[i] = math.NaN()
		}
	}
	return &Ratio{Values: values, Valid: valid}
}

// ValidCount returns the number of gates that can be classified.
func (r *Ratio) ValidCount() int {
	n := 0
	for _, v := range r.Valid {
		if v {
			n++
		}
	}
	return n
}

// Classify flags valid gates whose ratio lies strictly between lo and hi.
func Classify(r *Ratio, lo, hi float64) *grid.Mask {
	mask := grid.NewMask(r.Values.Shape())
	for i, x := range r.Values.Values {
		mask.Valid[i] = r.Valid[i]
		mask.Flags[i] = r.Valid[i] && x > lo && x < hi
	}
	return mask
}

// FlaggedCoords lists the (ray, gate) pairs of every valid flagged gate in
// row-major order.
func FlaggedCoords(m *grid.Mask) [][2]int {
	var out [][2]int
	for i, f := range m.Flags {
		if f && m.Valid[i] {
			out = append(out, [2]int{i / m.Gates, i % m.Gates})
		}
	}
	return out
}

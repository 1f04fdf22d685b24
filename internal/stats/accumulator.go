// Package stats computes per-gate moments across a sequence of frames.
//
// Two engines share one contract: StreamingEngine folds frames one at a time
// through a Welford Accumulator and holds O(1) frames in memory;
// ParallelEngine loads every frame into a stack and reduces across it on a
// worker pool. Both report the sample (n-1) variance.
package stats

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/clutter/internal/grid"
)

// ErrShapeMismatch is returned when a frame's shape differs from the shape
// the accumulator (or reference frame) was established with.
var ErrShapeMismatch = errors.New("frame shape mismatch")

// Accumulator maintains running per-gate mean and sum of squared differences
// using Welford's method. The zero value is not usable; call NewAccumulator.
//
// Missing samples (NaN) do not advance a gate's count, so gates may sit at
// different counts after any push.
type Accumulator struct {
	shape  grid.Shape
	pushes int

	count []int
	mean  []float64
	sq    []float64
}

// NewAccumulator returns an empty accumulator. Its shape is fixed by the
// first Push.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Shape returns the established shape, or the zero shape before any push.
func (a *Accumulator) Shape() grid.Shape { return a.shape }

// Pushes returns the number of frames accepted so far.
func (a *Accumulator) Pushes() int { return a.pushes }

// Push folds one frame into the running state.
func (a *Accumulator) Push(f *grid.Field) error {
	if f == nil || !f.Valid() {
		return fmt.Errorf("push: malformed frame")
	}
	if a.pushes == 0 {
		a.shape = f.Shape()
		n := a.shape.Len()
		a.count = make([]int, n)
		a.mean = make([]float64, n)
		a.sq = make([]float64, n)
	} else if f.Shape() != a.shape {
		return fmt.Errorf("push %v into %v accumulator: %w", f.Shape(), a.shape, ErrShapeMismatch)
	}

	for i, x := range f.Values {
		if math.IsNaN(x) {
			continue
		}
		a.count[i]++
		if a.count[i] == 1 {
			a.mean[i] = x
			a.sq[i] = 0
			continue
		}
		// count >= 2 here, so the divisor is never zero.
		oldMean := a.mean[i]
		newMean := oldMean + (x-oldMean)/float64(a.count[i])
		a.sq[i] += (x - oldMean) * (x - newMean)
		a.mean[i] = newMean
	}
	a.pushes++
	return nil
}

// Count returns a copy of the per-gate sample counts.
func (a *Accumulator) Count() []int {
	return append([]int(nil), a.count...)
}

// Mean returns the running mean. Gates never pushed (and every gate when
// nothing was pushed) read 0.
func (a *Accumulator) Mean() *grid.Field {
	out := grid.NewField(a.shape)
	copy(out.Values, a.mean)
	return out
}

// Variance returns the sample variance sq/(count-1), or 0 where count <= 1.
func (a *Accumulator) Variance() *grid.Field {
	out := grid.NewField(a.shape)
	for i, n := range a.count {
		if n > 1 {
			out.Values[i] = a.sq[i] / float64(n-1)
		}
	}
	return out
}

// StdDev returns the square root of Variance. Negative rounding residue is
// clamped to 0 instead of producing NaN.
func (a *Accumulator) StdDev() *grid.Field {
	v := a.Variance()
	for i, x := range v.Values {
		v.Values[i] = guardedSqrt(x)
	}
	return v
}

// Moments snapshots the accumulator.
func (a *Accumulator) Moments() *Moments {
	return &Moments{
		Shape:    a.shape,
		Frames:   a.pushes,
		Count:    a.Count(),
		Mean:     a.Mean(),
		Variance: a.Variance(),
		StdDev:   a.StdDev(),
	}
}

func guardedSqrt(x float64) float64 {
	if x <= 0 || math.IsNaN(x) {
		return 0
	}
	return math.Sqrt(x)
}

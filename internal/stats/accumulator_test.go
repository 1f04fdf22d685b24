package stats

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/clutter/internal/grid"
)

const tol = 1e-9

func mustRows(t *testing.T, rows [][]float64) *grid.Field {
	t.Helper()
	f, err := grid.FieldFromRows(rows)
	if err != nil {
		t.Fatalf("FieldFromRows: %v", err)
	}
	return f
}

func randomFrames(rng *rand.Rand, n int, s grid.Shape) []*grid.Field {
	frames := make([]*grid.Field, n)
	for k := range frames {
		f := grid.NewField(s)
		for i := range f.Values {
			f.Values[i] = 10 + 40*rng.Float64()
		}
		frames[k] = f
	}
	return frames
}

func closeTo(a, b float64) bool {
	return math.Abs(a-b) <= tol*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

// Streaming moments must equal a batch mean / sample variance over the stack.
func TestAccumulator_MatchesBatch(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	s := grid.Shape{Rays: 4, Gates: 5}
	frames := randomFrames(rng, 30, s)

	acc := NewAccumulator()
	for _, f := range frames {
		if err := acc.Push(f); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}
	mean, variance := acc.Mean(), acc.Variance()

	col := make([]float64, len(frames))
	for i := 0; i < s.Len(); i++ {
		for k, f := range frames {
			col[k] = f.Values[i]
		}
		wantMean, wantVar := stat.MeanVariance(col, nil)
		if !closeTo(mean.Values[i], wantMean) {
			t.Errorf("gate %d mean = %v, want %v", i, mean.Values[i], wantMean)
		}
		if !closeTo(variance.Values[i], wantVar) {
			t.Errorf("gate %d variance = %v, want %v", i, variance.Values[i], wantVar)
		}
	}
	if acc.Pushes() != len(frames) {
		t.Errorf("Pushes = %d, want %d", acc.Pushes(), len(frames))
	}
}

func TestAccumulator_OrderIndependent(t *testing.T) {
	a := mustRows(t, [][]float64{{1, 2}, {3, 4}})
	b := mustRows(t, [][]float64{{5, 1}, {9, 4}})
	c := mustRows(t, [][]float64{{2, 8}, {0, 4}})

	fwd, rev := NewAccumulator(), NewAccumulator()
	for _, f := range []*grid.Field{a, b, c} {
		_ = fwd.Push(f)
	}
	for _, f := range []*grid.Field{c, b, a} {
		_ = rev.Push(f)
	}

	fm, rm := fwd.Mean(), rev.Mean()
	fv, rv := fwd.Variance(), rev.Variance()
	for i := range fm.Values {
		if !closeTo(fm.Values[i], rm.Values[i]) || !closeTo(fv.Values[i], rv.Values[i]) {
			t.Errorf("gate %d: forward (%v, %v) != reverse (%v, %v)",
				i, fm.Values[i], fv.Values[i], rm.Values[i], rv.Values[i])
		}
	}
}

func TestAccumulator_MissingValueNeutral(t *testing.T) {
	nan := math.NaN()
	acc := NewAccumulator()
	_ = acc.Push(mustRows(t, [][]float64{{1, 10}}))
	_ = acc.Push(mustRows(t, [][]float64{{3, 14}}))

	beforeCount := acc.Count()
	beforeMean := acc.Mean()
	beforeVar := acc.Variance()

	if err := acc.Push(mustRows(t, [][]float64{{nan, 12}})); err != nil {
		t.Fatalf("Push: %v", err)
	}

	if acc.Count()[0] != beforeCount[0] {
		t.Errorf("count at missing gate changed: %d -> %d", beforeCount[0], acc.Count()[0])
	}
	if acc.Mean().Values[0] != beforeMean.Values[0] {
		t.Errorf("mean at missing gate changed: %v -> %v", beforeMean.Values[0], acc.Mean().Values[0])
	}
	if acc.Variance().Values[0] != beforeVar.Values[0] {
		t.Errorf("variance at missing gate changed: %v -> %v", beforeVar.Values[0], acc.Variance().Values[0])
	}
	// the present gate still advanced
	if acc.Count()[1] != 3 || !closeTo(acc.Mean().Values[1], 12) {
		t.Errorf("present gate: count=%d mean=%v, want 3 and 12", acc.Count()[1], acc.Mean().Values[1])
	}
}

// Gates first seen on a later frame initialize rather than update.
func TestAccumulator_LaggingGates(t *testing.T) {
	nan := math.NaN()
	acc := NewAccumulator()
	_ = acc.Push(mustRows(t, [][]float64{{2, nan}}))
	_ = acc.Push(mustRows(t, [][]float64{{4, 7}}))
	_ = acc.Push(mustRows(t, [][]float64{{6, 9}}))

	count := acc.Count()
	if count[0] != 3 || count[1] != 2 {
		t.Fatalf("counts = %v, want [3 2]", count)
	}
	mean := acc.Mean()
	if !closeTo(mean.Values[0], 4) || !closeTo(mean.Values[1], 8) {
		t.Errorf("means = %v, want [4 8]", mean.Values)
	}
	v := acc.Variance()
	if !closeTo(v.Values[0], 4) || !closeTo(v.Values[1], 2) {
		t.Errorf("variances = %v, want [4 2]", v.Values)
	}
}

func TestAccumulator_DegenerateCounts(t *testing.T) {
	nan := math.NaN()
	acc := NewAccumulator()

	if m := acc.Mean(); len(m.Values) != 0 {
		t.Errorf("mean before any push = %v, want empty zero field", m.Values)
	}

	_ = acc.Push(mustRows(t, [][]float64{{5, nan}}))

	mean, variance, std := acc.Mean(), acc.Variance(), acc.StdDev()
	if mean.Values[0] != 5 || variance.Values[0] != 0 || std.Values[0] != 0 {
		t.Errorf("single push gate: mean=%v var=%v std=%v, want 5 0 0",
			mean.Values[0], variance.Values[0], std.Values[0])
	}
	if mean.Values[1] != 0 || variance.Values[1] != 0 || std.Values[1] != 0 {
		t.Errorf("never pushed gate: mean=%v var=%v std=%v, want 0 0 0",
			mean.Values[1], variance.Values[1], std.Values[1])
	}
}

func TestAccumulator_ShapeMismatch(t *testing.T) {
	acc := NewAccumulator()
	_ = acc.Push(mustRows(t, [][]float64{{1, 2}}))
	err := acc.Push(mustRows(t, [][]float64{{1, 2, 3}}))
	if err == nil {
		t.Fatal("expected shape mismatch error")
	}
	if acc.Pushes() != 1 {
		t.Errorf("rejected push was counted: Pushes = %d", acc.Pushes())
	}
}

func TestAccumulator_SingleOutlierGate(t *testing.T) {
	acc := NewAccumulator()
	_ = acc.Push(mustRows(t, [][]float64{{1, 1, 1}, {1, 1, 1}, {1, 1, 1}}))
	_ = acc.Push(mustRows(t, [][]float64{{1, 1, 1}, {1, 1, 1}, {1, 1, 100}}))

	mean, std := acc.Mean(), acc.StdDev()
	if got := mean.At(2, 2); got != 50.5 {
		t.Errorf("mean(2,2) = %v, want 50.5", got)
	}
	if got := std.At(2, 2); math.Abs(got-math.Sqrt(4900.5)) > 1e-9 {
		t.Errorf("stdev(2,2) = %v, want ~70.0036", got)
	}
	for r := 0; r < 3; r++ {
		for g := 0; g < 3; g++ {
			if r == 2 && g == 2 {
				continue
			}
			if mean.At(r, g) != 1 || std.At(r, g) != 0 {
				t.Errorf("(%d,%d) mean=%v std=%v, want 1 0", r, g, mean.At(r, g), std.At(r, g))
			}
		}
	}
}

func TestGuardedSqrt(t *testing.T) {
	cases := map[float64]float64{
		4:      2,
		0:      0,
		-1e-18: 0,
	}
	for in, want := range cases {
		if got := guardedSqrt(in); got != want {
			t.Errorf("guardedSqrt(%v) = %v, want %v", in, got, want)
		}
	}
	if got := guardedSqrt(math.NaN()); got != 0 {
		t.Errorf("guardedSqrt(NaN) = %v, want 0", got)
	}
}

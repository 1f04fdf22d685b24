// Package grid holds the per-gate arrays shared by the clutter pipeline.
//
// A Field is a row-major (rays × gates) array of float64 values where NaN
// marks a missing sample. A Mask is the boolean counterpart carrying its own
// validity grid.
package grid

import (
	"fmt"
	"math"
)

// Shape is the (rays, gates) extent of a scan.
type Shape struct {
	Rays  int
	Gates int
}

// Len returns the number of gates in the grid.
func (s Shape) Len() int { return s.Rays * s.Gates }

// IsZero reports whether the shape has no gates.
func (s Shape) IsZero() bool { return s.Rays <= 0 || s.Gates <= 0 }

func (s Shape) String() string { return fmt.Sprintf("(%d, %d)", s.Rays, s.Gates) }

// Contains reports whether (ray, gate) lies on the grid.
func (s Shape) Contains(ray, gate int) bool {
	return ray >= 0 && ray < s.Rays && gate >= 0 && gate < s.Gates
}

// Field is a 2-D float grid; NaN entries are missing.
// Fields are exported-field structs so they encode with gob.
type Field struct {
	Rays   int
	Gates  int
	Values []float64 // len = Rays * Gates
}

// NewField returns a zero-filled field of the given shape.
func NewField(s Shape) *Field {
	return &Field{Rays: s.Rays, Gates: s.Gates, Values: make([]float64, s.Len())}
}

// NewMissingField returns a field of the given shape with every gate missing.
func NewMissingField(s Shape) *Field {
	f := NewField(s)
	for i := range f.Values {
		f.Values[i] = math.NaN()
	}
	return f
}

// FieldFromRows builds a field from row slices. All rows must share a length.
func FieldFromRows(rows [][]float64) (*Field, error) {
	if len(rows) == 0 {
		return &Field{}, nil
	}
	gates := len(rows[0])
	f := NewField(Shape{Rays: len(rows), Gates: gates})
	for r, row := range rows {
		if len(row) != gates {
			return nil, fmt.Errorf("row %d has %d gates, want %d", r, len(row), gates)
		}
		copy(f.Values[r*gates:], row)
	}
	return f, nil
}

// Shape returns the field's extent.
func (f *Field) Shape() Shape { return Shape{Rays: f.Rays, Gates: f.Gates} }

// Idx maps (ray, gate) to the flat index: idx = ray*Gates + gate.
func (f *Field) Idx(ray, gate int) int { return ray*f.Gates + gate }

// At returns the value at (ray, gate).
func (f *Field) At(ray, gate int) float64 { return f.Values[f.Idx(ray, gate)] }

// Set stores v at (ray, gate).
func (f *Field) Set(ray, gate int, v float64) { f.Values[f.Idx(ray, gate)] = v }

// Missing reports whether flat index i holds no sample.
func (f *Field) Missing(i int) bool { return math.IsNaN(f.Values[i]) }

// Valid reports whether the field's metadata agrees with its backing slice.
func (f *Field) Valid() bool {
	return f != nil && f.Rays >= 0 && f.Gates >= 0 && len(f.Values) == f.Rays*f.Gates
}

// Clone returns a deep copy.
func (f *Field) Clone() *Field {
	out := &Field{Rays: f.Rays, Gates: f.Gates, Values: make([]float64, len(f.Values))}
	copy(out.Values, f.Values)
	return out
}

// PresentCount returns the number of non-missing gates.
func (f *Field) PresentCount() int {
	n := 0
	for i := range f.Values {
		if !f.Missing(i) {
			n++
		}
	}
	return n
}

// Rows returns a copy of the field as row slices, mainly for tests and dumps.
func (f *Field) Rows() [][]float64 {
	rows := make([][]float64, f.Rays)
	for r := range rows {
		rows[r] = append([]float64(nil), f.Values[r*f.Gates:(r+1)*f.Gates]...)
	}
	return rows
}

// Package testutil provides shared test utilities and fixtures.
//
// Helpers here build small reflectivity volumes and place them on an
// in-memory filesystem so pipeline tests never touch disk.
package testutil

import (
	"fmt"
	"math"
	"testing"

	"github.com/banshee-data/clutter/internal/fsutil"
	"github.com/banshee-data/clutter/internal/grid"
	"github.com/banshee-data/clutter/internal/volume"
)

// NaN is shorthand for a missing gate in fixture rows.
var NaN = math.NaN()

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// MustField builds a field from rows or fails the test.
func MustField(t testing.TB, rows [][]float64) *grid.Field {
	t.Helper()
	f, err := grid.FieldFromRows(rows)
	if err != nil {
		t.Fatalf("FieldFromRows: %v", err)
	}
	return f
}

// ReflectivityVolume wraps rows as a volume with a reflectivity field and
// per-ray / per-gate coordinates.
func ReflectivityVolume(t testing.TB, instrument string, rows [][]float64) *volume.Volume {
	t.Helper()
	data := MustField(t, rows)
	md := volume.Metadata{
		InstrumentName: instrument,
		ScanType:       "ppi",
		Azimuth:        make([]float64, data.Rays),
		RangeMeters:    make([]float64, data.Gates),
	}
	for r := range md.Azimuth {
		md.Azimuth[r] = float64(r)
	}
	for g := range md.RangeMeters {
		md.RangeMeters[g] = 50 * float64(g+1)
	}
	v := volume.New(md)
	AssertNoError(t, v.AddField(volume.ReflectivityField, &volume.Field{
		Units:        "dBZ",
		StandardName: "equivalent_reflectivity_factor",
		LongName:     "Reflectivity",
		Data:         data,
	}, false))
	return v
}

// WriteVolume encodes v to path on mfs.
func WriteVolume(t testing.TB, mfs *fsutil.MemoryFileSystem, path string, v *volume.Volume) {
	t.Helper()
	AssertNoError(t, (&volume.Codec{FS: mfs}).Write(path, v))
}

// WriteFrames writes one reflectivity volume per frame and returns the paths.
func WriteFrames(t testing.TB, mfs *fsutil.MemoryFileSystem, dir string, frames ...[][]float64) []string {
	t.Helper()
	paths := make([]string, len(frames))
	for i, rows := range frames {
		paths[i] = dir + "/" + FrameName(i)
		WriteVolume(t, mfs, paths[i], ReflectivityVolume(t, "test-radar", rows))
	}
	return paths
}

// FrameName is the conventional fixture file name for frame i.
func FrameName(i int) string { return fmt.Sprintf("frame_%03d.vol", i) }

// Uniform returns rays × gates rows filled with v.
func Uniform(rays, gates int, v float64) [][]float64 {
	rows := make([][]float64, rays)
	for r := range rows {
		rows[r] = make([]float64, gates)
		for g := range rows[r] {
			rows[r][g] = v
		}
	}
	return rows
}

// Package volume models a radar scan volume as a set of named per-gate
// fields plus scan metadata, and reads and writes volumes to disk.
//
// The on-disk container is a gzip stream holding a gob header and the gob
// encoded Volume. It stands in for a real radar format; the clutter pipeline
// only depends on the Reader and Writer interfaces.
package volume

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/banshee-data/clutter/internal/grid"
)

// ReflectivityField is the conventional name of the input field.
const ReflectivityField = "reflectivity"

// ErrCorruptFile is matched by every read failure the pipeline may skip.
var ErrCorruptFile = errors.New("corrupt volume file")

// CorruptFileError records which file could not be used and why.
type CorruptFileError struct {
	Path   string
	Reason error
}

func (e *CorruptFileError) Error() string {
	return fmt.Sprintf("%s is corrupt: %v", e.Path, e.Reason)
}

// Is lets errors.Is(err, ErrCorruptFile) match.
func (e *CorruptFileError) Is(target error) bool { return target == ErrCorruptFile }

func (e *CorruptFileError) Unwrap() error { return e.Reason }

// Reader loads a volume from a path.
type Reader interface {
	Read(path string) (*Volume, error)
}

// Writer persists a volume to a path.
type Writer interface {
	Write(path string, v *Volume) error
}

// Metadata is everything about a scan except its fields.
type Metadata struct {
	InstrumentName string
	ScanType       string
	StartTime      time.Time
	Latitude       float64
	Longitude      float64
	AltitudeMeters float64
	Azimuth        []float64 // per ray, degrees
	Elevation      []float64 // per ray, degrees
	RangeMeters    []float64 // per gate
	Attributes     map[string]string
}

// Clone returns a deep copy.
func (m Metadata) Clone() Metadata {
	out := m
	out.Azimuth = append([]float64(nil), m.Azimuth...)
	out.Elevation = append([]float64(nil), m.Elevation...)
	out.RangeMeters = append([]float64(nil), m.RangeMeters...)
	if m.Attributes != nil {
		out.Attributes = make(map[string]string, len(m.Attributes))
		for k, v := range m.Attributes {
			out.Attributes[k] = v
		}
	}
	return out
}

// Field is one named measurement over the grid.
type Field struct {
	Units        string
	StandardName string
	LongName     string
	Notes        string
	Data         *grid.Field
}

// Volume is a scan: metadata plus named fields.
type Volume struct {
	Metadata Metadata
	Fields   map[string]*Field
}

// New returns an empty volume with the given metadata.
func New(md Metadata) *Volume {
	return &Volume{Metadata: md, Fields: make(map[string]*Field)}
}

// Field returns the named field.
func (v *Volume) Field(name string) (*Field, bool) {
	f, ok := v.Fields[name]
	return f, ok
}

// AddField inserts a field. An existing field of the same name is an error
// unless replaceExisting is set.
func (v *Volume) AddField(name string, f *Field, replaceExisting bool) error {
	if f == nil || f.Data == nil {
		return fmt.Errorf("add field %q: no data", name)
	}
	if v.Fields == nil {
		v.Fields = make(map[string]*Field)
	}
	if _, exists := v.Fields[name]; exists && !replaceExisting {
		return fmt.Errorf("add field %q: already exists", name)
	}
	v.Fields[name] = f
	return nil
}

// ClearFields drops every field, keeping metadata.
func (v *Volume) ClearFields() {
	v.Fields = make(map[string]*Field)
}

// FieldNames returns the field names, sorted.
func (v *Volume) FieldNames() []string {
	names := make([]string, 0, len(v.Fields))
	for name := range v.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Shape returns the shape shared by the volume's fields, or the zero shape
// if it has none. Fields that disagree make the volume invalid.
func (v *Volume) Shape() (grid.Shape, error) {
	var s grid.Shape
	first := true
	for _, name := range v.FieldNames() {
		f := v.Fields[name]
		if f == nil || !f.Data.Valid() {
			return grid.Shape{}, fmt.Errorf("field %q is malformed", name)
		}
		if first {
			s, first = f.Data.Shape(), false
			continue
		}
		if f.Data.Shape() != s {
			return grid.Shape{}, fmt.Errorf("field %q shape %v differs from %v", name, f.Data.Shape(), s)
		}
	}
	return s, nil
}

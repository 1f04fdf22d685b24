package clutter

import (
	"math"

	"github.com/banshee-data/clutter/internal/grid"
	"github.com/banshee-data/clutter/internal/volume"
)

const (
	// DefaultFieldName is the output field's name and standard name.
	DefaultFieldName = "xsapr_clutter"
	// DefaultLongName is the output field's human-readable name.
	DefaultLongName = "X-SAPR Clutter"

	fieldUnits = "unitless"
	fieldNotes = "0: No Clutter, 1: Clutter"
)

// MaskField converts a mask to field data: 1 for clutter, 0 for none, NaN
// for gates excluded from consideration.
func MaskField(m *grid.Mask) *grid.Field {
	f := grid.NewField(m.Shape())
	for i := range f.Values {
		switch {
		case !m.Valid[i]:
			f.Values[i] = math.NaN()
		case m.Flags[i]:
			f.Values[i] = 1
		}
	}
	return f
}

// MaskFromField reverses MaskField.
func MaskFromField(f *grid.Field) *grid.Mask {
	m := grid.NewMask(f.Shape())
	for i, x := range f.Values {
		m.Valid[i] = !math.IsNaN(x)
		m.Flags[i] = m.Valid[i] && x != 0
	}
	return m
}

// Package builds the output volume: the reference metadata and a single
// clutter field. The reference volume is left untouched.
func Package(ref *volume.Volume, m *grid.Mask, name, longName string) (*volume.Volume, error) {
	if name == "" {
		name = DefaultFieldName
	}
	if longName == "" {
		longName = DefaultLongName
	}

	out := volume.New(ref.Metadata.Clone())
	out.ClearFields()
	err := out.AddField(name, &volume.Field{
		Units:        fieldUnits,
		StandardName: name,
		LongName:     longName,
		Notes:        fieldNotes,
		Data:         MaskField(m),
	}, true)
	if err != nil {
		return nil, err
	}
	return out, nil
}

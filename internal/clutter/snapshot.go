package clutter

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"errors"
	"fmt"

	"github.com/banshee-data/clutter/internal/grid"
)

// RunSnapshot matches schema clutter_runs table structure.
type RunSnapshot struct {
	RunID            string  // matches run_id TEXT PRIMARY KEY (UUID)
	CreatedUnixNanos int64   // matches created_unix_nanos INTEGER NOT NULL
	Engine           string  // matches engine TEXT NOT NULL ('streaming', 'parallel')
	ThreshMin        float64 // matches thresh_min REAL NOT NULL
	ThreshMax        float64 // matches thresh_max REAL NOT NULL
	Radius           int     // matches radius INTEGER NOT NULL
	FilesTotal       int     // matches files_total INTEGER NOT NULL
	FramesUsed       int     // matches frames_used INTEGER NOT NULL
	FramesSkipped    int     // matches frames_skipped INTEGER NOT NULL
	FlaggedRaw       int     // matches flagged_raw INTEGER NOT NULL
	FlaggedDilated   int     // matches flagged_dilated INTEGER NOT NULL
	ValidGates       int     // matches valid_gates INTEGER NOT NULL
	Rays             int     // matches rays INTEGER NOT NULL
	Gates            int     // matches gates INTEGER NOT NULL
	InstrumentName   string  // matches instrument_name TEXT
	OutFile          string  // matches out_file TEXT - empty when the volume was not written
	ParamsJSON       string  // matches params_json TEXT NOT NULL
	MaskBlob         []byte  // matches mask_blob BLOB NOT NULL (gob+gzip dilated mask)
}

// RunStore persists RunSnapshot records. Implemented by db.DB.
type RunStore interface {
	InsertRunSnapshot(s *RunSnapshot) error
}

// SerializeMask compresses a mask using gob encoding and gzip compression.
func SerializeMask(m *grid.Mask) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	enc := gob.NewEncoder(gz)
	if err := enc.Encode(m); err != nil {
		gz.Close()
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DeserializeMask decompresses and decodes a mask from a gob+gzip blob.
func DeserializeMask(blob []byte) (*grid.Mask, error) {
	if len(blob) == 0 {
		return nil, errors.New("empty mask blob")
	}
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()

	var m grid.Mask
	if err := gob.NewDecoder(gz).Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to decode mask: %w", err)
	}
	if len(m.Flags) != m.Rays*m.Gates || len(m.Valid) != len(m.Flags) {
		return nil, fmt.Errorf("mask blob shape (%d, %d) does not match %d flags", m.Rays, m.Gates, len(m.Flags))
	}
	return &m, nil
}

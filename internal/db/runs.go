package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/clutter/internal/clutter"
)

// ErrRunNotFound is returned when no snapshot has the requested run ID.
var ErrRunNotFound = errors.New("clutter run not found")

var _ clutter.RunStore = (*DB)(nil)

const runColumns = `
	run_id, created_unix_nanos, engine, thresh_min, thresh_max, radius,
	files_total, frames_used, frames_skipped, flagged_raw, flagged_dilated,
	valid_gates, rays, gates, instrument_name, out_file, params_json, mask_blob`

// InsertRunSnapshot persists one run. If s.RunID is empty, a new UUID is
// generated.
func (db *DB) InsertRunSnapshot(s *clutter.RunSnapshot) error {
	if s.RunID == "" {
		s.RunID = uuid.New().String()
	}
	if s.CreatedUnixNanos == 0 {
		s.CreatedUnixNanos = time.Now().UnixNano()
	}

	_, err := db.Exec(`INSERT INTO clutter_runs (`+runColumns+`
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.RunID,
		s.CreatedUnixNanos,
		s.Engine,
		s.ThreshMin,
		s.ThreshMax,
		s.Radius,
		s.FilesTotal,
		s.FramesUsed,
		s.FramesSkipped,
		s.FlaggedRaw,
		s.FlaggedDilated,
		s.ValidGates,
		s.Rays,
		s.Gates,
		nullString(s.InstrumentName),
		nullString(s.OutFile),
		s.ParamsJSON,
		s.MaskBlob,
	)
	if err != nil {
		return fmt.Errorf("insert clutter run: %w", err)
	}
	return nil
}

// GetRunSnapshot retrieves a run by ID, mask blob included.
func (db *DB) GetRunSnapshot(runID string) (*clutter.RunSnapshot, error) {
	row := db.QueryRow(`SELECT `+runColumns+` FROM clutter_runs WHERE run_id = ?`, runID)
	s, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get clutter run: %w", err)
	}
	return s, nil
}

// GetLatestRunSnapshot returns the most recently created run.
func (db *DB) GetLatestRunSnapshot() (*clutter.RunSnapshot, error) {
	row := db.QueryRow(`SELECT ` + runColumns + ` FROM clutter_runs ORDER BY created_unix_nanos DESC LIMIT 1`)
	s, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get latest clutter run: %w", err)
	}
	return s, nil
}

// ListRunSnapshots returns up to limit runs, newest first. A limit of zero
// or less returns every run.
func (db *DB) ListRunSnapshots(limit int) ([]*clutter.RunSnapshot, error) {
	query := `SELECT ` + runColumns + ` FROM clutter_runs ORDER BY created_unix_nanos DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list clutter runs: %w", err)
	}
	defer rows.Close()

	var out []*clutter.RunSnapshot
	for rows.Next() {
		s, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan clutter run: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteRunSnapshot removes a run.
func (db *DB) DeleteRunSnapshot(runID string) error {
	res, err := db.Exec(`DELETE FROM clutter_runs WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("delete clutter run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(sc scanner) (*clutter.RunSnapshot, error) {
	var s clutter.RunSnapshot
	var instrument, outFile sql.NullString
	err := sc.Scan(
		&s.RunID,
		&s.CreatedUnixNanos,
		&s.Engine,
		&s.ThreshMin,
		&s.ThreshMax,
		&s.Radius,
		&s.FilesTotal,
		&s.FramesUsed,
		&s.FramesSkipped,
		&s.FlaggedRaw,
		&s.FlaggedDilated,
		&s.ValidGates,
		&s.Rays,
		&s.Gates,
		&instrument,
		&outFile,
		&s.ParamsJSON,
		&s.MaskBlob,
	)
	if err != nil {
		return nil, err
	}
	s.InstrumentName = instrument.String
	s.OutFile = outFile.String
	return &s, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

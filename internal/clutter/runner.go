// Package clutter flags gates whose reflectivity is stable across a sequence
// of scans as fixed clutter.
//
// A run reads every input volume through a FrameSource, reduces the
// reflectivity frames to per-gate moments with a stats.Engine, classifies
// gates by their coefficient of variation, dilates the result with a disk,
// and packages it as a single-field volume.
package clutter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/clutter/internal/grid"
	"github.com/banshee-data/clutter/internal/stats"
	"github.com/banshee-data/clutter/internal/timeutil"
	"github.com/banshee-data/clutter/internal/volume"
)

// ErrInvalidParams wraps every precondition failure reported by Validate.
var ErrInvalidParams = errors.New("invalid clutter parameters")

// Defaults for Params fields left at their zero value by callers that build
// Params directly.
const (
	DefaultThreshMin = 0.0002
	DefaultThreshMax = 1.5
	DefaultRadius    = 1
)

// Params configures one run.
type Params struct {
	Files             []string `json:"-"`
	ThreshMin         float64  `json:"thresh_min"`
	ThreshMax         float64  `json:"thresh_max"`
	Radius            int      `json:"radius"`
	WriteRadar        bool     `json:"write_radar"`
	OutFile           string   `json:"out_file,omitempty"`
	Parallel          bool     `json:"parallel"`
	Workers           int      `json:"workers,omitempty"`
	ReflectivityField string   `json:"reflectivity_field"`
	OutputField       string   `json:"output_field"`
	OutputLongName    string   `json:"output_long_name"`
}

// DefaultParams returns Params with the standard thresholds and radius.
func DefaultParams(files ...string) Params {
	return Params{
		Files:             files,
		ThreshMin:         DefaultThreshMin,
		ThreshMax:         DefaultThreshMax,
		Radius:            DefaultRadius,
		ReflectivityField: volume.ReflectivityField,
		OutputField:       DefaultFieldName,
		OutputLongName:    DefaultLongName,
	}
}

// Validate checks preconditions so bad parameters fail before any file is
// read rather than producing an empty mask.
func (p Params) Validate() error {
	switch {
	case len(p.Files) == 0:
		return fmt.Errorf("%w: no input files", ErrInvalidParams)
	case math.IsNaN(p.ThreshMin) || math.IsInf(p.ThreshMin, 0) ||
		math.IsNaN(p.ThreshMax) || math.IsInf(p.ThreshMax, 0):
		return fmt.Errorf("%w: thresholds must be finite (min=%v max=%v)", ErrInvalidParams, p.ThreshMin, p.ThreshMax)
	case p.ThreshMin < 0:
		return fmt.Errorf("%w: thresh_min must be non-negative, got %v", ErrInvalidParams, p.ThreshMin)
	case p.ThreshMin >= p.ThreshMax:
		return fmt.Errorf("%w: thresh_min %v must be below thresh_max %v", ErrInvalidParams, p.ThreshMin, p.ThreshMax)
	case p.Radius < 0:
		return fmt.Errorf("%w: radius must be non-negative, got %d", ErrInvalidParams, p.Radius)
	case p.Workers < 0:
		return fmt.Errorf("%w: workers must be non-negative, got %d", ErrInvalidParams, p.Workers)
	case p.WriteRadar && p.OutFile == "":
		return fmt.Errorf("%w: out_file is required when write_radar is set", ErrInvalidParams)
	}
	return nil
}

// Engine returns the moment engine selected by p.
func (p Params) Engine() stats.Engine {
	if p.Parallel {
		return stats.ParallelEngine{Workers: p.Workers}
	}
	return stats.StreamingEngine{}
}

// Result is the outcome of a run.
type Result struct {
	RunID          string
	CreatedAt      time.Time
	Volume         *volume.Volume
	Mask           *grid.Mask // dilated
	RawMask        *grid.Mask // before dilation
	Moments        *stats.Moments
	Ratio          *Ratio
	Engine         string
	FilesTotal     int
	FramesUsed     int
	FramesSkipped  int
	Skipped        []SkippedFile
	FlaggedRaw     int
	FlaggedDilated int
	ValidGates     int
	Elapsed        time.Duration
}

// Runner wires the pipeline to its collaborators. Writer is required only
// when Params.WriteRadar is set; Store and Clock are optional.
type Runner struct {
	Reader volume.Reader
	Writer volume.Writer
	Store  RunStore
	Clock  timeutil.Clock
}

// NewRunner returns a Runner reading and writing through codec.
func NewRunner(codec *volume.Codec, store RunStore) *Runner {
	return &Runner{Reader: codec, Writer: codec, Store: store, Clock: timeutil.RealClock{}}
}

func (r *Runner) clock() timeutil.Clock {
	if r.Clock == nil {
		return timeutil.RealClock{}
	}
	return r.Clock
}

// Run executes the full pipeline.
func (r *Runner) Run(ctx context.Context, p Params) (*Result, error) {
	clock := r.clock()
	start := clock.Now()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if r.Reader == nil {
		return nil, errors.New("runner has no volume reader")
	}
	if p.WriteRadar && r.Writer == nil {
		return nil, errors.New("runner has no volume writer")
	}

	src, err := OpenFrameSource(ctx, r.Reader, p.Files, p.ReflectivityField)
	if err != nil {
		return nil, err
	}

	engine := p.Engine()
	diagf("reducing %d files with %s engine", len(p.Files), engine.Name())
	moments, err := engine.Reduce(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("%s reduction: %w", engine.Name(), err)
	}

	ratio := ComputeRatio(moments)
	raw := Classify(ratio, p.ThreshMin, p.ThreshMax)
	dilated := Dilate(raw, p.Radius)

	out, err := Package(src.Volume(), dilated, p.OutputField, p.OutputLongName)
	if err != nil {
		return nil, fmt.Errorf("package clutter field: %w", err)
	}

	res := &Result{
		RunID:          uuid.New().String(),
		CreatedAt:      start,
		Volume:         out,
		Mask:           dilated,
		RawMask:        raw,
		Moments:        moments,
		Ratio:          ratio,
		Engine:         engine.Name(),
		FilesTotal:     len(p.Files),
		FramesUsed:     moments.Frames,
		Skipped:        src.Skipped(),
		FlaggedRaw:     raw.Count(),
		FlaggedDilated: dilated.Count(),
		ValidGates:     ratio.ValidCount(),
	}
	res.FramesSkipped = len(res.Skipped)

	if res.ValidGates == 0 {
		opsf("no valid gates across %d frames: every gate has fewer than two samples or a zero mean; the empty mask does not mean no clutter", res.FramesUsed)
	}
	diagf("frames used=%d skipped=%d valid gates=%d flagged raw=%d dilated=%d",
		res.FramesUsed, res.FramesSkipped, res.ValidGates, res.FlaggedRaw, res.FlaggedDilated)

	if p.WriteRadar {
		if err := r.Writer.Write(p.OutFile, out); err != nil {
			return nil, fmt.Errorf("write clutter volume: %w", err)
		}
	}

	res.Elapsed = clock.Since(start)
	if r.Store != nil {
		snap, err := res.Snapshot(p)
		if err != nil {
			return nil, err
		}
		if err := r.Store.InsertRunSnapshot(snap); err != nil {
			return nil, fmt.Errorf("persist run %s: %w", res.RunID, err)
		}
	}
	return res, nil
}

// Snapshot converts a result into its persisted form.
func (res *Result) Snapshot(p Params) (*RunSnapshot, error) {
	blob, err := SerializeMask(res.Mask)
	if err != nil {
		return nil, fmt.Errorf("serialize mask: %w", err)
	}
	paramsJSON, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}
	snap := &RunSnapshot{
		RunID:          res.RunID,
		Engine:         res.Engine,
		ThreshMin:      p.ThreshMin,
		ThreshMax:      p.ThreshMax,
		Radius:         p.Radius,
		FilesTotal:     res.FilesTotal,
		FramesUsed:     res.FramesUsed,
		FramesSkipped:  res.FramesSkipped,
		FlaggedRaw:     res.FlaggedRaw,
		FlaggedDilated: res.FlaggedDilated,
		ValidGates:     res.ValidGates,
		Rays:           res.Mask.Rays,
		Gates:          res.Mask.Gates,
		ParamsJSON:     string(paramsJSON),
		MaskBlob:       blob,
	}
	if !res.CreatedAt.IsZero() {
		snap.CreatedUnixNanos = res.CreatedAt.UnixNano()
	}
	if res.Volume != nil {
		snap.InstrumentName = res.Volume.Metadata.InstrumentName
	}
	if p.WriteRadar {
		snap.OutFile = p.OutFile
	}
	return snap, nil
}

package clutter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/banshee-data/clutter/internal/grid"
	"github.com/banshee-data/clutter/internal/stats"
	"github.com/banshee-data/clutter/internal/volume"
)

// ErrNoValidFrames is returned when none of the input files yields a usable
// reflectivity frame.
var ErrNoValidFrames = errors.New("no valid frames in input")

// SkippedFile records one input that did not contribute a frame.
type SkippedFile struct {
	Path   string
	Reason string
}

// FrameSource serves reflectivity frames for a fixed list of files. The
// reference shape and metadata come from the first file that reads cleanly.
// It implements stats.Source and is safe for concurrent Load calls.
type FrameSource struct {
	reader    volume.Reader
	paths     []string
	fieldName string

	refIndex  int
	refShape  grid.Shape
	refVolume *volume.Volume
	refFrame  *grid.Field

	loaded  atomic.Int64
	mu      sync.Mutex
	skipped map[int]SkippedFile
}

var _ stats.Source = (*FrameSource)(nil)

// OpenFrameSource discovers the reference frame by reading paths in order
// until one succeeds. It fails with ErrNoValidFrames after trying every
// path, so discovery is bounded by the input list.
func OpenFrameSource(ctx context.Context, reader volume.Reader, paths []string, fieldName string) (*FrameSource, error) {
	if fieldName == "" {
		fieldName = volume.ReflectivityField
	}
	s := &FrameSource{
		reader:    reader,
		paths:     paths,
		fieldName: fieldName,
		refIndex:  -1,
		skipped:   make(map[int]SkippedFile),
	}

	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, f, err := s.read(path)
		if err != nil {
			s.skip(i, err)
			continue
		}
		s.refIndex = i
		s.refShape = f.Shape()
		s.refFrame = f
		s.refVolume = v
		diagf("reference frame %s shape=%v", path, s.refShape)
		return s, nil
	}
	return nil, fmt.Errorf("tried %d files: %w", len(paths), ErrNoValidFrames)
}

func (s *FrameSource) read(path string) (*volume.Volume, *grid.Field, error) {
	v, err := s.reader.Read(path)
	if err != nil {
		return nil, nil, err
	}
	f, err := volume.ReflectivityOf(path, v, s.fieldName)
	if err != nil {
		return nil, nil, err
	}
	if !f.Data.Valid() || f.Data.Shape().IsZero() {
		return nil, nil, &volume.CorruptFileError{Path: path, Reason: errors.New("empty reflectivity grid")}
	}
	return v, f.Data, nil
}

// Reference implements stats.Source.
func (s *FrameSource) Reference() grid.Shape { return s.refShape }

// Len implements stats.Source.
func (s *FrameSource) Len() int { return len(s.paths) }

// Volume returns the reference volume, whose metadata the output inherits.
func (s *FrameSource) Volume() *volume.Volume { return s.refVolume }

// Load implements stats.Source. Failures are logged, recorded as skipped and
// returned; the caller decides whether to drop the frame or substitute a
// placeholder.
func (s *FrameSource) Load(ctx context.Context, i int) (*grid.Field, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if i < 0 || i >= len(s.paths) {
		return nil, fmt.Errorf("frame index %d out of range [0, %d)", i, len(s.paths))
	}
	if i < s.refIndex {
		// already failed during discovery
		s.mu.Lock()
		sk := s.skipped[i]
		s.mu.Unlock()
		return nil, &volume.CorruptFileError{Path: sk.Path, Reason: errors.New(sk.Reason)}
	}
	if i == s.refIndex {
		s.loaded.Add(1)
		tracef("frame %d %s (reference)", i, s.paths[i])
		return s.refFrame, nil
	}

	path := s.paths[i]
	_, f, err := s.read(path)
	if err != nil {
		s.skip(i, err)
		return nil, err
	}
	if f.Shape() != s.refShape {
		err := fmt.Errorf("%s shape %v, reference %v: %w", path, f.Shape(), s.refShape, stats.ErrShapeMismatch)
		s.skip(i, err)
		return nil, err
	}
	s.loaded.Add(1)
	tracef("frame %d %s present=%d", i, path, f.PresentCount())
	return f, nil
}

func (s *FrameSource) skip(i int, err error) {
	opsf("%s is corrupt...skipping: %v", s.paths[i], err)
	s.mu.Lock()
	s.skipped[i] = SkippedFile{Path: s.paths[i], Reason: err.Error()}
	s.mu.Unlock()
}

// Loaded returns how many frames have been served successfully.
func (s *FrameSource) Loaded() int { return int(s.loaded.Load()) }

// Skipped returns the files that failed, in input order.
func (s *FrameSource) Skipped() []SkippedFile {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]SkippedFile, 0, len(s.skipped))
	for i := range s.paths {
		if sk, ok := s.skipped[i]; ok {
			out = append(out, sk)
		}
	}
	return out
}

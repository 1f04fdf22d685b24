package stats

import (
	"context"

	"github.com/banshee-data/clutter/internal/grid"
)

// Moments is the per-gate result of a reduction.
type Moments struct {
	Shape    grid.Shape
	Frames   int   // frames that contributed (placeholders excluded)
	Count    []int // per-gate number of present samples
	Mean     *grid.Field
	Variance *grid.Field // sample variance, 0 where Count <= 1
	StdDev   *grid.Field
}

// zeroMoments is the defined result of reducing no frames.
func zeroMoments(s grid.Shape) *Moments {
	return &Moments{
		Shape:    s,
		Count:    make([]int, s.Len()),
		Mean:     grid.NewField(s),
		Variance: grid.NewField(s),
		StdDev:   grid.NewField(s),
	}
}

// Source supplies frames by index. Load returns an error for frames that
// cannot be used (unreadable, corrupt, wrong shape); engines skip those.
// Implementations must be safe for concurrent Load calls and must not
// mutate a frame after returning it.
type Source interface {
	Reference() grid.Shape
	Len() int
	Load(ctx context.Context, i int) (*grid.Field, error)
}

// Engine reduces every frame of a Source to per-gate moments.
type Engine interface {
	Name() string
	Reduce(ctx context.Context, src Source) (*Moments, error)
}

// StreamingEngine loads, accumulates and drops one frame at a time.
type StreamingEngine struct{}

// Name implements Engine.
func (StreamingEngine) Name() string { return "streaming" }

// Reduce implements Engine.
func (StreamingEngine) Reduce(ctx context.Context, src Source) (*Moments, error) {
	acc := NewAccumulator()
	for i := 0; i < src.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := src.Load(ctx, i)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			continue
		}
		if ref := src.Reference(); !ref.IsZero() && f.Shape() != ref {
			continue
		}
		if err := acc.Push(f); err != nil {
			continue
		}
	}
	if acc.Pushes() == 0 {
		return zeroMoments(src.Reference()), nil
	}
	return acc.Moments(), nil
}

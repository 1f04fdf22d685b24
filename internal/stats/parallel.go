package stats

import (
	"context"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/clutter/internal/grid"
)

// ParallelEngine materializes every frame into a (frame × ray × gate) stack
// and reduces across the frame axis. Frames that fail to load become
// all-missing placeholders so the stack stays uniform.
//
// Memory is O(frames × gates); use StreamingEngine for long archives.
type ParallelEngine struct {
	// Workers bounds concurrent loads and reduction bands. 0 means NumCPU.
	Workers int
}

// Name implements Engine.
func (ParallelEngine) Name() string { return "parallel" }

func (e ParallelEngine) workers() int {
	if e.Workers > 0 {
		return e.Workers
	}
	return runtime.NumCPU()
}

// Reduce implements Engine.
func (e ParallelEngine) Reduce(ctx context.Context, src Source) (*Moments, error) {
	stack, used, err := e.loadStack(ctx, src)
	if err != nil {
		return nil, err
	}
	m, err := e.reduceStack(ctx, stack, src.Reference())
	if err != nil {
		return nil, err
	}
	m.Frames = used
	return m, nil
}

// loadStack fills one slot per source index. Each task writes only its own
// slot, so no locking is needed.
func (e ParallelEngine) loadStack(ctx context.Context, src Source) ([]*grid.Field, int, error) {
	ref := src.Reference()
	stack := make([]*grid.Field, src.Len())
	ok := make([]bool, src.Len())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers())
	for i := range stack {
		g.Go(func() error {
			f, err := src.Load(gctx, i)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				stack[i] = grid.NewMissingField(ref)
				return nil
			}
			if f.Shape() != ref {
				stack[i] = grid.NewMissingField(ref)
				return nil
			}
			stack[i] = f
			ok[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	used := 0
	for _, v := range ok {
		if v {
			used++
		}
	}
	return stack, used, nil
}

// reduceStack computes nan-ignoring mean and sample variance per gate. Rays
// are split into contiguous bands, one task per band.
func (e ParallelEngine) reduceStack(ctx context.Context, stack []*grid.Field, ref grid.Shape) (*Moments, error) {
	m := zeroMoments(ref)
	if len(stack) == 0 || ref.IsZero() {
		return m, nil
	}

	workers := e.workers()
	band := (ref.Rays + workers - 1) / workers
	if band < 1 {
		band = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for r0 := 0; r0 < ref.Rays; r0 += band {
		r1 := min(r0+band, ref.Rays)
		g.Go(func() error {
			buf := make([]float64, 0, len(stack))
			for i := r0 * ref.Gates; i < r1*ref.Gates; i++ {
				if i%ref.Gates == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				buf = buf[:0]
				for _, f := range stack {
					if x := f.Values[i]; !math.IsNaN(x) {
						buf = append(buf, x)
					}
				}
				m.Count[i] = len(buf)
				switch len(buf) {
				case 0:
				case 1:
					m.Mean.Values[i] = buf[0]
				default:
					mean, variance := stat.MeanVariance(buf, nil)
					m.Mean.Values[i] = mean
					m.Variance.Values[i] = math.Max(variance, 0)
					m.StdDev.Values[i] = guardedSqrt(variance)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return m, nil
}

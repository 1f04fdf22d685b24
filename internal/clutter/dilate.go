package clutter

import "github.com/banshee-data/clutter/internal/grid"

// Offset is a (ray, gate) displacement within a structuring element.
type Offset struct {
	DRay  int
	DGate int
}

// Disk returns the offsets of a discrete Euclidean ball: dRay² + dGate² <=
// radius². Disk(0) is the single origin offset.
func Disk(radius int) []Offset {
	if radius < 0 {
		return nil
	}
	r2 := radius * radius
	var out []Offset
	for dr := -radius; dr <= radius; dr++ {
		for dg := -radius; dg <= radius; dg++ {
			if dr*dr+dg*dg <= r2 {
				out = append(out, Offset{DRay: dr, DGate: dg})
			}
		}
	}
	return out
}

// Dilate returns a new mask where every gate within radius of a flagged
// gate is flagged. The input is not modified.
//
// Work happens on a scratch grid padded by radius cells of "non-clutter" on
// every side, so stamping the disk never needs bounds checks and never
// reaches a gate off the real grid. After stamping, the padding is cropped
// and the result is intersected with the input validity.
func Dilate(in *grid.Mask, radius int) *grid.Mask {
	out := in.Clone()
	if radius <= 0 {
		for i := range out.Flags {
			out.Flags[i] = out.Flags[i] && out.Valid[i]
		}
		return out
	}

	disk := Disk(radius)
	pRays, pGates := in.Rays+2*radius, in.Gates+2*radius
	padded := make([]bool, pRays*pGates)

	for _, c := range FlaggedCoords(in) {
		pr, pg := c[0]+radius, c[1]+radius
		for _, o := range disk {
			padded[(pr+o.DRay)*pGates+pg+o.DGate] = true
		}
	}

	for r := 0; r < in.Rays; r++ {
		for g := 0; g < in.Gates; g++ {
			i := out.Idx(r, g)
			out.Flags[i] = out.Valid[i] && padded[(r+radius)*pGates+g+radius]
		}
	}
	return out
}

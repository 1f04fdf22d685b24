// Command gen-volumes writes a synthetic scan sequence for exercising
// `clutter run`: weather-like noise plus a few stable turbine echoes, with
// optional corrupt files mixed in.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/banshee-data/clutter/internal/fsutil"
	"github.com/banshee-data/clutter/internal/grid"
	"github.com/banshee-data/clutter/internal/volume"
)

// turbine is a stable echo at a fixed gate.
type turbine struct {
	ray, gate int
}

type generator struct {
	rays, gates int
	turbines    []turbine
	rng         *rand.Rand
	start       time.Time
}

func newGenerator(rays, gates, nTurbines int, seed int64) *generator {
	g := &generator{
		rays:  rays,
		gates: gates,
		rng:   rand.New(rand.NewSource(seed)),
		start: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	for i := 0; i < nTurbines; i++ {
		g.turbines = append(g.turbines, turbine{ray: g.rng.Intn(rays), gate: g.rng.Intn(gates)})
	}
	return g
}

// frame returns scan i. Background gates are sparse noise centred on 0 dBZ,
// so their stdev/mean ratio is either undefined or far outside the clutter
// band; turbine gates hold around 35 dBZ.
func (g *generator) frame(i int) *volume.Volume {
	data := grid.NewMissingField(grid.Shape{Rays: g.rays, Gates: g.gates})
	for j := range data.Values {
		if g.rng.Float64() < 0.3 {
			data.Values[j] = g.rng.NormFloat64() * 10
		}
	}
	for _, t := range g.turbines {
		data.Set(t.ray, t.gate, 35+g.rng.NormFloat64()*6)
	}

	md := volume.Metadata{
		InstrumentName: "synthetic-xsapr",
		ScanType:       "ppi",
		StartTime:      g.start.Add(time.Duration(i) * 5 * time.Minute),
		Latitude:       36.6,
		Longitude:      -97.5,
		AltitudeMeters: 320,
		Azimuth:        make([]float64, g.rays),
		Elevation:      make([]float64, g.rays),
		RangeMeters:    make([]float64, g.gates),
	}
	for r := range md.Azimuth {
		md.Azimuth[r] = 360 * float64(r) / float64(g.rays)
		md.Elevation[r] = 0.5
	}
	for k := range md.RangeMeters {
		md.RangeMeters[k] = 50 * float64(k+1)
	}

	v := volume.New(md)
	if err := v.AddField(volume.ReflectivityField, &volume.Field{
		Units:        "dBZ",
		StandardName: "equivalent_reflectivity_factor",
		LongName:     "Reflectivity",
		Data:         data,
	}, false); err != nil {
		panic(err)
	}
	return v
}

// corruptIndices spreads n corrupt files evenly through frames.
func corruptIndices(frames, n int) map[int]bool {
	out := make(map[int]bool, n)
	if n <= 0 || frames <= 0 {
		return out
	}
	step := math.Max(1, float64(frames)/float64(n))
	for k := 0; k < n && int(float64(k)*step) < frames; k++ {
		out[int(float64(k)*step)] = true
	}
	return out
}

func generate(fs fsutil.FileSystem, dir string, g *generator, frames, corrupt int) ([]string, error) {
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	codec := &volume.Codec{FS: fs}
	bad := corruptIndices(frames, corrupt)

	paths := make([]string, 0, frames)
	for i := 0; i < frames; i++ {
		path := filepath.Join(dir, fmt.Sprintf("scan_%04d.vol", i))
		v := g.frame(i)
		if bad[i] {
			w, err := fs.Create(path)
			if err != nil {
				return nil, err
			}
			// a gzip magic number with nothing behind it
			_, err = w.Write([]byte{0x1f, 0x8b, 0x08, 0x00})
			if cerr := w.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return nil, err
			}
		} else if err := codec.Write(path, v); err != nil {
			return nil, err
		}
		paths = append(paths, path)
		if (i+1)%10 == 0 {
			log.Printf("%d/%d frames", i+1, frames)
		}
	}
	return paths, nil
}

func main() {
	output := flag.String("o", "scans", "output directory")
	frames := flag.Int("n", 50, "number of frames")
	rays := flag.Int("rays", 360, "rays per frame")
	gates := flag.Int("gates", 400, "gates per ray")
	seed := flag.Int64("seed", 1, "random seed")
	turbines := flag.Int("turbines", 8, "number of turbine echoes")
	corrupt := flag.Int("corrupt", 2, "number of corrupt files to mix in")
	flag.Parse()

	if *frames <= 0 || *rays <= 0 || *gates <= 0 {
		log.Fatalf("frames, rays and gates must be positive")
	}

	g := newGenerator(*rays, *gates, *turbines, *seed)
	for _, t := range g.turbines {
		log.Printf("turbine at ray=%d gate=%d", t.ray, t.gate)
	}
	if _, err := generate(fsutil.OSFileSystem{}, *output, g, *frames, *corrupt); err != nil {
		log.Fatalf("generate: %v", err)
	}
	log.Printf("✓ Created %d frames in %s", *frames, *output)
}

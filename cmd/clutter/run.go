package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/banshee-data/clutter/internal/clutter"
	"github.com/banshee-data/clutter/internal/config"
	"github.com/banshee-data/clutter/internal/db"
	"github.com/banshee-data/clutter/internal/fsutil"
	"github.com/banshee-data/clutter/internal/volume"
)

type runFlags struct {
	configPath string
	threshMin  float64
	threshMax  float64
	radius     int
	parallel   bool
	workers    int
	field      string
	out        string
	dbPath     string
	diag       bool
	trace      bool
}

func (f *runFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.configPath, "config", "", "JSON or YAML config file")
	fs.Float64Var(&f.threshMin, "thresh-min", clutter.DefaultThreshMin, "exclusive lower bound on stdev/mean")
	fs.Float64Var(&f.threshMax, "thresh-max", clutter.DefaultThreshMax, "exclusive upper bound on stdev/mean")
	fs.IntVar(&f.radius, "radius", clutter.DefaultRadius, "dilation radius in gates")
	fs.BoolVar(&f.parallel, "parallel", false, "use the parallel (frame stack) engine")
	fs.IntVar(&f.workers, "workers", 0, "parallel workers (0 = one per CPU)")
	fs.StringVar(&f.field, "field", volume.ReflectivityField, "reflectivity field name")
	fs.StringVar(&f.out, "out", "", "write the clutter volume to this path")
	fs.StringVar(&f.dbPath, "db", "", "record the run in this SQLite database")
	fs.BoolVar(&f.diag, "diag", false, "log per-run diagnostics to stderr")
	fs.BoolVar(&f.trace, "trace", false, "log per-frame telemetry to stderr")
}

// params layers explicitly set flags over cfg.
func (f *runFlags) params(fs *flag.FlagSet, cfg *config.ClutterConfig, files []string) clutter.Params {
	p := cfg.Params(files...)
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "thresh-min":
			p.ThreshMin = f.threshMin
		case "thresh-max":
			p.ThreshMax = f.threshMax
		case "radius":
			p.Radius = f.radius
		case "parallel":
			p.Parallel = f.parallel
		case "workers":
			p.Workers = f.workers
		case "field":
			p.ReflectivityField = f.field
		case "out":
			p.OutFile = f.out
			p.WriteRadar = f.out != ""
		}
	})
	return p
}

func handleRun(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var f runFlags
	f.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.EmptyClutterConfig()
	if f.configPath != "" {
		var err error
		if cfg, err = config.LoadClutterConfig(f.configPath); err != nil {
			return err
		}
	}

	osfs := fsutil.OSFileSystem{}
	files, err := expandInputs(osfs, fs.Args(), stderr)
	if err != nil {
		return err
	}
	p := f.params(fs, cfg, files)

	var diagW, traceW io.Writer
	if f.diag {
		diagW = stderr
	}
	if f.trace {
		traceW = stderr
	}
	clutter.SetLogWriters(stderr, diagW, traceW)

	var store clutter.RunStore
	dbPath := f.dbPath
	if dbPath == "" && cfg.DBPath != nil {
		dbPath = cfg.GetDBPath()
	}
	if dbPath != "" {
		database, err := db.NewDB(dbPath)
		if err != nil {
			return err
		}
		defer database.Close()
		store = database
	}

	res, err := clutter.NewRunner(&volume.Codec{FS: osfs}, store).Run(ctx, p)
	if err != nil {
		return err
	}
	printSummary(stdout, p, res)
	return nil
}

// expandInputs resolves glob arguments in order. Literal paths pass through
// untouched so a missing file is reported as skipped rather than vanishing.
func expandInputs(fsys fsutil.FileSystem, args []string, warn io.Writer) ([]string, error) {
	var files []string
	for _, arg := range args {
		if !strings.ContainsAny(arg, "*?[") {
			files = append(files, arg)
			continue
		}
		matches, err := fsys.Glob(arg)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", arg, err)
		}
		if len(matches) == 0 {
			fmt.Fprintf(warn, "warning: %q matched no files\n", arg)
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return nil, errors.New("no input files")
	}
	return files, nil
}

func printSummary(w io.Writer, p clutter.Params, res *clutter.Result) {
	fmt.Fprintf(w, "run %s (%s engine, %s)\n", res.RunID, res.Engine, res.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "  frames:  %s used, %s skipped of %s files\n",
		humanize.Comma(int64(res.FramesUsed)), humanize.Comma(int64(res.FramesSkipped)), humanize.Comma(int64(res.FilesTotal)))
	fmt.Fprintf(w, "  grid:    %d rays x %d gates, %s valid\n",
		res.Mask.Rays, res.Mask.Gates, humanize.Comma(int64(res.ValidGates)))
	fmt.Fprintf(w, "  clutter: %s gates raw, %s after radius-%d dilation\n",
		humanize.Comma(int64(res.FlaggedRaw)), humanize.Comma(int64(res.FlaggedDilated)), p.Radius)
	for _, sk := range res.Skipped {
		fmt.Fprintf(w, "  skipped: %s (%s)\n", sk.Path, sk.Reason)
	}
	if p.WriteRadar {
		size := ""
		if info, err := os.Stat(p.OutFile); err == nil {
			size = " (" + humanize.Bytes(uint64(info.Size())) + ")"
		}
		fmt.Fprintf(w, "  wrote:   %s%s\n", p.OutFile, size)
	}
}

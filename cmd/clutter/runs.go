package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/banshee-data/clutter/internal/clutter"
	"github.com/banshee-data/clutter/internal/db"
)

func handleRuns(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", "clutter.db", "SQLite database path")
	limit := fs.Int("limit", 20, "maximum runs to list (0 = all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	runs, err := database.ListRunSnapshots(*limit)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, renderRuns(runs, time.Now()))
	return nil
}

func renderRuns(runs []*clutter.RunSnapshot, now time.Time) string {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateColumns = false

	tbl.AppendHeader(table.Row{"Run", "Created", "Engine", "Frames", "Skipped", "Grid", "Valid", "Raw", "Dilated"})
	for _, r := range runs {
		tbl.AppendRow(table.Row{
			r.RunID,
			humanize.RelTime(time.Unix(0, r.CreatedUnixNanos), now, "ago", "from now"),
			r.Engine,
			humanize.Comma(int64(r.FramesUsed)),
			humanize.Comma(int64(r.FramesSkipped)),
			fmt.Sprintf("%dx%d", r.Rays, r.Gates),
			humanize.Comma(int64(r.ValidGates)),
			humanize.Comma(int64(r.FlaggedRaw)),
			humanize.Comma(int64(r.FlaggedDilated)),
		})
	}
	tbl.AppendFooter(table.Row{fmt.Sprintf("Total: %d runs", len(runs))})
	return tbl.Render()
}

func handleShow(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", "clutter.db", "SQLite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	var snap *clutter.RunSnapshot
	switch fs.NArg() {
	case 0:
		snap, err = database.GetLatestRunSnapshot()
	case 1:
		snap, err = database.GetRunSnapshot(fs.Arg(0))
	default:
		return errors.New("show takes at most one run id")
	}
	if err != nil {
		return err
	}

	mask, err := clutter.DeserializeMask(snap.MaskBlob)
	if err != nil {
		return fmt.Errorf("run %s: %w", snap.RunID, err)
	}
	fmt.Fprintln(stdout, renderRun(snap, mask.ValidCount()))
	return nil
}

func renderRun(s *clutter.RunSnapshot, maskValid int) string {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateColumns = false

	out := s.OutFile
	if out == "" {
		out = "(not written)"
	}
	tbl.AppendRows([]table.Row{
		{"Run", s.RunID},
		{"Created", time.Unix(0, s.CreatedUnixNanos).UTC().Format(time.RFC3339)},
		{"Instrument", s.InstrumentName},
		{"Engine", s.Engine},
		{"Thresholds", fmt.Sprintf("(%g, %g)", s.ThreshMin, s.ThreshMax)},
		{"Radius", s.Radius},
		{"Files", humanize.Comma(int64(s.FilesTotal))},
		{"Frames used", humanize.Comma(int64(s.FramesUsed))},
		{"Frames skipped", humanize.Comma(int64(s.FramesSkipped))},
		{"Grid", fmt.Sprintf("%d rays x %d gates", s.Rays, s.Gates)},
		{"Valid gates", humanize.Comma(int64(s.ValidGates))},
		{"Mask valid gates", humanize.Comma(int64(maskValid))},
		{"Flagged raw", humanize.Comma(int64(s.FlaggedRaw))},
		{"Flagged dilated", humanize.Comma(int64(s.FlaggedDilated))},
		{"Output", out},
		{"Params", s.ParamsJSON},
	})
	return tbl.Render()
}

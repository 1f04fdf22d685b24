package main

import (
	"bytes"
	"context"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/clutter/internal/clutter"
	"github.com/banshee-data/clutter/internal/config"
	"github.com/banshee-data/clutter/internal/fsutil"
	"github.com/banshee-data/clutter/internal/testutil"
	"github.com/banshee-data/clutter/internal/volume"
)

// writeScans writes a quiet frame and a frame with one fluctuating corner
// gate into dir and returns a glob covering both.
func writeScans(t *testing.T, dir string) string {
	t.Helper()
	codec := &volume.Codec{FS: fsutil.OSFileSystem{}}
	spike := testutil.Uniform(3, 3, 1)
	spike[2][2] = 100
	for i, rows := range [][][]float64{testutil.Uniform(3, 3, 1), spike} {
		path := filepath.Join(dir, testutil.FrameName(i))
		require.NoError(t, codec.Write(path, testutil.ReflectivityVolume(t, "xsapr-i4", rows)))
	}
	return filepath.Join(dir, "frame_*.vol")
}

func TestRunShowRuns(t *testing.T) {
	t.Cleanup(func() { clutter.SetLogWriters(nil, nil, nil) })
	dir := t.TempDir()
	glob := writeScans(t, dir)
	out := filepath.Join(dir, "clutter.vol")
	dbPath := filepath.Join(dir, "runs.db")

	var stdout, stderr bytes.Buffer
	err := dispatch(context.Background(), "run",
		[]string{"-out", out, "-db", dbPath, glob, filepath.Join(dir, "missing.vol")}, &stdout, &stderr)
	require.NoError(t, err, stderr.String())

	s := stdout.String()
	assert.Contains(t, s, "2 used, 1 skipped of 3 files")
	assert.Contains(t, s, "1 gates raw, 3 after radius-1 dilation")
	assert.Contains(t, s, "wrote:   "+out)
	assert.Contains(t, stderr.String(), "missing.vol is corrupt...skipping")

	written, err := volume.NewCodec().Read(out)
	require.NoError(t, err)
	assert.Equal(t, []string{clutter.DefaultFieldName}, written.FieldNames())
	assert.Equal(t, 3, clutter.MaskFromField(written.Fields[clutter.DefaultFieldName].Data).Count())

	stdout.Reset()
	require.NoError(t, dispatch(context.Background(), "runs", []string{"-db", dbPath}, &stdout, &stderr))
	assert.Contains(t, strings.ToLower(stdout.String()), "total: 1 runs")
	assert.Contains(t, stdout.String(), "streaming")

	stdout.Reset()
	require.NoError(t, dispatch(context.Background(), "show", []string{"-db", dbPath}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "xsapr-i4")
	assert.Contains(t, stdout.String(), out)
}

func TestRun_ConfigAndFlagPrecedence(t *testing.T) {
	t.Cleanup(func() { clutter.SetLogWriters(nil, nil, nil) })
	dir := t.TempDir()
	glob := writeScans(t, dir)
	cfgPath := filepath.Join(dir, "clutter.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("radius: 0\nparallel: true\n"), 0644))

	var stdout, stderr bytes.Buffer
	require.NoError(t, dispatch(context.Background(), "run", []string{"-config", cfgPath, glob}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "parallel engine")
	assert.Contains(t, stdout.String(), "1 gates raw, 1 after radius-0 dilation")

	stdout.Reset()
	require.NoError(t, dispatch(context.Background(), "run", []string{"-config", cfgPath, "-radius", "2", glob}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "after radius-2 dilation")
}

func TestRunFlagsParams(t *testing.T) {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	var f runFlags
	f.register(fs)
	require.NoError(t, fs.Parse([]string{"-thresh-max", "0.75", "-out", "x.vol", "-workers", "3"}))

	cfg := config.DefaultClutterConfig()
	*cfg.Radius = 4
	p := f.params(fs, cfg, []string{"a.vol"})

	assert.Equal(t, 0.75, p.ThreshMax)
	assert.Equal(t, clutter.DefaultThreshMin, p.ThreshMin)
	assert.Equal(t, 4, p.Radius, "unset flag keeps the config value")
	assert.True(t, p.WriteRadar)
	assert.Equal(t, "x.vol", p.OutFile)
	assert.Equal(t, 3, p.Workers)
}

func TestRun_Errors(t *testing.T) {
	t.Cleanup(func() { clutter.SetLogWriters(nil, nil, nil) })
	var stdout, stderr bytes.Buffer
	ctx := context.Background()

	err := dispatch(ctx, "run", []string{filepath.Join(t.TempDir(), "none_*.vol")}, &stdout, &stderr)
	assert.ErrorContains(t, err, "no input files")

	err = dispatch(ctx, "run", []string{"-radius", "-1", "a.vol"}, &stdout, &stderr)
	assert.ErrorIs(t, err, clutter.ErrInvalidParams)

	err = dispatch(ctx, "run", []string{filepath.Join(t.TempDir(), "gone.vol")}, &stdout, &stderr)
	assert.ErrorIs(t, err, clutter.ErrNoValidFrames)

	err = dispatch(ctx, "bogus", nil, &stdout, &stderr)
	assert.ErrorContains(t, err, "unknown command")
}

func TestExpandInputs(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	mfs.WriteFile("d/b.vol", nil)
	mfs.WriteFile("d/a.vol", nil)
	var warn bytes.Buffer

	files, err := expandInputs(mfs, []string{"z.vol", "d/*.vol", "e/*.vol"}, &warn)
	require.NoError(t, err)
	assert.Equal(t, []string{"z.vol", "d/a.vol", "d/b.vol"}, files)
	assert.True(t, strings.Contains(warn.String(), `"e/*.vol" matched no files`))

	_, err = expandInputs(mfs, []string{"[bad"}, &warn)
	assert.Error(t, err)
}

func TestRenderRuns(t *testing.T) {
	now := time.Unix(1000, 0)
	out := renderRuns([]*clutter.RunSnapshot{{
		RunID:            "run-1",
		CreatedUnixNanos: now.Add(-2 * time.Hour).UnixNano(),
		Engine:           "parallel",
		FramesUsed:       1200,
		Rays:             360,
		Gates:            500,
		FlaggedDilated:   4321,
	}}, now)
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "2 hours ago")
	assert.Contains(t, out, "1,200")
	assert.Contains(t, out, "360x500")
	assert.Contains(t, out, "4,321")
}

func TestVersionAndHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer
	require.NoError(t, dispatch(context.Background(), "version", nil, &stdout, &stderr))
	assert.True(t, strings.HasPrefix(stdout.String(), "clutter "))

	stdout.Reset()
	require.NoError(t, dispatch(context.Background(), "help", nil, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "migrate")
}

func TestMigrateCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	dbPath := filepath.Join(t.TempDir(), "m.db")
	require.NoError(t, dispatch(context.Background(), "migrate", []string{"-db", dbPath, "up"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "Current version: 1")
}

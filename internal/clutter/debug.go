package clutter

import (
	"io"
	"log"

	"github.com/banshee-data/clutter/internal/monitoring"
)

var (
	opsLogger   *log.Logger
	diagLogger  *log.Logger
	traceLogger *log.Logger
)

// SetLogWriters configures the three logging streams for the clutter package.
// Pass nil for any writer to disable that stream.
func SetLogWriters(ops, diag, trace io.Writer) {
	opsLogger = monitoring.NewStreamLogger("[clutter] ", ops)
	diagLogger = monitoring.NewStreamLogger("[clutter] ", diag)
	traceLogger = monitoring.NewStreamLogger("[clutter] ", trace)
}

// opsf logs to the ops stream (skipped files, degenerate runs).
func opsf(format string, args ...interface{}) {
	if opsLogger != nil {
		opsLogger.Printf(format, args...)
	}
}

// diagf logs to the diag stream (per-run summaries, engine choice).
func diagf(format string, args ...interface{}) {
	if diagLogger != nil {
		diagLogger.Printf(format, args...)
	}
}

// tracef logs to the trace stream (per-frame telemetry).
func tracef(format string, args ...interface{}) {
	if traceLogger != nil {
		traceLogger.Printf(format, args...)
	}
}
